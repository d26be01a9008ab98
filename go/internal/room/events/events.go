package events

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

// EventType represents the type of room event
type EventType string

const (
	EventTypeMemberJoined   EventType = "member-joined"
	EventTypeMemberOnline   EventType = "member-online"
	EventTypeMemberOffline  EventType = "member-offline"
	EventTypeVoteUpdate     EventType = "vote-update"
	EventTypeRoomUpdate     EventType = "room-update"
	EventTypeNewSuggestions EventType = "new-suggestions"
	EventTypeVotingStarted  EventType = "voting-started"
	EventTypeVotingTick     EventType = "voting-tick"
	EventTypeVotingFinished EventType = "voting-finished"
)

// RoomEvent is the envelope for everything pushed to room subscribers.
// Seq increases by one for every event of a room, in mutation order.
type RoomEvent struct {
	ID        string          `json:"id"`
	RoomID    string          `json:"room_id"`
	Seq       uint64          `json:"seq"`
	Type      EventType       `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data"`
}

// New builds an event with a fresh id and the payload marshalled into Data.
func New(roomID uuid.UUID, seq uint64, typ EventType, at time.Time, payload any) (*RoomEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", typ, err)
	}
	return &RoomEvent{
		ID:        uuid.New().String(),
		RoomID:    roomID.String(),
		Seq:       seq,
		Type:      typ,
		Timestamp: at.UTC(),
		Data:      data,
	}, nil
}

// Decode unmarshals the event data into the payload struct for its type.
func Decode(event *RoomEvent) (interface{}, error) {
	var payload interface{}
	switch event.Type {
	case EventTypeMemberJoined, EventTypeMemberOnline, EventTypeMemberOffline:
		payload = &MemberPayload{}
	case EventTypeVoteUpdate:
		payload = &VotePayload{}
	case EventTypeRoomUpdate:
		payload = &RoomUpdatePayload{}
	case EventTypeNewSuggestions:
		payload = &SuggestionsPayload{}
	case EventTypeVotingStarted:
		payload = &VotingStartedPayload{}
	case EventTypeVotingTick:
		payload = &VotingTickPayload{}
	case EventTypeVotingFinished:
		payload = &VotingFinishedPayload{}
	default:
		return nil, fmt.Errorf("unknown event type %q", event.Type)
	}
	if err := json.Unmarshal(event.Data, payload); err != nil {
		return nil, err
	}
	return payload, nil
}

// Publisher receives room events in mutation order. Publish is called while
// the room is locked and must not block.
type Publisher interface {
	Publish(event *RoomEvent)
}

// Fanout delivers each event to every publisher in order.
type Fanout []Publisher

func (f Fanout) Publish(event *RoomEvent) {
	for _, p := range f {
		p.Publish(event)
	}
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(*RoomEvent) {}

// Recorder keeps published events in memory. Used by tests.
type Recorder struct {
	mu     sync.Mutex
	events []*RoomEvent
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Publish(event *RoomEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []*RoomEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*RoomEvent, len(r.events))
	copy(out, r.events)
	return out
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []EventType {
	evs := r.Events()
	out := make([]EventType, len(evs))
	for i, e := range evs {
		out[i] = e.Type
	}
	return out
}

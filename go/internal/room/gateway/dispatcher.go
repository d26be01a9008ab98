package gateway

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/placepick/go/internal/apperr"
	"github.com/mcdev12/placepick/go/internal/models"
	"github.com/mcdev12/placepick/go/internal/room"
	"github.com/rs/zerolog/log"
)

// RoomActions is the slice of the room app the gateway drives.
type RoomActions interface {
	GetRoom(ctx context.Context, roomID uuid.UUID) (models.Room, error)
	IsMember(ctx context.Context, roomID, userID uuid.UUID) (bool, error)
	SetPresence(ctx context.Context, roomID, userID uuid.UUID, online bool)
	SubmitVote(ctx context.Context, req room.VoteRequest) (models.Vote, error)
	SuggestPlaces(ctx context.Context, req room.SuggestRequest) ([]models.Place, error)
	DefaultVoting() room.VotingOptions
	StartVoting(ctx context.Context, roomID, actorID uuid.UUID, opts *room.VotingOptions) (models.Room, error)
	NextPlace(ctx context.Context, roomID, actorID uuid.UUID) (models.Room, error)
	PrevPlace(ctx context.Context, roomID, actorID uuid.UUID) (models.Room, error)
	EndVoting(ctx context.Context, roomID, actorID uuid.UUID) (models.Room, error)
}

var _ RoomActions = (*room.App)(nil)

// Dispatcher turns client frames into room actions and answers on the
// sending connection. Results reach the other members as room events.
type Dispatcher struct {
	app     RoomActions
	ctx     context.Context
	timeout time.Duration
	manager *ConnectionManager
}

// NewDispatcher creates a dispatcher. ctx bounds every action it runs;
// timeout caps a single frame, suggestion fetches included.
func NewDispatcher(ctx context.Context, app RoomActions, timeout time.Duration) *Dispatcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Dispatcher{app: app, ctx: ctx, timeout: timeout}
}

func (d *Dispatcher) handle(conn *Connection, message []byte) {
	var frame ClientFrame
	if err := json.Unmarshal(message, &frame); err != nil {
		d.reply(conn, errorFrame("", apperr.Validation("malformed frame")))
		return
	}

	log.Debug().
		Str("connection_id", conn.ID).
		Str("type", frame.Type).
		Msg("received client frame")

	// Fetches can take seconds; the socket keeps serving its other rooms meanwhile.
	if frame.Type == FrameSuggestPlaces {
		go d.run(conn, frame)
		return
	}
	d.run(conn, frame)
}

// run executes one frame and answers with an ack or an error frame.
func (d *Dispatcher) run(conn *Connection, frame ClientFrame) {
	ctx, cancel := context.WithTimeout(d.ctx, d.timeout)
	defer cancel()

	result, err := d.dispatch(ctx, conn, frame)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInternal {
			log.Error().Err(err).Str("type", frame.Type).Msg("client frame failed")
		}
		d.reply(conn, errorFrame(frame.RequestID, err))
		return
	}
	if result != nil {
		d.reply(conn, ServerFrame{Type: FrameAck, RequestID: frame.RequestID, Data: result})
	}
}

func (d *Dispatcher) dispatch(ctx context.Context, conn *Connection, frame ClientFrame) (any, error) {
	switch frame.Type {
	case FrameJoinRoom:
		var msg room.RoomIDMsg
		if err := decode(frame, &msg); err != nil {
			return nil, err
		}
		roomID, err := parseRoomID(msg.RoomID)
		if err != nil {
			return nil, err
		}
		d.join(conn, roomID, frame.RequestID)
		return nil, nil

	case FrameLeaveRoom:
		var msg room.RoomIDMsg
		if err := decode(frame, &msg); err != nil {
			return nil, err
		}
		roomID, err := parseRoomID(msg.RoomID)
		if err != nil {
			return nil, err
		}
		if !d.manager.Unsubscribe(conn, roomID) {
			d.app.SetPresence(ctx, roomID, conn.UserID, false)
		}
		return room.RoomIDMsg{RoomID: roomID.String()}, nil

	case FrameSubmitVote, FrameVoteAdvance:
		var msg room.SubmitVoteMsg
		if err := decode(frame, &msg); err != nil {
			return nil, err
		}
		roomID, err := parseRoomID(msg.RoomID)
		if err != nil {
			return nil, err
		}
		value, err := models.ParseVoteValue(msg.Value)
		if err != nil {
			return nil, apperr.Validation("%v", err)
		}
		vote, err := d.app.SubmitVote(ctx, room.VoteRequest{
			RoomID:  roomID,
			UserID:  conn.UserID,
			PlaceID: msg.PlaceID,
			Value:   value,
			Advance: msg.Advance || frame.Type == FrameVoteAdvance,
		})
		if err != nil {
			return nil, err
		}
		return room.VoteMsg{Vote: vote}, nil

	case FrameSuggestPlaces:
		var msg room.SuggestPlacesMsg
		if err := decode(frame, &msg); err != nil {
			return nil, err
		}
		req, err := suggestRequest(conn.UserID, msg)
		if err != nil {
			return nil, err
		}
		places, err := d.app.SuggestPlaces(ctx, req)
		if err != nil {
			return nil, err
		}
		return room.PlacesMsg{Places: places}, nil

	case FrameStartVoting:
		var msg room.StartVotingMsg
		if err := decode(frame, &msg); err != nil {
			return nil, err
		}
		roomID, err := parseRoomID(msg.RoomID)
		if err != nil {
			return nil, err
		}
		opts, err := room.VotingOptionsFromMsg(d.app.DefaultVoting(), msg)
		if err != nil {
			return nil, err
		}
		r, err := d.app.StartVoting(ctx, roomID, conn.UserID, opts)
		if err != nil {
			return nil, err
		}
		return room.RoomMsg{Room: r}, nil

	case FrameNextPlace:
		return d.navigate(ctx, conn, frame, d.app.NextPlace)
	case FramePrevPlace:
		return d.navigate(ctx, conn, frame, d.app.PrevPlace)
	case FrameEndVoting:
		return d.navigate(ctx, conn, frame, d.app.EndVoting)
	}
	return nil, apperr.Validation("unknown frame type %q", frame.Type)
}

func (d *Dispatcher) navigate(ctx context.Context, conn *Connection, frame ClientFrame, op func(context.Context, uuid.UUID, uuid.UUID) (models.Room, error)) (any, error) {
	var msg room.RoomIDMsg
	if err := decode(frame, &msg); err != nil {
		return nil, err
	}
	roomID, err := parseRoomID(msg.RoomID)
	if err != nil {
		return nil, err
	}
	r, err := op(ctx, roomID, conn.UserID)
	if err != nil {
		return nil, err
	}
	return room.RoomMsg{Room: r}, nil
}

// join subscribes a member's connection to a room, marks them online and
// sends the current snapshot. Events that raced the snapshot carry a seq at
// or below Room.Seq and can be skipped by the client.
func (d *Dispatcher) join(conn *Connection, roomID uuid.UUID, requestID string) {
	ctx, cancel := context.WithTimeout(d.ctx, d.timeout)
	defer cancel()

	member, err := d.app.IsMember(ctx, roomID, conn.UserID)
	if err == nil && !member {
		err = apperr.Forbidden("join the room with its code first")
	}
	if err != nil {
		d.reply(conn, errorFrame(requestID, err))
		return
	}
	if !d.manager.Subscribe(conn, roomID) {
		return
	}
	d.app.SetPresence(ctx, roomID, conn.UserID, true)

	snapshot, err := d.app.GetRoom(ctx, roomID)
	if err != nil {
		d.reply(conn, errorFrame(requestID, err))
		return
	}
	d.reply(conn, ServerFrame{Type: FrameRoomState, RequestID: requestID, Data: snapshot})
}

// disconnected runs once a user has no connection left in a room. The
// member stays in the room and only goes offline.
func (d *Dispatcher) disconnected(roomID, userID uuid.UUID) {
	ctx, cancel := context.WithTimeout(d.ctx, d.timeout)
	defer cancel()
	d.app.SetPresence(ctx, roomID, userID, false)
}

func (d *Dispatcher) reply(conn *Connection, frame ServerFrame) {
	d.manager.SendToConnection(conn, frame)
}

func decode(frame ClientFrame, v any) error {
	if len(frame.Data) == 0 {
		return apperr.Validation("%s frame has no data", frame.Type)
	}
	if err := json.Unmarshal(frame.Data, v); err != nil {
		return apperr.Validation("malformed %s data", frame.Type)
	}
	return nil
}

func parseRoomID(s string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, apperr.Validation("room id is required")
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, apperr.Validation("invalid room id %q", s)
	}
	return id, nil
}

func suggestRequest(actorID uuid.UUID, msg room.SuggestPlacesMsg) (room.SuggestRequest, error) {
	roomID, err := parseRoomID(msg.RoomID)
	if err != nil {
		return room.SuggestRequest{}, err
	}
	mode, err := room.ParseSuggestMode(msg.Mode)
	if err != nil {
		return room.SuggestRequest{}, err
	}
	req := room.SuggestRequest{RoomID: roomID, ActorID: actorID, Mode: mode}
	if msg.Preferences != nil {
		prefs, err := room.PreferencesFromMsg(*msg.Preferences)
		if err != nil {
			return room.SuggestRequest{}, err
		}
		req.Preferences = &prefs
	}
	return req, nil
}

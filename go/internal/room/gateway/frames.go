package gateway

import (
	"encoding/json"

	"github.com/mcdev12/placepick/go/internal/apperr"
)

// Client frame types
const (
	FrameJoinRoom      = "join-room"
	FrameLeaveRoom     = "leave-room"
	FrameSubmitVote    = "submit-vote"
	FrameVoteAdvance   = "vote-advance"
	FrameSuggestPlaces = "suggest-places"
	FrameStartVoting   = "start-voting"
	FrameNextPlace     = "next-place"
	FramePrevPlace     = "prev-place"
	FrameEndVoting     = "end-voting"
)

// Server frame types sent to a single connection. Room events are sent as
// events.RoomEvent and carry their own type.
const (
	FrameRoomState = "room-state"
	FrameAck       = "ack"
	FrameError     = "error"
)

// ClientFrame is a message from a client. Data holds the same message the
// RPC service takes for the action.
type ClientFrame struct {
	Type      string          `json:"type"`
	RequestID string          `json:"request_id,omitempty"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// ServerFrame answers one client frame.
type ServerFrame struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`
	Data      any    `json:"data,omitempty"`
}

// ErrorData is the payload of an error frame.
type ErrorData struct {
	Kind    apperr.Kind `json:"kind"`
	Message string      `json:"message"`
}

func errorFrame(requestID string, err error) ServerFrame {
	return ServerFrame{
		Type:      FrameError,
		RequestID: requestID,
		Data: ErrorData{
			Kind:    apperr.KindOf(err),
			Message: apperr.DisplayMessage(err),
		},
	}
}

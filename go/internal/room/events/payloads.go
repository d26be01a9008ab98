package events

import (
	"github.com/mcdev12/placepick/go/internal/models"
)

// Event payload types that are shared between the room and gateway packages

// MemberPayload is the payload for member-joined, member-online and
// member-offline events
type MemberPayload struct {
	Member models.RoomMember `json:"member"`
}

// VotePayload is the payload for a vote-update event
type VotePayload struct {
	Vote models.Vote `json:"vote"`
	// Auto is set when the vote was synthesized on card timeout
	Auto bool `json:"auto"`
}

// RoomUpdatePayload carries the full room snapshot
type RoomUpdatePayload struct {
	Room models.Room `json:"room"`
}

// SuggestionsPayload is the payload for a new-suggestions event
type SuggestionsPayload struct {
	Places   []models.Place `json:"places"`
	Replaced bool           `json:"replaced"`
}

// VotingStartedPayload is the payload for a voting-started event
type VotingStartedPayload struct {
	Voting models.VotingState `json:"voting"`
	Place  models.Place       `json:"place"`
}

// VotingTickPayload is the server-authoritative countdown
type VotingTickPayload struct {
	PlaceID          string `json:"place_id"`
	PlaceIndex       int    `json:"place_index"`
	SecondsRemaining int    `json:"seconds_remaining"`
}

// VotingFinishedPayload is the payload for a voting-finished event
type VotingFinishedPayload struct {
	Reason        string               `json:"reason"`
	LeadingChoice *models.RankedPlace  `json:"leading_choice,omitempty"`
	Ranking       []models.RankedPlace `json:"ranking"`
}

// Finish reasons
const (
	FinishReasonExhausted = "exhausted"
	FinishReasonEnded     = "ended"
)

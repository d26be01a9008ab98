package room

import (
	"github.com/google/uuid"
	"github.com/mcdev12/placepick/go/internal/models"
)

// AutoVote is a vote synthesized when a card times out.
type AutoVote struct {
	UserID uuid.UUID
	Value  models.VoteValue
}

type AutoVoteStrategy interface {
	// SelectVotes decides which votes to synthesize for place when its card
	// runs out of time. hasVoted reports whether a user already voted on it.
	SelectVotes(place models.Place, members []models.RoomMember, hasVoted func(uuid.UUID) bool) []AutoVote
}

// LikeOnlineStrategy gives a like on behalf of every online member who let
// the card expire without voting. Offline members are left alone.
type LikeOnlineStrategy struct{}

func (LikeOnlineStrategy) SelectVotes(place models.Place, members []models.RoomMember, hasVoted func(uuid.UUID) bool) []AutoVote {
	var out []AutoVote
	for _, m := range members {
		if !m.Online || hasVoted(m.UserID) {
			continue
		}
		out = append(out, AutoVote{UserID: m.UserID, Value: models.VoteLike})
	}
	return out
}

package room

import (
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/placepick/go/internal/models"
)

type voteKey struct {
	userID  uuid.UUID
	placeID string
}

// Ledger holds one current vote per (user, place). A later vote for the same
// pair replaces the earlier one at the same position; arrival order wins, the
// timestamp is informational.
type Ledger struct {
	votes []models.Vote
	index map[voteKey]int
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{index: make(map[voteKey]int)}
}

// Record stores v, replacing any current vote for the same pair. It reports
// whether a vote was replaced.
func (l *Ledger) Record(userID uuid.UUID, placeID string, value models.VoteValue, ts time.Time) (models.Vote, bool) {
	v := models.Vote{UserID: userID, PlaceID: placeID, Value: value, Timestamp: ts}
	k := voteKey{userID, placeID}
	if i, ok := l.index[k]; ok {
		l.votes[i] = v
		return v, true
	}
	l.index[k] = len(l.votes)
	l.votes = append(l.votes, v)
	return v, false
}

// Get returns the current vote for the pair, if any.
func (l *Ledger) Get(userID uuid.UUID, placeID string) (models.Vote, bool) {
	i, ok := l.index[voteKey{userID, placeID}]
	if !ok {
		return models.Vote{}, false
	}
	return l.votes[i], true
}

// HasVoted reports whether the user has a current vote on the place.
func (l *Ledger) HasVoted(userID uuid.UUID, placeID string) bool {
	_, ok := l.index[voteKey{userID, placeID}]
	return ok
}

// VotesFor returns the current votes on placeID in ledger order.
func (l *Ledger) VotesFor(placeID string) []models.Vote {
	var out []models.Vote
	for _, v := range l.votes {
		if v.PlaceID == placeID {
			out = append(out, v)
		}
	}
	return out
}

// All returns a copy of every current vote in ledger order.
func (l *Ledger) All() []models.Vote {
	out := make([]models.Vote, len(l.votes))
	copy(out, l.votes)
	return out
}

// Len is the number of current votes.
func (l *Ledger) Len() int { return len(l.votes) }

// Retain drops votes whose place is not in keep. Relative order of the
// remaining votes is preserved.
func (l *Ledger) Retain(keep func(placeID string) bool) int {
	kept := l.votes[:0]
	for _, v := range l.votes {
		if keep(v.PlaceID) {
			kept = append(kept, v)
		}
	}
	dropped := len(l.votes) - len(kept)
	l.votes = kept
	l.reindex()
	return dropped
}

func (l *Ledger) reindex() {
	l.index = make(map[voteKey]int, len(l.votes))
	for i, v := range l.votes {
		l.index[voteKey{v.UserID, v.PlaceID}] = i
	}
}

// ledgerFrom rebuilds a ledger from a snapshot's vote list.
func ledgerFrom(votes []models.Vote) *Ledger {
	l := NewLedger()
	for _, v := range votes {
		l.Record(v.UserID, v.PlaceID, v.Value, v.Timestamp)
	}
	return l
}

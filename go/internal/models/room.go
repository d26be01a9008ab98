package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// VoteValue is a member's reaction to a place.
type VoteValue string

const (
	VoteLike    VoteValue = "like"
	VoteLove    VoteValue = "love"
	VoteDislike VoteValue = "dislike"
)

// ParseVoteValue rejects values other than like, love and dislike.
func ParseVoteValue(s string) (VoteValue, error) {
	switch v := VoteValue(strings.ToLower(strings.TrimSpace(s))); v {
	case VoteLike, VoteLove, VoteDislike:
		return v, nil
	}
	return "", fmt.Errorf("unknown vote value %q", s)
}

// Weight is the contribution of a single vote to a place's raw score.
func (v VoteValue) Weight() int {
	switch v {
	case VoteLove:
		return 3
	case VoteLike:
		return 1
	case VoteDislike:
		return -1
	}
	return 0
}

// RoomStatus is the room lifecycle phase.
type RoomStatus string

const (
	RoomStatusWaiting RoomStatus = "waiting"
	RoomStatusVoting  RoomStatus = "voting"
	RoomStatusResults RoomStatus = "results"
)

// ParseRoomStatus rejects unknown statuses.
func ParseRoomStatus(s string) (RoomStatus, error) {
	switch st := RoomStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case RoomStatusWaiting, RoomStatusVoting, RoomStatusResults:
		return st, nil
	}
	return "", fmt.Errorf("unknown room status %q", s)
}

// CarouselMode selects how the voting carousel behaves at its ends.
type CarouselMode string

const (
	// CarouselStrictTimed always runs the countdown; moving past the last card
	// finishes voting.
	CarouselStrictTimed CarouselMode = "timed"
	// CarouselManualBrowse lets members page freely; the countdown is optional
	// and next on the last card does nothing.
	CarouselManualBrowse CarouselMode = "browse"
)

// ParseCarouselMode rejects unknown modes. An empty string is strict timed.
func ParseCarouselMode(s string) (CarouselMode, error) {
	switch m := CarouselMode(strings.ToLower(strings.TrimSpace(s))); m {
	case "":
		return CarouselStrictTimed, nil
	case CarouselStrictTimed, CarouselManualBrowse:
		return m, nil
	}
	return "", fmt.Errorf("unknown carousel mode %q", s)
}

// Vote is the current vote of one user on one place.
type Vote struct {
	UserID    uuid.UUID `json:"user_id"`
	PlaceID   string    `json:"place_id"`
	Value     VoteValue `json:"value"`
	Timestamp time.Time `json:"timestamp"`
}

// RoomMember is a user's presence in a room.
type RoomMember struct {
	UserID   uuid.UUID `json:"user_id"`
	Name     string    `json:"name"`
	Online   bool      `json:"online"`
	JoinedAt time.Time `json:"joined_at"`
	Location *Location `json:"location,omitempty"`
}

// VotingState is the carousel as seen by clients.
type VotingState struct {
	Active            bool         `json:"active"`
	CurrentPlaceIndex int          `json:"current_place_index"`
	SecondsRemaining  int          `json:"seconds_remaining"`
	CardSeconds       int          `json:"card_seconds"`
	AutoAdvance       bool         `json:"auto_advance"`
	AutoVote          bool         `json:"auto_vote"`
	Mode              CarouselMode `json:"mode"`
}

// RankedPlace is a place together with its computed score.
type RankedPlace struct {
	Place     Place   `json:"place"`
	RawScore  int     `json:"raw_score"`
	Score     float64 `json:"score"`
	VoteCount int     `json:"vote_count"`
}

// Room is a point-in-time snapshot of a room session.
type Room struct {
	ID            uuid.UUID     `json:"id"`
	Code          string        `json:"code"`
	Name          string        `json:"name"`
	CreatorID     uuid.UUID     `json:"creator_id"`
	Occasion      string        `json:"occasion,omitempty"`
	Mood          string        `json:"mood,omitempty"`
	Members       []RoomMember  `json:"members"`
	Places        []Place       `json:"places"`
	Votes         []Vote        `json:"votes"`
	Status        RoomStatus    `json:"status"`
	VotingSession *VotingState  `json:"voting_session,omitempty"`
	Ranking       []RankedPlace `json:"ranking"`
	LeadingChoice *RankedPlace  `json:"leading_choice,omitempty"`
	Seq           uint64        `json:"seq"`
	CreatedAt     time.Time     `json:"created_at"`
	ExpiresAt     time.Time     `json:"expires_at"`
}

// Expired reports whether the room is past its expiry at now.
func (r Room) Expired(now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

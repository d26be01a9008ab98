package room

import (
	"github.com/mcdev12/placepick/go/internal/models"
)

// Request and response messages of the room RPC service.

type CreateRoomMsg struct {
	Name     string `json:"name"`
	Occasion string `json:"occasion,omitempty"`
	Mood     string `json:"mood,omitempty"`
}

type JoinRoomMsg struct {
	Code     string           `json:"code"`
	Location *models.Location `json:"location,omitempty"`
}

type RoomIDMsg struct {
	RoomID string `json:"room_id"`
}

type RoomMsg struct {
	Room models.Room `json:"room"`
}

type SubmitVoteMsg struct {
	RoomID  string `json:"room_id"`
	PlaceID string `json:"place_id"`
	Value   string `json:"value"`
	Advance bool   `json:"advance"`
}

type VoteMsg struct {
	Vote models.Vote `json:"vote"`
}

type PreferencesMsg struct {
	CuisineTypes        []string `json:"cuisine_types"`
	PriceRange          string   `json:"price_range"`
	Atmosphere          []string `json:"atmosphere"`
	DietaryRestrictions []string `json:"dietary_restrictions"`
	MaxDistanceKm       float64  `json:"max_distance_km"`
}

type SuggestPlacesMsg struct {
	RoomID      string          `json:"room_id"`
	Preferences *PreferencesMsg `json:"preferences,omitempty"`
	Mode        string          `json:"mode,omitempty"`
}

type PlacesMsg struct {
	Places []models.Place `json:"places"`
}

type StartVotingMsg struct {
	RoomID      string `json:"room_id"`
	Mode        string `json:"mode,omitempty"`
	AutoVote    *bool  `json:"auto_vote,omitempty"`
	AutoAdvance *bool  `json:"auto_advance,omitempty"`
	CardSeconds int    `json:"card_seconds,omitempty"`
}

// Results is the ranked outcome of a room, best first.
type Results struct {
	Status        models.RoomStatus    `json:"status"`
	Ranking       []models.RankedPlace `json:"ranking"`
	LeadingChoice *models.RankedPlace  `json:"leading_choice,omitempty"`
}

package users

import (
	"errors"

	"github.com/mcdev12/placepick/go/internal/models"
)

// ErrUserNotFound is returned by repositories for unknown ids
var ErrUserNotFound = errors.New("user not found")

// CreateGuestRequest represents the data needed to create a guest user
type CreateGuestRequest struct {
	Name        string             `json:"name"`
	Preferences models.Preferences `json:"preferences"`
}

// Request and response messages of the user RPC service

type PreferencesMsg struct {
	CuisineTypes        []string `json:"cuisine_types"`
	PriceRange          string   `json:"price_range"`
	Atmosphere          []string `json:"atmosphere"`
	DietaryRestrictions []string `json:"dietary_restrictions"`
	MaxDistanceKm       float64  `json:"max_distance_km"`
}

type CreateGuestMsg struct {
	Name        string          `json:"name"`
	Preferences *PreferencesMsg `json:"preferences,omitempty"`
}

type GuestMsg struct {
	User  models.User `json:"user"`
	Token string      `json:"token"`
}

type GetUserMsg struct {
	ID string `json:"id"`
}

type UserMsg struct {
	User models.User `json:"user"`
}

type UpdatePreferencesMsg struct {
	ID          string         `json:"id"`
	Preferences PreferencesMsg `json:"preferences"`
}

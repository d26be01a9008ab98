package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// PriceRange is the price band a user is willing to pay.
type PriceRange string

const (
	PriceRangeBudget    PriceRange = "budget"
	PriceRangeModerate  PriceRange = "moderate"
	PriceRangeExpensive PriceRange = "expensive"
)

// ParsePriceRange rejects anything outside the known bands. An empty string
// parses to the moderate band.
func ParsePriceRange(s string) (PriceRange, error) {
	switch PriceRange(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return PriceRangeModerate, nil
	case PriceRangeBudget:
		return PriceRangeBudget, nil
	case PriceRangeModerate:
		return PriceRangeModerate, nil
	case PriceRangeExpensive:
		return PriceRangeExpensive, nil
	}
	return "", fmt.Errorf("unknown price range %q", s)
}

// MaxPriceLevel maps the band onto the 1-3 place price level scale.
func (p PriceRange) MaxPriceLevel() int {
	switch p {
	case PriceRangeBudget:
		return 1
	case PriceRangeExpensive:
		return 3
	default:
		return 2
	}
}

// Preferences is the profile used to ask for suggestions.
type Preferences struct {
	CuisineTypes        []string   `json:"cuisine_types"`
	PriceRange          PriceRange `json:"price_range"`
	Atmosphere          []string   `json:"atmosphere"`
	DietaryRestrictions []string   `json:"dietary_restrictions"`
	MaxDistanceKm       float64    `json:"max_distance_km"`
}

// DefaultPreferences mirrors what a guest gets when they skip the form.
func DefaultPreferences() Preferences {
	return Preferences{
		CuisineTypes:        []string{},
		PriceRange:          PriceRangeModerate,
		Atmosphere:          []string{},
		DietaryRestrictions: []string{},
		MaxDistanceKm:       10,
	}
}

// User represents a guest user in the system
type User struct {
	ID          uuid.UUID   `json:"id"`
	Name        string      `json:"name"`
	Preferences Preferences `json:"preferences"`
	CreatedAt   time.Time   `json:"created_at"`
}

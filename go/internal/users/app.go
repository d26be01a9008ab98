package users

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/mcdev12/placepick/go/internal/apperr"
	"github.com/mcdev12/placepick/go/internal/models"
	"github.com/rs/zerolog/log"
)

const maxNameLength = 40

// UsersRepository defines what the app layer needs from the repository
type UsersRepository interface {
	CreateUser(ctx context.Context, user models.User) (*models.User, error)
	GetUser(ctx context.Context, id uuid.UUID) (*models.User, error)
	UpdatePreferences(ctx context.Context, id uuid.UUID, prefs models.Preferences) (*models.User, error)
}

// App handles guest user business logic
type App struct {
	repo UsersRepository
	now  func() time.Time
}

// NewApp creates a new users App
func NewApp(repo UsersRepository) *App {
	return &App{
		repo: repo,
		now:  time.Now,
	}
}

// CreateGuest creates a guest user with validation. Identity is fixed from
// here on; only preferences can change.
func (a *App) CreateGuest(ctx context.Context, req CreateGuestRequest) (*models.User, error) {
	name, err := validateName(req.Name)
	if err != nil {
		return nil, err
	}
	prefs, err := validatePreferences(req.Preferences)
	if err != nil {
		return nil, err
	}

	user, err := a.repo.CreateUser(ctx, models.User{
		ID:          uuid.New(),
		Name:        name,
		Preferences: prefs,
		CreatedAt:   a.now().UTC(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	log.Info().Str("user_id", user.ID.String()).Str("name", user.Name).Msg("created guest user")
	return user, nil
}

// GetUser retrieves a user by ID
func (a *App) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := a.repo.GetUser(ctx, id)
	if errors.Is(err, ErrUserNotFound) {
		return nil, apperr.NotFound("user %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return user, nil
}

// UpdatePreferences replaces a user's preferences. Only the user themself may
// do this.
func (a *App) UpdatePreferences(ctx context.Context, actorID, userID uuid.UUID, prefs models.Preferences) (*models.User, error) {
	if actorID != userID {
		return nil, apperr.Forbidden("preferences can only be changed by their owner")
	}
	prefs, err := validatePreferences(prefs)
	if err != nil {
		return nil, err
	}

	user, err := a.repo.UpdatePreferences(ctx, userID, prefs)
	if errors.Is(err, ErrUserNotFound) {
		return nil, apperr.NotFound("user %s not found", userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update preferences: %w", err)
	}

	log.Info().Str("user_id", userID.String()).Msg("updated user preferences")
	return user, nil
}

func validateName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", apperr.Validation("name is required")
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return "", apperr.Validation("name must be at most %d characters", maxNameLength)
	}
	return name, nil
}

func validatePreferences(p models.Preferences) (models.Preferences, error) {
	price, err := models.ParsePriceRange(string(p.PriceRange))
	if err != nil {
		return models.Preferences{}, apperr.Validation("%v", err)
	}
	if p.MaxDistanceKm < 0 {
		return models.Preferences{}, apperr.Validation("max distance must not be negative")
	}
	p.PriceRange = price
	if p.MaxDistanceKm == 0 {
		p.MaxDistanceKm = models.DefaultPreferences().MaxDistanceKm
	}
	p.CuisineTypes = cleanTags(p.CuisineTypes)
	p.Atmosphere = cleanTags(p.Atmosphere)
	p.DietaryRestrictions = cleanTags(p.DietaryRestrictions)
	return p, nil
}

// cleanTags trims, lower-cases and de-duplicates free form tags.
func cleanTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

package users

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/mcdev12/placepick/go/internal/apperr"
	"github.com/mcdev12/placepick/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateGuest(t *testing.T) {
	ctx := context.Background()
	app := NewApp(NewMemoryRepository())

	user, err := app.CreateGuest(ctx, CreateGuestRequest{
		Name: "  Ana ",
		Preferences: models.Preferences{
			CuisineTypes: []string{"Thai", " thai", "", "Mexican"},
		},
	})
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, user.ID)
	assert.Equal(t, "Ana", user.Name)
	assert.Equal(t, []string{"thai", "mexican"}, user.Preferences.CuisineTypes)
	assert.Equal(t, models.PriceRangeModerate, user.Preferences.PriceRange)
	assert.Equal(t, 10.0, user.Preferences.MaxDistanceKm)

	got, err := app.GetUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user, got)
}

func TestCreateGuestValidation(t *testing.T) {
	app := NewApp(NewMemoryRepository())

	tests := []struct {
		name string
		req  CreateGuestRequest
	}{
		{"empty name", CreateGuestRequest{Name: "   "}},
		{"long name", CreateGuestRequest{Name: strings.Repeat("x", maxNameLength+1)}},
		{"bad price", CreateGuestRequest{Name: "Bo", Preferences: models.Preferences{PriceRange: "luxury"}}},
		{"negative distance", CreateGuestRequest{Name: "Bo", Preferences: models.Preferences{MaxDistanceKm: -1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := app.CreateGuest(context.Background(), tt.req)
			assert.True(t, apperr.IsValidation(err), "got %v", err)
		})
	}
}

func TestGetUserNotFound(t *testing.T) {
	app := NewApp(NewMemoryRepository())
	_, err := app.GetUser(context.Background(), uuid.New())
	assert.True(t, apperr.IsNotFound(err))
}

func TestUpdatePreferences(t *testing.T) {
	ctx := context.Background()
	app := NewApp(NewMemoryRepository())
	user, err := app.CreateGuest(ctx, CreateGuestRequest{Name: "Cy"})
	require.NoError(t, err)

	updated, err := app.UpdatePreferences(ctx, user.ID, user.ID, models.Preferences{
		PriceRange:    models.PriceRangeBudget,
		MaxDistanceKm: 3,
	})
	require.NoError(t, err)
	assert.Equal(t, models.PriceRangeBudget, updated.Preferences.PriceRange)
	assert.Equal(t, 3.0, updated.Preferences.MaxDistanceKm)
	assert.Equal(t, "Cy", updated.Name)

	t.Run("other user is forbidden", func(t *testing.T) {
		_, err := app.UpdatePreferences(ctx, uuid.New(), user.ID, models.Preferences{})
		assert.True(t, apperr.IsForbidden(err))
	})

	t.Run("unknown user", func(t *testing.T) {
		id := uuid.New()
		_, err := app.UpdatePreferences(ctx, id, id, models.Preferences{})
		assert.True(t, apperr.IsNotFound(err))
	})
}

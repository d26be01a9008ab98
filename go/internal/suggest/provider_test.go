package suggest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mcdev12/placepick/go/clients"
	"github.com/mcdev12/placepick/go/internal/apperr"
	"github.com/mcdev12/placepick/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type blockingProvider struct{}

func (blockingProvider) FetchSuggestions(ctx context.Context, _ models.Preferences) ([]models.Place, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

type failingProvider struct{ err error }

func (p failingProvider) FetchSuggestions(context.Context, models.Preferences) ([]models.Place, error) {
	return nil, p.err
}

func TestGuardedTimesOut(t *testing.T) {
	g := WithTimeout(blockingProvider{}, 20*time.Millisecond)

	start := time.Now()
	_, err := g.FetchSuggestions(context.Background(), models.DefaultPreferences())
	require.Error(t, err)
	assert.Less(t, time.Since(start), time.Second)
	assert.True(t, apperr.IsUpstream(err))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGuardedClassifiesErrors(t *testing.T) {
	boom := errors.New("boom")
	_, err := WithTimeout(failingProvider{boom}, 0).FetchSuggestions(context.Background(), models.Preferences{})
	assert.True(t, apperr.IsUpstream(err))
	assert.ErrorIs(t, err, boom)

	already := apperr.Upstream(boom, "places api")
	_, err = WithTimeout(failingProvider{already}, 0).FetchSuggestions(context.Background(), models.Preferences{})
	assert.Same(t, already, err)
}

func TestHTTPProvider(t *testing.T) {
	var got clients.SuggestRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/suggestions", r.URL.Path)
		assert.Equal(t, "Bearer key", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(clients.SuggestResponse{Places: []models.Place{
			{ID: "p1", Name: "One", PriceLevel: 1, RelevanceScore: 0.5},
			{Name: "Two", PriceLevel: 2, RelevanceScore: 1.4},
		}})
	}))
	defer srv.Close()

	p := NewHTTPProvider(clients.NewPlacesClient(srv.URL, "key"))
	prefs := models.Preferences{CuisineTypes: []string{"thai"}, PriceRange: models.PriceRangeBudget}
	places, err := p.FetchSuggestions(context.Background(), prefs)
	require.NoError(t, err)

	assert.Equal(t, []string{"thai"}, got.Preferences.CuisineTypes)
	assert.Equal(t, DefaultLimit, got.Limit)
	require.Len(t, places, 2)
	assert.Equal(t, "p1", places[0].ID)
	assert.NotEmpty(t, places[1].ID)
	assert.Equal(t, 1.0, places[1].RelevanceScore)
}

func TestHTTPProviderStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := WithTimeout(NewHTTPProvider(clients.NewPlacesClient(srv.URL, "")), time.Second)
	_, err := p.FetchSuggestions(context.Background(), models.DefaultPreferences())
	require.Error(t, err)
	assert.True(t, apperr.IsUpstream(err))

	var status *clients.StatusError
	require.ErrorAs(t, err, &status)
	assert.Equal(t, http.StatusTooManyRequests, status.StatusCode)
}

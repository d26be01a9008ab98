package suggest

import (
	"context"
	"testing"

	"github.com/mcdev12/placepick/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(places []models.Place) []string {
	out := make([]string, len(places))
	for i, p := range places {
		out[i] = p.Name
	}
	return out
}

func TestDefaultCatalogLoads(t *testing.T) {
	c, err := LoadCatalog("")
	require.NoError(t, err)
	assert.Equal(t, 10, c.Len())
}

func TestParseCatalogRejectsBadEntries(t *testing.T) {
	cases := map[string]string{
		"not yaml":     "places: [",
		"empty":        "places: []",
		"missing name": "places: [{price_level: 2}]",
		"price level":  "places: [{name: X, price_level: 4}]",
		"relevance":    "places: [{name: X, price_level: 1, relevance_score: 1.5}]",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := ParseCatalog([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestCatalogMatch(t *testing.T) {
	c, err := LoadCatalog("")
	require.NoError(t, err)

	tests := []struct {
		name  string
		prefs models.Preferences
		want  []string
	}{
		{
			name:  "price band only",
			prefs: models.Preferences{PriceRange: models.PriceRangeModerate},
			want:  []string{"Bella Vista Restaurant", "The Garden Terrace", "Café Luna", "Spice Route", "The Local Brewery", "Trattoria Nonna"},
		},
		{
			name:  "cuisine and band",
			prefs: models.Preferences{CuisineTypes: []string{"italian"}, PriceRange: models.PriceRangeExpensive},
			want:  []string{"Bella Vista Restaurant", "Trattoria Nonna", "Osteria del Ponte"},
		},
		{
			name:  "cuisine is a case-insensitive substring",
			prefs: models.Preferences{CuisineTypes: []string{"ITAL"}, PriceRange: models.PriceRangeExpensive},
			want:  []string{"Bella Vista Restaurant", "Trattoria Nonna", "Osteria del Ponte"},
		},
		{
			name:  "budget",
			prefs: models.Preferences{PriceRange: models.PriceRangeBudget},
			want:  []string{"Café Luna", "Trattoria Nonna", "Taqueria El Sol"},
		},
		{
			name:  "too few matches falls back to the head of the catalog",
			prefs: models.Preferences{CuisineTypes: []string{"japanese"}, PriceRange: models.PriceRangeModerate},
			want:  []string{"Bella Vista Restaurant", "The Garden Terrace", "Sakura Sushi House", "Café Luna", "Spice Route", "The Local Brewery"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, names(c.Match(tt.prefs, DefaultMinMatches, DefaultLimit)))
		})
	}
}

func TestCatalogProviderIssuesFreshIDs(t *testing.T) {
	c, err := LoadCatalog("")
	require.NoError(t, err)
	p := NewCatalogProvider(c)
	ctx := context.Background()

	first, err := p.FetchSuggestions(ctx, models.DefaultPreferences())
	require.NoError(t, err)
	second, err := p.FetchSuggestions(ctx, models.DefaultPreferences())
	require.NoError(t, err)
	require.Len(t, first, DefaultLimit)
	require.Len(t, second, DefaultLimit)

	seen := make(map[string]bool)
	for _, place := range append(first, second...) {
		require.NotEmpty(t, place.ID)
		assert.False(t, seen[place.ID], "duplicate id %s", place.ID)
		seen[place.ID] = true
	}
	assert.Equal(t, names(first), names(second))

	first[0].Reasons[0] = "changed"
	third, err := p.FetchSuggestions(ctx, models.DefaultPreferences())
	require.NoError(t, err)
	assert.NotEqual(t, "changed", third[0].Reasons[0])

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	_, err = p.FetchSuggestions(cancelled, models.DefaultPreferences())
	assert.ErrorIs(t, err, context.Canceled)
}

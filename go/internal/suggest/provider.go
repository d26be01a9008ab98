package suggest

import (
	"context"

	"github.com/google/uuid"
	"github.com/mcdev12/placepick/go/internal/models"
	"github.com/rs/zerolog/log"
)

const (
	// DefaultLimit caps one suggestion batch.
	DefaultLimit = 6
	// DefaultMinMatches is the smallest filtered batch worth showing.
	DefaultMinMatches = 3
)

// CatalogProvider suggests places from a Catalog. Every batch gets fresh
// place ids, so votes never carry over between batches.
type CatalogProvider struct {
	catalog    *Catalog
	limit      int
	minMatches int
	newID      func() string
}

// NewCatalogProvider creates a provider with the default batch sizes.
func NewCatalogProvider(catalog *Catalog) *CatalogProvider {
	return &CatalogProvider{
		catalog:    catalog,
		limit:      DefaultLimit,
		minMatches: DefaultMinMatches,
		newID:      uuid.NewString,
	}
}

// FetchSuggestions returns up to six places matching prefs.
func (p *CatalogProvider) FetchSuggestions(ctx context.Context, prefs models.Preferences) ([]models.Place, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	matched := p.catalog.Match(prefs, p.minMatches, p.limit)
	out := make([]models.Place, len(matched))
	for i, place := range matched {
		place.ID = p.newID()
		place.Photos = append([]string(nil), place.Photos...)
		place.Reasons = append([]string(nil), place.Reasons...)
		out[i] = place
	}

	log.Debug().
		Strs("cuisines", prefs.CuisineTypes).
		Str("price_range", string(prefs.PriceRange)).
		Int("places", len(out)).
		Msg("catalog suggestions")
	return out, nil
}

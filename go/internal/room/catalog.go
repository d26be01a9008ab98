package room

import (
	"github.com/mcdev12/placepick/go/internal/apperr"
	"github.com/mcdev12/placepick/go/internal/models"
)

// Catalog is the ordered set of candidate places of a room. Insertion order
// is the tie-break order for scoring.
type Catalog struct {
	places []models.Place
	byID   map[string]int
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{byID: make(map[string]int)}
}

// validateBatch checks a suggestion batch without touching the catalog.
func validateBatch(places []models.Place, existing map[string]int) error {
	seen := make(map[string]bool, len(places))
	for i, p := range places {
		if p.ID == "" {
			return apperr.Validation("place %d has no id", i)
		}
		if seen[p.ID] {
			return apperr.Validation("duplicate place id %s", p.ID)
		}
		if _, ok := existing[p.ID]; ok {
			return apperr.Validation("place %s is already in the catalog", p.ID)
		}
		if p.RelevanceScore < 0 || p.RelevanceScore > 1 {
			return apperr.Validation("place %s relevance score %.2f out of range", p.ID, p.RelevanceScore)
		}
		if p.PriceLevel < 0 || p.PriceLevel > 3 {
			return apperr.Validation("place %s price level %d out of range", p.ID, p.PriceLevel)
		}
		seen[p.ID] = true
	}
	return nil
}

// Replace swaps in a whole new batch. The catalog is unchanged on error.
func (c *Catalog) Replace(places []models.Place) error {
	if err := validateBatch(places, nil); err != nil {
		return err
	}
	c.places = make([]models.Place, 0, len(places))
	c.byID = make(map[string]int, len(places))
	c.add(places)
	return nil
}

// Append adds a batch after the current places. The catalog is unchanged on
// error.
func (c *Catalog) Append(places []models.Place) error {
	if err := validateBatch(places, c.byID); err != nil {
		return err
	}
	c.add(places)
	return nil
}

func (c *Catalog) add(places []models.Place) {
	for _, p := range places {
		c.byID[p.ID] = len(c.places)
		c.places = append(c.places, p)
	}
}

// Len is the number of places.
func (c *Catalog) Len() int { return len(c.places) }

// At returns the place at index i.
func (c *Catalog) At(i int) (models.Place, bool) {
	if i < 0 || i >= len(c.places) {
		return models.Place{}, false
	}
	return c.places[i], true
}

// Contains reports whether a place with id is in the catalog.
func (c *Catalog) Contains(id string) bool {
	_, ok := c.byID[id]
	return ok
}

// Places returns a copy of the places in insertion order.
func (c *Catalog) Places() []models.Place {
	out := make([]models.Place, len(c.places))
	copy(out, c.places)
	return out
}

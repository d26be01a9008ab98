// Package suggest supplies candidate places for a room: from a YAML place
// catalog or from an external suggestion service.
package suggest

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/mcdev12/placepick/go/internal/models"
	"gopkg.in/yaml.v3"
)

//go:embed places.yaml
var defaultCatalog []byte

type catalogFile struct {
	Places []models.Place `yaml:"places"`
}

// Catalog is an ordered, read-only list of places.
type Catalog struct {
	places []models.Place
}

// LoadCatalog reads a YAML catalog from path, or the built-in catalog when
// path is empty.
func LoadCatalog(path string) (*Catalog, error) {
	if path == "" {
		return ParseCatalog(defaultCatalog)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}
	return ParseCatalog(data)
}

// ParseCatalog parses and validates a YAML catalog.
func ParseCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog: %w", err)
	}
	if len(file.Places) == 0 {
		return nil, fmt.Errorf("catalog has no places")
	}
	for i, p := range file.Places {
		if strings.TrimSpace(p.Name) == "" {
			return nil, fmt.Errorf("place %d: name is required", i)
		}
		if p.PriceLevel < 1 || p.PriceLevel > 3 {
			return nil, fmt.Errorf("place %q: price level %d outside 1-3", p.Name, p.PriceLevel)
		}
		if p.RelevanceScore < 0 || p.RelevanceScore > 1 {
			return nil, fmt.Errorf("place %q: relevance score %.2f outside 0-1", p.Name, p.RelevanceScore)
		}
	}
	return &Catalog{places: file.Places}, nil
}

// Len returns the number of places in the catalog.
func (c *Catalog) Len() int { return len(c.places) }

// Match filters the catalog by preferences. A place matches when its
// cuisine contains one of the requested cuisines (case-insensitive) and its
// price level is within the band. When fewer than minMatches places match,
// the head of the unfiltered catalog is returned instead so a group is
// never left with an empty deck. At most limit places are returned.
func (c *Catalog) Match(prefs models.Preferences, minMatches, limit int) []models.Place {
	matched := make([]models.Place, 0, len(c.places))
	for _, p := range c.places {
		if cuisineMatches(p, prefs.CuisineTypes) && priceMatches(p, prefs.PriceRange) {
			matched = append(matched, p)
		}
	}
	if len(matched) < minMatches {
		matched = c.places
	}
	if len(matched) > limit {
		matched = matched[:limit]
	}
	return matched
}

func cuisineMatches(p models.Place, cuisines []string) bool {
	if len(cuisines) == 0 {
		return true
	}
	have := strings.ToLower(p.CuisineType)
	for _, c := range cuisines {
		if c = strings.ToLower(strings.TrimSpace(c)); c != "" && strings.Contains(have, c) {
			return true
		}
	}
	return false
}

func priceMatches(p models.Place, band models.PriceRange) bool {
	if band == "" {
		return true
	}
	return p.PriceLevel <= band.MaxPriceLevel()
}

package suggest

import (
	"strings"

	"github.com/mcdev12/placepick/go/internal/models"
)

// MergePreferences folds the members' preferences into one group profile:
// the union of cuisines, atmosphere and dietary tags (first mention wins the
// position), the cheapest price band anyone asked for, and the smallest
// travel distance.
func MergePreferences(all []models.Preferences) models.Preferences {
	merged := models.DefaultPreferences()
	if len(all) == 0 {
		return merged
	}

	cuisines, atmosphere, dietary := newTagSet(), newTagSet(), newTagSet()
	var band models.PriceRange
	distance := 0.0
	for _, p := range all {
		cuisines.add(p.CuisineTypes...)
		atmosphere.add(p.Atmosphere...)
		dietary.add(p.DietaryRestrictions...)
		if p.PriceRange != "" && (band == "" || p.PriceRange.MaxPriceLevel() < band.MaxPriceLevel()) {
			band = p.PriceRange
		}
		if p.MaxDistanceKm > 0 && (distance == 0 || p.MaxDistanceKm < distance) {
			distance = p.MaxDistanceKm
		}
	}

	merged.CuisineTypes = cuisines.list
	merged.Atmosphere = atmosphere.list
	merged.DietaryRestrictions = dietary.list
	if band != "" {
		merged.PriceRange = band
	}
	if distance > 0 {
		merged.MaxDistanceKm = distance
	}
	return merged
}

type tagSet struct {
	seen map[string]bool
	list []string
}

func newTagSet() *tagSet {
	return &tagSet{seen: make(map[string]bool), list: []string{}}
}

func (s *tagSet) add(tags ...string) {
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || s.seen[t] {
			continue
		}
		s.seen[t] = true
		s.list = append(s.list, t)
	}
}

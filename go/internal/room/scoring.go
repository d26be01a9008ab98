package room

import (
	"sort"

	"github.com/mcdev12/placepick/go/internal/models"
)

// RelevanceWeight scales the 0-1 relevance score into vote units.
const RelevanceWeight = 10.0

// Rank scores every place in catalog order and sorts by final score
// descending. Ties keep catalog order.
func Rank(places []models.Place, votes []models.Vote) []models.RankedPlace {
	raw := make(map[string]int, len(places))
	count := make(map[string]int, len(places))
	for _, v := range votes {
		raw[v.PlaceID] += v.Value.Weight()
		count[v.PlaceID]++
	}

	ranked := make([]models.RankedPlace, len(places))
	for i, p := range places {
		ranked[i] = models.RankedPlace{
			Place:     p,
			RawScore:  raw[p.ID],
			Score:     float64(raw[p.ID]) + p.RelevanceScore*RelevanceWeight,
			VoteCount: count[p.ID],
		}
	}
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

// Leading returns the top of a ranking, or nil when there are no places.
func Leading(ranked []models.RankedPlace) *models.RankedPlace {
	if len(ranked) == 0 {
		return nil
	}
	top := ranked[0]
	return &top
}

package suggest

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/mcdev12/placepick/go/clients"
	"github.com/mcdev12/placepick/go/internal/models"
)

// HTTPProvider asks an external suggestion service. Places without an id
// are given one, and relevance scores are clamped to 0-1.
type HTTPProvider struct {
	client *clients.PlacesClient
	limit  int
}

func NewHTTPProvider(client *clients.PlacesClient) *HTTPProvider {
	return &HTTPProvider{client: client, limit: DefaultLimit}
}

func (p *HTTPProvider) FetchSuggestions(ctx context.Context, prefs models.Preferences) ([]models.Place, error) {
	places, err := p.client.Suggest(ctx, clients.SuggestRequest{Preferences: prefs, Limit: p.limit})
	if err != nil {
		return nil, err
	}
	if len(places) > p.limit {
		places = places[:p.limit]
	}
	for i := range places {
		if strings.TrimSpace(places[i].Name) == "" {
			return nil, fmt.Errorf("suggestion %d has no name", i)
		}
		if places[i].ID == "" {
			places[i].ID = uuid.NewString()
		}
		places[i].RelevanceScore = clamp(places[i].RelevanceScore)
	}
	return places, nil
}

func clamp(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	}
	return v
}

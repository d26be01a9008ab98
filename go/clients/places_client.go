package clients

import (
	"context"
	"fmt"

	"github.com/mcdev12/placepick/go/internal/models"
)

// PlacesClient talks to an external place suggestion service.
type PlacesClient struct {
	*BaseClient
}

func NewPlacesClient(baseURL, apiKey string) *PlacesClient {
	client := &PlacesClient{
		BaseClient: NewBaseClient(baseURL),
	}
	if apiKey != "" {
		client.SetHeader("Authorization", "Bearer "+apiKey)
	}
	return client
}

type SuggestRequest struct {
	Preferences models.Preferences `json:"preferences"`
	Limit       int                `json:"limit"`
}

type SuggestResponse struct {
	Places []models.Place `json:"places"`
}

func (c *PlacesClient) Suggest(ctx context.Context, req SuggestRequest) ([]models.Place, error) {
	var response SuggestResponse
	if err := c.PostJSON(ctx, "/suggestions", req, &response); err != nil {
		return nil, fmt.Errorf("failed to get suggestions: %w", err)
	}
	return response.Places, nil
}

package suggest

import (
	"context"
	"time"

	"github.com/mcdev12/placepick/go/internal/apperr"
	"github.com/mcdev12/placepick/go/internal/models"
)

// Provider is anything that can fetch suggestions.
type Provider interface {
	FetchSuggestions(ctx context.Context, prefs models.Preferences) ([]models.Place, error)
}

// Guarded bounds a provider with a timeout and reports every failure as an
// upstream error.
type Guarded struct {
	next    Provider
	timeout time.Duration
}

// WithTimeout wraps next. A non-positive timeout only classifies errors.
func WithTimeout(next Provider, timeout time.Duration) *Guarded {
	return &Guarded{next: next, timeout: timeout}
}

func (g *Guarded) FetchSuggestions(ctx context.Context, prefs models.Preferences) ([]models.Place, error) {
	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}
	places, err := g.next.FetchSuggestions(ctx, prefs)
	if err != nil {
		if apperr.IsUpstream(err) {
			return nil, err
		}
		return nil, apperr.Upstream(err, "suggestion provider failed")
	}
	return places, nil
}

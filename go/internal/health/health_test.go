package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckerHealthy(t *testing.T) {
	c := NewChecker(0)
	c.AddProbe("store", func(ctx context.Context) error { return nil })
	c.AddGauge("placepick_live_rooms", "Rooms held in memory", func() float64 { return 3 })

	rec := httptest.NewRecorder()
	c.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	var status Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.True(t, status.Healthy)
	assert.Equal(t, "ok", status.Components["store"])
	assert.Equal(t, 3.0, status.Gauges["placepick_live_rooms"])
	assert.Empty(t, status.Errors)
}

func TestCheckerUnhealthy(t *testing.T) {
	c := NewChecker(0)
	c.AddProbe("store", func(ctx context.Context) error { return nil })
	c.AddProbe("nats", func(ctx context.Context) error { return errors.New("disconnected") })

	rec := httptest.NewRecorder()
	c.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var status Status
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.False(t, status.Healthy)
	assert.Equal(t, "down", status.Components["nats"])
	assert.Equal(t, []string{"nats: disconnected"}, status.Errors)
}

func TestProbesSeeDeadline(t *testing.T) {
	c := NewChecker(0)
	c.AddProbe("db", func(ctx context.Context) error {
		_, ok := ctx.Deadline()
		if !ok {
			return errors.New("no deadline")
		}
		return nil
	})
	assert.True(t, c.Check(context.Background()).Healthy)
}

func TestExport(t *testing.T) {
	c := NewChecker(0)
	c.AddProbe("redis", func(ctx context.Context) error { return errors.New("refused") })
	c.AddGauge("placepick_ws_connections", "Open websocket connections", func() float64 { return 2 })

	rec := httptest.NewRecorder()
	c.MetricsHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body := rec.Body.String()
	assert.Contains(t, body, "placepick_healthy 0\n")
	assert.Contains(t, body, `placepick_component_up{component="redis"} 0`)
	assert.Contains(t, body, "# HELP placepick_ws_connections Open websocket connections\n")
	assert.Contains(t, body, "placepick_ws_connections 2\n")
}

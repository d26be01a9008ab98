// Package health reports whether the server's dependencies are reachable
// and exposes a few gauges in the Prometheus text format.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Probe checks one dependency. A nil error means healthy.
type Probe func(ctx context.Context) error

// Gauge reads a current value.
type Gauge func() float64

type namedProbe struct {
	name  string
	probe Probe
}

type namedGauge struct {
	name  string
	help  string
	gauge Gauge
}

// Status is the result of one check run.
type Status struct {
	Healthy    bool               `json:"healthy"`
	Components map[string]string  `json:"components"`
	Gauges     map[string]float64 `json:"gauges"`
	Errors     []string           `json:"errors"`
	CheckedAt  time.Time          `json:"checked_at"`
}

// Checker runs registered probes and gauges.
type Checker struct {
	mu      sync.RWMutex
	probes  []namedProbe
	gauges  []namedGauge
	timeout time.Duration
	now     func() time.Time
}

// NewChecker creates a checker. timeout caps a whole check run.
func NewChecker(timeout time.Duration) *Checker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Checker{timeout: timeout, now: time.Now}
}

// AddProbe registers a dependency check.
func (c *Checker) AddProbe(name string, p Probe) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.probes = append(c.probes, namedProbe{name: name, probe: p})
}

// AddGauge registers a gauge. name is used as the metric name.
func (c *Checker) AddGauge(name, help string, g Gauge) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gauges = append(c.gauges, namedGauge{name: name, help: help, gauge: g})
}

// Check runs every probe and reads every gauge.
func (c *Checker) Check(ctx context.Context) Status {
	c.mu.RLock()
	probes := append([]namedProbe(nil), c.probes...)
	gauges := append([]namedGauge(nil), c.gauges...)
	c.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	status := Status{
		Healthy:    true,
		Components: make(map[string]string, len(probes)),
		Gauges:     make(map[string]float64, len(gauges)),
		Errors:     []string{},
		CheckedAt:  c.now().UTC(),
	}

	for _, p := range probes {
		if err := p.probe(ctx); err != nil {
			status.Healthy = false
			status.Components[p.name] = "down"
			status.Errors = append(status.Errors, fmt.Sprintf("%s: %v", p.name, err))
			continue
		}
		status.Components[p.name] = "ok"
	}
	for _, g := range gauges {
		status.Gauges[g.name] = g.gauge()
	}
	return status
}

// ServeHTTP writes the status as JSON, with 503 when unhealthy.
func (c *Checker) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	status := c.Check(r.Context())
	if !status.Healthy {
		log.Warn().Strs("errors", status.Errors).Msg("health check failed")
	}

	w.Header().Set("Content-Type", "application/json")
	if !status.Healthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(status); err != nil {
		log.Error().Err(err).Msg("failed to encode health status")
	}
}

// Export renders the status in the Prometheus text exposition format.
func (c *Checker) Export(ctx context.Context) string {
	status := c.Check(ctx)

	c.mu.RLock()
	help := make(map[string]string, len(c.gauges))
	for _, g := range c.gauges {
		help[g.name] = g.help
	}
	c.mu.RUnlock()

	var b strings.Builder
	writeMetric(&b, "placepick_healthy", "Whether every dependency is reachable", boolValue(status.Healthy))

	components := make([]string, 0, len(status.Components))
	for name := range status.Components {
		components = append(components, name)
	}
	sort.Strings(components)
	if len(components) > 0 {
		b.WriteString("# HELP placepick_component_up Whether a dependency is reachable\n")
		b.WriteString("# TYPE placepick_component_up gauge\n")
		for _, name := range components {
			fmt.Fprintf(&b, "placepick_component_up{component=%q} %g\n", name, boolValue(status.Components[name] == "ok"))
		}
	}

	names := make([]string, 0, len(status.Gauges))
	for name := range status.Gauges {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		writeMetric(&b, name, help[name], status.Gauges[name])
	}
	return b.String()
}

// MetricsHandler serves Export.
func (c *Checker) MetricsHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")
		fmt.Fprint(w, c.Export(r.Context()))
	})
}

func writeMetric(b *strings.Builder, name, help string, value float64) {
	if help != "" {
		fmt.Fprintf(b, "# HELP %s %s\n", name, help)
	}
	fmt.Fprintf(b, "# TYPE %s gauge\n", name)
	fmt.Fprintf(b, "%s %g\n", name, value)
}

func boolValue(ok bool) float64 {
	if ok {
		return 1
	}
	return 0
}

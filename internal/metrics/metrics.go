// Package metrics exposes witness activity as Prometheus metrics.
package metrics

import (
	"context"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/soyeahso/witness/internal/hooks"
	"github.com/soyeahso/witness/internal/version"
)

const namespace = "witness"

// Metrics owns a private registry so tests and multiple servers never
// collide on the global one.
type Metrics struct {
	registry *prometheus.Registry

	// recorded counts recorded interactions.
	// Labels: status_class (2xx, 3xx, 4xx, 5xx)
	recorded *prometheus.CounterVec

	// replayed counts replayed interactions.
	// Labels: status_class
	replayed *prometheus.CounterVec

	// upstreamDuration measures the upstream round trip.
	// Labels: operation (record, replay)
	upstreamDuration *prometheus.HistogramVec
}

// New creates the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace:   namespace,
		Name:        "build_info",
		Help:        "Build information; always 1",
		ConstLabels: prometheus.Labels{"version": version.Version},
	}, func() float64 { return 1 })

	return &Metrics{
		registry: reg,
		recorded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "interactions",
			Name:      "recorded_total",
			Help:      "Total interactions recorded",
		}, []string{"status_class"}),
		replayed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "interactions",
			Name:      "replayed_total",
			Help:      "Total interactions replayed",
		}, []string{"status_class"}),
		upstreamDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "duration_seconds",
			Help:      "Upstream request duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"operation"}),
	}
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRecord counts one recorded interaction.
func (m *Metrics) ObserveRecord(statusCode int, durationMs int64) {
	m.recorded.WithLabelValues(StatusClass(statusCode)).Inc()
	m.upstreamDuration.WithLabelValues("record").Observe(float64(durationMs) / 1000)
}

// ObserveReplay counts one replayed interaction.
func (m *Metrics) ObserveReplay(statusCode int, durationMs int64) {
	m.replayed.WithLabelValues(StatusClass(statusCode)).Inc()
	m.upstreamDuration.WithLabelValues("replay").Observe(float64(durationMs) / 1000)
}

// Attach feeds the collectors from interaction hook events.
func (m *Metrics) Attach(hm *hooks.Manager) {
	hm.On(hooks.EventInteractionRecorded, "metrics", func(_ context.Context, p hooks.Payload) error {
		m.ObserveRecord(intField(p.Data, "statusCode"), int64(intField(p.Data, "durationMs")))
		return nil
	})
	hm.On(hooks.EventInteractionReplayed, "metrics", func(_ context.Context, p hooks.Payload) error {
		m.ObserveReplay(intField(p.Data, "statusCode"), int64(intField(p.Data, "durationMs")))
		return nil
	})
}

// StatusClass maps 204 to "2xx". Codes outside [100,599] are "other".
func StatusClass(code int) string {
	if code < 100 || code > 599 {
		return "other"
	}
	return strconv.Itoa(code/100) + "xx"
}

func intField(data map[string]any, key string) int {
	switch v := data[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	default:
		return 0
	}
}

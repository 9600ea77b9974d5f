package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the server's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	events   *prometheus.CounterVec
}

// NewMetrics registers the collectors on a fresh registry.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "knotter",
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		}, []string{"method", "route", "status"}),
		duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "knotter",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),
		events: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "knotter",
			Name:      "events_total",
			Help:      "Insert and delete requests by outcome.",
		}, []string{"op", "outcome"}),
	}
}

// Handler serves the registry in the exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry so callers can add collectors
// that /metrics should also expose.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) observeEvent(op string, err error) {
	outcome := "accepted"
	if err != nil {
		outcome = "rejected"
		if !isClientError(err) {
			outcome = "failed"
		}
	}
	m.events.WithLabelValues(op, outcome).Inc()
}

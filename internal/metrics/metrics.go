// Package metrics holds the prometheus collectors of the service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry    *prometheus.Registry
	requests    *prometheus.CounterVec
	latency     *prometheus.SummaryVec
	diagnostics *prometheus.CounterVec
	cache       *prometheus.CounterVec
}

// New registers all collectors on reg.
func New(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		requests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		latency: factory.NewSummaryVec(
			prometheus.SummaryOpts{
				Name: "http_request_duration_seconds",
				Help: "HTTP request duration in seconds",
				Objectives: map[float64]float64{
					0.5:  0.05,
					0.9:  0.01,
					0.99: 0.001,
				},
			},
			[]string{"method", "path", "status_code"},
		),
		diagnostics: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "comment_thread_diagnostics_total",
				Help: "Malformed comment records skipped while building threads",
			},
			[]string{"kind"},
		),
		cache: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "comment_thread_cache_lookups_total",
				Help: "Thread snapshot cache lookups by result",
			},
			[]string{"result"},
		),
	}
}

// ObserveRequest records one served HTTP request.
func (m *Metrics) ObserveRequest(method, path string, status int, d time.Duration) {
	code := strconv.Itoa(status)
	m.requests.WithLabelValues(method, path, code).Inc()
	m.latency.WithLabelValues(method, path, code).Observe(d.Seconds())
}

// ThreadDiagnostic counts a record rejected while building a thread.
func (m *Metrics) ThreadDiagnostic(kind string) {
	m.diagnostics.WithLabelValues(kind).Inc()
}

// CacheLookup counts a cache hit or miss.
func (m *Metrics) CacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cache.WithLabelValues(result).Inc()
}

// Handler exposes the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

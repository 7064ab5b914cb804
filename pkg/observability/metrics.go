package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the registry.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Pipeline metrics
	RegistrationsTotal *prometheus.CounterVec
	RefreshesTotal     *prometheus.CounterVec
	DeletionsTotal     *prometheus.CounterVec

	// Schema cache metrics
	SchemaCacheHits        prometheus.Counter
	SchemaCacheMisses      prometheus.Counter
	SchemaCacheStaleServes prometheus.Counter

	// Store metrics
	StoreOperationsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics on the given registry. A nil
// registry gets a fresh one, which keeps tests independent.
func NewMetrics(registry *prometheus.Registry) *Metrics {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}

	m := &Metrics{
		registry: registry,
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "specdock_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "specdock_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		RegistrationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "specdock_registrations_total",
				Help: "Total number of registration attempts",
			},
			[]string{"status"},
		),
		RefreshesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "specdock_refreshes_total",
				Help: "Total number of refresh attempts",
			},
			[]string{"status"},
		),
		DeletionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "specdock_deletions_total",
				Help: "Total number of deletion attempts",
			},
			[]string{"status"},
		),
		SchemaCacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "specdock_schema_cache_hits_total",
				Help: "Schema cache lookups served from cache",
			},
		),
		SchemaCacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "specdock_schema_cache_misses_total",
				Help: "Schema cache lookups requiring an origin fetch",
			},
		),
		SchemaCacheStaleServes: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "specdock_schema_cache_stale_serves_total",
				Help: "Schema cache lookups degraded to a stale copy after a fetch failure",
			},
		),
		StoreOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "specdock_store_operations_total",
				Help: "Total number of document store operations",
			},
			[]string{"operation", "status"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.RegistrationsTotal,
		m.RefreshesTotal,
		m.DeletionsTotal,
		m.SchemaCacheHits,
		m.SchemaCacheMisses,
		m.SchemaCacheStaleServes,
		m.StoreOperationsTotal,
	)

	return m
}

// Handler returns the scrape endpoint handler for this metrics registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveHTTP records a completed HTTP request.
func (m *Metrics) ObserveHTTP(method, path string, status int, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

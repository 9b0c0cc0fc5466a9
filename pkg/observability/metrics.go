// Package observability exposes Prometheus metrics for the HTTP surface and
// the approval workflow.
package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the collectors on a private registry so tests can build
// isolated instances.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	nodeRequests  *prometheus.CounterVec
	searchQueries prometheus.Counter
}

// NewMetrics creates a registry with the application collectors plus Go
// runtime and process collectors.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		nodeRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "node_requests_total",
			Help: "Node requests processed, by terminal status.",
		}, []string{"status"}),
		searchQueries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "search_queries_total",
			Help: "Search queries served.",
		}),
	}

	registry.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.nodeRequests,
		m.searchQueries,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the scrape endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveNodeRequest records a processed node request outcome.
func (m *Metrics) ObserveNodeRequest(status string) {
	m.nodeRequests.WithLabelValues(status).Inc()
}

// ObserveSearch records a served search query.
func (m *Metrics) ObserveSearch() {
	m.searchQueries.Inc()
}

// Middleware instruments handlers with request counts and latencies.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		// Label with the route pattern, not the raw path: per-id paths
		// would create one series per node.
		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				route = pattern
			}
		}
		m.httpRequests.WithLabelValues(r.Method, route, strconv.Itoa(recorder.status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

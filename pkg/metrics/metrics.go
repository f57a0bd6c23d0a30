// Package metrics defines the Prometheus metric collectors used across the
// engine and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the engine.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	ItemsIndexedTotal  prometheus.Counter
	ItemsRemovedTotal  prometheus.Counter
	SearchesTotal      *prometheus.CounterVec
	SearchLatency      prometheus.Histogram
	SearchResultsCount prometheus.Histogram

	TransitionsRecordedTotal prometheus.Counter
	PredictionsServedTotal   prometheus.Counter

	ModulesMounted      prometheus.Gauge
	ModulesEvictedTotal prometheus.Counter
	MemoryUsageMB       prometheus.Gauge
	MemoryPressureLevel prometheus.Gauge

	SnapshotWritesTotal *prometheus.CounterVec
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests by method, path, and status.",
			},
			[]string{"method", "path", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		ItemsIndexedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "index_items_indexed_total",
				Help: "Total content items added or updated in the index.",
			},
		),
		ItemsRemovedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "index_items_removed_total",
				Help: "Total content items removed from the index.",
			},
		),
		SearchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "search_queries_total",
				Help: "Total search queries by result type (hit, zero_result, empty_query).",
			},
			[]string{"result_type"},
		),
		SearchLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_latency_seconds",
				Help:    "Search query latency in seconds.",
				Buckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
			},
		),
		SearchResultsCount: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "search_results_count",
				Help:    "Number of results returned per search query.",
				Buckets: []float64{0, 1, 5, 10, 25, 50, 100},
			},
		),
		TransitionsRecordedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "predictor_transitions_recorded_total",
				Help: "Total module-to-module transitions recorded.",
			},
		),
		PredictionsServedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "predictor_predictions_served_total",
				Help: "Total prediction requests served.",
			},
		),
		ModulesMounted: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "memory_modules_mounted",
				Help: "Number of modules currently registered as mounted.",
			},
		),
		ModulesEvictedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "memory_modules_evicted_total",
				Help: "Total modules evicted under memory pressure.",
			},
		),
		MemoryUsageMB: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "memory_estimated_usage_mb",
				Help: "Estimated aggregate memory of mounted modules in MB.",
			},
		),
		MemoryPressureLevel: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "memory_pressure_level",
				Help: "Pressure level: 0 none, 1 low, 2 medium, 3 high, 4 critical.",
			},
		),
		SnapshotWritesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "snapshot_writes_total",
				Help: "Snapshot persistence writes by component and status.",
			},
			[]string{"component", "status"},
		),
	}
	prometheus.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.ItemsIndexedTotal,
		m.ItemsRemovedTotal,
		m.SearchesTotal,
		m.SearchLatency,
		m.SearchResultsCount,
		m.TransitionsRecordedTotal,
		m.PredictionsServedTotal,
		m.ModulesMounted,
		m.ModulesEvictedTotal,
		m.MemoryUsageMB,
		m.MemoryPressureLevel,
		m.SnapshotWritesTotal,
	)
	return m
}

// Handler returns the Prometheus scrape handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

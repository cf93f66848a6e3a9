// Package metrics defines the Prometheus metric collectors used across the
// retrieval platform and exposes an HTTP handler for scraping.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus collectors for the platform.
type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge
	RetrievalsTotal      *prometheus.CounterVec
	RetrievalLatency     *prometheus.HistogramVec
	RetrievalResults     prometheus.Histogram
	CacheHitsTotal       *prometheus.CounterVec
	CacheMissesTotal     *prometheus.CounterVec
	VectorSearchLatency  prometheus.Histogram
	KeywordSearchLatency prometheus.Histogram
	QualityAssessments   prometheus.Counter
	CircuitBreakerState  *prometheus.GaugeVec
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
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			},
			[]string{"method", "path"},
		),
		HTTPRequestsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_requests_in_flight",
				Help: "Number of HTTP requests currently being processed.",
			},
		),
		RetrievalsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "retrievals_total",
				Help: "Total retrieval calls by outcome (ok, zero_result, error).",
			},
			[]string{"outcome"},
		),
		RetrievalLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "retrieval_latency_seconds",
				Help:    "Retrieval latency in seconds by cache status.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
			},
			[]string{"cache_status"},
		),
		RetrievalResults: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "retrieval_results_count",
				Help:    "Number of results returned per retrieval.",
				Buckets: []float64{0, 1, 2, 5, 10, 25, 50},
			},
		),
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "retrieval_cache_hits_total",
				Help: "Total cache hits by namespace.",
			},
			[]string{"namespace"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "retrieval_cache_misses_total",
				Help: "Total cache misses by namespace.",
			},
			[]string{"namespace"},
		),
		VectorSearchLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "vector_search_latency_seconds",
				Help:    "Vector similarity search latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5},
			},
		),
		KeywordSearchLatency: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "keyword_search_latency_seconds",
				Help:    "Keyword relevance search latency in seconds.",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
		),
		QualityAssessments: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "quality_assessments_total",
				Help: "Total documents assessed by the quality scoring engine.",
			},
		),
		CircuitBreakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "circuit_breaker_state",
				Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
			},
			[]string{"name"},
		),
	}

	prometheus.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPRequestsInFlight,
		m.RetrievalsTotal,
		m.RetrievalLatency,
		m.RetrievalResults,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
		m.VectorSearchLatency,
		m.KeywordSearchLatency,
		m.QualityAssessments,
		m.CircuitBreakerState,
	)

	return m
}

// Handler returns the Prometheus scrape HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

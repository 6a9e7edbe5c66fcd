package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UpstreamCalls tracks logical upstream operations by final outcome
	UpstreamCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nutriscan_upstream_calls_total",
			Help: "Total number of logical upstream calls",
		},
		[]string{"source", "outcome"},
	)

	// UpstreamAttempts tracks individual attempts, including retries
	UpstreamAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nutriscan_upstream_attempts_total",
			Help: "Total number of upstream attempts",
		},
		[]string{"source"},
	)

	// UpstreamRetries tracks attempts that were scheduled after a retryable failure
	UpstreamRetries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nutriscan_upstream_retries_total",
			Help: "Total number of upstream retries",
		},
		[]string{"source"},
	)

	// UpstreamLatency tracks per-attempt latency
	UpstreamLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nutriscan_upstream_latency_seconds",
			Help:    "Upstream attempt latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"source"},
	)

	// ClassifiedErrors tracks errors surfaced to clients by code
	ClassifiedErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nutriscan_classified_errors_total",
			Help: "Total number of classified errors",
		},
		[]string{"code"},
	)

	// CacheRequests tracks cache lookups by result
	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nutriscan_cache_requests_total",
			Help: "Total number of cache lookups",
		},
		[]string{"result"},
	)

	// ParseWarnings tracks model responses accepted despite schema violations
	ParseWarnings = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "nutriscan_parse_warnings_total",
			Help: "Model responses accepted with schema violations",
		},
	)

	// HTTPRequests tracks served HTTP requests
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nutriscan_http_requests_total",
			Help: "Total number of HTTP requests served",
		},
		[]string{"route", "status"},
	)

	// HTTPLatency tracks HTTP handler latency
	HTTPLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "nutriscan_http_latency_seconds",
			Help:    "HTTP handler latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
)

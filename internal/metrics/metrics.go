// Package metrics registers the Prometheus metrics exported by the assistant.
// All collectors register on the default registry at package init; the
// server mounts promhttp.Handler() at /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts answered requests by outcome ("success",
	// "degraded", "config_fault", "unexpected_fault") and degraded reason.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chorechart_requests_total",
			Help: "Total number of prompts answered by outcome and reason.",
		},
		[]string{"outcome", "reason"},
	)

	// CacheLookups counts cache lookups by result ("hit", "miss").
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chorechart_cache_lookups_total",
			Help: "Total cache lookups by result.",
		},
		[]string{"result"},
	)

	// CacheEvictions counts removed entries by reason ("sweep", "admin_clear").
	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chorechart_cache_evictions_total",
			Help: "Total cache entries removed by reason.",
		},
		[]string{"reason"},
	)

	// CacheSweeps counts completed sweeper passes.
	CacheSweeps = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chorechart_cache_sweeps_total",
			Help: "Total completed cache sweep passes.",
		},
	)

	// UpstreamDuration observes upstream call latency in seconds.
	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chorechart_upstream_duration_seconds",
			Help:    "Upstream text-generation call duration in seconds.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 20, 30},
		},
		[]string{"backend"},
	)

	// UpstreamErrors counts upstream failures by type ("quota", "config",
	// "transient", "circuit_open", "timeout").
	UpstreamErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chorechart_upstream_errors_total",
			Help: "Total upstream errors by type.",
		},
		[]string{"backend", "error_type"},
	)

	// CircuitBreakerState tracks the breaker state: 0 = closed, 1 = open,
	// 2 = half_open.
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chorechart_circuit_breaker_state",
			Help: "Circuit breaker state per backend (0=closed 1=open 2=half_open).",
		},
		[]string{"backend"},
	)

	// RateLimitRejections counts requests rejected by the per-IP limiter.
	RateLimitRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chorechart_rate_limit_rejections_total",
			Help: "Total requests rejected by rate limiting.",
		},
	)

	// RequestLogWriteErrors counts failed request-log inserts.
	RequestLogWriteErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chorechart_request_log_write_errors_total",
			Help: "Total request log entries that could not be persisted.",
		},
	)
)

// RegisterCacheSize exports size() as the chorechart_cache_entries gauge on
// reg. It returns the registration error, which is
// prometheus.AlreadyRegisteredError when called twice on one registry.
func RegisterCacheSize(reg prometheus.Registerer, size func() int) error {
	return reg.Register(prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Name: "chorechart_cache_entries",
			Help: "Current number of entries held in the response cache.",
		},
		func() float64 { return float64(size()) },
	))
}

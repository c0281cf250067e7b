// Package metrics provides Prometheus instrumentation for the batch jobs
// service: job lifecycle counters, duration histograms, and rate-governor
// gauges, exposed at GET /metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// JobsTriggered counts accepted trigger requests by jobType.
var JobsTriggered = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "batchjobs_jobs_triggered_total",
	Help: "Total jobs accepted by the orchestrator, by job type.",
}, []string{"job_type"})

// JobsCompleted counts finished jobs by jobType and terminal status.
var JobsCompleted = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "batchjobs_jobs_completed_total",
	Help: "Total jobs completed, by job type and status.",
}, []string{"job_type", "status"})

// JobDuration tracks job wall-clock duration in seconds.
var JobDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "batchjobs_job_duration_seconds",
	Help:    "Job execution duration in seconds, by job type.",
	Buckets: []float64{.5, 1, 5, 15, 30, 60, 300, 900, 1800, 3600},
}, []string{"job_type"})

// ItemsProcessed counts per-item outcomes within a job (success/failed/skipped).
var ItemsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "batchjobs_items_processed_total",
	Help: "Per-item outcomes processed within jobs, by job type and outcome.",
}, []string{"job_type", "outcome"})

// CircuitBreakerState is a gauge of 0 (closed), 1 (half-open), 2 (open) per provider.
var CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Name: "batchjobs_circuit_breaker_state",
	Help: "Circuit breaker state per provider: 0=closed, 1=half-open, 2=open.",
}, []string{"provider"})

// RateLimiterDrops counts governed calls shed without being made: either the
// circuit breaker rejected them or the non-blocking token acquire failed.
var RateLimiterDrops = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "batchjobs_rate_limiter_drops_total",
	Help: "Governed calls shed because the circuit breaker was open or the rate limiter had no tokens available.",
}, []string{"provider"})

// Handler returns the Prometheus scrape handler for GET /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

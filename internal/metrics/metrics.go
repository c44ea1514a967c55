// Package metrics holds the process-wide Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "natours"

// Recompute outcomes.
const (
	RecomputeSucceeded = "succeeded"
	RecomputeFailed    = "failed"
	RecomputeSkipped   = "skipped"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Current number of HTTP requests being served",
		},
	)

	RateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_rate_limited_total",
			Help:      "Requests rejected by the per-client rate limiter",
		},
	)

	RecomputeTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rating_recompute_total",
			Help:      "Tour rating recomputations by outcome",
		},
		[]string{"outcome"},
	)

	RecomputeAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rating_recompute_attempts_total",
			Help:      "Individual aggregate-and-write attempts, retries included",
		},
	)

	CascadeDeletedReviews = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cascade_deleted_reviews_total",
			Help:      "Reviews removed because their tour was deleted",
		},
	)

	CascadeFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cascade_failures_total",
			Help:      "Tour deletions whose review cascade failed after retries",
		},
	)

	AuthFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "auth_failures_total",
			Help:      "Rejected requests by the last auth state reached",
		},
		[]string{"state"},
	)
)

func RecordRecompute(outcome string) {
	RecomputeTotal.WithLabelValues(outcome).Inc()
}

func RecordCascade(deleted int64) {
	if deleted > 0 {
		CascadeDeletedReviews.Add(float64(deleted))
	}
}

func RecordAuthFailure(state string) {
	AuthFailuresTotal.WithLabelValues(state).Inc()
}

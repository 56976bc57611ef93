// Package metrics provides Prometheus metrics for the session service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// LoginAttemptsTotal counts finished login attempts by entry path and final state.
	LoginAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "collabit",
			Name:      "login_attempts_total",
			Help:      "Total number of login attempts by path and outcome",
		},
		[]string{"path", "state"},
	)

	// IdentityRequestsTotal counts calls to the identity backend.
	IdentityRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "collabit",
			Name:      "identity_requests_total",
			Help:      "Total number of identity backend requests",
		},
		[]string{"operation", "outcome"},
	)

	// IdentityRequestDuration measures identity backend latency.
	IdentityRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "collabit",
			Name:      "identity_request_duration_seconds",
			Help:      "Duration of identity backend requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	// AuditFailuresTotal counts login events that could not be persisted.
	AuditFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "collabit",
			Name:      "audit_failures_total",
			Help:      "Total number of login events that failed to persist",
		},
	)

	// RateLimitedTotal counts requests refused by the login rate limiter.
	RateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "collabit",
			Name:      "rate_limited_total",
			Help:      "Total number of requests rejected by the rate limiter",
		},
		[]string{"route"},
	)
)

// RecordLogin records the outcome of a login attempt.
func RecordLogin(path, state string) {
	LoginAttemptsTotal.WithLabelValues(path, state).Inc()
}

// ObserveIdentityCall records one identity backend round trip. Its signature
// matches identity.Observer.
func ObserveIdentityCall(operation, outcome string, elapsed time.Duration) {
	IdentityRequestsTotal.WithLabelValues(operation, outcome).Inc()
	IdentityRequestDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// RecordAuditFailure records a login event that was dropped.
func RecordAuditFailure() {
	AuditFailuresTotal.Inc()
}

// RecordRateLimited records a rejected request on route.
func RecordRateLimited(route string) {
	RateLimitedTotal.WithLabelValues(route).Inc()
}

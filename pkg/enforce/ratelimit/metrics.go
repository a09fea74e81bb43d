package ratelimit

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains Prometheus collectors for the rate limiter.
type Metrics struct {
	checks        *prometheus.CounterVec
	failOpens     *prometheus.CounterVec
	checkDuration *prometheus.HistogramVec
}

// NewMetrics registers the rate limiter collectors with reg. Pass
// prometheus.DefaultRegisterer in production; tests use a private
// registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		checks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "saturn_ratelimit_checks_total",
				Help: "Total number of rate limit checks by decision",
			},
			[]string{"limit_id", "scope", "decision"},
		),

		failOpens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "saturn_ratelimit_fail_opens_total",
				Help: "Total number of checks allowed because of an internal error",
			},
			[]string{"limit_id"},
		),

		checkDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "saturn_ratelimit_check_duration_seconds",
				Help:    "Duration of rate limit checks in seconds",
				Buckets: prometheus.ExponentialBuckets(0.000001, 2, 15), // 1µs to 16ms
			},
			[]string{"algorithm"},
		),
	}
}

// RecordCheck records a completed check.
func (m *Metrics) RecordCheck(limitID string, scope LimitScope, decision Decision) {
	if m == nil {
		return
	}
	m.checks.WithLabelValues(limitID, string(scope), string(decision)).Inc()
}

// RecordFailOpen records a check that was allowed due to an internal error.
func (m *Metrics) RecordFailOpen(limitID string) {
	if m == nil {
		return
	}
	m.failOpens.WithLabelValues(limitID).Inc()
}

// RecordDuration records how long a check took.
func (m *Metrics) RecordDuration(algorithm Algorithm, seconds float64) {
	if m == nil {
		return
	}
	m.checkDuration.WithLabelValues(string(algorithm)).Observe(seconds)
}

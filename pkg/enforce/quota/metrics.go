package quota

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains Prometheus collectors for the quota manager.
type Metrics struct {
	checks    *prometheus.CounterVec
	alerts    *prometheus.CounterVec
	failOpens *prometheus.CounterVec
	records   *prometheus.CounterVec
}

// NewMetrics registers the quota collectors with reg. Pass
// prometheus.DefaultRegisterer in production; tests use a private
// registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		checks: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "saturn_quota_checks_total",
				Help: "Total number of quota enforcement checks by action",
			},
			[]string{"quota_id", "action"},
		),

		alerts: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "saturn_quota_alerts_total",
				Help: "Total number of quota alerts dispatched by type",
			},
			[]string{"quota_id", "alert_type"},
		),

		failOpens: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "saturn_quota_fail_opens_total",
				Help: "Total number of checks allowed because of an internal error",
			},
			[]string{"quota_id"},
		),

		records: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "saturn_quota_usage_recorded_total",
				Help: "Total usage units recorded by quota",
			},
			[]string{"quota_id"},
		),
	}
}

// RecordCheck records a completed enforcement check.
func (m *Metrics) RecordCheck(quotaID string, action Action) {
	if m == nil {
		return
	}
	m.checks.WithLabelValues(quotaID, string(action)).Inc()
}

// RecordAlert records a dispatched alert.
func (m *Metrics) RecordAlert(quotaID string, alertType AlertType) {
	if m == nil {
		return
	}
	m.alerts.WithLabelValues(quotaID, string(alertType)).Inc()
}

// RecordFailOpen records a check that was allowed due to an internal error.
func (m *Metrics) RecordFailOpen(quotaID string) {
	if m == nil {
		return
	}
	m.failOpens.WithLabelValues(quotaID).Inc()
}

// RecordUsage records usage units written to the ledger.
func (m *Metrics) RecordUsage(quotaID string, amount int64) {
	if m == nil {
		return
	}
	m.records.WithLabelValues(quotaID).Add(float64(amount))
}

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the eligibility module.
type Metrics struct {
	// Rule outcomes by scenario and result (satisfied, failed, skipped)
	RuleOutcome *prometheus.CounterVec

	// Lockout checks by result (clear, locked)
	LockoutChecks *prometheus.CounterVec

	// Overall evaluation latency
	EvaluateLatency prometheus.Histogram
}

// New creates a new Metrics instance with all eligibility module metrics registered.
func New() *Metrics {
	return &Metrics{
		RuleOutcome: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "healthcert_eligibility_rule_outcomes_total",
			Help: "Total rule evaluation outcomes by scenario and result",
		}, []string{"scenario", "result"}),

		LockoutChecks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "healthcert_eligibility_lockout_checks_total",
			Help: "Total positive-test lockout checks by result",
		}, []string{"result"}),

		EvaluateLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "healthcert_eligibility_evaluate_duration_seconds",
			Help:    "Duration of full rule set evaluation",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1},
		}),
	}
}

// IncRuleOutcome records a rule evaluation outcome.
func (m *Metrics) IncRuleOutcome(scenario, result string) {
	if m != nil {
		m.RuleOutcome.WithLabelValues(scenario, result).Inc()
	}
}

// IncLockoutCheck records a lockout check result.
func (m *Metrics) IncLockoutCheck(result string) {
	if m != nil {
		m.LockoutChecks.WithLabelValues(result).Inc()
	}
}

// ObserveEvaluateLatency records the total evaluation duration.
func (m *Metrics) ObserveEvaluateLatency(d time.Duration) {
	if m != nil {
		m.EvaluateLatency.Observe(d.Seconds())
	}
}

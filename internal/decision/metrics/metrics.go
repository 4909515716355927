package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the decision module.
type Metrics struct {
	// Decision outcomes by status and the trigger that produced them
	DecisionOutcome *prometheus.CounterVec

	// Overall evaluation latency, evidence collection included
	EvaluateLatency prometheus.Histogram

	// Evaluations short-circuited by the blacklist
	BlacklistHits prometheus.Counter

	// Evaluations that could not be scored for lack of evidence
	ZeroEvidence prometheus.Counter
}

// New creates a Metrics instance with all decision metrics registered on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		DecisionOutcome: f.NewCounterVec(prometheus.CounterOpts{
			Name: "skillcred_decision_outcomes_total",
			Help: "Total decision outcomes by status and trigger",
		}, []string{"status", "trigger"}),

		EvaluateLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "skillcred_decision_evaluate_duration_seconds",
			Help:    "Duration of full evaluation including evidence collection",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),

		BlacklistHits: f.NewCounter(prometheus.CounterOpts{
			Name: "skillcred_decision_blacklist_hits_total",
			Help: "Evaluations short-circuited to BLACKLISTED",
		}),

		ZeroEvidence: f.NewCounter(prometheus.CounterOpts{
			Name: "skillcred_decision_zero_evidence_total",
			Help: "Evaluations rejected because no evidence source was available",
		}),
	}
}

// IncrementOutcome records a decision outcome.
func (m *Metrics) IncrementOutcome(status, trigger string) {
	if m != nil {
		m.DecisionOutcome.WithLabelValues(status, trigger).Inc()
	}
}

// ObserveEvaluateLatency records the total evaluation duration.
func (m *Metrics) ObserveEvaluateLatency(d time.Duration) {
	if m != nil {
		m.EvaluateLatency.Observe(d.Seconds())
	}
}

func (m *Metrics) IncBlacklistHit() {
	if m != nil {
		m.BlacklistHits.Inc()
	}
}

func (m *Metrics) IncZeroEvidence() {
	if m != nil {
		m.ZeroEvidence.Inc()
	}
}

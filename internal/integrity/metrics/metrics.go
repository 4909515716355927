package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for integrity analysis.
type Metrics struct {
	ReportsTotal       *prometheus.CounterVec
	AnomaliesTotal     *prometheus.CounterVec
	ClassifierCalls    *prometheus.CounterVec
	ClassifierDuration prometheus.Histogram
	ClassifierCircuit  prometheus.Gauge
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ReportsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "skillcred_integrity_reports_total",
			Help: "Manipulation reports by overall severity",
		}, []string{"severity"}),

		AnomaliesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "skillcred_integrity_anomalies_total",
			Help: "Matched anomaly rules by lane and type",
		}, []string{"lane", "type"}),

		ClassifierCalls: f.NewCounterVec(prometheus.CounterOpts{
			Name: "skillcred_integrity_classifier_calls_total",
			Help: "Semantic classifier calls by outcome",
		}, []string{"outcome"}),

		ClassifierDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "skillcred_integrity_classifier_duration_seconds",
			Help:    "Duration of semantic classifier calls",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),

		ClassifierCircuit: f.NewGauge(prometheus.GaugeOpts{
			Name: "skillcred_integrity_classifier_circuit_open",
			Help: "1 while the classifier circuit breaker is open",
		}),
	}
}

func (m *Metrics) IncReport(severity string) {
	if m != nil {
		m.ReportsTotal.WithLabelValues(severity).Inc()
	}
}

func (m *Metrics) IncAnomaly(lane, kind string) {
	if m != nil {
		m.AnomaliesTotal.WithLabelValues(lane, kind).Inc()
	}
}

func (m *Metrics) ObserveClassifierCall(outcome string, d time.Duration) {
	if m != nil {
		m.ClassifierCalls.WithLabelValues(outcome).Inc()
		m.ClassifierDuration.Observe(d.Seconds())
	}
}

func (m *Metrics) SetCircuitOpen(open bool) {
	if m != nil {
		v := 0.0
		if open {
			v = 1
		}
		m.ClassifierCircuit.Set(v)
	}
}

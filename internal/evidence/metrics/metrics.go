package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for evidence intake.
type Metrics struct {
	FetchLatency      *prometheus.HistogramVec
	SourceUnavailable *prometheus.CounterVec
	ClaimsNormalized  *prometheus.CounterVec
}

// New registers evidence metrics with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		FetchLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "skillcred_evidence_fetch_duration_seconds",
			Help:    "Duration of per-source evidence fetches",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"source"}),

		SourceUnavailable: f.NewCounterVec(prometheus.CounterOpts{
			Name: "skillcred_evidence_source_unavailable_total",
			Help: "Sources excluded from an evaluation by reason",
		}, []string{"source", "reason"}),

		ClaimsNormalized: f.NewCounterVec(prometheus.CounterOpts{
			Name: "skillcred_evidence_claims_total",
			Help: "Skill claims produced by the normalizer by source and kind",
		}, []string{"source", "kind"}),
	}
}

func (m *Metrics) ObserveFetchLatency(source string, d time.Duration) {
	if m != nil {
		m.FetchLatency.WithLabelValues(source).Observe(d.Seconds())
	}
}

func (m *Metrics) IncSourceUnavailable(source, reason string) {
	if m != nil {
		if source == "" {
			source = "unknown"
		}
		m.SourceUnavailable.WithLabelValues(source, reason).Inc()
	}
}

func (m *Metrics) AddClaims(source, kind string, n int) {
	if m != nil && n > 0 {
		m.ClaimsNormalized.WithLabelValues(source, kind).Add(float64(n))
	}
}

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the review queue.
type Metrics struct {
	CasesTotal       *prometheus.CounterVec
	ResolutionsTotal *prometheus.CounterVec
	ConflictsTotal   prometheus.Counter
	BlacklistWrites  prometheus.Counter
	BlacklistLookup  *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CasesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "skillcred_review_cases_total",
			Help: "Review cases opened by triggering component",
		}, []string{"triggered_by"}),

		ResolutionsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "skillcred_review_resolutions_total",
			Help: "Review resolutions by decision",
		}, []string{"decision"}),

		ConflictsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "skillcred_review_conflicts_total",
			Help: "Resolution attempts rejected because the case was already resolved",
		}),

		BlacklistWrites: f.NewCounter(prometheus.CounterOpts{
			Name: "skillcred_review_blacklist_writes_total",
			Help: "Blacklist entries written",
		}),

		// result: "hit", "miss", "error"
		BlacklistLookup: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "skillcred_review_blacklist_lookup_duration_seconds",
			Help:    "Latency of blacklist lookups",
			Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025},
		}, []string{"result"}),
	}
}

func (m *Metrics) IncCase(trigger string) {
	if m != nil {
		m.CasesTotal.WithLabelValues(trigger).Inc()
	}
}

func (m *Metrics) IncResolution(decision string) {
	if m != nil {
		m.ResolutionsTotal.WithLabelValues(decision).Inc()
	}
}

func (m *Metrics) IncConflict() {
	if m != nil {
		m.ConflictsTotal.Inc()
	}
}

func (m *Metrics) IncBlacklistWrite() {
	if m != nil {
		m.BlacklistWrites.Inc()
	}
}

func (m *Metrics) ObserveBlacklistLookup(result string, d time.Duration) {
	if m != nil {
		m.BlacklistLookup.WithLabelValues(result).Observe(d.Seconds())
	}
}

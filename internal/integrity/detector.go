// Package integrity classifies manipulation risk in candidate evidence.
//
// Three independent lanes run over one evaluation: a content lane over
// narrative text, a behavioral lane over live assessment signals and a
// component audit lane over the assessments other components produced.
// Each lane's severity is the maximum of its matches, raised one level when
// many distinct rules fire below high. The report severity is the maximum
// over lanes and maps to an action through a fixed policy table.
//
// The detector never repairs input. It only classifies and recommends.
package integrity

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"skillcred/internal/evidence/models"
	"skillcred/internal/integrity/metrics"
)

// Input is everything the detector looks at for one evaluation.
type Input struct {
	Texts      []models.NarrativeText
	Assessment *models.AssessmentSignals
	Components []models.ComponentAssessment
}

type Detector struct {
	thresholds Thresholds
	classifier Classifier
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

type Option func(*Detector)

func WithThresholds(t Thresholds) Option {
	return func(d *Detector) {
		d.thresholds = t
	}
}

// WithClassifier enables the semantic pass of the content lane. Without it
// the pass is reported as not run rather than inconclusive.
func WithClassifier(c Classifier) Option {
	return func(d *Detector) {
		d.classifier = c
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(d *Detector) {
		d.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(d *Detector) {
		d.metrics = m
	}
}

func New(opts ...Option) *Detector {
	d := &Detector{
		thresholds: DefaultThresholds(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Analyze runs every lane that has input and combines them.
func (d *Detector) Analyze(ctx context.Context, in Input) Report {
	var anomalies []Anomaly
	for _, t := range in.Texts {
		anomalies = append(anomalies, scanText(t, d.thresholds)...)
	}
	status := ClassifierNotRun
	if d.classifier != nil && len(in.Texts) > 0 {
		var semantic []Anomaly
		status, semantic = d.classify(ctx, in.Texts)
		anomalies = append(anomalies, semantic...)
	}
	if in.Assessment != nil {
		anomalies = append(anomalies, scanAssessment(*in.Assessment, d.thresholds)...)
	}
	anomalies = append(anomalies, auditComponents(in.Components)...)

	report := combine(anomalies, d.thresholds.VolumeEscalation)
	report.Classifier = status

	d.metrics.IncReport(report.Severity.String())
	for _, a := range report.Anomalies {
		d.metrics.IncAnomaly(string(a.Lane), string(a.Type))
	}
	if report.Severity > SeverityNone {
		d.logger.InfoContext(ctx, "manipulation signals matched",
			"severity", report.Severity.String(),
			"action", report.Action,
			"anomaly_types", report.Types(),
			"classifier", status,
		)
	}
	return report
}

func (d *Detector) classify(ctx context.Context, texts []models.NarrativeText) (ClassifierStatus, []Anomaly) {
	parts := make([]string, 0, len(texts))
	for _, t := range texts {
		if s := strings.TrimSpace(t.Full); s != "" {
			parts = append(parts, s)
		}
	}
	if len(parts) == 0 {
		return ClassifierNotRun, nil
	}

	verdict, err := d.classifier.Classify(ctx, strings.Join(parts, "\n\n"))
	if err != nil {
		level := slog.LevelWarn
		if errors.Is(err, ErrClassifierUnavailable) {
			level = slog.LevelInfo
		}
		d.logger.Log(ctx, level, "manipulation classifier inconclusive", "error", err)
		return ClassifierInconclusive, []Anomaly{{
			Type:     AnomalyClassifierInconclusive,
			Lane:     LaneContent,
			Severity: SeverityLow,
			Detail:   err.Error(),
		}}
	}
	if !verdict.Detected {
		return ClassifierClean, nil
	}
	return ClassifierDetected, []Anomaly{{
		Type:     AnomalySemanticInjection,
		Lane:     LaneContent,
		Severity: SeverityHigh,
		Count:    len(verdict.MatchedSegments),
		Detail:   verdict.AttackType,
	}}
}

// combine folds anomalies into lane severities and the overall report.
func combine(anomalies []Anomaly, volume int) Report {
	type laneAcc struct {
		max   Severity
		kinds map[AnomalyType]bool
	}
	lanes := map[Lane]*laneAcc{}
	for _, a := range anomalies {
		acc, ok := lanes[a.Lane]
		if !ok {
			acc = &laneAcc{kinds: map[AnomalyType]bool{}}
			lanes[a.Lane] = acc
		}
		acc.max = max(acc.max, a.Severity)
		acc.kinds[a.Type] = true
	}

	report := Report{
		Anomalies: anomalies,
		Lanes:     make(map[Lane]Severity, len(lanes)),
	}
	if report.Anomalies == nil {
		report.Anomalies = []Anomaly{}
	}
	for lane, acc := range lanes {
		sev := acc.max
		if volume > 0 && len(acc.kinds) >= volume && sev < SeverityHigh {
			sev = sev.Raise()
		}
		report.Lanes[lane] = sev
		report.Severity = max(report.Severity, sev)
	}
	report.Action = ActionFor(report.Severity)
	return report
}

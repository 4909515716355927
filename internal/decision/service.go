// Package decision is the credential decision engine. It orchestrates one
// evaluation end to end: blacklist check, evidence collection and
// normalization, scoring, manipulation analysis, routing and the append of
// an immutable decision version.
//
// The routing rules in rules.go are pure. Everything with side effects
// (stores, review queue, audit) lives in Service.
package decision

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"skillcred/internal/decision/metrics"
	"skillcred/internal/decision/models"
	"skillcred/internal/decision/ports"
	evmodels "skillcred/internal/evidence/models"
	"skillcred/internal/evidence/weights"
	"skillcred/internal/integrity"
	"skillcred/internal/review"
	reviewmodels "skillcred/internal/review/models"
	"skillcred/internal/scoring"
	"skillcred/pkg/attrs"
	id "skillcred/pkg/domain"
	dErrors "skillcred/pkg/domain-errors"
	"skillcred/pkg/platform/audit"
	"skillcred/pkg/platform/digest"
	"skillcred/pkg/platform/sentinel"
	"skillcred/pkg/requestcontext"
)

// ErrBlacklisted is wrapped by errors for operations refused because the
// subject is blacklisted. An evaluation of a blacklisted subject is not an
// error: it yields a BLACKLISTED decision.
var ErrBlacklisted = errors.New("subject is blacklisted")

// ErrZeroEvidence is wrapped by the error returned when no source could be
// scored.
var ErrZeroEvidence = weights.ErrZeroEvidence

// Store persists decision chains. Append must reject a version that does not
// directly follow the stored chain with sentinel.ErrConflict.
type Store interface {
	Append(ctx context.Context, d *models.Decision) error
	Latest(ctx context.Context, subjectID id.SubjectID) (*models.Decision, error)
	History(ctx context.Context, subjectID id.SubjectID) ([]*models.Decision, error)
}

type Service struct {
	store        Store
	normalizer   ports.Normalizer
	scorer       *scoring.Scorer
	detector     ports.Detector
	reviews      ports.ReviewQueue
	collector    ports.EvidenceCollector
	zeroVerified ZeroVerifiedRoute
	logger       *slog.Logger
	metrics      *metrics.Metrics
	audit        ports.AuditPort
	tracer       trace.Tracer
}

type Option func(*Service)

// WithCollector enables fetching evidence the intake did not carry.
func WithCollector(c ports.EvidenceCollector) Option {
	return func(s *Service) {
		s.collector = c
	}
}

// WithZeroVerifiedRoute sets where an evaluation with no verified skill goes.
func WithZeroVerifiedRoute(r ZeroVerifiedRoute) Option {
	return func(s *Service) {
		s.zeroVerified = r
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithAuditPublisher(publisher ports.AuditPort) Option {
	return func(s *Service) {
		s.audit = publisher
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

func New(
	store Store,
	normalizer ports.Normalizer,
	scorer *scoring.Scorer,
	detector ports.Detector,
	reviews ports.ReviewQueue,
	opts ...Option,
) *Service {
	s := &Service{
		store:        store,
		normalizer:   normalizer,
		scorer:       scorer,
		detector:     detector,
		reviews:      reviews,
		zeroVerified: ZeroVerifiedProvisional,
		logger:       slog.Default(),
		tracer:       otel.Tracer("skillcred/decision"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// transition is everything needed to append one decision version.
type transition struct {
	subjectID   id.SubjectID
	jobID       string
	trigger     models.Trigger
	prev        *models.Decision
	route       Route
	report      integrity.Report
	score       scoring.Result
	claims      []evmodels.SkillClaim
	available   []evmodels.SourceID
	unavailable []evmodels.UnavailableSource
	reviewID    *id.ReviewID
	blacklist   *models.BlacklistHit
}

// Evaluate runs the full pipeline for one intake and appends the resulting
// decision. A blacklisted subject short-circuits to BLACKLISTED before any
// evidence is looked at. An evaluation with no scorable source fails with a
// CodeUnprocessable error wrapping ErrZeroEvidence and writes nothing.
func (s *Service) Evaluate(ctx context.Context, in models.Intake) (*models.Decision, error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "decision.Evaluate",
		trace.WithAttributes(attribute.String("subject_id", in.SubjectID.String())))
	defer span.End()

	d, err := s.evaluate(ctx, in)
	s.metrics.ObserveEvaluateLatency(time.Since(start))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, dErrors.MessageOf(err))
		return nil, err
	}
	span.SetAttributes(
		attribute.String("decision.status", string(d.Status)),
		attribute.Int("decision.version", d.Version),
	)
	return d, nil
}

func (s *Service) evaluate(ctx context.Context, in models.Intake) (*models.Decision, error) {
	if in.SubjectID.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "subject_id is required")
	}
	prev, err := s.latest(ctx, in.SubjectID)
	if err != nil {
		return nil, err
	}

	bl, err := s.reviews.IsBlacklisted(ctx, in.SubjectID)
	if err != nil {
		return nil, err
	}
	if bl.Blacklisted {
		return s.blacklisted(ctx, in.SubjectID, in.JobID, prev, bl)
	}
	if prev != nil && !CanFollow(prev, models.StatusPendingReview, models.TriggerEvaluation) {
		return nil, dErrors.New(dErrors.CodeConflict, "subject is awaiting human review")
	}

	extractions, unavailable, err := s.gather(ctx, in)
	if err != nil {
		return nil, err
	}

	_, nspan := s.tracer.Start(ctx, "evidence.Normalize")
	ev := s.normalizer.Normalize(ctx, extractions)
	nspan.SetAttributes(attribute.Int("evidence.available", len(ev.Available)))
	nspan.End()
	ev.Unavailable = append(ev.Unavailable, unavailable...)

	s.emitFairness(ctx, in, ev.Redacted)
	for _, u := range ev.Unavailable {
		s.logAudit(ctx, audit.EventSourceUnavailable,
			"subject_id", in.SubjectID.String(),
			"source", string(u.Source),
			"reason", u.Reason,
		)
	}

	score, err := s.scorer.Score(ev)
	if err != nil {
		return nil, s.scoreError(ctx, in.SubjectID, err)
	}

	_, aspan := s.tracer.Start(ctx, "integrity.Analyze")
	report := s.detector.Analyze(ctx, integrity.Input{
		Texts:      ev.Texts,
		Assessment: in.Assessment,
		Components: append(slices.Clone(ev.Components), score.Assessment()),
	})
	aspan.SetAttributes(attribute.String("integrity.severity", report.Severity.String()))
	aspan.End()

	return s.commit(ctx, &transition{
		subjectID:   in.SubjectID,
		jobID:       in.JobID,
		trigger:     models.TriggerEvaluation,
		prev:        prev,
		route:       RouteEvaluation(report, score, s.zeroVerified),
		report:      report,
		score:       score,
		claims:      ev.Claims,
		available:   ev.Available,
		unavailable: ev.Unavailable,
	})
}

// gather returns the intake records followed by whatever the collector
// fetched for sources the intake did not supply.
func (s *Service) gather(ctx context.Context, in models.Intake) ([]evmodels.Extraction, []evmodels.UnavailableSource, error) {
	extractions := make([]evmodels.Extraction, 0, len(in.Records))
	for _, r := range in.Records {
		extractions = append(extractions, evmodels.Extraction{Payload: r})
	}
	if s.collector == nil {
		return extractions, nil, nil
	}

	ctx, span := s.tracer.Start(ctx, "evidence.Collect")
	defer span.End()
	res, err := s.collector.Collect(ctx, in.SubjectID, intakeSources(in.Records)...)
	if err != nil {
		span.RecordError(err)
		return nil, nil, dErrors.Wrap(err, dErrors.CodeTimeout, "evidence collection cancelled")
	}
	span.SetAttributes(
		attribute.Int("evidence.fetched", len(res.Extractions)),
		attribute.Int("evidence.unavailable", len(res.Unavailable)),
	)
	return append(extractions, res.Extractions...), res.Unavailable, nil
}

// intakeSources lists the known sources declared by intake records.
func intakeSources(records []json.RawMessage) []evmodels.SourceID {
	var out []evmodels.SourceID
	for _, r := range records {
		var head struct {
			SourceID string `json:"source_id"`
		}
		if json.Unmarshal(r, &head) != nil {
			continue
		}
		if src, ok := evmodels.ParseSourceID(head.SourceID); ok && !slices.Contains(out, src) {
			out = append(out, src)
		}
	}
	return out
}

func (s *Service) scoreError(ctx context.Context, subjectID id.SubjectID, err error) error {
	if errors.Is(err, weights.ErrZeroEvidence) {
		s.metrics.IncZeroEvidence()
		s.logger.InfoContext(ctx, "evaluation has no scorable evidence",
			"subject_id", subjectID.String(),
		)
		return dErrors.Wrap(err, dErrors.CodeUnprocessable, "insufficient evidence: no evidence source was available")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to score evidence")
}

// blacklisted records a BLACKLISTED decision for a blacklist hit. A chain
// already ending in BLACKLISTED for the same entry is returned unchanged.
func (s *Service) blacklisted(ctx context.Context, subjectID id.SubjectID, jobID string, prev *models.Decision, bl reviewmodels.BlacklistStatus) (*models.Decision, error) {
	s.metrics.IncBlacklistHit()
	s.logAudit(ctx, audit.EventBlacklistHit,
		"subject_id", subjectID.String(),
		"review_id", bl.ReviewID,
	)

	hit := &models.BlacklistHit{ReviewID: bl.ReviewID, ExpiresAt: bl.ExpiresAt}
	if prev != nil && prev.Status == models.StatusBlacklisted &&
		prev.Bundle.Blacklist != nil && prev.Bundle.Blacklist.ReviewID == bl.ReviewID {
		return prev, nil
	}

	t := &transition{
		subjectID: subjectID,
		jobID:     jobID,
		trigger:   models.TriggerBlacklist,
		prev:      prev,
		route:     Route{Status: models.StatusBlacklisted, Reason: models.ReasonBlacklisted},
		blacklist: hit,
	}
	if rid, err := id.ParseReviewID(bl.ReviewID); err == nil {
		t.reviewID = &rid
	}
	return s.commit(ctx, t)
}

// CompleteAssessment fuses a finished live assessment into the evidence of
// the PENDING_TEST decision it was requested by. Confidence can only rise;
// the behavioral lane can still route the subject to review or blacklist.
func (s *Service) CompleteAssessment(ctx context.Context, in models.AssessmentResult) (*models.Decision, error) {
	ctx, span := s.tracer.Start(ctx, "decision.CompleteAssessment",
		trace.WithAttributes(attribute.String("subject_id", in.SubjectID.String())))
	defer span.End()

	d, err := s.completeAssessment(ctx, in)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, dErrors.MessageOf(err))
		return nil, err
	}
	span.SetAttributes(attribute.String("decision.status", string(d.Status)))
	return d, nil
}

func (s *Service) completeAssessment(ctx context.Context, in models.AssessmentResult) (*models.Decision, error) {
	if in.SubjectID.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "subject_id is required")
	}
	prev, err := s.latest(ctx, in.SubjectID)
	if err != nil {
		return nil, err
	}
	if prev == nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "no decision awaits an assessment")
	}

	bl, err := s.reviews.IsBlacklisted(ctx, in.SubjectID)
	if err != nil {
		return nil, err
	}
	if bl.Blacklisted {
		return s.blacklisted(ctx, in.SubjectID, prev.JobID, prev, bl)
	}
	if prev.Status == models.StatusBlacklisted {
		return nil, dErrors.Wrap(ErrBlacklisted, dErrors.CodeConflict, "subject is blacklisted")
	}
	if !CanFollow(prev, models.StatusVerified, models.TriggerAssessment) {
		return nil, dErrors.New(dErrors.CodeConflict, fmt.Sprintf("decision is %s, not awaiting an assessment", prev.Status))
	}

	var ev evmodels.NormalizedEvidence
	if len(in.Record) > 0 {
		ev = s.normalizer.Normalize(ctx, []evmodels.Extraction{{
			Source:  evmodels.SourceLiveAssessment,
			Payload: in.Record,
		}})
	}
	// A re-run source supersedes what it claimed before.
	prior := slices.DeleteFunc(slices.Clone(prev.Bundle.Claims), func(c evmodels.SkillClaim) bool {
		return ev.IsAvailable(c.Source)
	})
	merged := evmodels.NormalizedEvidence{
		Claims:      append(prior, ev.Claims...),
		Available:   mergeSources(prev.Bundle.Available, ev.Available),
		Unavailable: ev.Unavailable,
	}

	score, err := s.scorer.Rescore(prev.Bundle.Score, merged)
	if err != nil {
		return nil, s.scoreError(ctx, in.SubjectID, err)
	}
	signals := in.Signals
	report := s.detector.Analyze(ctx, integrity.Input{
		Texts:      ev.Texts,
		Assessment: &signals,
		Components: append(slices.Clone(ev.Components), score.Assessment()),
	})

	d, err := s.commit(ctx, &transition{
		subjectID:   in.SubjectID,
		jobID:       prev.JobID,
		trigger:     models.TriggerAssessment,
		prev:        prev,
		route:       RouteAssessment(report, score),
		report:      report,
		score:       score,
		claims:      merged.Claims,
		available:   merged.Available,
		unavailable: merged.Unavailable,
	})
	if err != nil {
		return nil, err
	}
	s.logAudit(ctx, audit.EventAssessmentCompleted,
		"subject_id", in.SubjectID.String(),
		"decision_id", d.ID.String(),
		"decision", string(d.Status),
		"items", len(in.Signals.Items),
	)
	return d, nil
}

func mergeSources(a, b []evmodels.SourceID) []evmodels.SourceID {
	out := slices.Clone(a)
	for _, src := range b {
		if !slices.Contains(out, src) {
			out = append(out, src)
		}
	}
	slices.SortFunc(out, func(x, y evmodels.SourceID) int {
		return slices.Index(evmodels.AllSources, x) - slices.Index(evmodels.AllSources, y)
	})
	return out
}

// OnReviewResolved applies a committed review resolution to the subject's
// PENDING_REVIEW decision. ESCALATED leaves the decision pending.
func (s *Service) OnReviewResolved(ctx context.Context, o review.Outcome) error {
	if o.Case == nil {
		return nil
	}
	subjectID := o.Case.SubjectID
	prev, err := s.latest(ctx, subjectID)
	if err != nil {
		return err
	}
	if prev == nil || prev.Status != models.StatusPendingReview {
		s.logger.InfoContext(ctx, "review resolution has no pending decision",
			"subject_id", subjectID.String(),
			"review_id", o.Case.ID.String(),
		)
		return nil
	}

	route, ok := RouteReview(o.Case.Decision, prev.Bundle.Score)
	if !ok {
		s.logger.InfoContext(ctx, "decision stays pending review",
			"subject_id", subjectID.String(),
			"review_id", o.Case.ID.String(),
			"decision", string(o.Case.Decision),
		)
		return nil
	}

	rid := o.Case.ID
	t := &transition{
		subjectID:   subjectID,
		jobID:       prev.JobID,
		trigger:     models.TriggerReview,
		prev:        prev,
		route:       route,
		report:      prev.Bundle.Report,
		score:       prev.Bundle.Score,
		claims:      prev.Bundle.Claims,
		available:   prev.Bundle.Available,
		unavailable: prev.Bundle.Unavailable,
		reviewID:    &rid,
	}
	if o.Blacklist != nil {
		t.blacklist = &models.BlacklistHit{ReviewID: rid.String(), ExpiresAt: o.Blacklist.ExpiresAt}
	}
	_, err = s.commit(ctx, t)
	return err
}

// commit opens any review case the route calls for and appends the decision.
func (s *Service) commit(ctx context.Context, t *transition) (*models.Decision, error) {
	if t.prev != nil && !CanFollow(t.prev, t.route.Status, t.trigger) {
		return nil, dErrors.New(dErrors.CodeConflict, fmt.Sprintf("decision is %s", t.prev.Status))
	}
	if err := s.escalate(ctx, t); err != nil {
		return nil, err
	}

	d := &models.Decision{
		ID:              id.NewDecisionID(),
		SubjectID:       t.subjectID,
		JobID:           t.jobID,
		Version:         1,
		Status:          t.route.Status,
		Reason:          t.route.Reason,
		SkillConfidence: t.score.SkillConfidence,
		VerifiedSkills:  slices.Clone(t.score.Verified),
		Signal:          t.score.Signal,
		ReviewID:        t.reviewID,
		Bundle: models.Bundle{
			Trigger:     t.trigger,
			To:          t.route.Status,
			Report:      t.report,
			Score:       t.score,
			Claims:      t.claims,
			Available:   t.available,
			Unavailable: t.unavailable,
			Blacklist:   t.blacklist,
		},
		CreatedAt: requestcontext.Now(ctx).UTC(),
	}
	if d.VerifiedSkills == nil {
		d.VerifiedSkills = []string{}
	}
	if t.reviewID != nil {
		d.Bundle.ReviewID = t.reviewID.String()
	}
	if t.prev != nil {
		prevID := t.prev.ID
		d.Version = t.prev.Version + 1
		d.PreviousID = &prevID
		d.Bundle.From = t.prev.Status
	}
	ref, err := digest.Of(d.Bundle)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash evidence bundle")
	}
	d.BundleRef = ref

	if err := s.store.Append(ctx, d); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "decision changed concurrently, retry the request")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store decision")
	}

	s.metrics.IncrementOutcome(string(d.Status), string(t.trigger))
	s.emitDecision(ctx, d, t)
	return d, nil
}

// reviewEvidence is the case payload. It names the decision version it
// supersedes so each evaluation of a subject gets its own case.
type reviewEvidence struct {
	Trigger         models.Trigger      `json:"trigger"`
	PreviousID      string              `json:"previous_decision_id,omitempty"`
	Version         int                 `json:"version"`
	Report          integrity.Report    `json:"manipulation_report"`
	VerifiedSkills  []string            `json:"verified_skills"`
	SkillConfidence float64             `json:"skill_confidence"`
	Available       []evmodels.SourceID `json:"available_sources"`
}

// escalate submits a review case for manipulation routes. Critical findings
// are recorded as an automated block.
func (s *Service) escalate(ctx context.Context, t *transition) error {
	if t.route.Reason != models.ReasonManipulationCritical && t.route.Reason != models.ReasonManipulationSuspected {
		return nil
	}
	evidence := reviewEvidence{
		Trigger:         t.trigger,
		Version:         1,
		Report:          t.report,
		VerifiedSkills:  t.score.Verified,
		SkillConfidence: t.score.SkillConfidence,
		Available:       t.available,
	}
	if t.prev != nil {
		evidence.PreviousID = t.prev.ID.String()
		evidence.Version = t.prev.Version + 1
	}
	sub := reviewmodels.Submission{
		SubjectID:   t.subjectID,
		JobID:       t.jobID,
		TriggeredBy: reviewmodels.TriggerIntegrity,
		Severity:    t.report.Severity,
		Reason:      manipulationReason(t.report),
		Evidence:    evidence,
		ActionTaken: t.report.Action,
	}

	var c *reviewmodels.Case
	var err error
	if t.route.Status == models.StatusBlacklisted {
		c, err = s.reviews.Block(ctx, sub)
	} else {
		c, err = s.reviews.Submit(ctx, sub)
	}
	if err != nil {
		return err
	}
	if t.route.Status == models.StatusPendingReview && c.Status != reviewmodels.StatusPending {
		return dErrors.New(dErrors.CodeConflict,
			fmt.Sprintf("review case %s for this evaluation is already %s", c.ID, c.Status))
	}
	rid := c.ID
	t.reviewID = &rid
	return nil
}

func manipulationReason(r integrity.Report) string {
	types := r.Types()
	names := make([]string, len(types))
	for i, t := range types {
		names[i] = string(t)
	}
	return fmt.Sprintf("%s manipulation signals: %s", r.Severity, strings.Join(names, ", "))
}

// Latest returns the current decision for a subject.
func (s *Service) Latest(ctx context.Context, subjectID id.SubjectID) (*models.Decision, error) {
	d, err := s.latest(ctx, subjectID)
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "no decision for subject")
	}
	return d, nil
}

// History returns every decision version for a subject, oldest first.
func (s *Service) History(ctx context.Context, subjectID id.SubjectID) ([]*models.Decision, error) {
	chain, err := s.store.History(ctx, subjectID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load decision history")
	}
	return chain, nil
}

func (s *Service) latest(ctx context.Context, subjectID id.SubjectID) (*models.Decision, error) {
	d, err := s.store.Latest(ctx, subjectID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load decision")
	}
	return d, nil
}

func (s *Service) emitDecision(ctx context.Context, d *models.Decision, t *transition) {
	reviewID := ""
	if d.ReviewID != nil {
		reviewID = d.ReviewID.String()
	}
	s.logAudit(ctx, audit.EventDecisionIssued,
		"subject_id", d.SubjectID.String(),
		"decision_id", d.ID.String(),
		"version", d.Version,
		"decision", string(d.Status),
		"reason", string(d.Reason),
		"trigger", string(t.trigger),
		"severity", t.report.Severity.String(),
		"skill_confidence", d.SkillConfidence,
		"bundle_ref", d.BundleRef,
		"review_id", reviewID,
	)
	if t.report.Severity > integrity.SeverityNone && t.trigger != models.TriggerReview {
		s.logAudit(ctx, audit.EventManipulationDetected,
			"subject_id", d.SubjectID.String(),
			"decision_id", d.ID.String(),
			"severity", t.report.Severity.String(),
			"action", string(t.report.Action),
			"anomaly_types", t.report.Types(),
			"review_id", reviewID,
		)
	}
	if t.report.Classifier == integrity.ClassifierInconclusive && t.trigger != models.TriggerReview {
		s.logAudit(ctx, audit.EventClassifierInconclusive,
			"subject_id", d.SubjectID.String(),
			"decision_id", d.ID.String(),
		)
	}
}

// emitFairness forwards protected attributes to the fairness channel. They
// are never logged.
func (s *Service) emitFairness(ctx context.Context, in models.Intake, redacted []string) {
	if s.audit == nil || (in.Protected.IsEmpty() && len(redacted) == 0) {
		return
	}
	e := audit.NewEvent(audit.EventFairnessIntake, in.SubjectID)
	e.RequestID = requestcontext.RequestID(ctx)
	e.Attributes = map[string]string{}
	if p := in.Protected; !p.IsEmpty() {
		for k, v := range map[string]string{"name": p.Name, "gender": p.Gender, "institution": p.Institution} {
			if v != "" {
				e.Attributes[k] = v
			}
		}
		if p.Age != nil {
			e.Attributes["age"] = fmt.Sprint(*p.Age)
		}
	}
	if len(redacted) > 0 {
		e.Attributes["redacted_fields"] = strings.Join(redacted, ",")
	}
	if in.JobID != "" {
		e.Attributes["job_id"] = in.JobID
	}
	if err := s.audit.Emit(ctx, e); err != nil {
		s.logger.WarnContext(ctx, "audit emit failed",
			"event", string(audit.EventFairnessIntake),
			"error", err,
		)
	}
}

func (s *Service) logAudit(ctx context.Context, event audit.AuditEvent, attributes ...any) {
	requestID := requestcontext.RequestID(ctx)
	if requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	args := append(attributes, "event", string(event), "log_type", "audit")
	s.logger.InfoContext(ctx, string(event), args...)
	if s.audit == nil {
		return
	}
	e := audit.NewEvent(event, id.SubjectID(attrs.ExtractString(attributes, "subject_id")))
	e.RequestID = requestID
	e.Decision = attrs.ExtractString(attributes, "decision")
	e.Severity = attrs.ExtractString(attributes, "severity")
	e.Reason = attrs.ExtractString(attributes, "reason")
	e.Attributes = attrs.ToMap(attributes, "subject_id", "decision", "severity", "reason", "request_id")
	if err := s.audit.Emit(ctx, e); err != nil {
		s.logger.WarnContext(ctx, "audit emit failed",
			"event", string(event),
			"error", err,
		)
	}
}

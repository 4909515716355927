// Package review is the escalation queue: durable cases awaiting a human
// verdict, and the blacklist that rejections write.
//
// Cases are append-only. Submission is idempotent per (subject, trigger,
// evidence hash). Resolution is a compare-and-set on the case status, so
// of two concurrent resolvers exactly one wins and the other gets
// ErrReviewConflict.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"skillcred/internal/review/blacklist"
	"skillcred/internal/review/metrics"
	"skillcred/internal/review/models"
	"skillcred/pkg/attrs"
	id "skillcred/pkg/domain"
	dErrors "skillcred/pkg/domain-errors"
	"skillcred/pkg/platform/audit"
	"skillcred/pkg/platform/digest"
	"skillcred/pkg/platform/sentinel"
	"skillcred/pkg/requestcontext"
)

// ErrReviewConflict is wrapped by every error returned for a resolution
// that lost to an earlier one.
var ErrReviewConflict = models.ErrReviewConflict

// conflictError keeps the store's message and adds ErrReviewConflict to
// the chain without repeating its text.
type conflictError struct{ err error }

func (e conflictError) Error() string   { return e.err.Error() }
func (e conflictError) Unwrap() []error { return []error{ErrReviewConflict, e.err} }

// Store persists cases and blacklist entries. RunInTx scopes the calls made
// with its context to one transaction where the backend supports it.
type Store interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
	Insert(ctx context.Context, c *models.Case) (*models.Case, bool, error)
	Get(ctx context.Context, reviewID id.ReviewID) (*models.Case, error)
	List(ctx context.Context, f models.Filter) ([]*models.Case, error)
	Resolve(ctx context.Context, reviewID id.ReviewID, u models.ResolveUpdate) (*models.Case, error)
	PutBlacklist(ctx context.Context, e models.BlacklistEntry) error
	ListBlacklist(ctx context.Context) ([]models.BlacklistEntry, error)
}

type AuditPublisher interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Outcome is what a committed resolution produced.
type Outcome struct {
	Case      *models.Case
	Blacklist *models.BlacklistEntry
	FollowUp  *models.Case
}

// Listener is told about every committed resolution. Errors are logged and
// never undo the resolution.
type Listener interface {
	OnReviewResolved(ctx context.Context, o Outcome) error
}

type Service struct {
	store        Store
	index        blacklist.Index
	logger       *slog.Logger
	audit        AuditPublisher
	metrics      *metrics.Metrics
	blacklistTTL time.Duration

	mu        sync.RWMutex
	listeners []Listener
}

type Option func(*Service)

// WithIndex replaces the default in-process blacklist index.
func WithIndex(index blacklist.Index) Option {
	return func(s *Service) {
		if index != nil {
			s.index = index
		}
	}
}

// WithBlacklistTTL sets the expiry of rejections that carry none. Zero
// means rejections never expire.
func WithBlacklistTTL(ttl time.Duration) Option {
	return func(s *Service) {
		s.blacklistTTL = ttl
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.audit = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func New(store Store, opts ...Option) *Service {
	s := &Service{
		store:  store,
		index:  blacklist.NewMemory(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Subscribe registers l for resolution outcomes.
func (s *Service) Subscribe(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Warm loads active blacklist entries from the store into the index.
func (s *Service) Warm(ctx context.Context) error {
	entries, err := s.store.ListBlacklist(ctx)
	if err != nil {
		return fmt.Errorf("warm blacklist: %w", err)
	}
	now := time.Now()
	loaded := 0
	for _, e := range entries {
		if !e.Active(now) {
			continue
		}
		if err := s.index.Put(ctx, e); err != nil {
			return fmt.Errorf("warm blacklist %s: %w", e.SubjectID, err)
		}
		loaded++
	}
	s.logger.InfoContext(ctx, "blacklist index warmed", "entries", loaded)
	return nil
}

// Submit opens a case, or returns the existing one for the same subject,
// trigger and evidence.
func (s *Service) Submit(ctx context.Context, sub models.Submission) (*models.Case, error) {
	c, err := s.newCase(ctx, sub, "")
	if err != nil {
		return nil, err
	}
	stored, created, err := s.store.Insert(ctx, c)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to submit review case")
	}
	if created {
		s.metrics.IncCase(string(stored.TriggeredBy))
		s.logAudit(ctx, audit.EventReviewSubmitted,
			"subject_id", stored.SubjectID.String(),
			"review_id", stored.ID.String(),
			"triggered_by", string(stored.TriggeredBy),
			"severity", stored.Severity.String(),
			"action_taken", string(stored.ActionTaken),
		)
	}
	return stored, nil
}

// Block records an automated critical rejection: a case closed as REJECTED
// at creation and a blacklist entry without expiry. Listeners are not
// notified; the caller already knows the outcome.
func (s *Service) Block(ctx context.Context, sub models.Submission) (*models.Case, error) {
	c, err := s.newCase(ctx, sub, "block")
	if err != nil {
		return nil, err
	}
	now := c.CreatedAt
	c.Status = models.StatusRejected
	c.Decision = models.StatusRejected
	c.ResolvedAt = &now

	var stored *models.Case
	var entry models.BlacklistEntry
	err = s.store.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		stored, _, err = s.store.Insert(ctx, c)
		if err != nil {
			return err
		}
		entry = models.BlacklistEntry{
			SubjectID: stored.SubjectID,
			ReviewID:  stored.ID,
			Reason:    stored.Reason,
			CreatedAt: now,
		}
		if err := s.store.PutBlacklist(ctx, entry); err != nil {
			return err
		}
		return s.index.Put(ctx, entry)
	})
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to record automated block")
	}

	s.metrics.IncCase(string(stored.TriggeredBy))
	s.metrics.IncBlacklistWrite()
	s.logAudit(ctx, audit.EventBlacklistAdded,
		"subject_id", stored.SubjectID.String(),
		"review_id", stored.ID.String(),
		"triggered_by", string(stored.TriggeredBy),
		"severity", stored.Severity.String(),
		"reason", stored.Reason,
	)
	return stored, nil
}

// Resolve applies a reviewer's verdict. REJECTED also writes the blacklist
// entry; ESCALATED opens a follow-up case one severity level higher. All
// writes share one transaction.
func (s *Service) Resolve(ctx context.Context, reviewID id.ReviewID, res models.Resolution) (*Outcome, error) {
	if !res.Decision.IsTerminal() {
		return nil, dErrors.New(dErrors.CodeValidation, "decision must be APPROVED, REJECTED or ESCALATED")
	}
	now := requestcontext.Now(ctx)

	var out Outcome
	err := s.store.RunInTx(ctx, func(ctx context.Context) error {
		resolved, err := s.store.Resolve(ctx, reviewID, models.ResolveUpdate{
			Decision:   res.Decision,
			Notes:      res.Notes,
			ReviewerID: res.ReviewerID,
			ResolvedAt: now,
		})
		if err != nil {
			return err
		}
		out = Outcome{Case: resolved}

		switch res.Decision {
		case models.StatusRejected:
			entry := models.BlacklistEntry{
				SubjectID: resolved.SubjectID,
				ReviewID:  resolved.ID,
				Reason:    resolved.Reason,
				CreatedAt: now,
				ExpiresAt: s.expiry(now, res.BlacklistExpiry),
			}
			if err := s.store.PutBlacklist(ctx, entry); err != nil {
				return err
			}
			// Written before commit: a failed commit leaves a conservative
			// index entry that the next warm-up corrects.
			if err := s.index.Put(ctx, entry); err != nil {
				return fmt.Errorf("blacklist index: %w", err)
			}
			out.Blacklist = &entry
		case models.StatusEscalated:
			parent := resolved.ID
			followUp, err := s.newCase(ctx, models.Submission{
				SubjectID:   resolved.SubjectID,
				JobID:       resolved.JobID,
				TriggeredBy: models.TriggerReviewEscalated,
				Severity:    resolved.Severity.Raise(),
				Reason:      resolved.Reason,
				Evidence:    resolved.Evidence,
				ActionTaken: resolved.ActionTaken,
				ParentID:    &parent,
			}, "escalation:"+parent.String())
			if err != nil {
				return err
			}
			if out.FollowUp, _, err = s.store.Insert(ctx, followUp); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, s.resolveError(ctx, reviewID, err)
	}

	s.metrics.IncResolution(string(res.Decision))
	s.logAudit(ctx, audit.EventReviewResolved,
		"subject_id", out.Case.SubjectID.String(),
		"review_id", out.Case.ID.String(),
		"decision", string(res.Decision),
		"actor_id", res.ReviewerID,
	)
	if out.Blacklist != nil {
		s.metrics.IncBlacklistWrite()
		s.logAudit(ctx, audit.EventBlacklistAdded,
			"subject_id", out.Blacklist.SubjectID.String(),
			"review_id", out.Case.ID.String(),
			"actor_id", res.ReviewerID,
			"reason", out.Blacklist.Reason,
		)
	}
	if out.FollowUp != nil {
		s.metrics.IncCase(string(out.FollowUp.TriggeredBy))
		s.logAudit(ctx, audit.EventReviewSubmitted,
			"subject_id", out.FollowUp.SubjectID.String(),
			"review_id", out.FollowUp.ID.String(),
			"parent_id", out.Case.ID.String(),
			"triggered_by", string(out.FollowUp.TriggeredBy),
			"severity", out.FollowUp.Severity.String(),
		)
	}
	s.notify(ctx, out)
	return &out, nil
}

func (s *Service) resolveError(ctx context.Context, reviewID id.ReviewID, err error) error {
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.New(dErrors.CodeNotFound, "review case not found")
	case errors.Is(err, sentinel.ErrConflict):
		s.metrics.IncConflict()
		s.logger.WarnContext(ctx, "review resolution conflict",
			"review_id", reviewID.String(),
			"error", err,
		)
		return dErrors.Wrap(conflictError{err}, dErrors.CodeConflict, "review case already resolved")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve review case")
	}
}

func (s *Service) Get(ctx context.Context, reviewID id.ReviewID) (*models.Case, error) {
	c, err := s.store.Get(ctx, reviewID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, dErrors.New(dErrors.CodeNotFound, "review case not found")
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load review case")
	}
	return c, nil
}

// List returns cases matching f, oldest first.
func (s *Service) List(ctx context.Context, f models.Filter) ([]*models.Case, error) {
	if f.Status != "" && f.Status != models.StatusPending && !f.Status.IsTerminal() {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown status filter")
	}
	cases, err := s.store.List(ctx, f)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list review cases")
	}
	return cases, nil
}

// IsBlacklisted consults the index. Index errors are returned rather than
// read as "not blacklisted".
func (s *Service) IsBlacklisted(ctx context.Context, subjectID id.SubjectID) (models.BlacklistStatus, error) {
	start := time.Now()
	e, ok, err := s.index.Lookup(ctx, subjectID)
	switch {
	case err != nil:
		s.metrics.ObserveBlacklistLookup("error", time.Since(start))
		return models.BlacklistStatus{}, dErrors.Wrap(err, dErrors.CodeUnavailable, "blacklist lookup failed")
	case !ok:
		s.metrics.ObserveBlacklistLookup("miss", time.Since(start))
		return models.BlacklistStatus{}, nil
	}
	s.metrics.ObserveBlacklistLookup("hit", time.Since(start))
	return models.BlacklistStatus{
		Blacklisted: true,
		ExpiresAt:   e.ExpiresAt,
		ReviewID:    e.ReviewID.String(),
	}, nil
}

func (s *Service) newCase(ctx context.Context, sub models.Submission, keyPrefix string) (*models.Case, error) {
	if sub.SubjectID.IsZero() {
		return nil, dErrors.New(dErrors.CodeValidation, "subject_id is required")
	}
	if sub.TriggeredBy == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "triggered_by is required")
	}
	evidence, err := digest.Canonical(sub.Evidence)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "evidence is not JSON-encodable")
	}
	hash, err := digest.Of(sub.Evidence)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "evidence is not JSON-encodable")
	}
	key := sub.SubjectID.String() + "|" + string(sub.TriggeredBy) + "|" + hash
	if keyPrefix != "" {
		key = keyPrefix + "|" + key
	}
	return &models.Case{
		ID:             id.NewReviewID(),
		SubjectID:      sub.SubjectID,
		JobID:          sub.JobID,
		TriggeredBy:    sub.TriggeredBy,
		Severity:       sub.Severity,
		Reason:         sub.Reason,
		Evidence:       evidence,
		EvidenceHash:   hash,
		ActionTaken:    sub.ActionTaken,
		Status:         models.StatusPending,
		ParentID:       sub.ParentID,
		IdempotencyKey: key,
		CreatedAt:      requestcontext.Now(ctx).UTC(),
	}, nil
}

func (s *Service) expiry(now time.Time, explicit *time.Time) *time.Time {
	if explicit != nil {
		t := *explicit
		return &t
	}
	if s.blacklistTTL <= 0 {
		return nil
	}
	t := now.Add(s.blacklistTTL)
	return &t
}

func (s *Service) notify(ctx context.Context, o Outcome) {
	s.mu.RLock()
	listeners := append([]Listener(nil), s.listeners...)
	s.mu.RUnlock()
	for _, l := range listeners {
		if err := l.OnReviewResolved(ctx, o); err != nil {
			s.logger.ErrorContext(ctx, "review listener failed",
				"review_id", o.Case.ID.String(),
				"subject_id", o.Case.SubjectID.String(),
				"error", err,
			)
		}
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
	e.ActorID = attrs.ExtractString(attributes, "actor_id")
	e.Decision = attrs.ExtractString(attributes, "decision")
	e.Severity = attrs.ExtractString(attributes, "severity")
	e.Reason = attrs.ExtractString(attributes, "reason")
	e.Attributes = attrs.ToMap(attributes, "subject_id", "actor_id", "decision", "severity", "reason", "request_id")
	if err := s.audit.Emit(ctx, e); err != nil {
		s.logger.WarnContext(ctx, "audit emit failed",
			"event", string(event),
			"error", err,
		)
	}
}

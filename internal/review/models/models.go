// Package models defines review cases and blacklist entries.
package models

import (
	"encoding/json"
	"errors"
	"time"

	"skillcred/internal/integrity"
	id "skillcred/pkg/domain"
)

// ErrReviewConflict is returned when a case was already resolved.
var ErrReviewConflict = errors.New("review case already resolved")

// Status is the case lifecycle position. PENDING is the only non-terminal
// status.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusApproved  Status = "APPROVED"
	StatusRejected  Status = "REJECTED"
	StatusEscalated Status = "ESCALATED"
)

func (s Status) IsTerminal() bool {
	return s == StatusApproved || s == StatusRejected || s == StatusEscalated
}

// ParseResolution accepts the statuses a reviewer may resolve to.
func ParseResolution(v string) (Status, bool) {
	s := Status(v)
	return s, s.IsTerminal()
}

// Trigger names the component that opened a case.
type Trigger string

const (
	TriggerIntegrity       Trigger = "integrity_detector"
	TriggerDecisionEngine  Trigger = "decision_engine"
	TriggerReviewEscalated Trigger = "review_escalation"
)

// Case is one review record. Cases are never deleted; only resolution
// fields change, once.
type Case struct {
	ID             id.ReviewID        `json:"review_id"`
	SubjectID      id.SubjectID       `json:"subject_id"`
	JobID          string             `json:"job_id,omitempty"`
	TriggeredBy    Trigger            `json:"triggered_by"`
	Severity       integrity.Severity `json:"severity"`
	Reason         string             `json:"reason"`
	Evidence       json.RawMessage    `json:"evidence"`
	EvidenceHash   string             `json:"evidence_hash"`
	ActionTaken    integrity.Action   `json:"action_taken"`
	Status         Status             `json:"status"`
	Decision       Status             `json:"decision,omitempty"`
	Notes          string             `json:"notes,omitempty"`
	ReviewerID     string             `json:"reviewer_id,omitempty"`
	ParentID       *id.ReviewID       `json:"parent_id,omitempty"`
	IdempotencyKey string             `json:"-"`
	CreatedAt      time.Time          `json:"created_at"`
	ResolvedAt     *time.Time         `json:"resolved_at,omitempty"`
}

// Submission is the input for opening a case.
type Submission struct {
	SubjectID   id.SubjectID
	JobID       string
	TriggeredBy Trigger
	Severity    integrity.Severity
	Reason      string
	// Evidence is the JSON-encodable snapshot that justified the case.
	Evidence    any
	ActionTaken integrity.Action
	ParentID    *id.ReviewID
}

// Resolution is a reviewer's verdict.
type Resolution struct {
	Decision   Status
	Notes      string
	ReviewerID string
	// BlacklistExpiry bounds the blacklist entry of a rejection. Nil uses the
	// configured default, which may be no expiry.
	BlacklistExpiry *time.Time
}

// ResolveUpdate is what a store writes in its compare-and-set.
type ResolveUpdate struct {
	Decision   Status
	Notes      string
	ReviewerID string
	ResolvedAt time.Time
}

// Filter narrows case listings.
type Filter struct {
	Status    Status
	SubjectID id.SubjectID
	Limit     int
}

func (f Filter) Matches(c *Case) bool {
	if f.Status != "" && c.Status != f.Status {
		return false
	}
	if f.SubjectID != "" && c.SubjectID != f.SubjectID {
		return false
	}
	return true
}

// BlacklistEntry blocks automated evaluation of a subject.
type BlacklistEntry struct {
	SubjectID id.SubjectID `json:"subject_id"`
	ReviewID  id.ReviewID  `json:"review_id"`
	Reason    string       `json:"reason"`
	CreatedAt time.Time    `json:"created_at"`
	ExpiresAt *time.Time   `json:"expires_at,omitempty"`
}

// Active reports whether the entry still blocks at now.
func (e BlacklistEntry) Active(now time.Time) bool {
	return e.ExpiresAt == nil || now.Before(*e.ExpiresAt)
}

// BlacklistStatus answers a blacklist lookup.
type BlacklistStatus struct {
	Blacklisted bool       `json:"blacklisted"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	ReviewID    string     `json:"review_id,omitempty"`
}

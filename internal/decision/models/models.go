// Package models defines credential decisions and the evidence bundle each
// one carries.
package models

import (
	"encoding/json"
	"time"

	evmodels "skillcred/internal/evidence/models"
	"skillcred/internal/integrity"
	"skillcred/internal/scoring"
	id "skillcred/pkg/domain"
)

// Status is a decision outcome.
type Status string

const (
	StatusVerified      Status = "VERIFIED"
	StatusProvisional   Status = "PROVISIONAL"
	StatusPendingTest   Status = "PENDING_TEST"
	StatusPendingReview Status = "PENDING_REVIEW"
	StatusBlacklisted   Status = "BLACKLISTED"
)

var restrictiveness = map[Status]int{
	StatusVerified:      0,
	StatusPendingTest:   1,
	StatusProvisional:   2,
	StatusPendingReview: 3,
	StatusBlacklisted:   4,
}

// Restrictiveness orders statuses from least to most restrictive for the
// candidate.
func (s Status) Restrictiveness() int {
	r, ok := restrictiveness[s]
	if !ok {
		return -1
	}
	return r
}

// IsPending reports whether the status waits on an assessment or a human.
func (s Status) IsPending() bool {
	return s == StatusPendingTest || s == StatusPendingReview
}

// Reason explains a status in terms a candidate-facing message can use.
type Reason string

const (
	ReasonStrongSignal          Reason = "strong_signal"
	ReasonWeakSignal            Reason = "assessment_required"
	ReasonInsufficientEvidence  Reason = "insufficient_evidence"
	ReasonNoVerifiedSkills      Reason = "no_verified_skills"
	ReasonManipulationSuspected Reason = "pending_human_review"
	ReasonManipulationCritical  Reason = "manipulation_critical"
	ReasonBlacklisted           Reason = "blacklisted"
	ReasonAssessmentCompleted   Reason = "assessment_completed"
	ReasonReviewApproved        Reason = "review_approved"
	ReasonReviewRejected        Reason = "review_rejected"
)

// Trigger names what produced a decision version.
type Trigger string

const (
	TriggerEvaluation Trigger = "evaluation"
	TriggerAssessment Trigger = "assessment"
	TriggerReview     Trigger = "review_resolution"
	TriggerBlacklist  Trigger = "blacklist_check"
)

// Bundle is the immutable evidence behind one decision. It is hashed into
// the decision's bundle reference.
type Bundle struct {
	Trigger     Trigger                      `json:"trigger"`
	From        Status                       `json:"from,omitempty"`
	To          Status                       `json:"to"`
	Report      integrity.Report             `json:"manipulation_report"`
	Score       scoring.Result               `json:"score"`
	Claims      []evmodels.SkillClaim        `json:"claims"`
	Available   []evmodels.SourceID          `json:"available_sources"`
	Unavailable []evmodels.UnavailableSource `json:"unavailable_sources,omitempty"`
	ReviewID    string                       `json:"review_id,omitempty"`
	Blacklist   *BlacklistHit                `json:"blacklist,omitempty"`
}

// BlacklistHit records the entry that short-circuited an evaluation.
type BlacklistHit struct {
	ReviewID  string     `json:"review_id,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// Decision is one immutable version in a subject's decision chain.
type Decision struct {
	ID              id.DecisionID          `json:"decision_id"`
	SubjectID       id.SubjectID           `json:"subject_id"`
	JobID           string                 `json:"job_id,omitempty"`
	Version         int                    `json:"version"`
	PreviousID      *id.DecisionID         `json:"previous_id,omitempty"`
	Status          Status                 `json:"status"`
	Reason          Reason                 `json:"reason"`
	SkillConfidence float64                `json:"skill_confidence"`
	VerifiedSkills  []string               `json:"verified_skills"`
	Signal          scoring.SignalStrength `json:"signal_strength,omitempty"`
	ReviewID        *id.ReviewID           `json:"review_id,omitempty"`
	Bundle          Bundle                 `json:"bundle"`
	BundleRef       string                 `json:"evidence_bundle_ref"`
	CreatedAt       time.Time              `json:"created_at"`
}

// Output is the shape consumed by downstream matching and issuance.
type Output struct {
	SubjectID         id.SubjectID `json:"subject_id"`
	Status            Status       `json:"status"`
	Reason            Reason       `json:"reason"`
	SkillConfidence   float64      `json:"skill_confidence"`
	VerifiedSkills    []string     `json:"verified_skills"`
	EvidenceBundleRef string       `json:"evidence_bundle_ref"`
	Version           int          `json:"version"`
}

func (d *Decision) Output() Output {
	verified := d.VerifiedSkills
	if verified == nil {
		verified = []string{}
	}
	return Output{
		SubjectID:         d.SubjectID,
		Status:            d.Status,
		Reason:            d.Reason,
		SkillConfidence:   d.SkillConfidence,
		VerifiedSkills:    verified,
		EvidenceBundleRef: d.BundleRef,
		Version:           d.Version,
	}
}

// Protected holds intake attributes that must never reach scoring. They
// are forwarded to the fairness audit channel only.
type Protected struct {
	Name        string `json:"name,omitempty"`
	Gender      string `json:"gender,omitempty"`
	Age         *int   `json:"age,omitempty"`
	Institution string `json:"institution,omitempty"`
}

func (p *Protected) IsEmpty() bool {
	return p == nil || (p.Name == "" && p.Gender == "" && p.Age == nil && p.Institution == "")
}

// Intake is one evaluation request.
type Intake struct {
	SubjectID  id.SubjectID                `json:"subject_id"`
	JobID      string                      `json:"job_id,omitempty"`
	Records    []json.RawMessage           `json:"records"`
	Protected  *Protected                  `json:"protected,omitempty"`
	Assessment *evmodels.AssessmentSignals `json:"assessment,omitempty"`
}

// AssessmentResult is a completed live assessment.
type AssessmentResult struct {
	SubjectID id.SubjectID               `json:"subject_id"`
	Record    json.RawMessage            `json:"record"`
	Signals   evmodels.AssessmentSignals `json:"signals"`
}

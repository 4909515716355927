package handler

import (
	"encoding/json"
	"fmt"
	"strings"

	"skillcred/internal/decision/models"
	evmodels "skillcred/internal/evidence/models"
	id "skillcred/pkg/domain"
	dErrors "skillcred/pkg/domain-errors"
)

const (
	maxRecords         = 20
	maxAssessmentItems = 500
	maxJobIDLength     = 128
)

// EvaluateRequest is the HTTP request body for POST /v1/evaluations.
type EvaluateRequest struct {
	SubjectID  string                      `json:"subject_id"`
	JobID      string                      `json:"job_id,omitempty"`
	Records    []json.RawMessage           `json:"records"`
	Protected  *models.Protected           `json:"protected,omitempty"`
	Assessment *evmodels.AssessmentSignals `json:"assessment,omitempty"`

	// Parsed values (populated by Validate)
	parsedSubjectID id.SubjectID
}

// Validate validates and parses the request.
// Implements the Validatable interface for httputil.DecodeAndPrepare.
// Malformed records are not rejected here: the normalizer records them as
// unavailable sources.
func (r *EvaluateRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}

	// Size validation (fail fast)
	if len(r.Records) > maxRecords {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("at most %d records are accepted", maxRecords))
	}
	r.JobID = strings.TrimSpace(r.JobID)
	if len(r.JobID) > maxJobIDLength {
		return dErrors.New(dErrors.CodeValidation, "job_id is too long")
	}
	if r.Protected != nil && r.Protected.Age != nil && (*r.Protected.Age < 0 || *r.Protected.Age > 150) {
		return dErrors.New(dErrors.CodeValidation, "protected.age is out of range")
	}
	if r.Assessment != nil {
		if err := validateSignals(*r.Assessment); err != nil {
			return err
		}
	}

	subjectID, err := id.ParseSubjectID(strings.TrimSpace(r.SubjectID))
	if err != nil {
		return err
	}
	r.parsedSubjectID = subjectID
	return nil
}

func (r *EvaluateRequest) intake() models.Intake {
	return models.Intake{
		SubjectID:  r.parsedSubjectID,
		JobID:      r.JobID,
		Records:    r.Records,
		Protected:  r.Protected,
		Assessment: r.Assessment,
	}
}

// AssessmentRequest is the body of POST /v1/subjects/{subject_id}/assessment.
type AssessmentRequest struct {
	// Record is an optional live-assessment intake record with per-skill
	// results.
	Record  json.RawMessage            `json:"record,omitempty"`
	Signals evmodels.AssessmentSignals `json:"signals"`
}

// Validate implements httputil.Validatable.
func (r *AssessmentRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.Signals.Items) == 0 {
		return dErrors.New(dErrors.CodeValidation, "signals.items is required")
	}
	return validateSignals(r.Signals)
}

func validateSignals(sig evmodels.AssessmentSignals) error {
	if len(sig.Items) > maxAssessmentItems {
		return dErrors.New(dErrors.CodeValidation, fmt.Sprintf("at most %d assessment items are accepted", maxAssessmentItems))
	}
	for _, item := range sig.Items {
		if item.LatencyMs < 0 {
			return dErrors.New(dErrors.CodeValidation, "latency_ms must not be negative")
		}
	}
	switch sig.DeclaredSeniority {
	case "", evmodels.SeniorityJunior, evmodels.SeniorityMid, evmodels.SenioritySenior, evmodels.SeniorityStaff:
		return nil
	default:
		return dErrors.New(dErrors.CodeValidation, "declared_seniority must be junior, mid, senior or staff")
	}
}

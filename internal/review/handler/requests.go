package handler

import (
	"strings"
	"time"

	"skillcred/internal/review/models"
	dErrors "skillcred/pkg/domain-errors"
)

const maxNotesLength = 4000

// ResolveRequest is the body of POST /v1/reviews/{review_id}/resolve.
type ResolveRequest struct {
	Decision string `json:"decision"`
	Notes    string `json:"notes"`
	// ExpiresAt bounds the blacklist entry of a rejection.
	ExpiresAt *time.Time `json:"expires_at,omitempty"`

	parsedDecision models.Status
}

// Validate implements httputil.Validatable.
func (r *ResolveRequest) Validate() error {
	if r == nil {
		return dErrors.New(dErrors.CodeBadRequest, "request body is required")
	}
	if len(r.Notes) > maxNotesLength {
		return dErrors.New(dErrors.CodeValidation, "notes must be at most 4000 characters")
	}
	decision, ok := models.ParseResolution(strings.ToUpper(strings.TrimSpace(r.Decision)))
	if !ok {
		return dErrors.New(dErrors.CodeValidation, "decision must be APPROVED, REJECTED or ESCALATED")
	}
	if r.ExpiresAt != nil && decision != models.StatusRejected {
		return dErrors.New(dErrors.CodeValidation, "expires_at only applies to REJECTED")
	}
	r.parsedDecision = decision
	r.Notes = strings.TrimSpace(r.Notes)
	return nil
}

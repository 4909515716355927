package handler

import (
	"encoding/json"
	"time"

	"skillcred/internal/review"
	"skillcred/internal/review/models"
)

// CaseResponse is the wire shape of a review case.
type CaseResponse struct {
	ReviewID    string          `json:"review_id"`
	SubjectID   string          `json:"subject_id"`
	JobID       string          `json:"job_id,omitempty"`
	TriggeredBy string          `json:"triggered_by"`
	Severity    string          `json:"severity"`
	Reason      string          `json:"reason"`
	Evidence    json.RawMessage `json:"evidence"`
	ActionTaken string          `json:"action_taken"`
	Status      string          `json:"status"`
	Decision    string          `json:"decision,omitempty"`
	Notes       string          `json:"notes,omitempty"`
	ParentID    string          `json:"parent_id,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	ResolvedAt  *time.Time      `json:"resolved_at,omitempty"`
}

type ListResponse struct {
	Reviews []CaseResponse `json:"reviews"`
}

type ResolveResponse struct {
	Review           CaseResponse  `json:"review"`
	Blacklisted      bool          `json:"blacklisted"`
	BlacklistExpires *time.Time    `json:"blacklist_expires_at,omitempty"`
	FollowUp         *CaseResponse `json:"follow_up,omitempty"`
}

func toCaseResponse(c *models.Case) CaseResponse {
	resp := CaseResponse{
		ReviewID:    c.ID.String(),
		SubjectID:   c.SubjectID.String(),
		JobID:       c.JobID,
		TriggeredBy: string(c.TriggeredBy),
		Severity:    c.Severity.String(),
		Reason:      c.Reason,
		Evidence:    c.Evidence,
		ActionTaken: string(c.ActionTaken),
		Status:      string(c.Status),
		Decision:    string(c.Decision),
		Notes:       c.Notes,
		CreatedAt:   c.CreatedAt,
		ResolvedAt:  c.ResolvedAt,
	}
	if c.ParentID != nil {
		resp.ParentID = c.ParentID.String()
	}
	return resp
}

func toCaseResponses(cases []*models.Case) []CaseResponse {
	out := make([]CaseResponse, 0, len(cases))
	for _, c := range cases {
		out = append(out, toCaseResponse(c))
	}
	return out
}

func toResolveResponse(o *review.Outcome) ResolveResponse {
	resp := ResolveResponse{Review: toCaseResponse(o.Case)}
	if o.Blacklist != nil {
		resp.Blacklisted = true
		resp.BlacklistExpires = o.Blacklist.ExpiresAt
	}
	if o.FollowUp != nil {
		f := toCaseResponse(o.FollowUp)
		resp.FollowUp = &f
	}
	return resp
}

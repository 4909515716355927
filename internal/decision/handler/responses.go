package handler

import (
	"time"

	"skillcred/internal/decision/models"
)

// messages are the candidate-facing explanations per reason. A rejection is
// never worded as insufficient evidence, and the reverse.
var messages = map[models.Reason]string{
	models.ReasonStrongSignal:          "Skills were verified from code evidence.",
	models.ReasonWeakSignal:            "A short live assessment is required to verify these skills.",
	models.ReasonInsufficientEvidence:  "The evidence provided is not yet sufficient to verify skills.",
	models.ReasonNoVerifiedSkills:      "No skill could be verified from code evidence yet.",
	models.ReasonManipulationSuspected: "This application is awaiting human review.",
	models.ReasonManipulationCritical:  "This application cannot be processed automatically.",
	models.ReasonBlacklisted:           "This application cannot be processed automatically.",
	models.ReasonAssessmentCompleted:   "The live assessment has been taken into account.",
	models.ReasonReviewApproved:        "A reviewer approved this application.",
	models.ReasonReviewRejected:        "This application cannot be processed automatically.",
}

// DecisionResponse is the output consumed by matching and issuance.
type DecisionResponse struct {
	DecisionID string `json:"decision_id"`
	models.Output
	Message string `json:"message"`
}

// DecisionDetailResponse adds the evidence bundle for operators.
type DecisionDetailResponse struct {
	DecisionResponse
	PreviousID string        `json:"previous_id,omitempty"`
	ReviewID   string        `json:"review_id,omitempty"`
	Bundle     models.Bundle `json:"bundle"`
	CreatedAt  time.Time     `json:"created_at"`
}

type HistoryResponse struct {
	Decisions []DecisionDetailResponse `json:"decisions"`
}

func toDecisionResponse(d *models.Decision) DecisionResponse {
	return DecisionResponse{
		DecisionID: d.ID.String(),
		Output:     d.Output(),
		Message:    messages[d.Reason],
	}
}

func toDetailResponse(d *models.Decision) DecisionDetailResponse {
	out := DecisionDetailResponse{
		DecisionResponse: toDecisionResponse(d),
		Bundle:           d.Bundle,
		CreatedAt:        d.CreatedAt,
	}
	if d.PreviousID != nil {
		out.PreviousID = d.PreviousID.String()
	}
	if d.ReviewID != nil {
		out.ReviewID = d.ReviewID.String()
	}
	return out
}

package audit

import (
	"context"
	"time"

	id "skillcred/pkg/domain"
)

// EventCategory classifies audit events by their primary purpose.
// Each category is routed to its own topic so retention can differ.
type EventCategory string

const (
	// CategoryCompliance covers events with regulatory significance: issued
	// decisions, review resolutions, blacklist writes.
	CategoryCompliance EventCategory = "compliance"

	// CategorySecurity covers manipulation findings and blacklist hits.
	CategorySecurity EventCategory = "security"

	// CategoryOperations covers routine pipeline activity.
	CategoryOperations EventCategory = "operations"

	// CategoryFairness carries protected intake attributes. It is the only
	// category allowed to hold them and is never read by scoring.
	CategoryFairness EventCategory = "fairness"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Category  EventCategory
	Timestamp time.Time
	SubjectID id.SubjectID
	Action    string
	Decision  string
	Reason    string
	Severity  string
	RequestID string
	// ActorID is the reviewer for human actions, empty for automated ones.
	ActorID string
	// Attributes holds event-specific detail such as review_id or decision_id.
	Attributes map[string]string
}

// Store persists or forwards audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
}

type AuditEvent string

const (
	EventDecisionIssued         AuditEvent = "decision_issued"
	EventReviewSubmitted        AuditEvent = "review_submitted"
	EventReviewResolved         AuditEvent = "review_resolved"
	EventBlacklistAdded         AuditEvent = "blacklist_added"
	EventManipulationDetected   AuditEvent = "manipulation_detected"
	EventBlacklistHit           AuditEvent = "blacklist_hit"
	EventSourceUnavailable      AuditEvent = "evidence_source_unavailable"
	EventAssessmentCompleted    AuditEvent = "assessment_completed"
	EventClassifierInconclusive AuditEvent = "classifier_inconclusive"
	EventFairnessIntake         AuditEvent = "fairness_intake"
)

var eventCategories = map[AuditEvent]EventCategory{
	EventDecisionIssued:  CategoryCompliance,
	EventReviewSubmitted: CategoryCompliance,
	EventReviewResolved:  CategoryCompliance,
	EventBlacklistAdded:  CategoryCompliance,

	EventManipulationDetected: CategorySecurity,
	EventBlacklistHit:         CategorySecurity,

	EventSourceUnavailable:      CategoryOperations,
	EventAssessmentCompleted:    CategoryOperations,
	EventClassifierInconclusive: CategoryOperations,

	EventFairnessIntake: CategoryFairness,
}

// Category returns the EventCategory for this audit event.
// Unknown events default to CategoryOperations.
func (e AuditEvent) Category() EventCategory {
	if cat, ok := eventCategories[e]; ok {
		return cat
	}
	return CategoryOperations
}

// NewEvent builds an event for action with its category resolved.
func NewEvent(action AuditEvent, subjectID id.SubjectID) Event {
	return Event{
		Category:  action.Category(),
		SubjectID: subjectID,
		Action:    string(action),
	}
}

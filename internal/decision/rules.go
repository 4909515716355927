package decision

import (
	"fmt"

	"skillcred/internal/decision/models"
	"skillcred/internal/integrity"
	reviewmodels "skillcred/internal/review/models"
	"skillcred/internal/scoring"
)

// ZeroVerifiedRoute is the configurable destination of an evaluation that
// produced no verified skill.
type ZeroVerifiedRoute string

const (
	ZeroVerifiedProvisional ZeroVerifiedRoute = "provisional"
	ZeroVerifiedPendingTest ZeroVerifiedRoute = "pending_test"
)

func ParseZeroVerifiedRoute(s string) (ZeroVerifiedRoute, error) {
	switch r := ZeroVerifiedRoute(s); r {
	case ZeroVerifiedProvisional, ZeroVerifiedPendingTest:
		return r, nil
	case "":
		return ZeroVerifiedProvisional, nil
	default:
		return "", fmt.Errorf("unknown zero-verified route %q", s)
	}
}

// Route is the outcome of a rule chain.
type Route struct {
	Status models.Status
	Reason models.Reason
}

// RouteEvaluation applies the initial evaluation rules.
// This is pure domain logic - no I/O, no side effects.
// Rule priority (fail-fast):
//  1. Critical manipulation - automated block
//  2. Any other manipulation signal - human review
//  3. No verified skill - configured route
//  4. Signal strength
func RouteEvaluation(report integrity.Report, score scoring.Result, zeroVerified ZeroVerifiedRoute) Route {
	if r, ok := manipulationRoute(report); ok {
		return r
	}
	if len(score.Verified) == 0 {
		if zeroVerified == ZeroVerifiedPendingTest {
			return Route{Status: models.StatusPendingTest, Reason: models.ReasonNoVerifiedSkills}
		}
		return Route{Status: models.StatusProvisional, Reason: models.ReasonNoVerifiedSkills}
	}
	switch score.Signal {
	case scoring.SignalStrong:
		return Route{Status: models.StatusVerified, Reason: models.ReasonStrongSignal}
	case scoring.SignalWeak:
		return Route{Status: models.StatusPendingTest, Reason: models.ReasonWeakSignal}
	default:
		return Route{Status: models.StatusProvisional, Reason: models.ReasonInsufficientEvidence}
	}
}

// RouteAssessment applies the rules after a live assessment. The test can
// only lead to VERIFIED or PROVISIONAL unless the behavioral lane fires.
func RouteAssessment(report integrity.Report, score scoring.Result) Route {
	if r, ok := manipulationRoute(report); ok {
		return r
	}
	if score.Signal == scoring.SignalStrong {
		return Route{Status: models.StatusVerified, Reason: models.ReasonAssessmentCompleted}
	}
	return Route{Status: models.StatusProvisional, Reason: models.ReasonAssessmentCompleted}
}

// RouteReview maps a human resolution onto the decision it was holding.
// ESCALATED yields ok=false: the decision stays PENDING_REVIEW.
func RouteReview(resolution reviewmodels.Status, score scoring.Result) (Route, bool) {
	switch resolution {
	case reviewmodels.StatusApproved:
		if score.Signal == scoring.SignalStrong {
			return Route{Status: models.StatusVerified, Reason: models.ReasonReviewApproved}, true
		}
		return Route{Status: models.StatusProvisional, Reason: models.ReasonReviewApproved}, true
	case reviewmodels.StatusRejected:
		return Route{Status: models.StatusBlacklisted, Reason: models.ReasonReviewRejected}, true
	default:
		return Route{}, false
	}
}

func manipulationRoute(report integrity.Report) (Route, bool) {
	switch {
	case report.Severity >= integrity.SeverityCritical:
		return Route{Status: models.StatusBlacklisted, Reason: models.ReasonManipulationCritical}, true
	case report.Severity >= integrity.SeverityLow:
		return Route{Status: models.StatusPendingReview, Reason: models.ReasonManipulationSuspected}, true
	default:
		return Route{}, false
	}
}

// CanFollow reports whether a new version with status next may be appended
// after prev. Pending decisions only move forward through their own
// resolution; a new evaluation cannot overwrite a pending review.
func CanFollow(prev *models.Decision, next models.Status, trigger models.Trigger) bool {
	if prev == nil {
		return trigger == models.TriggerEvaluation || trigger == models.TriggerBlacklist
	}
	switch trigger {
	case models.TriggerAssessment:
		return prev.Status == models.StatusPendingTest
	case models.TriggerReview:
		return prev.Status == models.StatusPendingReview
	case models.TriggerBlacklist:
		return true
	default:
		return prev.Status != models.StatusPendingReview
	}
}

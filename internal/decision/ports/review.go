package ports

import (
	"context"

	"skillcred/internal/review/models"
	id "skillcred/pkg/domain"
)

//go:generate mockgen -source=review.go -destination=mocks/review_mock.go -package=mocks

// ReviewQueue is the decision engine's view of the escalation queue.
// Implemented by review.Service.
type ReviewQueue interface {
	// IsBlacklisted must reflect every rejection committed before the call.
	IsBlacklisted(ctx context.Context, subjectID id.SubjectID) (models.BlacklistStatus, error)

	// Submit opens a case, idempotent per subject, trigger and evidence.
	Submit(ctx context.Context, sub models.Submission) (*models.Case, error)

	// Block records a critical automated rejection and blacklists the subject.
	Block(ctx context.Context, sub models.Submission) (*models.Case, error)
}

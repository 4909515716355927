package testutil

import (
	"net/http"
	"time"

	id "skillcred/pkg/domain"
	"skillcred/pkg/requestcontext"
)

// WithReviewer adds a reviewer ID to the request context, as the reviewer
// auth middleware would. Invalid IDs are ignored.
func WithReviewer(req *http.Request, reviewerID string) *http.Request {
	parsed, err := id.ParseReviewerID(reviewerID)
	if err != nil {
		return req
	}
	return req.WithContext(requestcontext.WithReviewerID(req.Context(), parsed))
}

// WithTime pins the request-scoped clock.
func WithTime(req *http.Request, t time.Time) *http.Request {
	return req.WithContext(requestcontext.WithTime(req.Context(), t))
}

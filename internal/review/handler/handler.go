package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"skillcred/internal/review"
	"skillcred/internal/review/models"
	id "skillcred/pkg/domain"
	dErrors "skillcred/pkg/domain-errors"
	"skillcred/pkg/platform/httputil"
	"skillcred/pkg/requestcontext"
)

// Service defines the review operations exposed over HTTP.
type Service interface {
	Get(ctx context.Context, reviewID id.ReviewID) (*models.Case, error)
	List(ctx context.Context, f models.Filter) ([]*models.Case, error)
	Resolve(ctx context.Context, reviewID id.ReviewID, res models.Resolution) (*review.Outcome, error)
	IsBlacklisted(ctx context.Context, subjectID id.SubjectID) (models.BlacklistStatus, error)
}

// Handler wires review and blacklist endpoints to the review service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Register mounts the read endpoints on r and the resolve endpoint behind
// requireReviewer.
func (h *Handler) Register(r chi.Router, requireReviewer func(http.Handler) http.Handler) {
	r.Get("/v1/reviews", h.HandleList)
	r.Get("/v1/reviews/{review_id}", h.HandleGet)
	r.Get("/v1/subjects/{subject_id}/blacklist", h.HandleBlacklist)
	r.With(requireReviewer).Post("/v1/reviews/{review_id}/resolve", h.HandleResolve)
}

// HandleList handles GET /v1/reviews.
func (h *Handler) HandleList(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	f := models.Filter{Status: models.Status(q.Get("status"))}
	if subject := q.Get("subject_id"); subject != "" {
		parsed, err := id.ParseSubjectID(subject)
		if err != nil {
			httputil.WriteError(w, err)
			return
		}
		f.SubjectID = parsed
	}
	if limit := q.Get("limit"); limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 1 || n > 500 {
			httputil.WriteError(w, dErrors.New(dErrors.CodeValidation, "limit must be between 1 and 500"))
			return
		}
		f.Limit = n
	}

	cases, err := h.service.List(ctx, f)
	if err != nil {
		h.logger.ErrorContext(ctx, "list review cases failed",
			"request_id", requestcontext.RequestID(ctx),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, ListResponse{Reviews: toCaseResponses(cases)})
}

// HandleGet handles GET /v1/reviews/{review_id}.
func (h *Handler) HandleGet(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	reviewID, err := id.ParseReviewID(chi.URLParam(r, "review_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	c, err := h.service.Get(ctx, reviewID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toCaseResponse(c))
}

// HandleResolve handles POST /v1/reviews/{review_id}/resolve.
func (h *Handler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	reviewerID := requestcontext.ReviewerID(ctx)
	if reviewerID.IsNil() {
		httputil.WriteError(w, dErrors.New(dErrors.CodeUnauthorized, "reviewer authentication required"))
		return
	}

	reviewID, err := id.ParseReviewID(chi.URLParam(r, "review_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}

	req, ok := httputil.DecodeAndPrepare[ResolveRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	out, err := h.service.Resolve(ctx, reviewID, models.Resolution{
		Decision:        req.parsedDecision,
		Notes:           req.Notes,
		ReviewerID:      reviewerID.String(),
		BlacklistExpiry: req.ExpiresAt,
	})
	if err != nil {
		h.logger.WarnContext(ctx, "review resolution failed",
			"request_id", requestID,
			"review_id", reviewID.String(),
			"error", err,
		)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "review resolved",
		"request_id", requestID,
		"review_id", reviewID.String(),
		"decision", string(out.Case.Status),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, toResolveResponse(out))
}

// HandleBlacklist handles GET /v1/subjects/{subject_id}/blacklist.
func (h *Handler) HandleBlacklist(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subjectID, err := id.ParseSubjectID(chi.URLParam(r, "subject_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	status, err := h.service.IsBlacklisted(ctx, subjectID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, status)
}

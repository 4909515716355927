package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"skillcred/internal/decision/models"
	id "skillcred/pkg/domain"
	dErrors "skillcred/pkg/domain-errors"
	"skillcred/pkg/platform/httputil"
	"skillcred/pkg/requestcontext"
)

// Service defines the interface for decision operations.
type Service interface {
	Evaluate(ctx context.Context, in models.Intake) (*models.Decision, error)
	CompleteAssessment(ctx context.Context, in models.AssessmentResult) (*models.Decision, error)
	Latest(ctx context.Context, subjectID id.SubjectID) (*models.Decision, error)
	History(ctx context.Context, subjectID id.SubjectID) ([]*models.Decision, error)
}

// Handler wires decision endpoints to the decision service.
type Handler struct {
	service Service
	logger  *slog.Logger
}

// New constructs a decision handler with its dependencies.
func New(service Service, logger *slog.Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Register mounts decision endpoints on the router. The intake endpoints
// run behind throttle.
func (h *Handler) Register(r chi.Router, throttle func(http.Handler) http.Handler) {
	r.With(throttle).Post("/v1/evaluations", h.HandleEvaluate)
	r.With(throttle).Post("/v1/subjects/{subject_id}/assessment", h.HandleAssessment)
	r.Get("/v1/subjects/{subject_id}/decision", h.HandleLatest)
	r.Get("/v1/subjects/{subject_id}/decisions", h.HandleHistory)
}

// HandleEvaluate handles POST /v1/evaluations requests.
func (h *Handler) HandleEvaluate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)
	start := time.Now()

	// Decode and validate request
	req, ok := httputil.DecodeAndPrepare[EvaluateRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	d, err := h.service.Evaluate(ctx, req.intake())
	if err != nil {
		h.logFailure(ctx, "evaluation failed", req.parsedSubjectID, err)
		httputil.WriteError(w, err)
		return
	}

	h.logger.InfoContext(ctx, "evaluation completed",
		"request_id", requestID,
		"subject_id", d.SubjectID.String(),
		"status", string(d.Status),
		"version", d.Version,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	httputil.WriteJSON(w, http.StatusOK, toDecisionResponse(d))
}

// HandleAssessment handles POST /v1/subjects/{subject_id}/assessment.
func (h *Handler) HandleAssessment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	requestID := requestcontext.RequestID(ctx)

	subjectID, err := id.ParseSubjectID(chi.URLParam(r, "subject_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	req, ok := httputil.DecodeAndPrepare[AssessmentRequest](w, r, h.logger, ctx, requestID)
	if !ok {
		return
	}

	d, err := h.service.CompleteAssessment(ctx, models.AssessmentResult{
		SubjectID: subjectID,
		Record:    req.Record,
		Signals:   req.Signals,
	})
	if err != nil {
		h.logFailure(ctx, "assessment completion failed", subjectID, err)
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toDecisionResponse(d))
}

// HandleLatest handles GET /v1/subjects/{subject_id}/decision.
func (h *Handler) HandleLatest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subjectID, err := id.ParseSubjectID(chi.URLParam(r, "subject_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	d, err := h.service.Latest(ctx, subjectID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, toDetailResponse(d))
}

// HandleHistory handles GET /v1/subjects/{subject_id}/decisions.
func (h *Handler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	subjectID, err := id.ParseSubjectID(chi.URLParam(r, "subject_id"))
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	chain, err := h.service.History(ctx, subjectID)
	if err != nil {
		httputil.WriteError(w, err)
		return
	}
	out := HistoryResponse{Decisions: make([]DecisionDetailResponse, 0, len(chain))}
	for _, d := range chain {
		out.Decisions = append(out.Decisions, toDetailResponse(d))
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) logFailure(ctx context.Context, msg string, subjectID id.SubjectID, err error) {
	level := slog.LevelWarn
	if dErrors.HasCode(err, dErrors.CodeInternal) {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, msg,
		"request_id", requestcontext.RequestID(ctx),
		"subject_id", subjectID.String(),
		"error", err,
	)
}

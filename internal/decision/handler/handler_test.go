package handler

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"skillcred/internal/decision/handler/mocks"
	"skillcred/internal/decision/models"
	"skillcred/internal/evidence/weights"
	"skillcred/internal/scoring"
	id "skillcred/pkg/domain"
	dErrors "skillcred/pkg/domain-errors"
	"skillcred/pkg/testutil"
)

//go:generate mockgen -source=handler.go -destination=mocks/decision-mocks.go -package=mocks Service

// DecisionHandlerSuite checks request parsing and error mapping of the
// decision endpoints.
//
// Justification: insufficient evidence, pending review and rejection must
// stay distinguishable on the wire; a 422 must never collapse into a 4xx
// that reads as a rejection.
type DecisionHandlerSuite struct {
	suite.Suite
	service *mocks.MockService
	router  chi.Router
}

func TestDecisionHandlerSuite(t *testing.T) {
	suite.Run(t, new(DecisionHandlerSuite))
}

func (s *DecisionHandlerSuite) SetupTest() {
	ctrl := gomock.NewController(s.T())
	s.service = mocks.NewMockService(ctrl)
	s.router = chi.NewRouter()
	passThrough := func(next http.Handler) http.Handler { return next }
	New(s.service, slog.New(slog.NewTextHandler(io.Discard, nil))).Register(s.router, passThrough)
}

func (s *DecisionHandlerSuite) serve(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func sampleDecision(status models.Status, reason models.Reason) *models.Decision {
	return &models.Decision{
		ID:              id.NewDecisionID(),
		SubjectID:       "cand-1",
		Version:         1,
		Status:          status,
		Reason:          reason,
		SkillConfidence: 57.86,
		VerifiedSkills:  []string{"python"},
		Signal:          scoring.SignalWeak,
		Bundle:          models.Bundle{Trigger: models.TriggerEvaluation, To: status},
		BundleRef:       "blake2b256:abc",
		CreatedAt:       time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

// =============================================================================
// POST /v1/evaluations
// =============================================================================

func (s *DecisionHandlerSuite) TestEvaluate() {
	d := sampleDecision(models.StatusPendingTest, models.ReasonWeakSignal)
	s.service.EXPECT().Evaluate(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ any, in models.Intake) (*models.Decision, error) {
			s.Equal(id.SubjectID("cand-1"), in.SubjectID)
			s.Equal("job-7", in.JobID)
			s.Len(in.Records, 1)
			s.Require().NotNil(in.Protected)
			s.Equal("female", in.Protected.Gender)
			return d, nil
		})

	req := testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/evaluations", map[string]any{
		"subject_id": "cand-1",
		"job_id":     " job-7 ",
		"records":    []any{map[string]any{"source_id": "code-host", "skills": []any{}}},
		"protected":  map[string]any{"gender": "female"},
	})
	w := s.serve(req)

	s.Equal(http.StatusOK, w.Code)
	var resp DecisionResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Equal(models.StatusPendingTest, resp.Status)
	s.Equal("blake2b256:abc", resp.EvidenceBundleRef)
	s.Equal([]string{"python"}, resp.VerifiedSkills)
	s.Equal(d.ID.String(), resp.DecisionID)
	s.Contains(resp.Message, "assessment")
}

func (s *DecisionHandlerSuite) TestEvaluateZeroEvidenceIs422() {
	s.service.EXPECT().Evaluate(gomock.Any(), gomock.Any()).
		Return(nil, dErrors.Wrap(weights.ErrZeroEvidence, dErrors.CodeUnprocessable, "insufficient evidence: no evidence source was available"))

	w := s.serve(testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/evaluations",
		map[string]any{"subject_id": "cand-1", "records": []any{}}))

	s.Equal(http.StatusUnprocessableEntity, w.Code)
	s.Contains(w.Body.String(), "insufficient evidence")
	s.NotContains(w.Body.String(), "reject")
}

func (s *DecisionHandlerSuite) TestEvaluatePendingReviewConflict() {
	s.service.EXPECT().Evaluate(gomock.Any(), gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeConflict, "subject is awaiting human review"))

	w := s.serve(testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/evaluations",
		map[string]any{"subject_id": "cand-1"}))
	s.Equal(http.StatusConflict, w.Code)
}

func (s *DecisionHandlerSuite) TestEvaluateValidation() {
	records := make([]any, 21)
	for i := range records {
		records[i] = map[string]any{"source_id": "narrative"}
	}
	cases := []struct {
		name string
		body map[string]any
	}{
		{"missing subject", map[string]any{"records": []any{}}},
		{"bad subject", map[string]any{"subject_id": "cand 1"}},
		{"too many records", map[string]any{"subject_id": "cand-1", "records": records}},
		{"age out of range", map[string]any{"subject_id": "cand-1", "protected": map[string]any{"age": 400}}},
		{"unknown seniority", map[string]any{"subject_id": "cand-1", "assessment": map[string]any{
			"items": []any{}, "declared_seniority": "principal"}}},
		{"unknown field", map[string]any{"subject_id": "cand-1", "score": 100}},
	}
	for _, tc := range cases {
		s.Run(tc.name, func() {
			w := s.serve(testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/evaluations", tc.body))
			s.Equal(http.StatusBadRequest, w.Code)
		})
	}
}

// =============================================================================
// Assessment and reads
// =============================================================================

func (s *DecisionHandlerSuite) TestAssessment() {
	d := sampleDecision(models.StatusProvisional, models.ReasonAssessmentCompleted)
	s.service.EXPECT().CompleteAssessment(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ any, in models.AssessmentResult) (*models.Decision, error) {
			s.Equal(id.SubjectID("cand-1"), in.SubjectID)
			s.Len(in.Signals.Items, 1)
			s.JSONEq(`{"source_id":"live-assessment","skills":[{"name":"go","confidence":80}]}`, string(in.Record))
			return d, nil
		})

	w := s.serve(testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/subjects/cand-1/assessment", map[string]any{
		"record": map[string]any{"source_id": "live-assessment", "skills": []any{map[string]any{"name": "go", "confidence": 80}}},
		"signals": map[string]any{
			"items": []any{map[string]any{"item_id": "q1", "latency_ms": 5000, "answer": "b", "correct": true}},
		},
	}))
	s.Equal(http.StatusOK, w.Code)
	s.Contains(w.Body.String(), `"status":"PROVISIONAL"`)
}

func (s *DecisionHandlerSuite) TestAssessmentRequiresItems() {
	w := s.serve(testutil.NewJSONRequest(s.T(), http.MethodPost, "/v1/subjects/cand-1/assessment",
		map[string]any{"signals": map[string]any{"items": []any{}}}))
	s.Equal(http.StatusBadRequest, w.Code)
}

func (s *DecisionHandlerSuite) TestLatestIncludesBundle() {
	d := sampleDecision(models.StatusBlacklisted, models.ReasonBlacklisted)
	prev := id.NewDecisionID()
	d.PreviousID = &prev
	d.Bundle.Blacklist = &models.BlacklistHit{ReviewID: "r-1"}
	s.service.EXPECT().Latest(gomock.Any(), id.SubjectID("cand-1")).Return(d, nil)

	w := s.serve(testutil.NewRequest(s.T(), http.MethodGet, "/v1/subjects/cand-1/decision"))
	s.Equal(http.StatusOK, w.Code)

	var resp DecisionDetailResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Equal(prev.String(), resp.PreviousID)
	s.Equal(models.StatusBlacklisted, resp.Bundle.To)
	s.Require().NotNil(resp.Bundle.Blacklist)
	s.Contains(resp.Message, "cannot be processed automatically")
}

func (s *DecisionHandlerSuite) TestLatestNotFound() {
	s.service.EXPECT().Latest(gomock.Any(), gomock.Any()).
		Return(nil, dErrors.New(dErrors.CodeNotFound, "no decision for subject"))
	w := s.serve(testutil.NewRequest(s.T(), http.MethodGet, "/v1/subjects/cand-1/decision"))
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *DecisionHandlerSuite) TestHistory() {
	first := sampleDecision(models.StatusPendingReview, models.ReasonManipulationSuspected)
	second := sampleDecision(models.StatusVerified, models.ReasonReviewApproved)
	second.Version = 2
	second.PreviousID = &first.ID
	s.service.EXPECT().History(gomock.Any(), id.SubjectID("cand-1")).Return([]*models.Decision{first, second}, nil)

	w := s.serve(testutil.NewRequest(s.T(), http.MethodGet, "/v1/subjects/cand-1/decisions"))
	s.Equal(http.StatusOK, w.Code)
	var resp HistoryResponse
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	s.Require().Len(resp.Decisions, 2)
	s.Equal(2, resp.Decisions[1].Version)
	s.Equal(first.ID.String(), resp.Decisions[1].PreviousID)
}

func (s *DecisionHandlerSuite) TestMessagesCoverEveryReason() {
	for _, r := range []models.Reason{
		models.ReasonStrongSignal, models.ReasonWeakSignal, models.ReasonInsufficientEvidence,
		models.ReasonNoVerifiedSkills, models.ReasonManipulationSuspected, models.ReasonManipulationCritical,
		models.ReasonBlacklisted, models.ReasonAssessmentCompleted, models.ReasonReviewApproved,
		models.ReasonReviewRejected,
	} {
		s.NotEmpty(messages[r], r)
	}
	s.NotEqual(messages[models.ReasonInsufficientEvidence], messages[models.ReasonReviewRejected])
}

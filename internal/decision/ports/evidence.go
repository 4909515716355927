package ports

import (
	"context"

	"skillcred/internal/evidence/collector"
	evmodels "skillcred/internal/evidence/models"
	"skillcred/internal/integrity"
	id "skillcred/pkg/domain"
)

//go:generate mockgen -source=evidence.go -destination=mocks/evidence_mock.go -package=mocks

// EvidenceCollector fetches per-source extractions concurrently.
// Implemented by collector.Collector.
type EvidenceCollector interface {
	Collect(ctx context.Context, subjectID id.SubjectID, skip ...evmodels.SourceID) (collector.Result, error)
}

// Normalizer turns raw extractions into claims. It never fails: bad
// sources come back as unavailable.
type Normalizer interface {
	Normalize(ctx context.Context, extractions []evmodels.Extraction) evmodels.NormalizedEvidence
}

// Detector classifies manipulation risk.
type Detector interface {
	Analyze(ctx context.Context, in integrity.Input) integrity.Report
}

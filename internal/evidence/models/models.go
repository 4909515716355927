// Package models defines the evidence vocabulary shared by the normalizer,
// the weight allocator, the integrity detector and the scorer.
package models

import (
	"errors"
	"slices"
)

// Taxonomy of recoverable evidence failures. Neither escapes the normalizer:
// both degrade the affected source to unavailable.
var (
	ErrSourceUnavailable = errors.New("evidence source unavailable")
	ErrMalformedEvidence = errors.New("malformed evidence")
)

// SourceID identifies an evidence source.
type SourceID string

const (
	SourceCodeHost          SourceID = "code-host"
	SourceNarrative         SourceID = "narrative"
	SourceNetworkProfile    SourceID = "network-profile"
	SourceCompetitiveCoding SourceID = "competitive-coding"
	SourceLiveAssessment    SourceID = "live-assessment"
)

// AllSources lists every known source in presentation order.
var AllSources = []SourceID{
	SourceCodeHost,
	SourceNarrative,
	SourceNetworkProfile,
	SourceCompetitiveCoding,
	SourceLiveAssessment,
}

// ParseSourceID reports whether s names a known source.
func ParseSourceID(s string) (SourceID, bool) {
	id := SourceID(s)
	return id, slices.Contains(AllSources, id)
}

// IsCodeEvidence reports whether the source is backed by inspectable work
// product. Only these sources can verify a skill.
func (s SourceID) IsCodeEvidence() bool {
	return s == SourceCodeHost || s == SourceCompetitiveCoding
}

func (s SourceID) String() string { return string(s) }

// EvidenceSource is one entry of the configured source table.
type EvidenceSource struct {
	ID         SourceID `json:"id"`
	BaseWeight float64  `json:"base_weight"`
	Available  bool     `json:"available"`
}

// ClaimKind records whether a source attests a skill or merely asserts it.
type ClaimKind string

const (
	ClaimVerified ClaimKind = "verified"
	ClaimClaimed  ClaimKind = "claimed"
)

// SkillClaim is one source's statement about one skill. Claims are produced
// once per ingestion and never mutated.
type SkillClaim struct {
	Skill       string    `json:"skill"`
	DisplayName string    `json:"display_name"`
	Source      SourceID  `json:"source"`
	Kind        ClaimKind `json:"kind"`
	Confidence  float64   `json:"confidence"`
	Facts       []string  `json:"facts,omitempty"`
}

// Extraction is one raw per-source record as produced by an upstream
// extractor. Source is the fetcher's hint and may be empty for intake
// records, in which case the payload's own source_id is used.
type Extraction struct {
	Source  SourceID
	Payload []byte
}

// NarrativeText is the text of one source kept for the content lane.
// Rendered is only set when the extractor supplied a rendered view.
type NarrativeText struct {
	Source      SourceID
	Full        string
	Rendered    string
	HasRendered bool
}

// UnavailableSource records why a source did not contribute.
type UnavailableSource struct {
	Source SourceID `json:"source,omitempty"`
	Reason string   `json:"reason"`
}

// NormalizedEvidence is the normalizer's output for one evaluation.
type NormalizedEvidence struct {
	Claims      []SkillClaim          `json:"claims"`
	Available   []SourceID            `json:"available"`
	Unavailable []UnavailableSource   `json:"unavailable,omitempty"`
	Texts       []NarrativeText       `json:"-"`
	Components  []ComponentAssessment `json:"-"`
	// Redacted lists protected field names dropped from records.
	Redacted []string `json:"-"`
}

// IsAvailable reports whether src contributed claims.
func (n NormalizedEvidence) IsAvailable(src SourceID) bool {
	return slices.Contains(n.Available, src)
}

// ComponentAssessment is the uniform output every scoring or extracting
// component exposes so the integrity detector can audit it without knowing
// what produced it.
type ComponentAssessment struct {
	Component string             `json:"component"`
	Scores    map[string]float64 `json:"scores"`
	Rationale string             `json:"rationale,omitempty"`
}

// Seniority is the candidate's self-declared level.
type Seniority string

const (
	SeniorityJunior Seniority = "junior"
	SeniorityMid    Seniority = "mid"
	SenioritySenior Seniority = "senior"
	SeniorityStaff  Seniority = "staff"
)

// AssessmentItem is one answered item of a live assessment.
type AssessmentItem struct {
	ItemID    string `json:"item_id"`
	LatencyMs int64  `json:"latency_ms"`
	Answer    string `json:"answer"`
	Correct   bool   `json:"correct"`
}

// AssessmentSignals are the behavioral observations of a live assessment.
type AssessmentSignals struct {
	Items             []AssessmentItem `json:"items"`
	DeclaredSeniority Seniority        `json:"declared_seniority,omitempty"`
}

// Reasons a source is recorded as unavailable.
const (
	ReasonEmptyPayload    = "empty_payload"
	ReasonInvalidJSON     = "invalid_json"
	ReasonUnknownSource   = "unknown_source"
	ReasonSchemaViolation = "schema_violation"
	ReasonSourceMismatch  = "source_mismatch"
	ReasonDuplicateRecord = "duplicate_record"
	ReasonFetchFailed     = "fetch_failed"
	ReasonFetchTimeout    = "fetch_timeout"
)

package integrity

import (
	"context"
	"errors"
	"fmt"
	"slices"
)

// ErrClassifierUnavailable marks a classifier call that produced no verdict.
// The detector records it as inconclusive, never as clean.
var ErrClassifierUnavailable = errors.New("manipulation classifier unavailable")

// Severity is ordered: every level is more restrictive than the one before.
type Severity int

const (
	SeverityNone Severity = iota
	SeverityLow
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

var severityNames = []string{"none", "low", "medium", "high", "critical"}

func (s Severity) String() string {
	if s < SeverityNone || s > SeverityCritical {
		return fmt.Sprintf("severity(%d)", int(s))
	}
	return severityNames[s]
}

// Raise returns the next level, capped at critical.
func (s Severity) Raise() Severity {
	if s >= SeverityCritical {
		return SeverityCritical
	}
	return s + 1
}

func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(b []byte) error {
	parsed, err := ParseSeverity(string(b))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

func ParseSeverity(v string) (Severity, error) {
	i := slices.Index(severityNames, v)
	if i < 0 {
		return SeverityNone, fmt.Errorf("unknown severity %q", v)
	}
	return Severity(i), nil
}

// Action is the recommendation attached to a report.
type Action string

const (
	ActionProceed Action = "proceed"
	ActionFlag    Action = "flag"
	ActionPause   Action = "pause"
	ActionBlock   Action = "block"
)

// ActionFor is the fixed policy table.
func ActionFor(s Severity) Action {
	switch {
	case s >= SeverityHigh:
		return ActionBlock
	case s == SeverityMedium:
		return ActionPause
	case s == SeverityLow:
		return ActionFlag
	default:
		return ActionProceed
	}
}

type Lane string

const (
	LaneContent    Lane = "content"
	LaneBehavioral Lane = "behavioral"
	LaneComponent  Lane = "component_audit"
)

type AnomalyType string

const (
	AnomalyHiddenContent          AnomalyType = "hidden_content"
	AnomalyHiddenKeywords         AnomalyType = "hidden_instruction_keywords"
	AnomalyInvisibleCharacters    AnomalyType = "invisible_characters"
	AnomalyRoleOverride           AnomalyType = "role_override"
	AnomalyDelimiterToken         AnomalyType = "delimiter_token"
	AnomalyScoreDemand            AnomalyType = "score_demand"
	AnomalyInstructionDirective   AnomalyType = "instruction_directive"
	AnomalySemanticInjection      AnomalyType = "semantic_injection"
	AnomalyClassifierInconclusive AnomalyType = "classifier_inconclusive"
	AnomalySuperhumanLatency      AnomalyType = "superhuman_latency"
	AnomalyUniformAnswers         AnomalyType = "uniform_answers"
	AnomalyAlternatingAnswers     AnomalyType = "alternating_answers"
	AnomalySeniorityMismatch      AnomalyType = "seniority_mismatch"
	AnomalyScoreOutOfRange        AnomalyType = "score_out_of_range"
	AnomalyRationaleInjectionEcho AnomalyType = "rationale_injection_echo"
)

// Anomaly is one matched detection rule.
type Anomaly struct {
	Type     AnomalyType `json:"type"`
	Lane     Lane        `json:"lane"`
	Severity Severity    `json:"severity"`
	Source   string      `json:"source,omitempty"`
	Count    int         `json:"count,omitempty"`
	Detail   string      `json:"detail,omitempty"`
}

type ClassifierStatus string

const (
	ClassifierNotRun       ClassifierStatus = "not_run"
	ClassifierClean        ClassifierStatus = "clean"
	ClassifierDetected     ClassifierStatus = "detected"
	ClassifierInconclusive ClassifierStatus = "inconclusive"
)

// Report is the detector's output for one evaluation.
type Report struct {
	Severity   Severity          `json:"severity"`
	Action     Action            `json:"action"`
	Anomalies  []Anomaly         `json:"anomalies"`
	Lanes      map[Lane]Severity `json:"lanes"`
	Classifier ClassifierStatus  `json:"classifier"`
}

// Types lists the distinct anomaly types in first-seen order.
func (r Report) Types() []AnomalyType {
	var out []AnomalyType
	for _, a := range r.Anomalies {
		if !slices.Contains(out, a.Type) {
			out = append(out, a.Type)
		}
	}
	return out
}

// Has reports whether any anomaly of type t was matched.
func (r Report) Has(t AnomalyType) bool {
	return slices.ContainsFunc(r.Anomalies, func(a Anomaly) bool { return a.Type == t })
}

// Verdict is the semantic classifier's answer.
type Verdict struct {
	Detected        bool     `json:"detected"`
	AttackType      string   `json:"attack_type,omitempty"`
	MatchedSegments []string `json:"matched_segments,omitempty"`
}

// Classifier detects paraphrased or masked injection attempts in free text.
type Classifier interface {
	Classify(ctx context.Context, text string) (Verdict, error)
}

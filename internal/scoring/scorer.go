// Package scoring fuses normalized claims and renormalized trust weights
// into per-skill confidence, a verified-skill set and a signal strength.
//
// Only code-evidence sources can verify a skill. Other sources add weight to
// a skill's confidence but never move it into the verified set, and the
// aggregate confidence is taken over verified skills only.
package scoring

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"strings"

	"skillcred/internal/evidence/models"
	"skillcred/internal/evidence/weights"
	"skillcred/internal/platform/config"
)

type SignalStrength string

const (
	SignalStrong SignalStrength = "strong"
	SignalWeak   SignalStrength = "weak"
	SignalNone   SignalStrength = "none"
)

// SkillRecord aggregates every claim about one skill.
type SkillRecord struct {
	Skill       string            `json:"skill"`
	DisplayName string            `json:"display_name"`
	Verified    bool              `json:"verified"`
	Confidence  float64           `json:"confidence"`
	Sources     []models.SourceID `json:"sources"`
	Facts       []string          `json:"facts,omitempty"`
}

// Result is the scorer output for one evaluation.
type Result struct {
	Skills          []SkillRecord   `json:"skills"`
	Verified        []string        `json:"verified_skills"`
	SkillConfidence float64         `json:"skill_confidence"`
	Signal          SignalStrength  `json:"signal_strength"`
	Weights         weights.Weights `json:"weights"`
}

// Skill returns the record for a canonical skill name.
func (r Result) Skill(name string) (SkillRecord, bool) {
	i := slices.IndexFunc(r.Skills, func(s SkillRecord) bool { return s.Skill == name })
	if i < 0 {
		return SkillRecord{}, false
	}
	return r.Skills[i], true
}

// Policy holds the scoring thresholds.
type Policy struct {
	MinEvidentiaryConfidence float64
	StrongThreshold          float64
	WeakThreshold            float64
}

func DefaultPolicy() Policy {
	return Policy{MinEvidentiaryConfidence: 50, StrongThreshold: 70, WeakThreshold: 40}
}

func PolicyFromConfig(c config.Scoring) Policy {
	return Policy{
		MinEvidentiaryConfidence: c.MinEvidentiaryConfidence,
		StrongThreshold:          c.StrongThreshold,
		WeakThreshold:            c.WeakThreshold,
	}
}

type Scorer struct {
	table  weights.Table
	policy Policy
}

type Option func(*Scorer)

func WithPolicy(p Policy) Option {
	return func(s *Scorer) {
		s.policy = p
	}
}

func New(table weights.Table, opts ...Option) *Scorer {
	s := &Scorer{table: table, policy: DefaultPolicy()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Scorer) Policy() Policy { return s.policy }

// Score fuses ev. It fails with weights.ErrZeroEvidence when no available
// source carries weight.
func (s *Scorer) Score(ev models.NormalizedEvidence) (Result, error) {
	w, err := s.table.Renormalize(ev.Available)
	if err != nil {
		return Result{}, fmt.Errorf("renormalize weights: %w", err)
	}

	bySkill := map[string]*SkillRecord{}
	var order []string
	for _, c := range ev.Claims {
		rec, ok := bySkill[c.Skill]
		if !ok {
			rec = &SkillRecord{Skill: c.Skill, DisplayName: c.DisplayName}
			bySkill[c.Skill] = rec
			order = append(order, c.Skill)
		}
		rec.Confidence += w.Of(c.Source) * c.Confidence
		if !slices.Contains(rec.Sources, c.Source) {
			rec.Sources = append(rec.Sources, c.Source)
		}
		for _, f := range c.Facts {
			if !slices.Contains(rec.Facts, f) {
				rec.Facts = append(rec.Facts, f)
			}
		}
		if s.verifies(c) {
			rec.Verified = true
		}
	}

	res := Result{Weights: w, Skills: make([]SkillRecord, 0, len(order))}
	sort.Strings(order)
	for _, name := range order {
		rec := bySkill[name]
		rec.Confidence = clamp(rec.Confidence)
		res.Skills = append(res.Skills, *rec)
	}
	s.aggregate(&res)
	return res, nil
}

// Rescore fuses ev, which must include the evidence prev was computed from,
// and never lowers a skill's confidence below prev. A skill only stays
// verified or becomes verified through code evidence in ev.
func (s *Scorer) Rescore(prev Result, ev models.NormalizedEvidence) (Result, error) {
	next, err := s.Score(ev)
	if err != nil {
		return Result{}, err
	}
	for i := range next.Skills {
		if old, ok := prev.Skill(next.Skills[i].Skill); ok {
			next.Skills[i].Confidence = math.Max(next.Skills[i].Confidence, old.Confidence)
		}
	}
	for _, old := range prev.Skills {
		if _, ok := next.Skill(old.Skill); !ok {
			next.Skills = append(next.Skills, old)
		}
	}
	sort.Slice(next.Skills, func(i, j int) bool { return next.Skills[i].Skill < next.Skills[j].Skill })
	s.aggregate(&next)
	return next, nil
}

// Classify maps an aggregate confidence to a signal strength.
func (s *Scorer) Classify(confidence float64) SignalStrength {
	switch {
	case confidence >= s.policy.StrongThreshold:
		return SignalStrong
	case confidence >= s.policy.WeakThreshold:
		return SignalWeak
	default:
		return SignalNone
	}
}

func (s *Scorer) verifies(c models.SkillClaim) bool {
	return c.Source.IsCodeEvidence() &&
		c.Kind == models.ClaimVerified &&
		c.Confidence >= s.policy.MinEvidentiaryConfidence
}

func (s *Scorer) aggregate(res *Result) {
	res.Verified = res.Verified[:0]
	total := 0.0
	for _, rec := range res.Skills {
		if rec.Verified {
			res.Verified = append(res.Verified, rec.Skill)
			total += rec.Confidence
		}
	}
	res.SkillConfidence = 0
	if len(res.Verified) > 0 {
		res.SkillConfidence = total / float64(len(res.Verified))
	}
	if res.Verified == nil {
		res.Verified = []string{}
	}
	res.Signal = s.Classify(res.SkillConfidence)
}

// Assessment exposes the result in the uniform component shape audited by
// the integrity detector.
func (r Result) Assessment() models.ComponentAssessment {
	scores := make(map[string]float64, len(r.Skills))
	for _, rec := range r.Skills {
		scores[rec.Skill] = rec.Confidence
	}
	return models.ComponentAssessment{
		Component: "scorer",
		Scores:    scores,
		Rationale: fmt.Sprintf("verified=[%s] skill_confidence=%.2f signal=%s",
			strings.Join(r.Verified, ","), r.SkillConfidence, r.Signal),
	}
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Min(100, math.Max(0, v))
}

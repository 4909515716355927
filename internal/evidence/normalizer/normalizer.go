// Package normalizer turns raw per-source extractions into canonical skill
// claims. A malformed or unknown record never fails the batch: the source is
// recorded as unavailable with a reason and the rest proceed.
package normalizer

import (
	"bytes"
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"log/slog"
	"slices"
	"sort"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/santhosh-tekuri/jsonschema/v5"

	"skillcred/internal/evidence/metrics"
	"skillcred/internal/evidence/models"
	pstrings "skillcred/pkg/platform/strings"
)

//go:embed intake.schema.json
var intakeSchema string

const schemaURL = "https://skillcred.schemas.local/evidence/intake.schema.json"

// protectedFields never enter the scoring path. Records carrying them are
// still accepted; the fields are dropped and only their names reported.
var protectedFields = []string{
	"name", "full_name", "gender", "age", "date_of_birth", "birth_date",
	"institution", "education", "school", "university",
}

type intakeRecord struct {
	SourceID           string        `json:"source_id"`
	Skills             []intakeSkill `json:"skills"`
	RawText            *string       `json:"raw_text"`
	RenderedText       *string       `json:"rendered_text"`
	ExtractorRationale string        `json:"extractor_rationale"`
}

type intakeSkill struct {
	Name       string   `json:"name"`
	Confidence *float64 `json:"confidence"`
	Facts      []string `json:"facts"`
	Verified   *bool    `json:"verified"`
}

// contentElements are the elements a browser never shows. The strict
// policy drops their content; the full view keeps it.
var contentElements = []string{
	"frameset", "iframe", "noembed", "noframes", "noscript",
	"nostyle", "object", "script", "style", "title",
}

// Normalizer is safe for concurrent use.
type Normalizer struct {
	schema    *jsonschema.Schema
	sanitizer *bluemonday.Policy
	visible   *bluemonday.Policy
	logger    *slog.Logger
	metrics   *metrics.Metrics
}

type Option func(*Normalizer)

func WithLogger(logger *slog.Logger) Option {
	return func(n *Normalizer) {
		n.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(n *Normalizer) {
		n.metrics = m
	}
}

// New compiles the intake schema.
func New(opts ...Option) (*Normalizer, error) {
	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(schemaURL, strings.NewReader(intakeSchema)); err != nil {
		return nil, fmt.Errorf("intake schema load failed: %w", err)
	}
	schema, err := c.Compile(schemaURL)
	if err != nil {
		return nil, fmt.Errorf("intake schema compile failed: %w", err)
	}

	n := &Normalizer{
		schema:    schema,
		sanitizer: bluemonday.StrictPolicy().AllowElementsContent(contentElements...),
		visible:   bluemonday.StrictPolicy(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Normalize converts extractions into claims and records source availability.
func (n *Normalizer) Normalize(ctx context.Context, extractions []models.Extraction) models.NormalizedEvidence {
	var out models.NormalizedEvidence
	seen := make(map[models.SourceID]bool, len(extractions))
	redacted := map[string]bool{}

	for _, ex := range extractions {
		rec, fields, err := n.decode(ex)
		if err != nil {
			n.unavailable(ctx, &out, ex.Source, err)
			continue
		}
		src := models.SourceID(rec.SourceID)
		if seen[src] {
			n.unavailable(ctx, &out, src, reasonErr(models.ReasonDuplicateRecord, "second record for source ignored"))
			continue
		}
		seen[src] = true

		for _, f := range protectedFields {
			if _, ok := fields[f]; ok {
				redacted[f] = true
			}
		}

		claims := n.claims(src, rec.Skills)
		out.Claims = append(out.Claims, claims...)
		out.Available = append(out.Available, src)
		if text, ok := n.text(src, rec); ok {
			out.Texts = append(out.Texts, text)
		}
		out.Components = append(out.Components, component(src, claims, rec.ExtractorRationale))
	}

	sort.Slice(out.Available, func(i, j int) bool {
		return sourceIndex(out.Available[i]) < sourceIndex(out.Available[j])
	})
	for f := range redacted {
		out.Redacted = append(out.Redacted, f)
	}
	sort.Strings(out.Redacted)
	return out
}

// reasonError carries an unavailability reason code.
type reasonError struct {
	reason string
	detail string
}

func (e *reasonError) Error() string {
	if e.detail == "" {
		return e.reason
	}
	return e.reason + ": " + e.detail
}

func (e *reasonError) Unwrap() error { return models.ErrMalformedEvidence }

func reasonErr(reason, detail string) error {
	return &reasonError{reason: reason, detail: detail}
}

// decode validates one extraction and returns the typed record along with
// its top-level field set.
func (n *Normalizer) decode(ex models.Extraction) (*intakeRecord, map[string]json.RawMessage, error) {
	payload := bytes.TrimSpace(ex.Payload)
	if len(payload) == 0 {
		return nil, nil, reasonErr(models.ReasonEmptyPayload, "")
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return nil, nil, reasonErr(models.ReasonInvalidJSON, err.Error())
	}
	var sourceID string
	if raw, ok := fields["source_id"]; ok {
		_ = json.Unmarshal(raw, &sourceID)
	}
	if _, ok := models.ParseSourceID(sourceID); !ok {
		return nil, nil, reasonErr(models.ReasonUnknownSource, fmt.Sprintf("source_id %q", sourceID))
	}
	if ex.Source != "" && string(ex.Source) != sourceID {
		return nil, nil, reasonErr(models.ReasonSourceMismatch,
			fmt.Sprintf("fetched as %s but declares %s", ex.Source, sourceID))
	}

	var doc any
	if err := json.Unmarshal(payload, &doc); err != nil {
		return nil, nil, reasonErr(models.ReasonInvalidJSON, err.Error())
	}
	if err := n.schema.Validate(doc); err != nil {
		detail := err.Error()
		var ve *jsonschema.ValidationError
		if errors.As(err, &ve) {
			detail = firstLeaf(ve)
		}
		return nil, nil, reasonErr(models.ReasonSchemaViolation, detail)
	}

	var rec intakeRecord
	if err := json.Unmarshal(payload, &rec); err != nil {
		return nil, nil, reasonErr(models.ReasonInvalidJSON, err.Error())
	}
	return &rec, fields, nil
}

func firstLeaf(ve *jsonschema.ValidationError) string {
	for len(ve.Causes) > 0 {
		ve = ve.Causes[0]
	}
	return ve.InstanceLocation + ": " + ve.Message
}

// claims builds one claim per distinct canonical skill name. The first
// occurrence wins; facts from later duplicates are merged in.
func (n *Normalizer) claims(src models.SourceID, skills []intakeSkill) []models.SkillClaim {
	out := make([]models.SkillClaim, 0, len(skills))
	index := make(map[string]int, len(skills))
	for _, s := range skills {
		key := pstrings.Canonical(s.Name)
		if key == "" {
			continue
		}
		facts := n.cleanFacts(s.Facts)
		if i, ok := index[key]; ok {
			out[i].Facts = mergeFacts(out[i].Facts, facts)
			continue
		}

		kind := models.ClaimClaimed
		if src.IsCodeEvidence() && (s.Verified == nil || *s.Verified) {
			kind = models.ClaimVerified
		}
		confidence := 0.0
		if s.Confidence != nil {
			confidence = *s.Confidence
		}
		index[key] = len(out)
		out = append(out, models.SkillClaim{
			Skill:       key,
			DisplayName: strings.TrimSpace(s.Name),
			Source:      src,
			Kind:        kind,
			Confidence:  confidence,
			Facts:       facts,
		})
	}

	verified := 0
	for _, c := range out {
		if c.Kind == models.ClaimVerified {
			verified++
		}
	}
	n.metrics.AddClaims(string(src), string(models.ClaimVerified), verified)
	n.metrics.AddClaims(string(src), string(models.ClaimClaimed), len(out)-verified)
	return out
}

func (n *Normalizer) cleanFacts(facts []string) []string {
	out := make([]string, 0, len(facts))
	for _, f := range facts {
		if f = strings.TrimSpace(n.sanitize(f)); f != "" {
			out = append(out, f)
		}
	}
	return out
}

func mergeFacts(a, b []string) []string {
	for _, f := range b {
		if !slices.Contains(a, f) {
			a = append(a, f)
		}
	}
	return a
}

func (n *Normalizer) text(src models.SourceID, rec *intakeRecord) (models.NarrativeText, bool) {
	if rec.RawText == nil && rec.RenderedText == nil {
		return models.NarrativeText{}, false
	}
	t := models.NarrativeText{Source: src}
	if rec.RawText != nil {
		t.Full = n.sanitize(*rec.RawText)
		// Without an extractor view, what markup hides is still hidden.
		if rec.RenderedText == nil {
			if vis := html.UnescapeString(n.visible.Sanitize(*rec.RawText)); vis != t.Full {
				t.Rendered = vis
				t.HasRendered = true
			}
		}
	}
	if rec.RenderedText != nil {
		t.Rendered = n.sanitize(*rec.RenderedText)
		t.HasRendered = true
		if rec.RawText == nil {
			t.Full = t.Rendered
		}
	}
	return t, true
}

// sanitize strips markup and decodes the entities the strict policy emits,
// leaving plain text for pattern matching. Text inside non-rendered
// elements is kept.
func (n *Normalizer) sanitize(s string) string {
	return html.UnescapeString(n.sanitizer.Sanitize(s))
}

func component(src models.SourceID, claims []models.SkillClaim, rationale string) models.ComponentAssessment {
	scores := make(map[string]float64, len(claims))
	for _, c := range claims {
		scores[c.Skill] = c.Confidence
	}
	return models.ComponentAssessment{
		Component: "extractor:" + string(src),
		Scores:    scores,
		Rationale: rationale,
	}
}

func (n *Normalizer) unavailable(ctx context.Context, out *models.NormalizedEvidence, src models.SourceID, err error) {
	reason := err.Error()
	var re *reasonError
	if errors.As(err, &re) {
		reason = re.reason
	}
	out.Unavailable = append(out.Unavailable, models.UnavailableSource{Source: src, Reason: reason})
	n.metrics.IncSourceUnavailable(string(src), reason)
	n.logger.WarnContext(ctx, "evidence source unavailable",
		"source", src,
		"reason", reason,
		"error", err,
	)
}

func sourceIndex(s models.SourceID) int {
	return slices.Index(models.AllSources, s)
}

package integrity

import (
	"regexp"
	"strings"
	"unicode"

	"skillcred/internal/evidence/models"
	pstrings "skillcred/pkg/platform/strings"
)

// suspiciousStems are prefixes of words that steer an automated screener.
var suspiciousStems = []string{
	"ignor", "instruct", "prompt", "system", "overrid", "disregard",
	"score", "rank", "hire", "recommend", "approv", "assistant",
	"qualif", "verif", "bypass",
}

type injectionRule struct {
	kind     AnomalyType
	severity Severity
	re       *regexp.Regexp
}

// injectionRules run against canonical text (NFKC, lowercased, whitespace
// collapsed, format characters removed).
var injectionRules = []injectionRule{
	{AnomalyRoleOverride, SeverityCritical, regexp.MustCompile(
		`\b(ignore|disregard|forget|override)\b.{0,40}\b(previous|prior|above|earlier|all|any)\b.{0,40}\b(instructions?|prompts?|rules|directions|guidelines)\b`)},
	{AnomalyRoleOverride, SeverityCritical, regexp.MustCompile(
		`\byou are (now|no longer)\b.{0,60}\b(assistant|model|ai|recruiter|evaluator|screener|system)\b`)},
	{AnomalyRoleOverride, SeverityCritical, regexp.MustCompile(
		`\bnew (system )?instructions?\s*:`)},
	{AnomalyDelimiterToken, SeverityHigh, regexp.MustCompile(
		`<\|\s*(system|im_start|im_end|endoftext|user|assistant)\s*\|>`)},
	{AnomalyDelimiterToken, SeverityHigh, regexp.MustCompile(
		`\[/?(inst|system|sys)\]|<</?sys>>|#{3,}\s*(system|instruction)|={3,}\s*end\b`)},
	{AnomalyScoreDemand, SeverityHigh, regexp.MustCompile(
		`\b(rate|score|rank|grade|mark)\b.{0,30}\b(me|this candidate|the candidate|this applicant)\b.{0,30}(10/10|100|highest|top|first|maximum|perfect)`)},
	{AnomalyScoreDemand, SeverityHigh, regexp.MustCompile(
		`\b(must|should|always)\b.{0,20}\b(hire|recommend|approve|shortlist|select|pass)\b.{0,20}\b(me|this candidate|the candidate|this applicant)\b`)},
	{AnomalyInstructionDirective, SeverityMedium, regexp.MustCompile(
		`\b(note|message|attention|instructions?) (to|for) (the )?(ai|llm|model|assistant|screener|parser|recruiting (system|bot|tool))\b`)},
	{AnomalyInstructionDirective, SeverityMedium, regexp.MustCompile(
		`\bif you are an? (ai|llm|language model|assistant|automated)\b`)},
	{AnomalyInstructionDirective, SeverityMedium, regexp.MustCompile(
		`\bdo not (mention|reveal|disclose|tell)\b.{0,40}\b(this|these|instructions?|prompt)\b`)},
}

// matchInjection counts pattern hits per rule kind on canonical text.
func matchInjection(canonical string) []Anomaly {
	type hit struct {
		severity Severity
		count    int
	}
	hits := map[AnomalyType]*hit{}
	var order []AnomalyType
	for _, rule := range injectionRules {
		n := len(rule.re.FindAllStringIndex(canonical, -1))
		if n == 0 {
			continue
		}
		h, ok := hits[rule.kind]
		if !ok {
			h = &hit{}
			hits[rule.kind] = h
			order = append(order, rule.kind)
		}
		h.count += n
		h.severity = max(h.severity, rule.severity)
	}
	out := make([]Anomaly, 0, len(order))
	for _, kind := range order {
		out = append(out, Anomaly{Type: kind, Severity: hits[kind].severity, Count: hits[kind].count})
	}
	return out
}

// tokenize splits canonical text into word tokens.
func tokenize(s string) []string {
	return strings.FieldsFunc(pstrings.Canonical(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// hiddenTokens returns tokens of full that have no counterpart in rendered,
// honoring multiplicity.
func hiddenTokens(full, rendered string) []string {
	visible := map[string]int{}
	for _, tok := range tokenize(rendered) {
		visible[tok]++
	}
	var hidden []string
	for _, tok := range tokenize(full) {
		if visible[tok] > 0 {
			visible[tok]--
			continue
		}
		hidden = append(hidden, tok)
	}
	return hidden
}

func countStems(tokens []string) int {
	n := 0
	for _, tok := range tokens {
		for _, stem := range suspiciousStems {
			if strings.HasPrefix(tok, stem) {
				n++
				break
			}
		}
	}
	return n
}

func countInvisible(s string) int {
	n := 0
	for _, r := range s {
		if unicode.Is(unicode.Cf, r) {
			n++
		}
	}
	return n
}

// scanText runs the deterministic content rules over one narrative text.
func scanText(t models.NarrativeText, th Thresholds) []Anomaly {
	var out []Anomaly
	src := string(t.Source)

	if t.HasRendered {
		hidden := hiddenTokens(t.Full, t.Rendered)
		stems := countStems(hidden)
		switch {
		case stems > th.SuspiciousStemCritical:
			out = append(out, Anomaly{Type: AnomalyHiddenKeywords, Severity: SeverityCritical, Count: stems})
		case stems >= th.SuspiciousStemHigh:
			out = append(out, Anomaly{Type: AnomalyHiddenKeywords, Severity: SeverityHigh, Count: stems})
		}
		switch {
		case len(hidden) >= th.HiddenTokenMedium:
			out = append(out, Anomaly{Type: AnomalyHiddenContent, Severity: SeverityMedium, Count: len(hidden)})
		case len(hidden) >= th.HiddenTokenLow:
			out = append(out, Anomaly{Type: AnomalyHiddenContent, Severity: SeverityLow, Count: len(hidden)})
		}
	}

	switch n := countInvisible(t.Full); {
	case n >= th.InvisibleMedium:
		out = append(out, Anomaly{Type: AnomalyInvisibleCharacters, Severity: SeverityMedium, Count: n})
	case n >= th.InvisibleLow:
		out = append(out, Anomaly{Type: AnomalyInvisibleCharacters, Severity: SeverityLow, Count: n})
	}

	out = append(out, matchInjection(pstrings.Canonical(t.Full))...)
	for i := range out {
		out[i].Lane = LaneContent
		out[i].Source = src
	}
	return out
}

// Package gemini implements the manipulation classifier on the Gemini API.
package gemini

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"

	"skillcred/internal/integrity"
)

const (
	defaultModel   = "gemini-2.5-flash"
	maxPromptChars = 60_000
)

//go:embed prompt.md
var promptTemplate string

type contentGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// Classifier asks a Gemini model whether text carries an injection attempt.
type Classifier struct {
	generator contentGenerator
}

// New creates a Classifier backed by the Gemini API.
func New(ctx context.Context, apiKey, model string) (*Classifier, error) {
	gen, err := newGenerator(ctx, apiKey, model)
	if err != nil {
		return nil, err
	}
	return &Classifier{generator: gen}, nil
}

func (c *Classifier) Classify(ctx context.Context, text string) (integrity.Verdict, error) {
	raw, err := c.generator.GenerateContent(ctx, buildPrompt(text))
	if err != nil {
		return integrity.Verdict{}, err
	}
	return parseResponse(raw)
}

func buildPrompt(text string) string {
	if r := []rune(text); len(r) > maxPromptChars {
		text = string(r[:maxPromptChars])
	}
	return strings.ReplaceAll(promptTemplate, "{{TEXT}}", text)
}

type response struct {
	Detected        *bool    `json:"detected"`
	AttackType      string   `json:"attack_type"`
	MatchedSegments []string `json:"matched_segments"`
}

func parseResponse(raw string) (integrity.Verdict, error) {
	var resp response
	if err := json.Unmarshal([]byte(extractJSON(raw)), &resp); err != nil {
		return integrity.Verdict{}, fmt.Errorf("parse gemini response: %w", err)
	}
	if resp.Detected == nil {
		return integrity.Verdict{}, errors.New("gemini response missing detected field")
	}
	return integrity.Verdict{
		Detected:        *resp.Detected,
		AttackType:      strings.TrimSpace(resp.AttackType),
		MatchedSegments: resp.MatchedSegments,
	}, nil
}

func extractJSON(raw string) string {
	raw = strings.TrimSpace(raw)
	if strings.HasPrefix(raw, "```") {
		raw = strings.TrimPrefix(raw, "```json")
		raw = strings.TrimPrefix(raw, "```")
		raw = strings.TrimSpace(raw)
		if idx := strings.LastIndex(raw, "```"); idx != -1 {
			raw = raw[:idx]
		}
	}
	raw = strings.Trim(raw, "`")
	return strings.TrimSpace(raw)
}

// generator wraps the GenAI client for plain prompt/response calls.
type generator struct {
	client    *genai.Client
	modelName string
}

func newGenerator(ctx context.Context, apiKey, model string) (*generator, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return nil, errors.New("gemini api key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	if model = strings.TrimSpace(model); model == "" {
		model = defaultModel
	}
	return &generator{client: client, modelName: model}, nil
}

func (g *generator) GenerateContent(ctx context.Context, prompt string) (string, error) {
	temperature := float32(0)
	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      &temperature,
	}
	resp, err := g.client.Models.GenerateContent(ctx, g.modelName, genai.Text(prompt), cfg)
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}

	var b strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part == nil || strings.TrimSpace(part.Text) == "" {
				continue
			}
			if b.Len() > 0 {
				b.WriteString("\n")
			}
			b.WriteString(strings.TrimSpace(part.Text))
		}
	}
	out := strings.TrimSpace(b.String())
	if out == "" {
		return "", errors.New("gemini api returned empty response")
	}
	return out, nil
}

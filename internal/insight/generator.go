package insight

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/dvloznov/finsight/internal/tenant"
)

// TextGenerator is the language-model capability: given a prompt, return
// text, fallibly, within the caller's deadline. It is injected at
// construction; nothing in this package reaches for a global client.
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string, temperature float32) (string, error)
}

// SQLGenerator turns a classified question into one candidate query.
// The candidate is untrusted: only the guard decides whether it runs.
type SQLGenerator struct {
	llm TextGenerator
}

func NewSQLGenerator(llm TextGenerator) *SQLGenerator {
	return &SQLGenerator{llm: llm}
}

// sqlEnvelope is the single-key JSON the model is instructed to return.
type sqlEnvelope struct {
	SQL string `json:"sql"`
}

// Generate asks the model for a query with deterministic sampling.
// If the response is not the expected JSON envelope, the raw cleaned
// text is returned as the candidate so the guard makes the final call
// rather than this component second-guessing it.
func (g *SQLGenerator) Generate(ctx context.Context, question string, tc tenant.Context, intent Intent) (string, error) {
	prompt := buildSQLPrompt(question, tc, intent)

	raw, err := g.llm.GenerateText(ctx, prompt, 0)
	if err != nil {
		return "", &GenerationError{Stage: "sql", Err: err}
	}

	clean := stripModelFences(raw)

	var envelope sqlEnvelope
	if err := json.Unmarshal([]byte(clean), &envelope); err == nil && envelope.SQL != "" {
		return strings.TrimSpace(envelope.SQL), nil
	}

	return clean, nil
}

// stripModelFences removes markdown code fences and surrounding noise
// the model sometimes adds despite instructions.
func stripModelFences(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}

	return strings.TrimSpace(s)
}

package insight

import (
	"context"
	"strings"
)

// Narrator produces the human-readable answer. It only ever sees the
// extracted aggregates and a capped row sample, so it cannot leak or
// invent figures the pipeline did not compute.
type Narrator struct {
	llm TextGenerator
}

func NewNarrator(llm TextGenerator) *Narrator {
	return &Narrator{llm: llm}
}

// Narrate asks the model for a short answer constrained to the input.
// A provider failure is fatal for the request.
func (n *Narrator) Narrate(ctx context.Context, in NarrativeInput) (string, error) {
	prompt := buildNarrativePrompt(in)

	raw, err := n.llm.GenerateText(ctx, prompt, 0.2)
	if err != nil {
		return "", &GenerationError{Stage: "narrative", Err: err}
	}

	text := strings.ReplaceAll(raw, `\n`, " ")
	text = strings.ReplaceAll(text, "\n", " ")
	text = strings.TrimSpace(text)
	if text == "" {
		text = "No answer generated."
	}
	return text, nil
}

// Package llm adapts the Gemini API to the text-generation capability
// the question pipeline needs.
package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// Gemini generates text through the Gen AI SDK. Vertex vs Gemini Dev is
// controlled via env vars (GOOGLE_GENAI_USE_VERTEXAI, GOOGLE_CLOUD_PROJECT,
// GOOGLE_CLOUD_LOCATION), same as the rest of the SDK surface.
type Gemini struct {
	client *genai.Client
	model  string
}

// NewGemini creates the client once; it is safe for concurrent use.
func NewGemini(ctx context.Context, model string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		// API version v1 is what docs use for current Gemini models.
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return nil, fmt.Errorf("llm: create genai client: %w", err)
	}
	return &Gemini{client: client, model: model}, nil
}

// GenerateText sends one prompt and returns the raw text response.
// Temperature 0 pins SQL generation; the narrative call runs warmer.
func (g *Gemini) GenerateText(ctx context.Context, prompt string, temperature float32) (string, error) {
	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: prompt},
			},
		},
	}

	config := &genai.GenerateContentConfig{
		Temperature: genai.Ptr(temperature),
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, config)
	if err != nil {
		return "", fmt.Errorf("llm: generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("llm: empty response from model")
	}
	return text, nil
}

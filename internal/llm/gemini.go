package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// Gemini implements Provider using the Google generative AI API.
type Gemini struct {
	client    *genai.Client
	modelName string
}

// NewGemini creates a Gemini provider. When apiKey is empty, GEMINI_API_KEY
// from the environment is used.
func NewGemini(ctx context.Context, apiKey, modelName string) (*Gemini, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = "gemini-1.5-flash"
	}
	return &Gemini{client: cl, modelName: modelName}, nil
}

// Close releases the underlying client.
func (g *Gemini) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

// Generate runs one generation call and reports the total token usage.
func (g *Gemini) Generate(ctx context.Context, req Request) (*Result, error) {
	m := g.client.GenerativeModel(g.modelName)
	m.SetTemperature(req.Temperature)
	if len(req.StopSequences) > 0 {
		m.StopSequences = req.StopSequences
	}
	if req.System != "" {
		m.SystemInstruction = &genai.Content{
			Parts: []genai.Part{genai.Text(req.System)},
		}
	}

	resp, err := m.GenerateContent(ctx, genai.Text(req.Prompt))
	if err != nil {
		return nil, fmt.Errorf("gemini generate: %w", err)
	}

	out := &Result{}
	if resp.UsageMetadata != nil {
		out.TokensUsed = int(resp.UsageMetadata.TotalTokenCount)
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return out, nil
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if t, ok := p.(genai.Text); ok {
			b.WriteString(string(t))
		}
	}
	out.Text = b.String()
	return out, nil
}

var _ Provider = (*Gemini)(nil)

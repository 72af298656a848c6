package embedding

import (
	"context"
	"fmt"
	"os"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiEmbedder embeds text with the Google generative AI embedding API.
type GeminiEmbedder struct {
	client     *genai.Client
	modelName  string
	dimensions int
}

// NewGeminiEmbedder creates a hosted embedder. When apiKey is empty,
// GEMINI_API_KEY from the environment is used.
func NewGeminiEmbedder(ctx context.Context, apiKey, modelName string, dimensions int) (*GeminiEmbedder, error) {
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, err
	}
	if modelName == "" {
		modelName = "text-embedding-004"
	}
	if dimensions <= 0 {
		dimensions = 768
	}
	return &GeminiEmbedder{client: cl, modelName: modelName, dimensions: dimensions}, nil
}

// Embed returns the embedding for a single text.
func (g *GeminiEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := g.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch embeds all texts in one batched request.
func (g *GeminiEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	em := g.client.EmbeddingModel(g.modelName)
	batch := em.NewBatch()
	for _, t := range texts {
		batch.AddContent(genai.Text(t))
	}
	resp, err := em.BatchEmbedContents(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("gemini batch embed: %w", err)
	}
	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("gemini batch embed: got %d embeddings for %d texts", len(resp.Embeddings), len(texts))
	}
	out := make([][]float32, 0, len(resp.Embeddings))
	for _, e := range resp.Embeddings {
		out = append(out, e.Values)
	}
	return out, nil
}

// Dimensions returns the embedding dimension.
func (g *GeminiEmbedder) Dimensions() int {
	return g.dimensions
}

// Close releases the underlying client.
func (g *GeminiEmbedder) Close() error {
	if g.client != nil {
		return g.client.Close()
	}
	return nil
}

var _ Embedder = (*GeminiEmbedder)(nil)

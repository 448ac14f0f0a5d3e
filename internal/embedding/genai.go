package embedding

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GenAI embeds text via the Gemini embedding API.
type GenAI struct {
	client *genai.Client
	model  string
}

// NewGenAI dials the Gemini API. The API key is read from the
// environment by the SDK when cfg carries none.
func NewGenAI(ctx context.Context, apiKey, model string) (*GenAI, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	return &GenAI{client: client, model: model}, nil
}

// Embed implements Backend.
func (g *GenAI) Embed(ctx context.Context, text string, task Task) ([]float32, error) {
	contents := []*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}

	resp, err := g.client.Models.EmbedContent(ctx, g.model, contents, &genai.EmbedContentConfig{
		TaskType:             string(task),
		OutputDimensionality: genai.Ptr[int32](Dimension),
	})
	if err != nil {
		return nil, fmt.Errorf("embed content: %w", err)
	}
	if len(resp.Embeddings) == 0 || resp.Embeddings[0] == nil {
		return nil, fmt.Errorf("embed content: empty response")
	}
	return resp.Embeddings[0].Values, nil
}

// Open adapts NewGenAI to an OpenFunc for lazy initialization.
func Open(apiKey, model string) OpenFunc {
	return func(ctx context.Context) (Backend, error) {
		return NewGenAI(ctx, apiKey, model)
	}
}

package chat

import (
	"context"
	"fmt"
	"iter"

	"google.golang.org/genai"
)

// GenAI streams completions from the Gemini API.
type GenAI struct {
	client *genai.Client
	model  string
}

// NewGenAI dials the Gemini API with the given credential and model.
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

// Stream implements Streamer.
func (g *GenAI) Stream(ctx context.Context, system string, turns []Turn) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		contents := make([]*genai.Content, 0, len(turns))
		for _, turn := range turns {
			role := genai.Role(genai.RoleUser)
			if turn.Role == RoleAssistant {
				role = genai.RoleModel
			}
			contents = append(contents, genai.NewContentFromText(turn.Content, role))
		}

		cfg := &genai.GenerateContentConfig{}
		if system != "" {
			cfg.SystemInstruction = genai.NewContentFromText(system, genai.RoleUser)
		}

		for resp, err := range g.client.Models.GenerateContentStream(ctx, g.model, contents, cfg) {
			if err != nil {
				yield("", fmt.Errorf("model stream: %w", err))
				return
			}
			delta := resp.Text()
			if delta == "" {
				continue
			}
			if !yield(delta, nil) {
				return
			}
		}
	}
}

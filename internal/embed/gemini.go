package embed

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

type Gemini struct {
	client *genai.Client
	model  string
}

func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, errors.New("API key is required")
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	if model == "" {
		model = "text-embedding-004"
	}

	return &Gemini{
		client: client,
		model:  model,
	}, nil
}

// Embed embeds the texts one request at a time.
func (e *Gemini) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return PerText(e.embedOne).Embed(ctx, texts)
}

func (e *Gemini) embedOne(ctx context.Context, text string) ([]float32, error) {
	res, err := e.client.EmbeddingModel(e.model).EmbedContent(ctx, genai.Text(text))
	if err != nil {
		return nil, fmt.Errorf("gemini embeddings failed: %w", err)
	}
	if res.Embedding == nil {
		return nil, ErrNoEmbedding
	}
	return res.Embedding.Values, nil
}

func (e *Gemini) Close() error {
	return e.client.Close()
}

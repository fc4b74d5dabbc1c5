package embed

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ollama/ollama/api"
)

const DefaultOllamaHost = "http://localhost:11434"

type Ollama struct {
	client *api.Client
	model  string
}

// NewOllama connects to the Ollama server at host, or the local default.
func NewOllama(host, model string) (*Ollama, error) {
	if model == "" {
		model = "nomic-embed-text"
	}
	if host == "" {
		host = DefaultOllamaHost
	}
	uri, err := url.Parse(host)
	if err != nil {
		return nil, fmt.Errorf("invalid ollama host %q: %w", host, err)
	}

	return &Ollama{
		client: api.NewClient(uri, http.DefaultClient),
		model:  model,
	}, nil
}

// Embed embeds the texts one request at a time.
func (e *Ollama) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return PerText(e.embedOne).Embed(ctx, texts)
}

func (e *Ollama) embedOne(ctx context.Context, text string) ([]float32, error) {
	resp, err := e.client.Embeddings(ctx, &api.EmbeddingRequest{
		Model:  e.model,
		Prompt: text,
	})
	if err != nil {
		return nil, fmt.Errorf("ollama embeddings failed: %w", err)
	}
	if len(resp.Embedding) == 0 {
		return nil, ErrNoEmbedding
	}
	vec := make([]float32, len(resp.Embedding))
	for i, v := range resp.Embedding {
		vec[i] = float32(v)
	}
	return vec, nil
}

// Package embed turns texts into vectors for semantic search. It provides
// adapters for hosted and local embedding models, decorators for retrying,
// rate limiting and persistent caching, and a plugin transport for
// out-of-process embedders.
package embed

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrNoEmbedding    = errors.New("no embedding returned")
	ErrCountMismatch  = errors.New("embedding count does not match input count")
	ErrUnknownBackend = errors.New("unknown embedding backend")
)

// Embedder turns a batch of texts into one vector per text, in order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Func adapts a function to Embedder.
type Func func(ctx context.Context, texts []string) ([][]float32, error)

func (f Func) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	return f(ctx, texts)
}

// PerText builds a batch embedder from one that handles a single text.
func PerText(one func(ctx context.Context, text string) ([]float32, error)) Func {
	return func(ctx context.Context, texts []string) ([][]float32, error) {
		out := make([][]float32, len(texts))
		for i, t := range texts {
			v, err := one(ctx, t)
			if err != nil {
				return nil, fmt.Errorf("embed text %d: %w", i, err)
			}
			out[i] = v
		}
		return out, nil
	}
}

func checkCount(got [][]float32, want int) error {
	if len(got) != want {
		return fmt.Errorf("%w: got %d, want %d", ErrCountMismatch, len(got), want)
	}
	return nil
}

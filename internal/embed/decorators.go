package embed

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

// Retrying retries failed batches with exponential backoff. Context errors
// are not retried.
type Retrying struct {
	inner      Embedder
	maxRetries uint64
	newBackOff func() backoff.BackOff
}

func NewRetrying(inner Embedder, maxRetries int, maxElapsed time.Duration) *Retrying {
	return &Retrying{
		inner:      inner,
		maxRetries: uint64(max(maxRetries, 0)),
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.MaxElapsedTime = maxElapsed
			return b
		},
	}
}

func (r *Retrying) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	operation := func() ([][]float32, error) {
		vecs, err := r.inner.Embed(ctx, texts)
		if err != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
			return nil, backoff.Permanent(err)
		}
		return vecs, err
	}

	b := backoff.WithContext(backoff.WithMaxRetries(r.newBackOff(), r.maxRetries), ctx)
	vecs, err := backoff.RetryWithData(operation, b)
	if err != nil {
		return nil, fmt.Errorf("embedding failed after retries: %w", err)
	}
	return vecs, nil
}

// RateLimited spaces out calls to the wrapped embedder. Every text counts
// as one event against the limit.
type RateLimited struct {
	inner   Embedder
	limiter *rate.Limiter
}

// NewRateLimited allows perSecond texts per second with the given burst.
func NewRateLimited(inner Embedder, perSecond float64, burst int) *RateLimited {
	return &RateLimited{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(perSecond), max(burst, 1)),
	}
}

func (r *RateLimited) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	n := min(max(len(texts), 1), r.limiter.Burst())
	if err := r.limiter.WaitN(ctx, n); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	return r.inner.Embed(ctx, texts)
}

// Store persists embeddings across runs.
type Store interface {
	GetEmbedding(ctx context.Context, model, text string) ([]float32, bool, error)
	PutEmbedding(ctx context.Context, model, text string, vec []float32) error
}

// Cached looks texts up in a store before calling the wrapped embedder and
// stores whatever it had to compute. Vectors are keyed by model so
// switching models never mixes vector spaces.
type Cached struct {
	inner Embedder
	store Store
	model string
}

func NewCached(inner Embedder, store Store, model string) *Cached {
	return &Cached{inner: inner, store: store, model: model}
}

func (c *Cached) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	var missing []string
	var slots []int
	for i, t := range texts {
		vec, ok, err := c.store.GetEmbedding(ctx, c.model, t)
		if err != nil {
			return nil, fmt.Errorf("embedding cache lookup: %w", err)
		}
		if ok {
			out[i] = vec
			continue
		}
		missing = append(missing, t)
		slots = append(slots, i)
	}
	if len(missing) == 0 {
		return out, nil
	}

	vecs, err := c.inner.Embed(ctx, missing)
	if err != nil {
		return nil, err
	}
	if err := checkCount(vecs, len(missing)); err != nil {
		return nil, err
	}
	for j, v := range vecs {
		out[slots[j]] = v
		if err := c.store.PutEmbedding(ctx, c.model, missing[j], v); err != nil {
			return nil, fmt.Errorf("embedding cache store: %w", err)
		}
	}
	return out, nil
}

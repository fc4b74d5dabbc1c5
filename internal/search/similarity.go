package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"gonum.org/v1/gonum/floats"
)

var ErrDimensionMismatch = errors.New("embedding dimensions differ")

// Embedder turns a batch of texts into one vector per text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Document is an item that can be matched against a query. Fragments are
// the short texts it is indexed by; the cache holds their embeddings.
type Document interface {
	Fragments() []string
	EmbeddingCache() *Cache
}

// Cache memoizes a document's fragment embeddings. It is filled at most once
// successfully; failed attempts leave it empty so a later call can retry.
type Cache struct {
	mu     sync.Mutex
	vecs   [][]float64
	loaded bool
}

// Load returns the cached vectors, computing them on first use.
func (c *Cache) Load(ctx context.Context, compute func(context.Context) ([][]float64, error)) ([][]float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.loaded {
		return c.vecs, nil
	}
	vecs, err := compute(ctx)
	if err != nil {
		return nil, err
	}
	c.vecs, c.loaded = vecs, true
	return vecs, nil
}

// Loaded reports whether the vectors have been computed.
func (c *Cache) Loaded() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loaded
}

// Similarity scores documents by the best cosine similarity between the
// query and any of the document's non-empty fragments. Query embeddings are
// memoized per query string. A nil embedder or a blank query scores
// everything 0 without calling the embedder.
type Similarity struct {
	embedder Embedder

	mu      sync.Mutex
	queries map[string][]float64
}

func NewSimilarity(e Embedder) *Similarity {
	return &Similarity{embedder: e, queries: make(map[string][]float64)}
}

// Score implements Scorer for any Document.
func (s *Similarity) Score(ctx context.Context, query string, doc Document) (float64, error) {
	if s == nil || s.embedder == nil || strings.TrimSpace(query) == "" {
		return 0, nil
	}

	vecs, err := s.Vectors(ctx, doc)
	if err != nil {
		return 0, err
	}
	if len(vecs) == 0 {
		return 0, nil
	}

	q, err := s.query(ctx, query)
	if err != nil {
		return 0, err
	}

	best := -1.0
	for _, v := range vecs {
		sim, err := Cosine(q, v)
		if err != nil {
			return 0, err
		}
		best = max(best, sim)
	}
	return best, nil
}

// Vectors returns the document's fragment embeddings, computing and caching
// them on first use.
func (s *Similarity) Vectors(ctx context.Context, doc Document) ([][]float64, error) {
	if s == nil || s.embedder == nil {
		return nil, nil
	}
	return doc.EmbeddingCache().Load(ctx, func(ctx context.Context) ([][]float64, error) {
		var texts []string
		for _, f := range doc.Fragments() {
			if f != "" {
				texts = append(texts, f)
			}
		}
		if len(texts) == 0 {
			return nil, nil
		}
		raw, err := s.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("embed fragments: %w", err)
		}
		return widenAll(raw), nil
	})
}

func (s *Similarity) query(ctx context.Context, query string) ([]float64, error) {
	s.mu.Lock()
	q, ok := s.queries[query]
	s.mu.Unlock()
	if ok {
		return q, nil
	}

	raw, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(raw) != 1 {
		return nil, fmt.Errorf("embed query: expected 1 vector, got %d", len(raw))
	}
	q = widen(raw[0])

	s.mu.Lock()
	s.queries[query] = q
	s.mu.Unlock()
	return q, nil
}

// Cosine returns the cosine similarity of a and b, or 0 when either is a
// zero vector.
func Cosine(a, b []float64) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: %d vs %d", ErrDimensionMismatch, len(a), len(b))
	}
	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0, nil
	}
	return floats.Dot(a, b) / (na * nb), nil
}

func widen(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

func widenAll(vs [][]float32) [][]float64 {
	out := make([][]float64, len(vs))
	for i, v := range vs {
		out[i] = widen(v)
	}
	return out
}

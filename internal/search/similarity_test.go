package search

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tableEmbedder struct {
	vectors map[string][]float32
	calls   int
	texts   int
	err     error
}

func (e *tableEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	e.calls++
	e.texts += len(texts)
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, ok := e.vectors[t]
		if !ok {
			v = []float32{0, 0, 1}
		}
		out[i] = v
	}
	return out, nil
}

type doc struct {
	fragments []string
	cache     Cache
}

func (d *doc) Fragments() []string    { return d.fragments }
func (d *doc) EmbeddingCache() *Cache { return &d.cache }

func TestCosine(t *testing.T) {
	sim, err := Cosine([]float64{1, 0}, []float64{1, 0})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, sim, 1e-9)

	sim, err = Cosine([]float64{1, 0}, []float64{0, 1})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, sim, 1e-9)

	sim, err = Cosine([]float64{1, 1}, []float64{-1, -1})
	require.NoError(t, err)
	assert.InDelta(t, -1.0, sim, 1e-9)

	sim, err = Cosine([]float64{0, 0}, []float64{1, 0})
	require.NoError(t, err)
	assert.Equal(t, 0.0, sim)

	_, err = Cosine([]float64{1}, []float64{1, 0})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestSimilarity_MaxOverFragments(t *testing.T) {
	e := &tableEmbedder{vectors: map[string][]float32{
		"hotpot":        {1, 0, 0},
		"cooked hotpot": {1, 0, 0},
		"washed dishes": {0, 1, 0},
	}}
	s := NewSimilarity(e)
	d := &doc{fragments: []string{"washed dishes", "", "cooked hotpot"}}

	score, err := s.Score(context.Background(), "hotpot", d)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, score, 1e-6)
	assert.Equal(t, 2, e.calls, "one batch for fragments, one for the query")
	assert.Equal(t, 3, e.texts, "empty fragments are not embedded")
}

func TestSimilarity_CachesDocumentAndQuery(t *testing.T) {
	e := &tableEmbedder{vectors: map[string][]float32{"a": {1, 0, 0}}}
	s := NewSimilarity(e)
	d := &doc{fragments: []string{"a"}}

	for i := 0; i < 3; i++ {
		_, err := s.Score(context.Background(), "a", d)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, e.calls)
	assert.True(t, d.cache.Loaded())

	_, err := s.Score(context.Background(), "another query", d)
	require.NoError(t, err)
	assert.Equal(t, 3, e.calls, "only the new query is embedded")
}

func TestSimilarity_NilEmbedder(t *testing.T) {
	s := NewSimilarity(nil)
	score, err := s.Score(context.Background(), "q", &doc{fragments: []string{"a"}})
	require.NoError(t, err)
	assert.Equal(t, 0.0, score)
}

func TestSimilarity_BlankQuery(t *testing.T) {
	e := &tableEmbedder{}
	s := NewSimilarity(e)
	for _, q := range []string{"", "  \n"} {
		score, err := s.Score(context.Background(), q, &doc{fragments: []string{"a"}})
		require.NoError(t, err)
		assert.Equal(t, 0.0, score)
	}
	assert.Equal(t, 0, e.calls, "blank queries are never embedded")
}

func TestSimilarity_NoFragments(t *testing.T) {
	e := &tableEmbedder{}
	score, err := NewSimilarity(e).Score(context.Background(), "q", &doc{})
	require.NoError(t, err)
	assert.Equal(t, 0.0, score)
	assert.Equal(t, 0, e.calls)
}

func TestSimilarity_ErrorLeavesCacheEmpty(t *testing.T) {
	boom := errors.New("rate limited")
	e := &tableEmbedder{err: boom}
	s := NewSimilarity(e)
	d := &doc{fragments: []string{"a"}}

	_, err := s.Score(context.Background(), "q", d)
	assert.ErrorIs(t, err, boom)
	assert.False(t, d.cache.Loaded())

	e.err = nil
	score, err := s.Score(context.Background(), "q", d)
	require.NoError(t, err)
	assert.False(t, math.IsNaN(score))
	assert.True(t, d.cache.Loaded())
}

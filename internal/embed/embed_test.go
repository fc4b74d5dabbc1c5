package embed

import (
	"context"
	"errors"
	"net"
	"net/rpc"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/hemv/internal/search"
)

func cosine(t *testing.T, a, b []float32) float64 {
	t.Helper()
	wa, wb := make([]float64, len(a)), make([]float64, len(b))
	for i := range a {
		wa[i] = float64(a[i])
	}
	for i := range b {
		wb[i] = float64(b[i])
	}
	sim, err := search.Cosine(wa, wb)
	require.NoError(t, err)
	return sim
}

func TestHashing(t *testing.T) {
	assert.Equal(t, DefaultHashingDim, NewHashing(0).Dim)

	h := NewHashing(1024)
	vecs, err := h.Embed(context.Background(), []string{
		"Put the dishes into the dishwasher",
		"dishes dishwasher",
		"Sliced mushrooms",
	})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Len(t, vecs[0], 1024)

	again, err := h.Embed(context.Background(), []string{"Put the dishes into the dishwasher"})
	require.NoError(t, err)
	assert.Equal(t, vecs[0], again[0], "embedding is deterministic")

	assert.Greater(t, cosine(t, vecs[0], vecs[1]), cosine(t, vecs[0], vecs[2]))

	upper, err := h.Embed(context.Background(), []string{"DISHES, dishwasher!"})
	require.NoError(t, err)
	assert.Equal(t, vecs[1], upper[0], "case and punctuation are ignored")
}

func TestPerText(t *testing.T) {
	boom := errors.New("boom")
	e := PerText(func(_ context.Context, text string) ([]float32, error) {
		if text == "bad" {
			return nil, boom
		}
		return []float32{float32(len(text))}, nil
	})

	vecs, err := e.Embed(context.Background(), []string{"a", "abc"})
	require.NoError(t, err)
	assert.Equal(t, [][]float32{{1}, {3}}, vecs)

	_, err = e.Embed(context.Background(), []string{"a", "bad"})
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "text 1")
}

type flaky struct {
	failures int
	calls    int
	err      error
}

func (f *flaky) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.calls <= f.failures {
		return nil, f.err
	}
	return Hashing{Dim: 4}.Embed(ctx, texts)
}

func noWait(r *Retrying) *Retrying {
	r.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return r
}

func TestRetrying(t *testing.T) {
	inner := &flaky{failures: 2, err: errors.New("503")}
	r := noWait(NewRetrying(inner, 3, time.Second))

	vecs, err := r.Embed(context.Background(), []string{"x"})
	require.NoError(t, err)
	assert.Len(t, vecs, 1)
	assert.Equal(t, 3, inner.calls)
}

func TestRetrying_GivesUp(t *testing.T) {
	boom := errors.New("503")
	inner := &flaky{failures: 10, err: boom}
	r := noWait(NewRetrying(inner, 2, time.Second))

	_, err := r.Embed(context.Background(), []string{"x"})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 3, inner.calls)
}

func TestRetrying_ContextErrorsArePermanent(t *testing.T) {
	inner := &flaky{failures: 10, err: context.DeadlineExceeded}
	r := noWait(NewRetrying(inner, 5, time.Second))

	_, err := r.Embed(context.Background(), []string{"x"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 1, inner.calls)
}

func TestRateLimited(t *testing.T) {
	inner := &flaky{}
	r := NewRateLimited(inner, 1000, 10)

	vecs, err := r.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Len(t, vecs, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.Embed(ctx, []string{"a"})
	assert.Error(t, err)
	assert.Equal(t, 1, inner.calls)
}

type memStore struct {
	vecs map[string][]float32
	puts int
}

func (m *memStore) GetEmbedding(_ context.Context, model, text string) ([]float32, bool, error) {
	v, ok := m.vecs[model+"\x00"+text]
	return v, ok, nil
}

func (m *memStore) PutEmbedding(_ context.Context, model, text string, vec []float32) error {
	m.vecs[model+"\x00"+text] = vec
	m.puts++
	return nil
}

type recording struct {
	batches [][]string
}

func (r *recording) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	r.batches = append(r.batches, texts)
	return Hashing{Dim: 8}.Embed(ctx, texts)
}

func TestCached(t *testing.T) {
	store := &memStore{vecs: map[string][]float32{}}
	inner := &recording{}
	c := NewCached(inner, store, "hashing-8")

	first, err := c.Embed(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, 2, store.puts)

	second, err := c.Embed(context.Background(), []string{"b", "c", "a"})
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "b"}, {"c"}}, inner.batches, "only misses reach the embedder")
	assert.Equal(t, first[1], second[0])
	assert.Equal(t, first[0], second[2])

	other := NewCached(inner, store, "other-model")
	_, err = other.Embed(context.Background(), []string{"a"})
	require.NoError(t, err)
	assert.Len(t, inner.batches, 3, "vectors are not shared across models")
}

func TestPlugin_RPC(t *testing.T) {
	server := rpc.NewServer()
	p := &EmbedderPlugin{Impl: NewHashing(16)}
	impl, err := p.Server(nil)
	require.NoError(t, err)
	require.NoError(t, server.RegisterName("Plugin", impl))

	srvConn, cliConn := net.Pipe()
	go server.ServeConn(srvConn)
	client := rpc.NewClient(cliConn)
	defer client.Close()

	raw, err := p.Client(nil, client)
	require.NoError(t, err)
	remote, ok := raw.(Embedder)
	require.True(t, ok)

	got, err := remote.Embed(context.Background(), []string{"hotpot", "dishes"})
	require.NoError(t, err)
	want, _ := NewHashing(16).Embed(context.Background(), []string{"hotpot", "dishes"})
	assert.Equal(t, want, got)
}

func TestPlugin_RPCError(t *testing.T) {
	server := rpc.NewServer()
	failing := Func(func(context.Context, []string) ([][]float32, error) {
		return nil, errors.New("model not loaded")
	})
	require.NoError(t, server.RegisterName("Plugin", &RPCServer{Impl: failing}))

	srvConn, cliConn := net.Pipe()
	go server.ServeConn(srvConn)
	client := rpc.NewClient(cliConn)
	defer client.Close()

	remote := &RPCClient{client: client}
	_, err := remote.Embed(context.Background(), []string{"x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "model not loaded")
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	e, closer, err := New(ctx, Settings{Backend: "hashing", Dimension: 64}, nil)
	require.NoError(t, err)
	require.NotNil(t, closer)
	assert.Equal(t, NewHashing(64), e)

	e, _, err = New(ctx, Settings{Backend: "none"}, nil)
	require.NoError(t, err)
	assert.Nil(t, e)

	_, _, err = New(ctx, Settings{Backend: "word2vec"}, nil)
	assert.ErrorIs(t, err, ErrUnknownBackend)

	_, _, err = New(ctx, Settings{Backend: "openai"}, nil)
	assert.Error(t, err, "openai needs an API key")

	_, _, err = New(ctx, Settings{Backend: "plugin"}, nil)
	assert.Error(t, err, "plugin needs a path")
}

func TestNew_Decorators(t *testing.T) {
	store := &memStore{}
	e, closer, err := New(context.Background(), Settings{
		Backend:       "ollama",
		Model:         "nomic-embed-text",
		RatePerSecond: 10,
		Burst:         5,
		MaxRetries:    2,
	}, store)
	require.NoError(t, err)
	require.NoError(t, closer())

	cached, ok := e.(*Cached)
	require.True(t, ok, "expected the cache outermost, got %T", e)
	assert.Equal(t, "ollama:nomic-embed-text", cached.model)
	retrying, ok := cached.inner.(*Retrying)
	require.True(t, ok, "expected retries inside the cache, got %T", cached.inner)
	_, ok = retrying.inner.(*RateLimited)
	assert.True(t, ok, "expected the rate limit innermost, got %T", retrying.inner)
}

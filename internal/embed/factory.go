package embed

import (
	"context"
	"fmt"
	"time"
)

// Backends lists the accepted embedding backends. "none" disables semantic
// search.
var Backends = []string{"openai", "ollama", "gemini", "hashing", "plugin", "none"}

// Settings selects and configures an embedding backend.
type Settings struct {
	Backend string
	Model   string
	APIKey  string
	BaseURL string
	// Dimension is used by the hashing backend.
	Dimension int
	// PluginPath is the executable of the plugin backend.
	PluginPath string
	PluginArgs []string

	// RatePerSecond limits texts per second when positive.
	RatePerSecond float64
	Burst         int
	MaxRetries    int
	MaxElapsed    time.Duration
}

func (s Settings) remote() bool {
	return s.Backend == "openai" || s.Backend == "ollama" || s.Backend == "gemini"
}

// New builds the configured embedder. Remote backends are rate limited and
// retried as configured, and every backend except hashing is cached in
// cache when it is non-nil. The returned closer is never nil; the embedder
// is nil for the "none" backend.
func New(ctx context.Context, s Settings, cache Store) (Embedder, func() error, error) {
	noop := func() error { return nil }

	var (
		e      Embedder
		closer = noop
	)
	switch s.Backend {
	case "openai":
		o, err := NewOpenAI(s.APIKey, s.BaseURL, s.Model)
		if err != nil {
			return nil, noop, err
		}
		e = o
	case "ollama":
		o, err := NewOllama(s.BaseURL, s.Model)
		if err != nil {
			return nil, noop, err
		}
		e = o
	case "gemini":
		g, err := NewGemini(ctx, s.APIKey, s.Model)
		if err != nil {
			return nil, noop, err
		}
		e, closer = g, g.Close
	case "hashing":
		return NewHashing(s.Dimension), noop, nil
	case "plugin":
		if s.PluginPath == "" {
			return nil, noop, fmt.Errorf("plugin backend needs a plugin path")
		}
		p, err := LaunchPlugin(s.PluginPath, s.PluginArgs...)
		if err != nil {
			return nil, noop, err
		}
		e, closer = p, p.Close
	case "none", "":
		return nil, noop, nil
	default:
		return nil, noop, fmt.Errorf("%w: %q", ErrUnknownBackend, s.Backend)
	}

	if s.remote() {
		if s.RatePerSecond > 0 {
			e = NewRateLimited(e, s.RatePerSecond, s.Burst)
		}
		if s.MaxRetries > 0 {
			e = NewRetrying(e, s.MaxRetries, s.MaxElapsed)
		}
	}
	if cache != nil {
		e = NewCached(e, cache, s.Backend+":"+s.Model)
	}
	return e, closer, nil
}

package provider

import (
	"context"
	"errors"
	"fmt"
)

var ErrUnknownProvider = errors.New("unknown provider")

// Settings selects and configures a provider.
type Settings struct {
	Name    string
	Model   string
	APIKey  string
	BaseURL string
}

// New builds the named provider. The returned closer releases client
// resources and is never nil.
func New(ctx context.Context, s Settings) (Provider, func() error, error) {
	noop := func() error { return nil }
	switch s.Name {
	case "openai":
		p, err := NewOpenAIProvider(s.APIKey, s.BaseURL, s.Model)
		return p, noop, err
	case "ollama":
		p, err := NewOllamaProvider(s.Model)
		return p, noop, err
	case "gemini":
		p, err := NewGeminiProvider(ctx, s.APIKey, s.Model)
		if err != nil {
			return nil, noop, err
		}
		return p, p.Close, nil
	case "anthropic":
		p, err := NewAnthropicProvider(s.APIKey, s.Model)
		if err != nil {
			return nil, noop, err
		}
		if s.BaseURL != "" {
			p.SetBaseURL(s.BaseURL)
		}
		return p, noop, nil
	case "stub", "":
		return NewStubProvider(), noop, nil
	}
	return nil, noop, fmt.Errorf("%w: %q", ErrUnknownProvider, s.Name)
}

package provider

import (
	"context"
	"sync"
	"time"
)

// StubProvider replays scripted responses. It records every request so
// tests can inspect what the model was shown.
type StubProvider struct {
	Responses []Response
	// Delay is waited before each response.
	Delay time.Duration

	mu       sync.Mutex
	requests [][]Message
	tools    [][]ToolDef
}

// NewStubProvider returns a provider that looks at the history once and
// then gives up with an answer, so `hemv ask --provider stub` can be run
// without credentials.
func NewStubProvider() *StubProvider {
	return &StubProvider{
		Responses: []Response{
			{
				Content: "Looking at the history first.",
				ToolCalls: []ToolCall{
					{ID: "call_1", Name: "history", Args: `{}`},
				},
				Usage: Usage{PromptTokens: 100, CompletionTokens: 20, TotalTokens: 120},
			},
			{
				ToolCalls: []ToolCall{
					{ID: "call_2", Name: "answer", Args: `{"reasoning": "The stub provider cannot read the history.", "answer": "I don't know."}`},
				},
				Usage: Usage{PromptTokens: 150, CompletionTokens: 25, TotalTokens: 175},
			},
		},
	}
}

func (m *StubProvider) Chat(ctx context.Context, messages []Message, tools []ToolDef) (*Response, error) {
	if m.Delay > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(m.Delay):
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.requests = append(m.requests, append([]Message(nil), messages...))
	m.tools = append(m.tools, tools)

	if len(m.Responses) == 0 {
		return &Response{Content: "I have nothing more to add."}, nil
	}

	resp := m.Responses[0]
	m.Responses = m.Responses[1:]
	return &resp, nil
}

// Requests returns the message lists received so far.
func (m *StubProvider) Requests() [][]Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]Message(nil), m.requests...)
}

// Tools returns the tool lists offered so far.
func (m *StubProvider) Tools() [][]ToolDef {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]ToolDef(nil), m.tools...)
}

func (m *StubProvider) Name() string {
	return "stub"
}

package runtime

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/felixgeelhaar/hemv/internal/hint"
	"github.com/felixgeelhaar/hemv/internal/provider"
)

var echoTool = ToolDefinition{
	Name:        "echo",
	Description: "Repeat a word",
	Parameters: map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"word":  map[string]interface{}{"type": "string"},
			"times": map[string]interface{}{"type": "integer", "minimum": 1},
		},
		"required": []string{"word"},
	},
}

func echo(ctx context.Context, sessionID string, call provider.ToolCall) (string, error) {
	return "echo: " + call.Args, nil
}

func TestNewToolRegistry(t *testing.T) {
	tr := NewToolRegistry()
	if tr == nil {
		t.Fatal("expected non-nil ToolRegistry")
	}
	if tr.tools == nil {
		t.Fatal("expected non-nil tools map")
	}
}

func TestToolRegistry_Register(t *testing.T) {
	tr := NewToolRegistry()

	if err := tr.Register(echoTool, echo); err != nil {
		t.Errorf("expected nil error, got %v", err)
	}

	// Try to register again - should fail
	if err := tr.Register(echoTool, echo); err == nil {
		t.Error("expected error when registering duplicate tool")
	}
}

func TestToolRegistry_RegisterInvalidSchema(t *testing.T) {
	tr := NewToolRegistry()
	bad := ToolDefinition{
		Name:       "bad",
		Parameters: map[string]interface{}{"type": 12},
	}
	if err := tr.Register(bad, echo); err == nil {
		t.Error("expected error for an invalid schema")
	}
	if tr.HasTool("bad") {
		t.Error("tool with an invalid schema should not be registered")
	}
}

func TestToolRegistry_Unregister(t *testing.T) {
	tr := NewToolRegistry()
	tr.Register(ToolDefinition{Name: "test_tool"}, nil)

	if !tr.HasTool("test_tool") {
		t.Error("tool should exist before unregister")
	}

	tr.Unregister("test_tool")

	if tr.HasTool("test_tool") {
		t.Error("tool should not exist after unregister")
	}
}

func TestToolRegistry_Get(t *testing.T) {
	tr := NewToolRegistry()
	tr.Register(echoTool, echo)

	retrieved, ok := tr.Get("echo")
	if !ok {
		t.Fatal("expected tool to be found")
	}
	if retrieved.Description != "Repeat a word" {
		t.Errorf("expected description 'Repeat a word', got %q", retrieved.Description)
	}

	if _, ok := tr.Get("nonexistent"); ok {
		t.Error("expected tool not to be found")
	}
}

func TestToolRegistry_ListIsSorted(t *testing.T) {
	tr := NewToolRegistry()
	for _, name := range []string{"search", "answer", "expand"} {
		tr.Register(ToolDefinition{Name: name}, nil)
	}

	tools := tr.List()
	if len(tools) != 3 {
		t.Fatalf("expected 3 tools, got %d", len(tools))
	}
	for i, want := range []string{"answer", "expand", "search"} {
		if tools[i].Name != want {
			t.Errorf("expected %q at %d, got %q", want, i, tools[i].Name)
		}
	}
}

func TestToolRegistry_Execute(t *testing.T) {
	tr := NewToolRegistry()
	tr.Register(echoTool, echo)

	result, err := tr.Execute(context.Background(), "session-1", provider.ToolCall{
		ID:   "call-1",
		Name: "echo",
		Args: `{"word": "hi", "times": 2}`,
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if result != `echo: {"word": "hi", "times": 2}` {
		t.Errorf("unexpected result %q", result)
	}
}

func TestToolRegistry_ExecuteInvalidArgs(t *testing.T) {
	tr := NewToolRegistry()
	called := false
	tr.Register(echoTool, func(ctx context.Context, sessionID string, call provider.ToolCall) (string, error) {
		called = true
		return "", nil
	})

	for name, args := range map[string]string{
		"missing required": `{}`,
		"wrong type":       `{"word": 3}`,
		"below minimum":    `{"word": "hi", "times": 0}`,
		"not json":         `{"word": `,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := tr.Execute(context.Background(), "s", provider.ToolCall{Name: "echo", Args: args})
			h, ok := hint.As(err)
			if !ok {
				t.Fatalf("expected a hint, got %v", err)
			}
			if !strings.Contains(h.Message, "echo") {
				t.Errorf("expected the hint to name the tool, got %q", h.Message)
			}
		})
	}
	if called {
		t.Error("executor should not run with invalid arguments")
	}
}

func TestToolRegistry_ExecuteEmptyArgs(t *testing.T) {
	tr := NewToolRegistry()
	tr.Register(ToolDefinition{
		Name:       "now",
		Parameters: map[string]interface{}{"type": "object"},
	}, func(ctx context.Context, sessionID string, call provider.ToolCall) (string, error) {
		return "noon", nil
	})

	if out, err := tr.Execute(context.Background(), "s", provider.ToolCall{Name: "now"}); err != nil || out != "noon" {
		t.Errorf("expected empty arguments to be accepted, got %q, %v", out, err)
	}
}

func TestToolRegistry_ExecuteUnknownTool(t *testing.T) {
	tr := NewToolRegistry()

	_, err := tr.Execute(context.Background(), "session-1", provider.ToolCall{Name: "unknown_tool"})
	if !errors.Is(err, ErrUnknownTool) {
		t.Errorf("expected ErrUnknownTool, got %v", err)
	}
}

func TestToolRegistry_ExecuteWithError(t *testing.T) {
	tr := NewToolRegistry()
	expectedErr := errors.New("tool error")
	tr.Register(ToolDefinition{Name: "failing_tool"}, func(ctx context.Context, sessionID string, call provider.ToolCall) (string, error) {
		return "", expectedErr
	})

	_, err := tr.Execute(context.Background(), "session-1", provider.ToolCall{Name: "failing_tool"})
	if !errors.Is(err, expectedErr) {
		t.Errorf("expected %v, got %v", expectedErr, err)
	}
}

func TestToolRegistry_Count(t *testing.T) {
	tr := NewToolRegistry()
	if tr.Count() != 0 {
		t.Errorf("expected 0 tools, got %d", tr.Count())
	}

	tr.Register(ToolDefinition{Name: "tool1"}, nil)
	tr.Register(ToolDefinition{Name: "tool2"}, nil)

	if tr.Count() != 2 {
		t.Errorf("expected 2 tools, got %d", tr.Count())
	}
}

func TestToolRegistry_ProviderTools(t *testing.T) {
	tr := NewToolRegistry()
	tr.Register(echoTool, echo)

	defs := tr.ProviderTools()
	if len(defs) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(defs))
	}
	if defs[0].Name != "echo" || defs[0].Description != "Repeat a word" {
		t.Errorf("unexpected definition %+v", defs[0])
	}
	if defs[0].Parameters["type"] != "object" {
		t.Errorf("expected the schema to be passed through, got %v", defs[0].Parameters)
	}
}

func TestToolRegistry_ExecuteWithContext(t *testing.T) {
	tr := NewToolRegistry()
	tr.Register(ToolDefinition{Name: "ctx_tool"}, func(ctx context.Context, sessionID string, call provider.ToolCall) (string, error) {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		default:
			return "completed", nil
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := tr.Execute(ctx, "session-1", provider.ToolCall{Name: "ctx_tool"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

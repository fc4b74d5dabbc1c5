package tui

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/felixgeelhaar/hemv/internal/provider"
	"github.com/felixgeelhaar/hemv/internal/ui"
)

var _ ui.UI = (*TUI)(nil)

func TestParseCommand(t *testing.T) {
	tests := []struct {
		line string
		tool string
		args map[string]any
	}{
		{"history", "history", map[string]any{}},
		{"h @0/1 outline", "history", map[string]any{"path": []any{0.0, 1.0}, "style": "outline"}},
		{"expand", "expand", map[string]any{}},
		{"expand @-1 2", "expand", map[string]any{"path": []any{-1.0}, "filter": 2.0}},
		{"e 2 4", "expand", map[string]any{"filter": []any{2.0, 4.0}}},
		{"collapse 2024-01-02", "collapse", map[string]any{"filter": "2024-01-02"}},
		{"only @ 0", "collapse_all_but", map[string]any{"path": []any{}, "filter": 0.0}},
		{"search red cup", "search", map[string]any{"query": "red cup"}},
		{"search! @1 red cup", "search", map[string]any{"path": []any{1.0}, "query": "red cup", "close_match": true}},
		{"now", "now", map[string]any{}},
		{"answer a red cup", "answer", map[string]any{"answer": "a red cup"}},
		{`expand {"filter": [0, 1]}`, "expand", map[string]any{"filter": []any{0.0, 1.0}}},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			c, err := ParseCommand(tt.line)
			if err != nil {
				t.Fatalf("ParseCommand failed: %v", err)
			}
			if c.Tool != tt.tool {
				t.Errorf("expected tool %q, got %q", tt.tool, c.Tool)
			}
			var got map[string]any
			if err := json.Unmarshal([]byte(c.Args), &got); err != nil {
				t.Fatalf("arguments are not JSON: %v", err)
			}
			if !reflect.DeepEqual(got, tt.args) {
				t.Errorf("expected arguments %v, got %v", tt.args, got)
			}
		})
	}
}

func TestParseCommand_Quit(t *testing.T) {
	for _, line := range []string{"q", "quit", " exit "} {
		c, err := ParseCommand(line)
		if err != nil || !c.Quit {
			t.Errorf("expected %q to quit, got %+v, %v", line, c, err)
		}
	}
}

func TestParseCommand_Errors(t *testing.T) {
	for _, line := range []string{
		"",
		"jump 1",
		"expand! 1",
		"expand 1 2 3",
		"expand @a/b",
		"search",
		"history default verbose",
		`expand {"filter": `,
	} {
		if _, err := ParseCommand(line); !errors.Is(err, ErrBadCommand) {
			t.Errorf("expected ErrBadCommand for %q, got %v", line, err)
		}
	}
}

type fakeExecutor struct {
	calls []provider.ToolCall
	out   string
	err   error
}

func (f *fakeExecutor) Execute(_ context.Context, _ string, call provider.ToolCall) (string, error) {
	f.calls = append(f.calls, call)
	return f.out, f.err
}

func typeLine(m tea.Model, line string) (tea.Model, tea.Cmd) {
	b := m.(Browser)
	b.Input.SetValue(line)
	return b.Update(tea.KeyMsg{Type: tea.KeyEnter})
}

func TestBrowser_RunsCommands(t *testing.T) {
	exec := &fakeExecutor{out: "[0: ...]"}
	var m tea.Model = NewBrowser(context.Background(), "kitchen", exec)
	m, _ = m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})

	m, cmd := typeLine(m, "expand 0")
	if cmd == nil {
		t.Fatal("expected a command for the tool call")
	}
	if m.(Browser).Input.Value() != "" {
		t.Error("expected the input to be cleared")
	}

	msg := cmd()
	res, ok := msg.(ResultMsg)
	if !ok {
		t.Fatalf("expected a ResultMsg, got %T", msg)
	}
	if len(exec.calls) != 1 || exec.calls[0].Name != "expand" || exec.calls[0].Args != `{"filter":0}` {
		t.Errorf("unexpected calls %+v", exec.calls)
	}

	m, _ = m.Update(res)
	if m.(Browser).Content() != "[0: ...]" {
		t.Errorf("expected the output to be shown, got %q", m.(Browser).Content())
	}
	if !strings.Contains(m.View(), "kitchen") {
		t.Errorf("expected the title in the view, got %q", m.View())
	}
}

func TestBrowser_Errors(t *testing.T) {
	exec := &fakeExecutor{err: errors.New("path [9]: index out of range")}
	var m tea.Model = NewBrowser(context.Background(), "kitchen", exec)

	m, cmd := typeLine(m, "teleport")
	if cmd != nil {
		if _, ok := cmd().(ResultMsg); ok {
			t.Error("expected no tool call for an unknown command")
		}
	}
	if !strings.Contains(m.(Browser).Status, "unknown command") {
		t.Errorf("expected the parse error as status, got %q", m.(Browser).Status)
	}

	m, _ = m.Update(ResultMsg{Tool: "expand", Output: "x", Err: exec.err})
	if m.(Browser).Content() != "" {
		t.Error("expected a failed call to keep the previous output")
	}
	if !strings.Contains(m.(Browser).Status, "out of range") {
		t.Errorf("expected the tool error as status, got %q", m.(Browser).Status)
	}
}

func TestBrowser_Quit(t *testing.T) {
	var m tea.Model = NewBrowser(context.Background(), "kitchen", &fakeExecutor{})
	m, cmd := typeLine(m, "q")
	if !m.(Browser).Quitting || cmd == nil {
		t.Error("expected q to quit")
	}
}

func TestModel_Update(t *testing.T) {
	var m tea.Model = NewModel("Answering", 10)
	if m.View() != "\n  Initializing..." {
		t.Errorf("expected the initializing view, got %q", m.View())
	}

	m, _ = m.Update(tea.WindowSizeMsg{Width: 80, Height: 30})
	m, _ = m.Update(StatusMsg("Thinking"))
	m, _ = m.Update(StepMsg(3))
	m, _ = m.Update(LogMsg("history {}"))

	model := m.(Model)
	if model.Status != "Thinking" || model.Step != 3 || len(model.Log) != 1 {
		t.Errorf("unexpected model state %+v", model)
	}
	if !strings.Contains(model.View(), "Step: 3/10") {
		t.Errorf("expected the step counter, got %q", model.View())
	}

	m, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	if !m.(Model).Quitting || cmd == nil {
		t.Error("expected ctrl+c to quit")
	}
}

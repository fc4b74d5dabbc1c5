package tui

import (
	"context"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/felixgeelhaar/hemv/internal/provider"
)

// Executor runs a tool call. runtime.ToolRegistry implements it.
type Executor interface {
	Execute(ctx context.Context, sessionID string, call provider.ToolCall) (string, error)
}

// ResultMsg carries the output of a tool call back into the browser.
type ResultMsg struct {
	Tool   string
	Output string
	Err    error
}

// Browser lets a person navigate a history with the same tools an agent
// gets. The viewport shows the last tool output.
type Browser struct {
	Title    string
	Status   string
	Input    textinput.Model
	Viewport viewport.Model
	Ready    bool
	Quitting bool

	ctx     context.Context
	exec    Executor
	content string
}

func NewBrowser(ctx context.Context, title string, exec Executor) Browser {
	in := textinput.New()
	in.Prompt = promptStyle.Render("> ")
	in.Placeholder = "expand @0 1, search! red cup, history outline, q"
	in.CharLimit = 512
	in.Focus()
	return Browser{
		Title:  title,
		Status: "Ready",
		Input:  in,
		ctx:    ctx,
		exec:   exec,
	}
}

// Init shows the collapsed view.
func (b Browser) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, b.run(Command{Tool: "history", Args: "{}"}))
}

func (b Browser) run(c Command) tea.Cmd {
	ctx, exec := b.ctx, b.exec
	return func() tea.Msg {
		out, err := exec.Execute(ctx, "browse", provider.ToolCall{Name: c.Tool, Args: c.Args})
		return ResultMsg{Tool: c.Tool, Output: out, Err: err}
	}
}

func (b Browser) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			b.Quitting = true
			return b, tea.Quit
		case tea.KeyEnter:
			line := b.Input.Value()
			b.Input.Reset()
			c, err := ParseCommand(line)
			switch {
			case err != nil:
				b.Status = errorStyle.Render(err.Error())
			case c.Quit:
				b.Quitting = true
				return b, tea.Quit
			default:
				b.Status = "Running " + c.Tool + "..."
				cmds = append(cmds, b.run(c))
			}
			return b, tea.Batch(cmds...)
		}

	case tea.WindowSizeMsg:
		height := msg.Height - 5
		if !b.Ready {
			b.Viewport = viewport.New(msg.Width, height)
			b.Ready = true
		} else {
			b.Viewport.Width = msg.Width
			b.Viewport.Height = height
		}
		b.Input.Width = msg.Width - 4
		b.Viewport.SetContent(b.content)

	case ResultMsg:
		if msg.Err != nil {
			b.Status = errorStyle.Render(msg.Tool + ": " + msg.Err.Error())
			return b, nil
		}
		b.Status = infoStyle.Render(msg.Tool)
		b.content = msg.Output
		b.Viewport.SetContent(b.content)
		b.Viewport.GotoTop()
		return b, nil
	}

	var cmd tea.Cmd
	b.Input, cmd = b.Input.Update(msg)
	cmds = append(cmds, cmd)
	b.Viewport, cmd = b.Viewport.Update(msg)
	cmds = append(cmds, cmd)
	return b, tea.Batch(cmds...)
}

// Content returns the last successful tool output.
func (b Browser) Content() string {
	return b.content
}

func (b Browser) View() string {
	if !b.Ready {
		return "\n  Loading history..."
	}
	view := titleStyle.Render(" "+b.Title+" ") + " " + b.Status + "\n\n" +
		b.Viewport.View() + "\n\n" +
		b.Input.View()
	if b.Quitting {
		return view + "\n  Quitting...\n"
	}
	return view
}

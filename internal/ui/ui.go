// Package ui reports the progress of a question answering session.
package ui

import (
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/lipgloss"
)

type UI interface {
	UpdateStatus(status string)
	UpdateStep(step int)
	Log(msg string)
}

type SilentUI struct{}

func (s SilentUI) UpdateStatus(status string) {}
func (s SilentUI) UpdateStep(step int)        {}
func (s SilentUI) Log(msg string)             {}

var (
	stepStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4")).Bold(true)
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
)

// Console prints progress lines, one per event, for terminals where a
// full-screen view is not wanted.
type Console struct {
	mu   sync.Mutex
	out  io.Writer
	step int
}

func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

func (c *Console) UpdateStatus(status string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, statusStyle.Render("status: "+status))
}

func (c *Console) UpdateStep(step int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.step = step
}

func (c *Console) Log(msg string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "%s %s\n", stepStyle.Render(fmt.Sprintf("[%d]", c.step)), msg)
}

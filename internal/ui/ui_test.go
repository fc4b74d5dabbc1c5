package ui

import (
	"bytes"
	"strings"
	"sync"
	"testing"
)

var (
	_ UI = SilentUI{}
	_ UI = (*Console)(nil)
)

func TestConsole(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)

	c.UpdateStep(2)
	c.Log(`expand {"filter": 0}`)
	c.UpdateStatus("answered")

	out := buf.String()
	if !strings.Contains(out, "[2]") || !strings.Contains(out, `expand {"filter": 0}`) {
		t.Errorf("expected the step and message to be printed, got %q", out)
	}
	if !strings.Contains(out, "status: answered") {
		t.Errorf("expected the status to be printed, got %q", out)
	}
}

func TestConsole_LogsCarryLatestStep(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)

	c.Log("before")
	c.UpdateStep(1)
	c.Log("history {}")
	c.UpdateStep(3)
	c.Log("answer")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 lines, got %d: %q", len(lines), buf.String())
	}
	for i, want := range []string{"[0]", "[1]", "[3]"} {
		if !strings.Contains(lines[i], want) {
			t.Errorf("line %d = %q, want it to contain %s", i, lines[i], want)
		}
	}
	if strings.Contains(buf.String(), "status:") {
		t.Error("step updates should not print on their own")
	}
}

func TestConsole_ConcurrentWriters(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c.UpdateStep(i)
			c.Log("call")
		}(i)
	}
	wg.Wait()

	if n := strings.Count(buf.String(), "call\n"); n != 20 {
		t.Errorf("expected 20 complete lines, got %d", n)
	}
}

func TestSilentUI(t *testing.T) {
	var u UI = SilentUI{}
	u.UpdateStatus("running")
	u.UpdateStep(1)
	u.Log("ignored")
}

package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"regexp"
	"strings"
	"testing"

	"github.com/felixgeelhaar/hemv/internal/credential"
)

// run executes the root command against a fresh data directory.
func run(t *testing.T, dataDir string, args ...string) (string, error) {
	t.Helper()

	history, err := filepath.Abs("../../../internal/history/testdata/kitchen.yaml")
	if err != nil {
		t.Fatal(err)
	}
	cfgPath := filepath.Join(dataDir, "hemv.yaml")
	if _, err := os.Stat(cfgPath); os.IsNotExist(err) {
		content := "data_dir: " + dataDir + "\nhistory: " + history + "\n"
		if err := os.WriteFile(cfgPath, []byte(content), 0600); err != nil {
			t.Fatal(err)
		}
	}

	var out, errOut bytes.Buffer
	root := NewRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--config", cfgPath}, args...))
	err = root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCLI_Root(t *testing.T) {
	var names []string
	for _, cmd := range NewRootCmd().Commands() {
		names = append(names, cmd.Name())
	}
	want := []string{"ask", "browse", "config", "embed-plugin", "render", "search", "transcript"}
	if !reflect.DeepEqual(names, want) {
		t.Errorf("commands = %v, want %v", names, want)
	}
}

func TestCLI_Render(t *testing.T) {
	dir := t.TempDir()

	out, err := run(t, dir, "render")
	if err != nil {
		t.Fatalf("render failed: %v", err)
	}
	if !strings.Contains(out, "...") || strings.Contains(out, "0: ") {
		t.Errorf("expected a collapsed view, got:\n%s", out)
	}

	out, err = run(t, dir, "render", "--expand", "0")
	if err != nil {
		t.Fatalf("render --expand failed: %v", err)
	}
	if !strings.Contains(out, "0: ") || !strings.Contains(out, "Cleaned up after breakfast") {
		t.Errorf("expected the first day, got:\n%s", out)
	}
	if strings.Contains(out, "1: ") {
		t.Errorf("the second day should stay collapsed, got:\n%s", out)
	}

	out, err = run(t, dir, "render", "--expand", "0", "--expand", "2", "--style", "outline")
	if err != nil {
		t.Fatalf("render range failed: %v", err)
	}
	if !strings.Contains(out, "0: ") || !strings.Contains(out, "1: ") {
		t.Errorf("expected both days, got:\n%s", out)
	}

	out, err = run(t, dir, "render", "--expand", "0", "--expand", "1")
	if err != nil {
		t.Fatalf("render range failed: %v", err)
	}
	if !strings.Contains(out, "0: ") || strings.Contains(out, "1: ") {
		t.Errorf("an index range excludes its end, got:\n%s", out)
	}

	if _, err := run(t, dir, "render", "--path", "0/x"); err == nil {
		t.Error("expected an error for a malformed path")
	}
	if _, err := run(t, dir, "render", "--expand", "0", "--expand", "1", "--expand", "2"); err == nil {
		t.Error("expected an error for three filter values")
	}
}

func TestCLI_Search(t *testing.T) {
	out, err := run(t, t.TempDir(), "search", "red", "cup")
	if err != nil {
		t.Fatalf("search failed: %v", err)
	}
	if !regexp.MustCompile(`\d: `).MatchString(out) {
		t.Errorf("expected some days expanded, got:\n%s", out)
	}
}

func TestCLI_AskAndTranscript(t *testing.T) {
	dir := t.TempDir()

	out, err := run(t, dir, "ask", "--provider", "stub", "--format", "json", "Where", "is", "the", "cup?")
	if err != nil {
		t.Fatalf("ask failed: %v", err)
	}
	var res struct {
		SessionID string `json:"session_id"`
		Answered  bool   `json:"answered"`
		Steps     int    `json:"steps"`
		Answer    struct {
			Text string `json:"answer"`
		} `json:"answer"`
	}
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("ask output is not JSON: %v\n%s", err, out)
	}
	if !res.Answered || res.Answer.Text != "I don't know." || res.Steps != 2 {
		t.Errorf("unexpected result %+v", res)
	}

	out, err = run(t, dir, "transcript", res.SessionID)
	if err != nil {
		t.Fatalf("transcript failed: %v", err)
	}
	for _, want := range []string{res.SessionID, "Where is the cup?", "history", "answer"} {
		if !strings.Contains(out, want) {
			t.Errorf("transcript misses %q:\n%s", want, out)
		}
	}

	if _, err := run(t, dir, "transcript", "missing"); err == nil {
		t.Error("expected an error for an unknown session")
	}
	if _, err := run(t, dir, "ask", "--format", "xml", "why?"); err == nil {
		t.Error("expected an error for an unknown format")
	}
}

func TestCLI_Config(t *testing.T) {
	t.Setenv(credential.PassphraseEnv, "test-passphrase")
	dir := t.TempDir()

	if _, err := run(t, dir, "config", "set", "openai.api_key", "sk-test-12345678"); err != nil {
		t.Fatalf("config set failed: %v", err)
	}

	out, err := run(t, dir, "config", "get", "openai.api_key")
	if err != nil {
		t.Fatalf("config get failed: %v", err)
	}
	if strings.TrimSpace(out) != "sk-t...5678" {
		t.Errorf("expected a masked key, got %q", out)
	}

	out, err = run(t, dir, "config", "get", "--reveal", "openai.api_key")
	if err != nil {
		t.Fatalf("config get --reveal failed: %v", err)
	}
	if strings.TrimSpace(out) != "sk-test-12345678" {
		t.Errorf("expected the plain key, got %q", out)
	}

	out, err = run(t, dir, "config", "get", "unset.key")
	if err != nil {
		t.Fatalf("config get failed: %v", err)
	}
	if strings.TrimSpace(out) != "(not set)" {
		t.Errorf("got %q", out)
	}
}

func TestParsePath(t *testing.T) {
	tests := []struct {
		in   string
		want []int
	}{
		{"", []int{}},
		{"/", []int{}},
		{"0", []int{0}},
		{"0/-1/2", []int{0, -1, 2}},
		{" 1 / 2 ", []int{1, 2}},
	}
	for _, tt := range tests {
		got, err := parsePath(tt.in)
		if err != nil {
			t.Errorf("parsePath(%q): %v", tt.in, err)
			continue
		}
		if !reflect.DeepEqual(got, tt.want) {
			t.Errorf("parsePath(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
	if _, err := parsePath("a/b"); err == nil {
		t.Error("expected an error")
	}
}

func TestFilterArg(t *testing.T) {
	got, err := filterArg([]string{"1"})
	if err != nil || got != 1 {
		t.Errorf("filterArg(1) = %v, %v", got, err)
	}
	got, err = filterArg([]string{"2024-01-01", "3"})
	if err != nil || !reflect.DeepEqual(got, []any{"2024-01-01", 3}) {
		t.Errorf("filterArg(range) = %v, %v", got, err)
	}
	if _, err := filterArg(nil); err == nil {
		t.Error("expected an error for no values")
	}
}

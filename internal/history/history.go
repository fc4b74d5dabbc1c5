// Package history loads precomputed hierarchical summaries of past events.
//
// A history file is a tree of summaries. Inner nodes summarize a time span
// in natural language; leaves hold the raw observations.
package history

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/felixgeelhaar/hemv/internal/memtree"
)

// Summary is one node of a history tree.
type Summary struct {
	Type       string         `json:"kind" yaml:"kind"`
	Start      time.Time      `json:"start" yaml:"start"`
	End        time.Time      `json:"end" yaml:"end"`
	Summary    string         `json:"summary" yaml:"summary"`
	Index      []string       `json:"index_content,omitempty" yaml:"index_content,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty" yaml:"attributes,omitempty"`
	// Predefined marks the highest summary level with a fixed meaning, such
	// as one task execution or one day.
	Predefined bool       `json:"predefined,omitempty" yaml:"predefined,omitempty"`
	Text       string     `json:"text,omitempty" yaml:"text,omitempty"`
	Children   []*Summary `json:"children,omitempty" yaml:"children,omitempty"`
}

func (s *Summary) TimeRange() (time.Time, time.Time) { return s.Start, s.End }

func (s *Summary) NLSummary() string { return s.Summary }

// IndexContent returns the texts the node is searched by. Without explicit
// index content a node is searched by its summary, or by its text for leaves.
func (s *Summary) IndexContent() []string {
	switch {
	case len(s.Index) > 0:
		return s.Index
	case s.Summary != "":
		return []string{s.Summary}
	case s.Text != "":
		return []string{s.Text}
	}
	return nil
}

func (s *Summary) Attr(name string) (any, bool) {
	v, ok := s.Attributes[name]
	return v, ok
}

// Kind names the summary level, "Summary" when unset.
func (s *Summary) Kind() string {
	if s.Type == "" {
		return "Summary"
	}
	return s.Type
}

func (s *Summary) IsLeaf() bool {
	return len(s.Children) == 0
}

// String renders a leaf observation. Attributes are listed by name.
func (s *Summary) String() string {
	var parts []string
	if !s.Start.IsZero() || !s.End.IsZero() {
		parts = append(parts, memtree.FormatRange(s.Start, s.End))
	}
	text := s.Text
	if text == "" {
		text = s.Summary
	}
	parts = append(parts, fmt.Sprintf("%q", text))
	for _, k := range slices.Sorted(maps.Keys(s.Attributes)) {
		parts = append(parts, fmt.Sprintf("%s=%v", k, s.Attributes[k]))
	}
	return s.Kind() + "(" + strings.Join(parts, ", ") + ")"
}

// Children is the tree extractor for summaries.
func Children(s *Summary) []*Summary {
	return s.Children
}

// Load reads a history from a JSON or YAML file.
func Load(path string) (*Summary, error) {
	data, err := os.ReadFile(path) // #nosec G304
	if err != nil {
		return nil, fmt.Errorf("failed to read history file: %w", err)
	}

	var root Summary
	ext := strings.ToLower(filepath.Ext(path))

	switch ext {
	case ".json":
		if err := json.Unmarshal(data, &root); err != nil {
			return nil, fmt.Errorf("failed to unmarshal JSON history: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &root); err != nil {
			return nil, fmt.Errorf("failed to unmarshal YAML history: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported history format: %s (use .json or .yaml)", ext)
	}

	return &root, nil
}

// ValidationResult represents the outcome of a validation pass.
type ValidationResult struct {
	Valid    bool
	Warnings []string
	Errors   []string
}

// Err folds the errors into one, nil when the history is valid.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	return fmt.Errorf("invalid history: %s", strings.Join(r.Errors, "; "))
}

// Validate checks that every summary node can be browsed.
func Validate(root *Summary) ValidationResult {
	res := ValidationResult{
		Valid:    true,
		Warnings: []string{},
		Errors:   []string{},
	}
	validate(root, "root", nil, &res)
	return res
}

func validate(s *Summary, path string, parent *Summary, res *ValidationResult) {
	if s == nil {
		res.Valid = false
		res.Errors = append(res.Errors, path+": empty node")
		return
	}

	if !s.IsLeaf() {
		if s.Summary == "" {
			res.Valid = false
			res.Errors = append(res.Errors, path+": summary is required on nodes with children")
		}
		if s.Start.IsZero() || s.End.IsZero() {
			res.Valid = false
			res.Errors = append(res.Errors, path+": start and end are required on nodes with children")
		}
	}
	if s.End.Before(s.Start) {
		res.Valid = false
		res.Errors = append(res.Errors, path+": end is before start")
	}

	if parent != nil && !s.Start.IsZero() && (s.Start.Before(parent.Start) || s.End.After(parent.End)) {
		res.Warnings = append(res.Warnings, path+": lies outside its parent's time range")
	}
	if len(s.IndexContent()) == 0 {
		res.Warnings = append(res.Warnings, path+": nothing to search by")
	}

	for i, c := range s.Children {
		validate(c, fmt.Sprintf("%s.children[%d]", path, i), s, res)
	}
}

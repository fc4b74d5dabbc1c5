// Package render holds presentation settings shared by the list and tree
// renderers.
package render

import "strings"

// Config controls how collections and nodes are laid out as text.
// The zero value renders everything on a single line.
type Config struct {
	// Pretty spreads children over indented lines.
	Pretty bool
	// Compact uses the short "range: summary" node header and always
	// places children on their own lines.
	Compact bool
	// Dash prefixes compact entries with "- ".
	Dash bool
	// Indent is the number of spaces per nesting level.
	Indent int
}

// Default is the single-line layout with the standard indent width.
var Default = Config{Indent: 2}

// Verbose is the indented multi-line layout.
var Verbose = Config{Pretty: true, Indent: 2}

// Outline is the compact dashed layout.
var Outline = Config{Compact: true, Dash: true, Indent: 2}

// Multiline reports whether entries go on their own lines.
func (c Config) Multiline() bool {
	return c.Pretty || c.Compact
}

// Spaces returns n levels of indentation when cond holds.
func (c Config) Spaces(levels int, cond bool) string {
	if !cond || levels <= 0 || c.Indent <= 0 {
		return ""
	}
	return strings.Repeat(" ", c.Indent*levels)
}

// IndentFollowing indents every line of s except the first.
func IndentFollowing(s string, spaces string) string {
	if spaces == "" {
		return s
	}
	return strings.ReplaceAll(s, "\n", "\n"+spaces)
}

// Renderer is implemented by values with their own text form.
type Renderer interface {
	Render(cfg Config) string
}

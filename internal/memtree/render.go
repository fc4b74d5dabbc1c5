package memtree

import (
	"strings"
	"time"

	"github.com/felixgeelhaar/hemv/internal/expand"
	"github.com/felixgeelhaar/hemv/internal/render"
)

// FormatRange renders a time span as compactly as its length allows. Spans
// of a day or more show dates only, spans over three minutes drop seconds,
// and the end date is repeated only when it differs from the start.
func FormatRange(start, end time.Time) string {
	d := end.Sub(start)
	if d >= 24*time.Hour {
		return start.Format("2006/01/02") + " - " + end.Format("2006/01/02")
	}

	startLayout, endLayout := "2006/01/02 15:04:05", "15:04:05"
	if d > 3*time.Minute {
		startLayout, endLayout = "2006/01/02 15:04", "15:04"
	}
	if end.Day() != start.Day() {
		endLayout = "2006/01/02 " + endLayout
	}
	return start.Format(startLayout) + " - " + end.Format(endLayout)
}

// Render implements render.Renderer. Leaves render as their wrapped value.
// Other nodes show their time range and summary followed by the children.
func (n *Node[V]) Render(cfg render.Config) string {
	if n.IsLeaf() {
		return expand.Text(n.value, cfg)
	}

	s := any(n.value).(Summarized)
	start, end := s.TimeRange()
	rng := FormatRange(start, end)

	multiline := cfg.Multiline()
	one := cfg.Spaces(1, multiline)
	summary := quote(render.IndentFollowing(s.NLSummary(), one))
	children := render.IndentFollowing(n.children.Entries(cfg), one)

	if cfg.Compact {
		return rng + ": " + summary + "\n" + one + children
	}

	if !multiline {
		return typeName(n.value) + "(" + rng + ", " + summary + ", children={" + children + "})"
	}
	two := cfg.Spaces(2, true)
	var sb strings.Builder
	sb.WriteString(typeName(n.value) + "(\n")
	sb.WriteString(one + rng + ",\n")
	sb.WriteString(one + summary + ",\n")
	sb.WriteString(one + "children={\n" + two + children + "\n" + one + "}\n")
	sb.WriteString(")")
	return sb.String()
}

func (n *Node[V]) String() string {
	return n.Render(render.Default)
}

func quote(s string) string {
	if strings.Contains(s, "\n") {
		return `"""` + s + `"""`
	}
	return `"` + s + `"`
}

package expand

import (
	"fmt"
	"strings"

	"github.com/felixgeelhaar/hemv/internal/render"
)

const ellipsis = "..."

// Render lays the collection out as text. Expanded items are shown with
// their index; each run of collapsed items becomes a single ellipsis.
func (l *List[T]) Render(cfg render.Config) string {
	if len(l.items) == 0 {
		return "[]"
	}
	return "[" + l.entries(cfg) + "]"
}

// Entries is Render without the surrounding brackets and outer whitespace,
// for embedding in a parent's text.
func (l *List[T]) Entries(cfg render.Config) string {
	return strings.TrimSpace(l.entries(cfg))
}

func (l *List[T]) String() string {
	return l.Render(render.Default)
}

func (l *List[T]) entries(cfg render.Config) string {
	multiline := cfg.Multiline()
	nested := cfg.Spaces(1, cfg.Pretty && !cfg.Compact)
	dash := ""
	if cfg.Compact && cfg.Dash {
		dash = "- "
	}

	if !l.AnyExpanded() {
		return dash + ellipsis
	}

	var sb strings.Builder
	prevExpanded := true
	for i, it := range l.items {
		var sep string
		if i > 0 && !cfg.Compact {
			sep = ", "
			if multiline {
				sep = ","
			}
		}
		if multiline {
			sep += "\n" + nested
		}

		switch {
		case l.expanded[i]:
			sb.WriteString(sep + dash)
			fmt.Fprintf(&sb, "%d: ", i)
			sb.WriteString(render.IndentFollowing(Text(it, cfg), nested))
		case prevExpanded:
			sb.WriteString(sep + dash + ellipsis)
		}
		prevExpanded = l.expanded[i]
	}
	if multiline {
		sb.WriteString("\n")
	}
	return sb.String()
}

// Text renders a single item using its own text form.
func Text(v any, cfg render.Config) string {
	switch x := v.(type) {
	case render.Renderer:
		return x.Render(cfg)
	case fmt.Stringer:
		return x.String()
	case string:
		return fmt.Sprintf("%q", x)
	}
	return fmt.Sprint(v)
}

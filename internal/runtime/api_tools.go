package runtime

import (
	"context"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/hemv/internal/expand"
	"github.com/felixgeelhaar/hemv/internal/filter"
	"github.com/felixgeelhaar/hemv/internal/hint"
	"github.com/felixgeelhaar/hemv/internal/provider"
	"github.com/felixgeelhaar/hemv/internal/render"
)

// Tool names.
const (
	ToolHistory        = "history"
	ToolExpand         = "expand"
	ToolCollapse       = "collapse"
	ToolCollapseAllBut = "collapse_all_but"
	ToolSearch         = "search"
	ToolNow            = "now"
	ToolAnswer         = "answer"
)

var pathSchema = map[string]interface{}{
	"type":        "array",
	"items":       map[string]interface{}{"type": []string{"integer", "string"}},
	"description": "Child indices leading from the top of the history to the node to act on. Leave empty for the top level.",
}

var filterSchema = map[string]interface{}{
	"type":        []string{"integer", "string", "array"},
	"items":       map[string]interface{}{"type": []string{"integer", "string"}},
	"maxItems":    2,
	"description": "Which children to act on: an index, a YYYY-MM-DD date, a timestamp, or a list of two of the same kind for a range. An index range [a, b] selects a up to but not including b; date and timestamp ranges include both ends. Negative indices count from the end. Omit for all children.",
}

var styleSchema = map[string]interface{}{
	"type":        "string",
	"enum":        []string{"default", "verbose", "outline"},
	"description": "Layout of the text.",
}

func objectSchema(props map[string]interface{}, required ...string) map[string]interface{} {
	s := map[string]interface{}{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

func navigation(description string) ToolDefinition {
	return ToolDefinition{
		Description: description,
		Parameters: objectSchema(map[string]interface{}{
			"path":   pathSchema,
			"filter": filterSchema,
		}),
	}
}

// Definitions returns the tools an agent browses the history with.
func (a *API) Definitions() []ToolDefinition {
	expandDef := navigation("Expand the children of a node selected by the filter and show the node.")
	expandDef.Name = ToolExpand
	collapseDef := navigation("Collapse the children of a node selected by the filter and show the node.")
	collapseDef.Name = ToolCollapse
	onlyDef := navigation("Leave exactly the children selected by the filter expanded and show the node.")
	onlyDef.Name = ToolCollapseAllBut

	return []ToolDefinition{
		{
			Name:        ToolHistory,
			Description: "Show the history, or the node at path, in its current expand state. Collapsed children are shown as '...'.",
			Parameters: objectSchema(map[string]interface{}{
				"path":  pathSchema,
				"style": styleSchema,
			}),
		},
		expandDef,
		collapseDef,
		onlyDef,
		{
			Name:        ToolSearch,
			Description: "Collapse the children of a node and expand the ones relevant to the query, then show the node. With close_match, only report genuinely close matches.",
			Parameters: objectSchema(map[string]interface{}{
				"path":        pathSchema,
				"query":       map[string]interface{}{"type": "string", "description": "What to look for."},
				"close_match": map[string]interface{}{"type": "boolean", "description": "Only accept close matches."},
			}, "query"),
		},
		{
			Name:        ToolNow,
			Description: "Return the current date and time.",
			Parameters:  objectSchema(map[string]interface{}{}),
		},
		{
			Name:        ToolAnswer,
			Description: "Give the final answer to the question, with the reasoning that led to it.",
			Parameters: objectSchema(map[string]interface{}{
				"reasoning": map[string]interface{}{"type": "string", "description": "How the answer follows from the history."},
				"answer":    map[string]interface{}{"type": "string", "description": "The answer itself."},
			}),
		},
	}
}

// Register adds the API's tools to r.
func (a *API) Register(r *ToolRegistry) error {
	execs := map[string]func(context.Context, args) (string, error){
		ToolHistory: a.callHistory,
		ToolExpand: a.navigate(func(p []int, s filter.Spec) error {
			return a.Expand(p, s)
		}),
		ToolCollapse: a.navigate(func(p []int, s filter.Spec) error {
			return a.Collapse(p, s)
		}),
		ToolCollapseAllBut: a.navigate(func(p []int, s filter.Spec) error {
			return a.CollapseAllBut(p, s)
		}),
		ToolSearch: a.callSearch,
		ToolNow: func(context.Context, args) (string, error) {
			return a.Now().Format("Monday, 2006-01-02 15:04:05 MST"), nil
		},
		ToolAnswer: a.callAnswer,
	}

	for _, def := range a.Definitions() {
		run := execs[def.Name]
		err := r.Register(def, func(ctx context.Context, _ string, call provider.ToolCall) (string, error) {
			in, err := decodeArgs(call.Args)
			if err != nil {
				return "", err
			}
			return run(ctx, in)
		})
		if err != nil {
			return err
		}
	}
	return nil
}

func (a *API) callHistory(_ context.Context, in args) (string, error) {
	path, err := in.path("path")
	if err != nil {
		return "", err
	}
	cfg := a.render
	switch in.str("style") {
	case "verbose":
		cfg = render.Verbose
	case "outline":
		cfg = render.Outline
	}
	return a.Render(path, cfg)
}

func (a *API) navigate(op func([]int, filter.Spec) error) func(context.Context, args) (string, error) {
	return func(_ context.Context, in args) (string, error) {
		path, err := in.path("path")
		if err != nil {
			return "", err
		}
		spec, err := in.filter("filter", a.loc)
		if err != nil {
			return "", err
		}
		if err := op(path, spec); err != nil {
			return "", err
		}
		return a.Render(path, a.render)
	}
}

func (a *API) callSearch(ctx context.Context, in args) (string, error) {
	path, err := in.path("path")
	if err != nil {
		return "", err
	}
	query := in.str("query")
	err = a.Search(ctx, path, query, in.flag("close_match"))
	switch {
	case errors.Is(err, expand.ErrNoCloseMatch):
		return fmt.Sprintf("No close matches found for %q.", query), nil
	case hint.Recoverable(err):
		out, rerr := a.Render(path, a.render)
		if rerr != nil {
			return "", rerr
		}
		return err.Error() + "\n" + out, nil
	case err != nil:
		return "", err
	}
	return a.Render(path, a.render)
}

func (a *API) callAnswer(_ context.Context, in args) (string, error) {
	if err := a.Answer(in.str("reasoning"), in.str("answer")); err != nil {
		return "", err
	}
	return "Answer recorded.", nil
}

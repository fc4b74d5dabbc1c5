package provider

import (
	"maps"
	"slices"
)

// Some backends take a typed schema instead of raw JSON schema. These
// helpers read the subset of JSON schema the tool definitions use: an
// object of typed, described properties and an optional required list.

func schemaProperties(params map[string]any) map[string]map[string]any {
	out := map[string]map[string]any{}
	raw, _ := params["properties"].(map[string]any)
	for name, p := range raw {
		if m, ok := p.(map[string]any); ok {
			out[name] = m
		}
	}
	return out
}

// sortedNames keeps generated schemas stable between calls.
func sortedNames(props map[string]map[string]any) []string {
	return slices.Sorted(maps.Keys(props))
}

func schemaRequired(params map[string]any) []string {
	switch r := params["required"].(type) {
	case []string:
		return r
	case []any:
		out := make([]string, 0, len(r))
		for _, v := range r {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

// schemaTypes returns the declared types of a property. A property without
// a type accepts anything and is reported as a string.
func schemaTypes(prop map[string]any) []string {
	switch t := prop["type"].(type) {
	case string:
		return []string{t}
	case []string:
		return t
	case []any:
		out := make([]string, 0, len(t))
		for _, v := range t {
			if s, ok := v.(string); ok {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return []string{"string"}
}

func schemaDescription(prop map[string]any) string {
	d, _ := prop["description"].(string)
	return d
}

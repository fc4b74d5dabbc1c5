package runtime

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/felixgeelhaar/hemv/internal/filter"
)

var ErrBadArgument = errors.New("bad argument")

// args holds the decoded arguments of one tool call. Numbers stay
// json.Number so integers survive decoding.
type args map[string]any

func decodeArgs(raw string) (args, error) {
	out := args{}
	if strings.TrimSpace(raw) == "" {
		return out, nil
	}
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: arguments are not a JSON object: %v", ErrBadArgument, err)
	}
	return out, nil
}

func (a args) str(name string) string {
	s, _ := a[name].(string)
	return s
}

func (a args) flag(name string) bool {
	switch v := a[name].(type) {
	case bool:
		return v
	case string:
		b, _ := strconv.ParseBool(v)
		return b
	}
	return false
}

// path reads a list of child indices. Some providers can only send
// strings, so numeric strings are accepted too.
func (a args) path(name string) ([]int, error) {
	raw, ok := a[name]
	if !ok || raw == nil {
		return nil, nil
	}
	items, ok := raw.([]any)
	if !ok {
		items = []any{raw}
	}
	out := make([]int, 0, len(items))
	for _, it := range items {
		v := lenient(it)
		switch n := v.(type) {
		case json.Number:
			i, err := n.Int64()
			if err != nil {
				return nil, fmt.Errorf("%w: %s must hold integers, got %s", ErrBadArgument, name, n)
			}
			out = append(out, int(i))
		case int:
			out = append(out, n)
		default:
			return nil, fmt.Errorf("%w: %s must hold integers, got %v", ErrBadArgument, name, it)
		}
	}
	return out, nil
}

// filter reads a filter spec: nothing, a single index, date or timestamp,
// or a list of one or two of them.
func (a args) filter(name string, loc *time.Location) (filter.Spec, error) {
	raw, ok := a[name]
	if !ok || raw == nil {
		return filter.All(), nil
	}
	items, ok := raw.([]any)
	if !ok {
		items = []any{raw}
	}
	vals := make([]any, len(items))
	for i, it := range items {
		vals[i] = lenient(it)
	}
	spec, err := filter.ParseIn(loc, vals...)
	if err != nil {
		return filter.Spec{}, fmt.Errorf("%w: %s: %w", ErrBadArgument, name, err)
	}
	return spec, nil
}

func lenient(v any) any {
	if s, ok := v.(string); ok {
		if i, err := strconv.Atoi(strings.TrimSpace(s)); err == nil {
			return i
		}
	}
	return v
}

package filter

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"cloud.google.com/go/civil"
)

var (
	ErrUnsupportedType = errors.New("unsupported argument type")
	ErrMismatchedTypes = errors.New("both arguments must be of the same type")
	ErrTooManyArgs     = errors.New("at most two arguments are supported")
)

type argKind int

const (
	argInt argKind = iota
	argDate
	argTime
)

func (k argKind) String() string {
	switch k {
	case argInt:
		return "int"
	case argDate:
		return "date"
	}
	return "datetime"
}

type arg struct {
	kind argKind
	i    int
	d    civil.Date
	t    time.Time
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04",
}

// Parse builds a Spec from loosely typed arguments, as they arrive from a
// tool call. Timestamps without a zone are read in the local time zone.
func Parse(args ...any) (Spec, error) {
	return ParseIn(time.Local, args...)
}

// ParseIn is Parse with an explicit location for zone-less timestamps.
//
// Accepted values are integers (Go ints, integral float64, json.Number),
// civil.Date, time.Time and strings holding either a YYYY-MM-DD date or a
// timestamp. Zero arguments select everything; two arguments must be of the
// same kind.
func ParseIn(loc *time.Location, args ...any) (Spec, error) {
	switch len(args) {
	case 0:
		return All(), nil
	case 1:
		a, err := classify(loc, args[0])
		if err != nil {
			return Spec{}, err
		}
		switch a.kind {
		case argInt:
			return Index(a.i), nil
		case argDate:
			return OnDate(a.d), nil
		default:
			return At(a.t), nil
		}
	case 2:
		a, err := classify(loc, args[0])
		if err != nil {
			return Spec{}, err
		}
		b, err := classify(loc, args[1])
		if err != nil {
			return Spec{}, err
		}
		if a.kind != b.kind {
			return Spec{}, fmt.Errorf("%w: got %s and %s", ErrMismatchedTypes, a.kind, b.kind)
		}
		switch a.kind {
		case argInt:
			return IndexRange(a.i, b.i), nil
		case argDate:
			return DateRange(a.d, b.d), nil
		default:
			return Between(a.t, b.t), nil
		}
	}
	return Spec{}, fmt.Errorf("%w: got %d", ErrTooManyArgs, len(args))
}

func classify(loc *time.Location, v any) (arg, error) {
	switch x := v.(type) {
	case int:
		return arg{kind: argInt, i: x}, nil
	case int64:
		return arg{kind: argInt, i: int(x)}, nil
	case int32:
		return arg{kind: argInt, i: int(x)}, nil
	case float64:
		if x != math.Trunc(x) || math.IsInf(x, 0) {
			return arg{}, fmt.Errorf("%w: non-integral number %v", ErrUnsupportedType, x)
		}
		if x < math.MinInt || x >= -math.MinInt {
			return arg{}, fmt.Errorf("%w: number %v out of range", ErrUnsupportedType, x)
		}
		return arg{kind: argInt, i: int(x)}, nil
	case json.Number:
		n, err := x.Int64()
		if err != nil {
			return arg{}, fmt.Errorf("%w: %q", ErrUnsupportedType, x.String())
		}
		return arg{kind: argInt, i: int(n)}, nil
	case civil.Date:
		return arg{kind: argDate, d: x}, nil
	case time.Time:
		return arg{kind: argTime, t: x}, nil
	case string:
		return classifyString(loc, x)
	}
	return arg{}, fmt.Errorf("%w: %T", ErrUnsupportedType, v)
}

func classifyString(loc *time.Location, s string) (arg, error) {
	s = strings.TrimSpace(s)
	if d, err := civil.ParseDate(s); err == nil {
		return arg{kind: argDate, d: d}, nil
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return arg{kind: argTime, t: t}, nil
		}
	}
	return arg{}, fmt.Errorf("%w: %q is neither a date nor a timestamp", ErrUnsupportedType, s)
}

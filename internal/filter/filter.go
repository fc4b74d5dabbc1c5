// Package filter turns caller selections (indices, index ranges, calendar
// dates, instants and their ranges) into predicates over an item and its
// position in an ordered collection.
package filter

import (
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"
)

var (
	// ErrUnsupported is returned when a resolver cannot handle a spec kind.
	ErrUnsupported = errors.New("unsupported filter")
)

// Kind enumerates the selection shapes a Spec can take.
type Kind int

const (
	KindAll Kind = iota
	KindIndex
	KindIndexRange
	KindAt
	KindBetween
	KindOnDate
	KindDateRange
)

func (k Kind) String() string {
	switch k {
	case KindAll:
		return "all"
	case KindIndex:
		return "index"
	case KindIndexRange:
		return "index range"
	case KindAt:
		return "timestamp"
	case KindBetween:
		return "timestamp range"
	case KindOnDate:
		return "date"
	case KindDateRange:
		return "date range"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Spec is a selection over an ordered collection. The zero value selects
// every item. Specs are built with the constructors in this package only.
type Spec struct {
	kind   Kind
	lo, hi int
	t0, t1 time.Time
	d0, d1 civil.Date
}

// All selects every item.
func All() Spec { return Spec{kind: KindAll} }

// Index selects the item at i. Negative values count from the end.
func Index(i int) Spec { return Spec{kind: KindIndex, lo: i} }

// IndexRange selects the items in [lo, hi).
func IndexRange(lo, hi int) Spec { return Spec{kind: KindIndexRange, lo: lo, hi: hi} }

// At selects items whose time range contains t, with the precision
// widening described on Ranged.
func At(t time.Time) Spec { return Spec{kind: KindAt, t0: t} }

// Between selects items whose time range overlaps [from, to].
func Between(from, to time.Time) Spec { return Spec{kind: KindBetween, t0: from, t1: to} }

// OnDate selects items whose time range touches the calendar date d.
func OnDate(d civil.Date) Spec { return Spec{kind: KindOnDate, d0: d} }

// DateRange selects items whose time range overlaps the dates [from, to].
func DateRange(from, to civil.Date) Spec { return Spec{kind: KindDateRange, d0: from, d1: to} }

// Kind reports the selection shape.
func (s Spec) Kind() Kind { return s.kind }

func (s Spec) String() string {
	switch s.kind {
	case KindIndex:
		return fmt.Sprintf("%d", s.lo)
	case KindIndexRange:
		return fmt.Sprintf("%d:%d", s.lo, s.hi)
	case KindAt:
		return s.t0.Format(time.DateTime)
	case KindBetween:
		return s.t0.Format(time.DateTime) + " .. " + s.t1.Format(time.DateTime)
	case KindOnDate:
		return s.d0.String()
	case KindDateRange:
		return s.d0.String() + " .. " + s.d1.String()
	}
	return "all"
}

// Predicate reports whether the item at index i is selected.
type Predicate[T any] func(item T, i int) bool

// Resolver builds a predicate for a collection of the given length.
type Resolver[T any] func(length int, spec Spec) (Predicate[T], error)

// Spanned is implemented by items that cover a time range.
type Spanned interface {
	// Span returns the covered range. ok is false when the item has none.
	Span() (start, end time.Time, ok bool)
}

// normalize maps an end-relative index onto [0, length).
func normalize(i, length int) int {
	if i < 0 {
		return length + i
	}
	return i
}

func matchAll[T any](T, int) bool { return true }

func indexPredicate[T any](length int, spec Spec) (Predicate[T], bool) {
	switch spec.kind {
	case KindAll:
		return matchAll[T], true
	case KindIndex:
		want := normalize(spec.lo, length)
		return func(_ T, i int) bool { return i == want }, true
	case KindIndexRange:
		lo, hi := normalize(spec.lo, length), normalize(spec.hi, length)
		return func(_ T, i int) bool { return lo <= i && i < hi }, true
	}
	return nil, false
}

// IndexOnly resolves index based specs for collections whose items carry no
// time range. Date and timestamp specs fail with ErrUnsupported.
func IndexOnly[T any](length int, spec Spec) (Predicate[T], error) {
	if p, ok := indexPredicate[T](length, spec); ok {
		return p, nil
	}
	return nil, fmt.Errorf("%w: %s on an index-only collection", ErrUnsupported, spec.kind)
}

// Ranged resolves every spec kind for items implementing Spanned. Items
// without a span never match a date or timestamp selection.
//
// A single timestamp is matched loosely: when its seconds are zero the item
// range is widened to whole minutes, and when its minutes are zero too, to
// whole hours. A query for "09:00" therefore matches an event logged at
// 09:00:42.
func Ranged[T Spanned](length int, spec Spec) (Predicate[T], error) {
	if p, ok := indexPredicate[T](length, spec); ok {
		return p, nil
	}

	var overlaps func(start, end time.Time) bool
	switch spec.kind {
	case KindAt:
		q := spec.t0
		overlaps = func(start, end time.Time) bool { return containsInstant(q, start, end) }
	case KindBetween:
		from, to := spec.t0, spec.t1
		overlaps = func(start, end time.Time) bool {
			return !from.After(end) && !start.After(to)
		}
	case KindOnDate:
		d := spec.d0
		overlaps = func(start, end time.Time) bool {
			return !civil.DateOf(start).After(d) && !d.After(civil.DateOf(end))
		}
	case KindDateRange:
		from, to := spec.d0, spec.d1
		overlaps = func(start, end time.Time) bool {
			return !from.After(civil.DateOf(end)) && !civil.DateOf(start).After(to)
		}
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, spec.kind)
	}

	return func(item T, _ int) bool {
		start, end, ok := item.Span()
		if !ok {
			return false
		}
		return overlaps(start, end)
	}, nil
}

// containsInstant widens the item range in the query's zone, so a query for
// the top of an hour matches that hour on the clock the query was given in.
func containsInstant(q, start, end time.Time) bool {
	start = start.In(q.Location()).Truncate(time.Second)
	end = end.In(q.Location()).Truncate(time.Second)
	if q.Second() == 0 {
		start = withClock(start, start.Hour(), start.Minute(), 0)
		end = withClock(end, end.Hour(), end.Minute(), 59)
		if q.Minute() == 0 {
			start = withClock(start, start.Hour(), 0, 0)
			end = withClock(end, end.Hour(), 59, 59)
		}
	}
	return !start.After(q) && !q.After(end)
}

func withClock(t time.Time, hour, minute, second int) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), hour, minute, second, 0, t.Location())
}

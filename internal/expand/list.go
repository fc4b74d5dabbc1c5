// Package expand implements an ordered collection whose items can be
// individually expanded or collapsed, and which renders collapsed runs as
// ellipses so large histories stay short when shown to an agent.
package expand

import (
	"context"
	"errors"
	"fmt"
	"iter"

	"github.com/felixgeelhaar/hemv/internal/filter"
	"github.com/felixgeelhaar/hemv/internal/hint"
)

var (
	ErrOutOfRange   = errors.New("index out of range")
	ErrNoCloseMatch = errors.New("no close matches found")
	ErrNoSearcher   = errors.New("collection is not searchable")
)

// NoMatchMessage is relayed to the agent when a search selects nothing.
const NoMatchMessage = "No children matching search query. Expanded all nodes so you can check manually."

// Searcher returns the indices of items relevant to query, best first.
// closeMatch asks for the stricter selection.
type Searcher[T any] func(ctx context.Context, query string, items []T, closeMatch bool) ([]int, error)

// DeepCollapser is implemented by items that hold expand state of their own.
type DeepCollapser interface {
	CollapseDeep()
}

// List is an ordered, fixed-size collection with one expanded flag per item.
// All flags start collapsed.
type List[T any] struct {
	items    []T
	expanded []bool
	resolve  filter.Resolver[T]
	search   Searcher[T]
}

// New wraps items. resolve turns filter specs into predicates; search may be
// nil for collections that cannot be searched.
func New[T any](items []T, resolve filter.Resolver[T], search Searcher[T]) *List[T] {
	return &List[T]{
		items:    items,
		expanded: make([]bool, len(items)),
		resolve:  resolve,
		search:   search,
	}
}

// Expand marks every item selected by spec as expanded.
func (l *List[T]) Expand(spec filter.Spec) error {
	return l.set(true, spec)
}

// Collapse marks every item selected by spec as collapsed.
func (l *List[T]) Collapse(spec filter.Spec) error {
	return l.set(false, spec)
}

// CollapseAllBut leaves exactly the items selected by spec expanded.
func (l *List[T]) CollapseAllBut(spec filter.Spec) error {
	match, err := l.resolve(len(l.items), spec)
	if err != nil {
		return err
	}
	for i, it := range l.items {
		l.expanded[i] = match(it, i)
	}
	return nil
}

// CollapseDeep collapses this collection and every nested one.
func (l *List[T]) CollapseDeep() {
	for i, it := range l.items {
		l.expanded[i] = false
		if dc, ok := any(it).(DeepCollapser); ok {
			dc.CollapseDeep()
		}
	}
}

func (l *List[T]) set(state bool, spec filter.Spec) error {
	match, err := l.resolve(len(l.items), spec)
	if err != nil {
		return err
	}
	for i, it := range l.items {
		if match(it, i) {
			l.expanded[i] = state
		}
	}
	return nil
}

func (l *List[T]) setAll(state bool) {
	for i := range l.expanded {
		l.expanded[i] = state
	}
}

// Search collapses the collection and expands the items relevant to query.
//
// When nothing matches and closeMatch is set, ErrNoCloseMatch is returned and
// the collection stays collapsed. Otherwise every item is expanded so the
// agent can look for itself, and a recoverable hint is returned.
func (l *List[T]) Search(ctx context.Context, query string, closeMatch bool) (*List[T], error) {
	if l.search == nil {
		return nil, ErrNoSearcher
	}
	l.setAll(false)

	indices, err := l.search(ctx, query, l.items, closeMatch)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", query, err)
	}

	if len(indices) == 0 {
		if closeMatch {
			return nil, ErrNoCloseMatch
		}
		l.setAll(true)
		return l, hint.New(NoMatchMessage)
	}

	for _, i := range indices {
		if i < 0 || i >= len(l.items) {
			return nil, fmt.Errorf("%w: searcher returned %d (length %d)", ErrOutOfRange, i, len(l.items))
		}
		l.expanded[i] = true
	}
	return l, nil
}

// Len returns the number of items.
func (l *List[T]) Len() int {
	return len(l.items)
}

// At returns the item at i.
func (l *List[T]) At(i int) (T, error) {
	if i < 0 || i >= len(l.items) {
		var zero T
		return zero, fmt.Errorf("%w: index %d (length %d)", ErrOutOfRange, i, len(l.items))
	}
	return l.items[i], nil
}

// All iterates over the items in order.
func (l *List[T]) All() iter.Seq2[int, T] {
	return func(yield func(int, T) bool) {
		for i, it := range l.items {
			if !yield(i, it) {
				return
			}
		}
	}
}

// Items returns a copy of the items.
func (l *List[T]) Items() []T {
	out := make([]T, len(l.items))
	copy(out, l.items)
	return out
}

// Expanded returns a copy of the expanded flags.
func (l *List[T]) Expanded() []bool {
	out := make([]bool, len(l.expanded))
	copy(out, l.expanded)
	return out
}

// IsExpanded reports the flag at i; out of range indices are collapsed.
func (l *List[T]) IsExpanded(i int) bool {
	return i >= 0 && i < len(l.expanded) && l.expanded[i]
}

// AnyExpanded reports whether at least one item is expanded.
func (l *List[T]) AnyExpanded() bool {
	for _, s := range l.expanded {
		if s {
			return true
		}
	}
	return false
}

// Searcher returns the search backend, which may be nil.
func (l *List[T]) Searcher() Searcher[T] {
	return l.search
}

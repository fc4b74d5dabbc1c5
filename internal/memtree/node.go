// Package memtree wraps a hierarchical summary of past events in an
// expandable tree. Every non-leaf node exposes its children as an
// expand.List, so an agent can open and close subtrees, filter them by index
// or time, and run semantic searches over them.
package memtree

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"reflect"
	"sync"
	"time"

	"github.com/felixgeelhaar/hemv/internal/expand"
	"github.com/felixgeelhaar/hemv/internal/filter"
	"github.com/felixgeelhaar/hemv/internal/search"
)

// ErrShape is returned when a value with children does not carry the
// information needed to render it as a summary.
var ErrShape = errors.New("non-leaf value does not satisfy the summary contract")

// Timed values cover a span of time.
type Timed interface {
	TimeRange() (start, end time.Time)
}

// Summarized is required of every value that has children.
type Summarized interface {
	Timed
	NLSummary() string
}

// Indexable values provide the texts they are searched by.
type Indexable interface {
	IndexContent() []string
}

// Attributed values expose additional named domain attributes.
type Attributed interface {
	Attr(name string) (any, bool)
}

// Kinded values name their own kind for the verbose header. Without it the
// Go type name is used.
type Kinded interface {
	Kind() string
}

// Extractor returns the children of a value. A value without children is a
// leaf.
type Extractor[V any] func(V) []V

type options struct {
	params search.Params
}

// Option tunes the root of a tree.
type Option func(*options)

// WithParams overrides the search parameters of the root node.
func WithParams(p search.Params) Option {
	return func(o *options) { o.params = p }
}

// Node is one vertex of the expandable tree. It references the wrapped value
// and never modifies it.
type Node[V any] struct {
	value    V
	children *expand.List[*Node[V]]
	score    search.Scorer[*Node[V]]

	embeddings search.Cache

	leavesOnce sync.Once
	leaves     *expand.List[*Node[V]]
}

// New builds the tree rooted at value. Children share the extractor and the
// scorer; options only apply to the root.
func New[V any](value V, extract Extractor[V], score search.Scorer[*Node[V]], opts ...Option) (*Node[V], error) {
	o := options{params: search.DefaultParams()}
	for _, opt := range opts {
		opt(&o)
	}
	if err := o.params.Validate(); err != nil {
		return nil, err
	}
	return build(value, extract, score, o.params)
}

func build[V any](value V, extract Extractor[V], score search.Scorer[*Node[V]], p search.Params) (*Node[V], error) {
	raw := extract(value)
	if len(raw) > 0 {
		if err := checkShape(value); err != nil {
			return nil, err
		}
	}

	kids := make([]*Node[V], 0, len(raw))
	for i, c := range raw {
		child, err := build(c, extract, score, search.DefaultParams())
		if err != nil {
			return nil, fmt.Errorf("child %d: %w", i, err)
		}
		kids = append(kids, child)
	}

	n := &Node[V]{value: value, score: score}
	var searcher expand.Searcher[*Node[V]]
	if score != nil {
		searcher = search.NewSearcher(score, p)
	}
	n.children = expand.New(kids, filter.Ranged[*Node[V]], searcher)
	return n, nil
}

func checkShape(v any) error {
	s, ok := v.(Summarized)
	if !ok {
		return fmt.Errorf("%w: %s has no time range or summary", ErrShape, typeName(v))
	}
	start, end := s.TimeRange()
	if end.Before(start) {
		return fmt.Errorf("%w: %s ends (%s) before it starts (%s)", ErrShape, typeName(v),
			end.Format(time.RFC3339), start.Format(time.RFC3339))
	}
	return nil
}

// Data returns the wrapped value.
func (n *Node[V]) Data() V {
	return n.value
}

// Attr reads a named attribute of the wrapped value.
func (n *Node[V]) Attr(name string) (any, bool) {
	if a, ok := any(n.value).(Attributed); ok {
		return a.Attr(name)
	}
	return nil, false
}

// Summary returns the natural-language summary, empty for plain leaves.
func (n *Node[V]) Summary() string {
	if s, ok := any(n.value).(Summarized); ok {
		return s.NLSummary()
	}
	return ""
}

// Span implements filter.Spanned.
func (n *Node[V]) Span() (start, end time.Time, ok bool) {
	t, ok := any(n.value).(Timed)
	if !ok {
		return time.Time{}, time.Time{}, false
	}
	start, end = t.TimeRange()
	return start, end, true
}

// Fragments implements search.Document.
func (n *Node[V]) Fragments() []string {
	switch v := any(n.value).(type) {
	case Indexable:
		return v.IndexContent()
	case Summarized:
		return []string{v.NLSummary()}
	}
	return nil
}

// EmbeddingCache implements search.Document.
func (n *Node[V]) EmbeddingCache() *search.Cache {
	return &n.embeddings
}

func (n *Node[V]) IsLeaf() bool {
	return n.children.Len() == 0
}

// Children returns the expandable list of child nodes.
func (n *Node[V]) Children() *expand.List[*Node[V]] {
	return n.children
}

func (n *Node[V]) Len() int {
	return n.children.Len()
}

// At returns the i-th child.
func (n *Node[V]) At(i int) (*Node[V], error) {
	return n.children.At(i)
}

func (n *Node[V]) Expand(spec filter.Spec) error {
	return n.children.Expand(spec)
}

func (n *Node[V]) Collapse(spec filter.Spec) error {
	return n.children.Collapse(spec)
}

func (n *Node[V]) CollapseAllBut(spec filter.Spec) error {
	return n.children.CollapseAllBut(spec)
}

// CollapseDeep collapses this node and all of its descendants.
func (n *Node[V]) CollapseDeep() {
	n.children.CollapseDeep()
}

// Search expands the children relevant to query. See expand.List.Search.
func (n *Node[V]) Search(ctx context.Context, query string, closeMatch bool) (*Node[V], error) {
	res, err := n.children.Search(ctx, query, closeMatch)
	if res == nil {
		return nil, err
	}
	return n, err
}

// AllLeaves returns the descendant leaves in depth-first order as a flat,
// index-filterable list that shares this node's search backend. A leaf
// yields a list holding only itself. The list is built once.
func (n *Node[V]) AllLeaves() *expand.List[*Node[V]] {
	n.leavesOnce.Do(func() {
		var leaves []*Node[V]
		if n.IsLeaf() {
			leaves = []*Node[V]{n}
		} else {
			for _, c := range n.children.Items() {
				leaves = append(leaves, c.AllLeaves().Items()...)
			}
		}
		n.leaves = expand.New(leaves, filter.IndexOnly[*Node[V]], n.children.Searcher())
	})
	return n.leaves
}

// Walk yields n and all of its descendants, parents before children.
func (n *Node[V]) Walk() iter.Seq[*Node[V]] {
	return func(yield func(*Node[V]) bool) {
		n.walk(yield)
	}
}

func (n *Node[V]) walk(yield func(*Node[V]) bool) bool {
	if !yield(n) {
		return false
	}
	for _, c := range n.children.Items() {
		if !c.walk(yield) {
			return false
		}
	}
	return true
}

// SimilarityScorer adapts a similarity backend to tree nodes.
func SimilarityScorer[V any](sim *search.Similarity) search.Scorer[*Node[V]] {
	return func(ctx context.Context, query string, n *Node[V]) (float64, error) {
		return sim.Score(ctx, query, n)
	}
}

func typeName(v any) string {
	if k, ok := v.(Kinded); ok {
		return k.Kind()
	}
	t := reflect.TypeOf(v)
	if t == nil {
		return "nil"
	}
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return t.Name()
}

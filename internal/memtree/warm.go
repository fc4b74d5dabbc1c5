package memtree

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/felixgeelhaar/hemv/internal/search"
)

// Warm computes the fragment embeddings of every node in the tree so later
// searches only embed the query. At most concurrency nodes are embedded at a
// time; values below one mean one. Further roots are warmed in the same pool.
func Warm[V any](ctx context.Context, root *Node[V], sim *search.Similarity, concurrency int, more ...*Node[V]) error {
	if sim == nil {
		return nil
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(concurrency, 1))

walk:
	for _, r := range append([]*Node[V]{root}, more...) {
		for n := range r.Walk() {
			if gctx.Err() != nil {
				break walk
			}
			g.Go(func() error {
				if _, err := sim.Vectors(gctx, n); err != nil {
					return fmt.Errorf("warm %s: %w", typeName(n.value), err)
				}
				return nil
			})
		}
	}
	if err := g.Wait(); err != nil {
		return err
	}
	return ctx.Err()
}

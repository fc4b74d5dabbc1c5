// Package search selects the items of a collection that are relevant to a
// free-text query. Similarity scores are normalized with a softmax and the
// smallest set of items holding the configured probability mass (nucleus,
// or top-p, selection) is kept, minus any item whose raw score is too low.
package search

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"

	"github.com/go-playground/validator/v10"
	"gonum.org/v1/gonum/floats"

	"github.com/felixgeelhaar/hemv/internal/expand"
)

// Params tunes the selection. The close-match pair is stricter and is used
// when the caller only wants to know whether something genuinely relevant
// exists.
type Params struct {
	TopP                float64 `mapstructure:"top_p" yaml:"top_p" validate:"gt=0,lte=1"`
	MinCosSim           float64 `mapstructure:"min_cos_sim" yaml:"min_cos_sim" validate:"gte=-1,lte=1"`
	CloseMatchTopP      float64 `mapstructure:"close_match_top_p" yaml:"close_match_top_p" validate:"gt=0,lte=1"`
	CloseMatchMinCosSim float64 `mapstructure:"close_match_min_cos_sim" yaml:"close_match_min_cos_sim" validate:"gte=-1,lte=1"`
}

// DefaultParams returns the browsing defaults.
func DefaultParams() Params {
	return Params{
		TopP:                0.5,
		MinCosSim:           0.2,
		CloseMatchTopP:      0.4,
		CloseMatchMinCosSim: 0.7,
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks that every knob is in range.
func (p Params) Validate() error {
	if err := validate.Struct(p); err != nil {
		return fmt.Errorf("invalid search params: %w", err)
	}
	return nil
}

// For returns the nucleus threshold and score floor for the given mode.
func (p Params) For(closeMatch bool) (topP, minCosSim float64) {
	if closeMatch {
		return p.CloseMatchTopP, p.CloseMatchMinCosSim
	}
	return p.TopP, p.MinCosSim
}

// Select returns the indices of the selected scores, best first.
//
// Scores are turned into probabilities with a softmax and ranked. The
// shortest ranked prefix whose cumulative probability reaches topP is kept
// (never fewer than one item), then items whose raw score does not exceed
// minCosSim are dropped.
func Select(scores []float64, topP, minCosSim float64) []int {
	n := len(scores)
	if n == 0 {
		return nil
	}

	lse := floats.LogSumExp(scores)
	probs := make([]float64, n)
	for i, s := range scores {
		probs[i] = math.Exp(s - lse)
	}

	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return cmp.Compare(scores[b], scores[a])
	})

	ranked := make([]float64, n)
	for i, idx := range order {
		ranked[i] = probs[idx]
	}
	cum := floats.CumSum(make([]float64, n), ranked)

	k := 1
	for _, c := range cum {
		if c < topP {
			k++
		}
	}
	k = min(k, n)

	out := make([]int, 0, k)
	for _, idx := range order[:k] {
		if scores[idx] > minCosSim {
			out = append(out, idx)
		}
	}
	return out
}

// Scorer rates how similar item is to query.
type Scorer[T any] func(ctx context.Context, query string, item T) (float64, error)

// NewSearcher builds a collection search backend from a scorer.
func NewSearcher[T any](score Scorer[T], p Params) expand.Searcher[T] {
	return func(ctx context.Context, query string, items []T, closeMatch bool) ([]int, error) {
		scores := make([]float64, len(items))
		for i, it := range items {
			s, err := score(ctx, query, it)
			if err != nil {
				return nil, fmt.Errorf("score item %d: %w", i, err)
			}
			scores[i] = s
		}
		topP, floor := p.For(closeMatch)
		return Select(scores, topP, floor), nil
	}
}

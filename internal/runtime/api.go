package runtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/felixgeelhaar/hemv/internal/expand"
	"github.com/felixgeelhaar/hemv/internal/filter"
	"github.com/felixgeelhaar/hemv/internal/hint"
	"github.com/felixgeelhaar/hemv/internal/history"
	"github.com/felixgeelhaar/hemv/internal/memtree"
	"github.com/felixgeelhaar/hemv/internal/observe"
	"github.com/felixgeelhaar/hemv/internal/render"
	"github.com/felixgeelhaar/hemv/internal/search"
)

// Tree is an expandable history tree.
type Tree = memtree.Node[*history.Summary]

// MissingAnswerMessage is relayed when answer is called without one.
const MissingAnswerMessage = `answer(answer="...") is missing its required argument "answer".`

// Options configures an API.
type Options struct {
	Hierarchy history.Hierarchy
	// Embedder backs semantic search. Without one every search expands
	// everything.
	Embedder search.Embedder
	Params   search.Params
	// Now is reported by the now tool. The zero time means the wall clock.
	Now time.Time
	// Location is used for timestamps given without a zone.
	Location *time.Location
	Render   render.Config
	// Concurrency bounds the embedding warm-up.
	Concurrency int
	Observer    *observe.Observer
	// OnAnswer is called for every recorded answer.
	OnAnswer func(Answer)
}

// Answer is what the agent concluded.
type Answer struct {
	Reasoning string `json:"reasoning,omitempty"`
	Text      string `json:"answer"`
}

// target is the part of a view the navigation tools act on: the whole
// view, or a node inside it.
type target interface {
	Expand(filter.Spec) error
	Collapse(filter.Spec) error
	CollapseAllBut(filter.Spec) error
	CollapseDeep()
	Render(render.Config) string
}

// API is the surface an agent uses to look through a history. Depending on
// the hierarchy it shows either the whole tree or a list of nodes cut from
// it; nodes are addressed by their path of child indices from the top.
type API struct {
	root *Tree
	list *expand.List[*Tree]

	now      time.Time
	loc      *time.Location
	render   render.Config
	obs      *observe.Observer
	onAnswer func(Answer)

	mu     sync.Mutex
	answer *Answer
}

// NewAPI builds the view, computes the search embeddings of every node it
// exposes and leaves everything collapsed.
func NewAPI(ctx context.Context, h *history.Summary, opts Options) (*API, error) {
	if h == nil {
		return nil, errors.New("history is required")
	}
	if opts.Hierarchy == "" {
		opts.Hierarchy = history.Deep
	}
	if opts.Params == (search.Params{}) {
		opts.Params = search.DefaultParams()
	}
	if opts.Render == (render.Config{}) {
		opts.Render = render.Default
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Observer == nil {
		opts.Observer = observe.Nop()
	}

	a := &API{
		now:      opts.Now,
		loc:      opts.Location,
		render:   opts.Render,
		obs:      opts.Observer,
		onAnswer: opts.OnAnswer,
	}

	sim := search.NewSimilarity(opts.Embedder)
	score := memtree.SimilarityScorer[*history.Summary](sim)
	build := func(s *history.Summary) (*Tree, error) {
		return memtree.New(s, history.Children, score, memtree.WithParams(opts.Params))
	}

	var warm []*Tree
	switch opts.Hierarchy {
	case history.Deep:
		root, err := build(h)
		if err != nil {
			return nil, err
		}
		a.root = root
		warm = []*Tree{root}

	case history.PredefinedOnly, history.PredefinedParents:
		pick := history.Predefined
		if opts.Hierarchy == history.PredefinedParents {
			pick = history.ParentsOfPredefined
		}
		var nodes []*Tree
		for i, s := range pick(h) {
			n, err := build(s)
			if err != nil {
				return nil, fmt.Errorf("node %d: %w", i, err)
			}
			nodes = append(nodes, n)
		}
		var searcher expand.Searcher[*Tree]
		if len(nodes) > 0 {
			searcher = search.NewSearcher(score, opts.Params)
		}
		a.list = expand.New(nodes, filter.Ranged[*Tree], searcher)
		warm = nodes

	case history.Flat:
		root, err := build(h)
		if err != nil {
			return nil, err
		}
		a.list = root.AllLeaves()
		warm = a.list.Items()

	default:
		return nil, fmt.Errorf("%w: %q", history.ErrUnknownHierarchy, opts.Hierarchy)
	}

	if len(warm) > 0 {
		err := a.obs.Trace(ctx, "warm", func(ctx context.Context) error {
			return memtree.Warm(ctx, warm[0], sim, opts.Concurrency, warm[1:]...)
		}, attribute.Int("roots", len(warm)))
		if err != nil {
			return nil, fmt.Errorf("failed to compute search embeddings: %w", err)
		}
	}

	a.top().CollapseDeep()

	a.obs.Log().Info().
		Str("hierarchy", string(opts.Hierarchy)).
		Int("roots", len(warm)).
		Msg("history view ready")
	return a, nil
}

func (a *API) top() target {
	if a.root != nil {
		return a.root
	}
	return a.list
}

// Deep reports whether the view is the whole tree.
func (a *API) Deep() bool {
	return a.root != nil
}

func (a *API) locate(path []int) (target, error) {
	if len(path) == 0 {
		return a.top(), nil
	}

	cur := a.root
	rest := path
	if cur == nil {
		n, err := a.list.At(normalize(path[0], a.list.Len()))
		if err != nil {
			return nil, fmt.Errorf("path %v: %w", path, err)
		}
		cur, rest = n, path[1:]
	}
	for _, i := range rest {
		n, err := cur.At(normalize(i, cur.Len()))
		if err != nil {
			return nil, fmt.Errorf("path %v: %w", path, err)
		}
		cur = n
	}
	return cur, nil
}

func normalize(i, length int) int {
	if i < 0 {
		return i + length
	}
	return i
}

// Render shows the node at path, or the whole view for an empty path.
func (a *API) Render(path []int, cfg render.Config) (string, error) {
	t, err := a.locate(path)
	if err != nil {
		return "", err
	}
	return t.Render(cfg), nil
}

// String renders the whole view with the configured layout.
func (a *API) String() string {
	return a.top().Render(a.render)
}

func (a *API) Expand(path []int, spec filter.Spec) error {
	t, err := a.locate(path)
	if err != nil {
		return err
	}
	return t.Expand(spec)
}

func (a *API) Collapse(path []int, spec filter.Spec) error {
	t, err := a.locate(path)
	if err != nil {
		return err
	}
	return t.Collapse(spec)
}

func (a *API) CollapseAllBut(path []int, spec filter.Spec) error {
	t, err := a.locate(path)
	if err != nil {
		return err
	}
	return t.CollapseAllBut(spec)
}

// CollapseDeep collapses the node at path and everything below it.
func (a *API) CollapseDeep(path []int) error {
	t, err := a.locate(path)
	if err != nil {
		return err
	}
	t.CollapseDeep()
	return nil
}

// Search expands the children of the node at path that are relevant to
// query. See expand.List.Search for the outcomes.
func (a *API) Search(ctx context.Context, path []int, query string, closeMatch bool) error {
	t, err := a.locate(path)
	if err != nil {
		return err
	}
	return a.obs.Trace(ctx, "search", func(ctx context.Context) error {
		var err error
		switch v := t.(type) {
		case *Tree:
			_, err = v.Search(ctx, query, closeMatch)
		case *expand.List[*Tree]:
			_, err = v.Search(ctx, query, closeMatch)
		}
		return err
	}, attribute.String("query", query), attribute.Bool("close_match", closeMatch))
}

// Now returns the current time as the agent should see it.
func (a *API) Now() time.Time {
	if a.now.IsZero() {
		return time.Now().In(a.loc)
	}
	return a.now
}

// Answer records the agent's answer. A lone reasoning is taken as the
// answer; with neither given the call is a hint.
func (a *API) Answer(reasoning, answer string) error {
	if answer == "" {
		if reasoning == "" {
			return hint.New(MissingAnswerMessage)
		}
		answer, reasoning = reasoning, ""
	}
	ans := Answer{Reasoning: reasoning, Text: answer}

	a.mu.Lock()
	a.answer = &ans
	a.mu.Unlock()

	a.obs.Log().Info().Str("answer", answer).Msg("answer recorded")
	if a.onAnswer != nil {
		a.onAnswer(ans)
	}
	return nil
}

func (a *API) clearAnswer() {
	a.mu.Lock()
	a.answer = nil
	a.mu.Unlock()
}

// Answered returns the last recorded answer.
func (a *API) Answered() (Answer, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.answer == nil {
		return Answer{}, false
	}
	return *a.answer, true
}

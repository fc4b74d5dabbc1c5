package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/hemv/internal/config"
	"github.com/felixgeelhaar/hemv/internal/credential"
	"github.com/felixgeelhaar/hemv/internal/embed"
	"github.com/felixgeelhaar/hemv/internal/history"
	"github.com/felixgeelhaar/hemv/internal/observe"
	"github.com/felixgeelhaar/hemv/internal/provider"
	"github.com/felixgeelhaar/hemv/internal/runtime"
	"github.com/felixgeelhaar/hemv/internal/store"
)

var errNoHistory = errors.New("no history file: pass --history or set history in hemv.yaml")

// apiKeyEnv is consulted when no key is stored for a service.
var apiKeyEnv = map[string]string{
	"openai":    "OPENAI_API_KEY",
	"gemini":    "GEMINI_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
}

// env is what a command needs once configuration is loaded.
type env struct {
	opts  *options
	cfg   *config.Config
	obs   *observe.Observer
	store *store.SQLiteStore
	vault *credential.Vault
}

func setup(cmd *cobra.Command, opts *options) (*env, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}

	var obs *observe.Observer
	if opts.jsonLogs {
		obs = observe.NewJSON(cmd.ErrOrStderr(), opts.verbose)
	} else {
		obs = observe.New(cmd.ErrOrStderr(), opts.verbose)
	}

	s, err := store.NewSQLiteStore(filepath.Join(cfg.DataDir, "hemv.db"))
	if err != nil {
		return nil, fmt.Errorf("failed to init store: %w", err)
	}
	m, err := credential.NewManager()
	if err != nil {
		s.Close()
		return nil, err
	}
	return &env{
		opts:  opts,
		cfg:   cfg,
		obs:   obs,
		store: s,
		vault: credential.NewVault(s, m),
	}, nil
}

func (e *env) Close() error {
	e.obs.Close()
	return e.store.Close()
}

// apiKey returns the stored key of a service, falling back to its
// environment variable.
func (e *env) apiKey(service string) string {
	key, err := e.vault.Get(service + ".api_key")
	if err != nil {
		e.obs.Log().Warn().Str("service", service).Err(err).Msg("failed to read stored API key")
	}
	if key == "" {
		if name, ok := apiKeyEnv[service]; ok {
			key = os.Getenv(name)
		}
	}
	return key
}

func (e *env) historyFile() (string, error) {
	if e.opts.historyPath != "" {
		return e.opts.historyPath, nil
	}
	if e.cfg.History != "" {
		return e.cfg.History, nil
	}
	return "", errNoHistory
}

// newAPI loads the history and builds the browsing surface. The closer
// releases the embedder.
func (e *env) newAPI(ctx context.Context, onAnswer func(runtime.Answer)) (*runtime.API, string, func() error, error) {
	noop := func() error { return nil }

	path, err := e.historyFile()
	if err != nil {
		return nil, "", noop, err
	}
	h, err := history.Load(path)
	if err != nil {
		return nil, "", noop, err
	}
	res := history.Validate(h)
	for _, w := range res.Warnings {
		e.obs.Log().Warn().Str("history", path).Msg(w)
	}
	if err := res.Err(); err != nil {
		return nil, "", noop, err
	}

	level := e.cfg.Hierarchy
	if e.opts.hierarchy != "" {
		level = e.opts.hierarchy
	}
	hierarchy, err := history.ParseHierarchy(level)
	if err != nil {
		return nil, "", noop, err
	}

	loc, err := e.cfg.Location()
	if err != nil {
		return nil, "", noop, err
	}

	var cache embed.Store
	if e.cfg.Embedder.Cache {
		cache = e.store
	}
	emb, closeEmb, err := embed.New(ctx, e.cfg.EmbedSettings(e.apiKey(e.cfg.Embedder.Backend)), cache)
	if err != nil {
		return nil, "", noop, fmt.Errorf("failed to init embedder: %w", err)
	}

	opts := runtime.Options{
		Hierarchy:   hierarchy,
		Params:      e.cfg.Search,
		Location:    loc,
		Render:      e.cfg.RenderConfig(),
		Concurrency: e.cfg.Concurrency,
		Observer:    e.obs,
		OnAnswer:    onAnswer,
	}
	if emb != nil {
		opts.Embedder = emb
	}
	api, err := runtime.NewAPI(ctx, h, opts)
	if err != nil {
		closeEmb()
		return nil, "", noop, err
	}
	return api, path, closeEmb, nil
}

func (e *env) providerSettings(name, model string) provider.Settings {
	s := provider.Settings{
		Name:    e.cfg.Provider.Name,
		Model:   e.cfg.Provider.Model,
		BaseURL: e.cfg.Provider.BaseURL,
	}
	if name != "" && name != s.Name {
		s.Name, s.Model, s.BaseURL = name, "", ""
	}
	if model != "" {
		s.Model = model
	}
	s.APIKey = e.apiKey(s.Name)
	return s
}

// callTool runs one of the API's tools with the given arguments.
func callTool(ctx context.Context, api *runtime.API, name string, args map[string]any) (string, error) {
	tools := runtime.NewToolRegistry()
	if err := api.Register(tools); err != nil {
		return "", err
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return "", err
	}
	return tools.Execute(ctx, "cli", provider.ToolCall{Name: name, Args: string(raw)})
}

// parsePath reads "0/1/-1" style node paths.
func parsePath(s string) ([]int, error) {
	s = strings.Trim(s, "/ ")
	if s == "" {
		return []int{}, nil
	}
	parts := strings.Split(s, "/")
	path := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, fmt.Errorf("path element %q is not an index", p)
		}
		path[i] = n
	}
	return path, nil
}

// filterArg turns --expand values into the filter argument of a tool.
func filterArg(values []string) (any, error) {
	vals := make([]any, len(values))
	for i, v := range values {
		if n, err := strconv.Atoi(v); err == nil {
			vals[i] = n
		} else {
			vals[i] = v
		}
	}
	switch len(vals) {
	case 1:
		return vals[0], nil
	case 2:
		return vals, nil
	}
	return nil, fmt.Errorf("a filter takes one or two values, got %d", len(vals))
}

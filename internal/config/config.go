// Package config loads hemv settings from hemv.yaml and HEMV_* environment
// variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"

	"github.com/felixgeelhaar/hemv/internal/embed"
	"github.com/felixgeelhaar/hemv/internal/guard"
	"github.com/felixgeelhaar/hemv/internal/render"
	"github.com/felixgeelhaar/hemv/internal/search"
)

// FileName is looked up in the working directory and the data directory.
const FileName = "hemv.yaml"

type Provider struct {
	Name    string `mapstructure:"name" validate:"oneof=openai ollama gemini anthropic stub"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url" validate:"omitempty,url"`
}

type Embedder struct {
	Backend       string        `mapstructure:"backend" validate:"oneof=openai ollama gemini hashing plugin none"`
	Model         string        `mapstructure:"model"`
	BaseURL       string        `mapstructure:"base_url" validate:"omitempty,url"`
	Dimension     int           `mapstructure:"dimension" validate:"gte=0"`
	Plugin        string        `mapstructure:"plugin" validate:"required_if=Backend plugin"`
	PluginArgs    []string      `mapstructure:"plugin_args"`
	RatePerSecond float64       `mapstructure:"rate_per_second" validate:"gte=0"`
	Burst         int           `mapstructure:"burst" validate:"gte=0"`
	MaxRetries    int           `mapstructure:"max_retries" validate:"gte=0"`
	MaxElapsed    time.Duration `mapstructure:"max_elapsed" validate:"gte=0"`
	// Cache keeps computed vectors in the sqlite store.
	Cache bool `mapstructure:"cache"`
}

type Render struct {
	Style  string `mapstructure:"style" validate:"oneof=default verbose outline"`
	Indent int    `mapstructure:"indent" validate:"gte=0,lte=8"`
}

// Config holds every setting hemv reads.
type Config struct {
	// History is the default history file.
	History     string        `mapstructure:"history"`
	Hierarchy   string        `mapstructure:"hierarchy" validate:"oneof=deep predefined predefined+ none"`
	Timezone    string        `mapstructure:"timezone" validate:"omitempty,timezone"`
	DataDir     string        `mapstructure:"data_dir" validate:"required"`
	Concurrency int           `mapstructure:"concurrency" validate:"gte=1,lte=64"`
	Provider    Provider      `mapstructure:"provider"`
	Embedder    Embedder      `mapstructure:"embedder"`
	Search      search.Params `mapstructure:"search"`
	Render      Render        `mapstructure:"render"`
	Guard       guard.Policy  `mapstructure:"guard"`
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every field against its constraints.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, len(verrs))
			for i, e := range verrs {
				msgs[i] = fmt.Sprintf("%s fails %s", e.Namespace(), e.Tag())
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// Location resolves the configured time zone. An empty zone is the local
// one.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(c.Timezone)
}

// RenderConfig returns the configured layout.
func (c *Config) RenderConfig() render.Config {
	var cfg render.Config
	switch c.Render.Style {
	case "verbose":
		cfg = render.Verbose
	case "outline":
		cfg = render.Outline
	default:
		cfg = render.Default
	}
	if c.Render.Indent > 0 {
		cfg.Indent = c.Render.Indent
	}
	return cfg
}

// EmbedSettings returns the embedder settings with the given API key.
func (c *Config) EmbedSettings(apiKey string) embed.Settings {
	e := c.Embedder
	return embed.Settings{
		Backend:       e.Backend,
		Model:         e.Model,
		APIKey:        apiKey,
		BaseURL:       e.BaseURL,
		Dimension:     e.Dimension,
		PluginPath:    e.Plugin,
		PluginArgs:    e.PluginArgs,
		RatePerSecond: e.RatePerSecond,
		Burst:         e.Burst,
		MaxRetries:    e.MaxRetries,
		MaxElapsed:    e.MaxElapsed,
	}
}

// DefaultDataDir is ~/.hemv, or .hemv when the home directory is unknown.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".hemv"
	}
	return filepath.Join(home, ".hemv")
}

func setDefaults(v *viper.Viper) {
	p := search.DefaultParams()
	g := guard.DefaultPolicy

	v.SetDefault("history", "")
	v.SetDefault("hierarchy", "deep")
	v.SetDefault("timezone", "")
	v.SetDefault("data_dir", DefaultDataDir())
	v.SetDefault("concurrency", 8)

	v.SetDefault("provider.name", "stub")
	v.SetDefault("provider.model", "")
	v.SetDefault("provider.base_url", "")

	v.SetDefault("embedder.backend", "hashing")
	v.SetDefault("embedder.model", "")
	v.SetDefault("embedder.base_url", "")
	v.SetDefault("embedder.dimension", embed.DefaultHashingDim)
	v.SetDefault("embedder.plugin", "")
	v.SetDefault("embedder.rate_per_second", 0)
	v.SetDefault("embedder.burst", 16)
	v.SetDefault("embedder.max_retries", 3)
	v.SetDefault("embedder.max_elapsed", 30*time.Second)
	v.SetDefault("embedder.cache", true)

	v.SetDefault("search.top_p", p.TopP)
	v.SetDefault("search.min_cos_sim", p.MinCosSim)
	v.SetDefault("search.close_match_top_p", p.CloseMatchTopP)
	v.SetDefault("search.close_match_min_cos_sim", p.CloseMatchMinCosSim)

	v.SetDefault("render.style", "default")
	v.SetDefault("render.indent", render.Default.Indent)

	v.SetDefault("guard.max_steps", g.MaxSteps)
	v.SetDefault("guard.max_prompt_tokens", g.MaxPromptTokens)
	v.SetDefault("guard.max_output_tokens", g.MaxOutputTokens)
	v.SetDefault("guard.max_searches", g.MaxSearches)
	v.SetDefault("guard.allowed_tools", g.AllowedTools)
}

// Load reads the configuration. With an explicit path the file must exist;
// otherwise hemv.yaml is looked up in the working directory and then in the
// default data directory, and defaults apply when neither has one.
// Environment variables override files: HEMV_PROVIDER_NAME sets
// provider.name.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("HEMV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(strings.TrimSuffix(FileName, filepath.Ext(FileName)))
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath(DefaultDataDir())
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when nothing is configured.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	_ = v.Unmarshal(cfg)
	return cfg
}

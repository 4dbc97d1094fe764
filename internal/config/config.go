package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/jobsearch-cli/internal/cost"
	"github.com/sells-group/jobsearch-cli/internal/resilience"
)

// Config holds the full application configuration.
type Config struct {
	Store      StoreConfig       `yaml:"store" mapstructure:"store"`
	Sources    SourcesConfig     `yaml:"sources" mapstructure:"sources"`
	Aggregate  AggregateConfig   `yaml:"aggregate" mapstructure:"aggregate"`
	Resilience resilience.Config `yaml:"resilience" mapstructure:"resilience"`
	Jina       JinaConfig        `yaml:"jina" mapstructure:"jina"`
	Perplexity PerplexityConfig  `yaml:"perplexity" mapstructure:"perplexity"`
	Anthropic  AnthropicConfig   `yaml:"anthropic" mapstructure:"anthropic"`
	OpenAI     OpenAIConfig      `yaml:"openai" mapstructure:"openai"`
	Pricing    PricingConfig     `yaml:"pricing" mapstructure:"pricing"`
	Scrape     ScrapeConfig      `yaml:"scrape" mapstructure:"scrape"`
	Server     ServerConfig      `yaml:"server" mapstructure:"server"`
	Log        LogConfig         `yaml:"log" mapstructure:"log"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// SourcesConfig points at the per-source YAML file.
type SourcesConfig struct {
	File string `yaml:"file" mapstructure:"file"`
}

// AggregateConfig configures the orchestrator.
type AggregateConfig struct {
	MinJobs        int           `yaml:"min_jobs" mapstructure:"min_jobs"`
	MinContacts    int           `yaml:"min_contacts" mapstructure:"min_contacts"`
	MaxResults     int           `yaml:"max_results" mapstructure:"max_results"`
	AdapterTimeout time.Duration `yaml:"adapter_timeout" mapstructure:"adapter_timeout"`
	TierBudget     time.Duration `yaml:"tier_budget" mapstructure:"tier_budget"`
}

// JinaConfig holds Jina AI Reader and Search settings.
type JinaConfig struct {
	Key           string `yaml:"key" mapstructure:"key"`
	BaseURL       string `yaml:"base_url" mapstructure:"base_url"`
	SearchBaseURL string `yaml:"search_base_url" mapstructure:"search_base_url"`
	// RemoveSelector is sent as X-Remove-Selector on Reader calls.
	RemoveSelector string `yaml:"remove_selector" mapstructure:"remove_selector"`
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// OpenAIConfig holds OpenAI API settings. BaseURL may point at any
// OpenAI-compatible endpoint.
type OpenAIConfig struct {
	Key     string `yaml:"key" mapstructure:"key"`
	BaseURL string `yaml:"base_url" mapstructure:"base_url"`
	Model   string `yaml:"model" mapstructure:"model"`
}

// PricingConfig holds per-provider pricing rates. Entries override the
// built-in defaults.
type PricingConfig struct {
	Anthropic  map[string]cost.ModelRate `yaml:"anthropic" mapstructure:"anthropic"`
	OpenAI     map[string]cost.ModelRate `yaml:"openai" mapstructure:"openai"`
	Perplexity cost.PerplexityRate       `yaml:"perplexity" mapstructure:"perplexity"`
}

// Rates merges configured pricing over cost.DefaultRates.
func (p PricingConfig) Rates() cost.Rates {
	r := cost.DefaultRates()
	for model, rate := range p.Anthropic {
		r.Anthropic[model] = rate
	}
	for model, rate := range p.OpenAI {
		r.OpenAI[model] = rate
	}
	if p.Perplexity.PerQuery > 0 {
		r.Perplexity.PerQuery = p.Perplexity.PerQuery
	}
	if p.Perplexity.Input > 0 {
		r.Perplexity.Input = p.Perplexity.Input
	}
	if p.Perplexity.Output > 0 {
		r.Perplexity.Output = p.Perplexity.Output
	}
	return r
}

// ScrapeConfig configures page fetching for website scrapers.
type ScrapeConfig struct {
	ExcludePaths  []string `yaml:"exclude_paths" mapstructure:"exclude_paths"`
	MaxConcurrent int      `yaml:"max_concurrent" mapstructure:"max_concurrent"`
	SearchCount   int      `yaml:"search_count" mapstructure:"search_count"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("JOBSEARCH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "jobsearch.db")
	v.SetDefault("store.max_conns", 10)
	v.SetDefault("store.min_conns", 2)
	v.SetDefault("sources.file", "sources.yaml")
	v.SetDefault("aggregate.min_jobs", 10)
	v.SetDefault("aggregate.min_contacts", 5)
	v.SetDefault("aggregate.max_results", 20)
	v.SetDefault("aggregate.adapter_timeout", "10s")
	v.SetDefault("aggregate.tier_budget", "20s")
	v.SetDefault("resilience.retry_max_attempts", 3)
	v.SetDefault("resilience.retry_initial_backoff_ms", 500)
	v.SetDefault("resilience.retry_max_backoff_ms", 5000)
	v.SetDefault("resilience.breaker_threshold", 5)
	v.SetDefault("resilience.breaker_reset_secs", 30)
	v.SetDefault("resilience.cooldown_secs", 60)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("scrape.exclude_paths", []string{"/blog/*", "/news/*", "/press/*", "/events/*"})
	v.SetDefault("scrape.max_concurrent", 3)
	v.SetDefault("scrape.search_count", 20)
	v.SetDefault("jina.key", "")
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("jina.remove_selector", "nav, footer, script, style")
	v.SetDefault("perplexity.key", "")
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar-pro")
	v.SetDefault("anthropic.key", "")
	v.SetDefault("anthropic.base_url", "")
	v.SetDefault("anthropic.model", "claude-haiku-4-5-20251001")
	v.SetDefault("openai.key", "")
	v.SetDefault("openai.base_url", "")
	v.SetDefault("openai.model", "gpt-4o-mini")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode depends on. Modes: "search",
// "serve", "migrate".
func (c *Config) Validate(mode string) error {
	var errs []string

	switch c.Store.Driver {
	case "sqlite", "postgres":
	default:
		errs = append(errs, fmt.Sprintf("store.driver must be sqlite or postgres, got %q", c.Store.Driver))
	}
	if c.Store.DatabaseURL == "" {
		errs = append(errs, "store.database_url is required")
	}

	switch mode {
	case "migrate":
	case "search", "serve":
		if c.Aggregate.MinJobs < 0 || c.Aggregate.MinContacts < 0 || c.Aggregate.MaxResults < 0 {
			errs = append(errs, "aggregate limits must be >= 0")
		}
		if c.Aggregate.AdapterTimeout < 0 || c.Aggregate.TierBudget < 0 {
			errs = append(errs, "aggregate timeouts must be >= 0")
		}
		if c.Scrape.MaxConcurrent < 1 || c.Scrape.MaxConcurrent > 20 {
			errs = append(errs, "scrape.max_concurrent must be between 1 and 20")
		}
		if mode == "serve" && c.Server.Port <= 0 {
			errs = append(errs, "server.port must be > 0")
		}
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: invalid: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}

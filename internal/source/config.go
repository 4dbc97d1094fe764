package source

import (
	"os"
	"time"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Kind tags which configuration block a SourceConfig carries.
type Kind string

const (
	KindCache      Kind = "cache"
	KindStore      Kind = "store"
	KindScraper    Kind = "scraper"
	KindAIFallback Kind = "ai_fallback"
)

// Scraper providers.
const (
	ProviderGreenhouse      = "greenhouse"
	ProviderLever           = "lever"
	ProviderSmartRecruiters = "smartrecruiters"
	ProviderJinaJobs        = "jina_jobs"
	ProviderWebsiteContacts = "website_contacts"
	ProviderLinkedInSearch  = "linkedin_search"
)

// AI providers.
const (
	ProviderAnthropic  = "anthropic"
	ProviderPerplexity = "perplexity"
	ProviderOpenAI     = "openai"
)

var scraperProviders = map[string]bool{
	ProviderGreenhouse:      true,
	ProviderLever:           true,
	ProviderSmartRecruiters: true,
	ProviderJinaJobs:        true,
	ProviderWebsiteContacts: true,
	ProviderLinkedInSearch:  true,
}

var aiProviders = map[string]bool{
	ProviderAnthropic:  true,
	ProviderPerplexity: true,
	ProviderOpenAI:     true,
}

const (
	defaultTimeout    = 10 * time.Second
	defaultTierBudget = 20 * time.Second
)

// Config is the top-level source configuration file.
type Config struct {
	Defaults DefaultsConfig `yaml:"defaults"`
	Sources  []SourceConfig `yaml:"sources"`
}

// DefaultsConfig holds values applied to sources that leave them unset.
type DefaultsConfig struct {
	Timeout    time.Duration   `yaml:"timeout"`
	TierBudget time.Duration   `yaml:"tier_budget"`
	RateLimit  RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig is a token bucket: RPS refill rate and Burst capacity.
// Zero RPS means unlimited.
type RateLimitConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

// SourceConfig configures one source. Exactly one of the kind blocks is set
// and it must match Kind.
type SourceConfig struct {
	Name      string          `yaml:"name"`
	Kind      Kind            `yaml:"kind"`
	Timeout   time.Duration   `yaml:"timeout"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`

	Cache   *CacheConfig   `yaml:"cache,omitempty"`
	Store   *StoreConfig   `yaml:"store,omitempty"`
	Scraper *ScraperConfig `yaml:"scraper,omitempty"`
	AI      *AIConfig      `yaml:"ai,omitempty"`
}

// CacheConfig configures the Tier 0 cache.
type CacheConfig struct {
	MaxEntries int           `yaml:"max_entries"`
	Durable    bool          `yaml:"durable"`
	JobTTL     time.Duration `yaml:"job_ttl"`
	ContactTTL time.Duration `yaml:"contact_ttl"`
}

// StoreConfig configures the Tier 1 structured store adapter.
type StoreConfig struct {
	Limit int `yaml:"limit"`
}

// ScraperConfig configures a Tier 2 scraper.
type ScraperConfig struct {
	Provider string        `yaml:"provider"`
	BaseURL  string        `yaml:"base_url,omitempty"`
	Boards   []BoardConfig `yaml:"boards,omitempty"`
	MaxPages int           `yaml:"max_pages,omitempty"`
}

// BoardConfig names one company board on an ATS provider.
type BoardConfig struct {
	Company string `yaml:"company"`
	Slug    string `yaml:"slug"`
}

// AIConfig configures the Tier 3 AI fallback.
type AIConfig struct {
	Provider   string  `yaml:"provider"`
	Model      string  `yaml:"model"`
	MaxTokens  int64   `yaml:"max_tokens"`
	MaxCostUSD float64 `yaml:"max_cost_usd"`
}

// Validate checks that the config is a consistent tagged variant.
func (c SourceConfig) Validate() error {
	if c.Name == "" {
		return eris.New("source: name is required")
	}
	blocks := 0
	for _, set := range []bool{c.Cache != nil, c.Store != nil, c.Scraper != nil, c.AI != nil} {
		if set {
			blocks++
		}
	}
	if blocks != 1 {
		return eris.Errorf("source %s: exactly one kind block is required, got %d", c.Name, blocks)
	}

	switch c.Kind {
	case KindCache:
		if c.Cache == nil {
			return eris.Errorf("source %s: kind %q requires a cache block", c.Name, c.Kind)
		}
	case KindStore:
		if c.Store == nil {
			return eris.Errorf("source %s: kind %q requires a store block", c.Name, c.Kind)
		}
	case KindScraper:
		if c.Scraper == nil {
			return eris.Errorf("source %s: kind %q requires a scraper block", c.Name, c.Kind)
		}
		if !scraperProviders[c.Scraper.Provider] {
			return eris.Errorf("source %s: unknown scraper provider %q", c.Name, c.Scraper.Provider)
		}
		switch c.Scraper.Provider {
		case ProviderGreenhouse, ProviderLever, ProviderSmartRecruiters:
			if len(c.Scraper.Boards) == 0 {
				return eris.Errorf("source %s: provider %s needs at least one board", c.Name, c.Scraper.Provider)
			}
		}
	case KindAIFallback:
		if c.AI == nil {
			return eris.Errorf("source %s: kind %q requires an ai block", c.Name, c.Kind)
		}
		if !aiProviders[c.AI.Provider] {
			return eris.Errorf("source %s: unknown ai provider %q", c.Name, c.AI.Provider)
		}
	default:
		return eris.Errorf("source %s: unknown kind %q", c.Name, c.Kind)
	}

	if c.Timeout < 0 {
		return eris.Errorf("source %s: timeout must not be negative", c.Name)
	}
	if c.RateLimit.RPS < 0 || c.RateLimit.Burst < 0 {
		return eris.Errorf("source %s: rate limit must not be negative", c.Name)
	}
	return nil
}

// Validate checks every source and rejects duplicate names.
func (c *Config) Validate() error {
	seen := make(map[string]bool, len(c.Sources))
	for _, sc := range c.Sources {
		if err := sc.Validate(); err != nil {
			return err
		}
		if seen[sc.Name] {
			return eris.Errorf("source: duplicate name %q", sc.Name)
		}
		seen[sc.Name] = true
	}
	return nil
}

// ByKind returns the sources of one kind in file order.
func (c *Config) ByKind(kind Kind) []SourceConfig {
	var out []SourceConfig
	for _, sc := range c.Sources {
		if sc.Kind == kind {
			out = append(out, sc)
		}
	}
	return out
}

// LoadConfig reads source config from a YAML file, applies defaults, and
// validates it.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "source: read config %s", path)
	}
	return ParseConfig(data)
}

// ParseConfig parses YAML source config, applies defaults, and validates it.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, eris.Wrap(err, "source: parse config")
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Defaults.Timeout <= 0 {
		c.Defaults.Timeout = defaultTimeout
	}
	if c.Defaults.TierBudget <= 0 {
		c.Defaults.TierBudget = defaultTierBudget
	}
	for i := range c.Sources {
		sc := &c.Sources[i]
		if sc.Timeout == 0 {
			sc.Timeout = c.Defaults.Timeout
		}
		if sc.RateLimit.RPS == 0 {
			sc.RateLimit = c.Defaults.RateLimit
		}
		if sc.RateLimit.RPS > 0 && sc.RateLimit.Burst == 0 {
			sc.RateLimit.Burst = 1
		}
	}
}

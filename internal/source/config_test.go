package source

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
defaults:
  timeout: 8s
  tier_budget: 15s
  rate_limit:
    rps: 2
    burst: 4
sources:
  - name: cache
    kind: cache
    cache:
      max_entries: 500
      durable: true
      job_ttl: 504h
  - name: index
    kind: store
    store:
      limit: 100
  - name: lever
    kind: scraper
    timeout: 5s
    rate_limit:
      rps: 1
    scraper:
      provider: lever
      boards:
        - company: Acme
          slug: acme
  - name: claude
    kind: ai_fallback
    ai:
      provider: anthropic
      model: claude-haiku-4-5
      max_tokens: 4096
      max_cost_usd: 0.5
`

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleConfig), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 8*time.Second, cfg.Defaults.Timeout)
	assert.Equal(t, 15*time.Second, cfg.Defaults.TierBudget)
	require.Len(t, cfg.Sources, 4)

	cache := cfg.Sources[0]
	require.NotNil(t, cache.Cache)
	assert.Equal(t, 504*time.Hour, cache.Cache.JobTTL)
	assert.True(t, cache.Cache.Durable)
	assert.Equal(t, 8*time.Second, cache.Timeout)
	assert.Equal(t, RateLimitConfig{RPS: 2, Burst: 4}, cache.RateLimit)

	lever := cfg.Sources[2]
	assert.Equal(t, 5*time.Second, lever.Timeout)
	assert.Equal(t, RateLimitConfig{RPS: 1, Burst: 1}, lever.RateLimit)
	require.Len(t, lever.Scraper.Boards, 1)
	assert.Equal(t, "acme", lever.Scraper.Boards[0].Slug)

	ai := cfg.ByKind(KindAIFallback)
	require.Len(t, ai, 1)
	assert.Equal(t, "claude-haiku-4-5", ai[0].AI.Model)
	assert.InDelta(t, 0.5, ai[0].AI.MaxCostUSD, 1e-9)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source: read config")
}

func TestParseConfig_Defaults(t *testing.T) {
	cfg, err := ParseConfig([]byte("sources: []\n"))
	require.NoError(t, err)
	assert.Equal(t, defaultTimeout, cfg.Defaults.Timeout)
	assert.Equal(t, defaultTierBudget, cfg.Defaults.TierBudget)
}

func TestParseConfig_BadYAML(t *testing.T) {
	_, err := ParseConfig([]byte("sources: [\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "source: parse config")
}

func TestSourceConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     SourceConfig
		wantErr string
	}{
		{"valid store", SourceConfig{Name: "s", Kind: KindStore, Store: &StoreConfig{}}, ""},
		{"missing name", SourceConfig{Kind: KindStore, Store: &StoreConfig{}}, "name is required"},
		{"no block", SourceConfig{Name: "s", Kind: KindStore}, "exactly one kind block"},
		{"two blocks", SourceConfig{Name: "s", Kind: KindStore, Store: &StoreConfig{}, Cache: &CacheConfig{}}, "exactly one kind block"},
		{"mismatched block", SourceConfig{Name: "s", Kind: KindStore, Cache: &CacheConfig{}}, "requires a store block"},
		{"unknown kind", SourceConfig{Name: "s", Kind: "queue", Store: &StoreConfig{}}, "unknown kind"},
		{"unknown scraper", SourceConfig{Name: "s", Kind: KindScraper, Scraper: &ScraperConfig{Provider: "indeed"}}, "unknown scraper provider"},
		{"board provider without boards", SourceConfig{Name: "s", Kind: KindScraper, Scraper: &ScraperConfig{Provider: ProviderLever}}, "at least one board"},
		{"search scraper", SourceConfig{Name: "s", Kind: KindScraper, Scraper: &ScraperConfig{Provider: ProviderJinaJobs}}, ""},
		{"unknown ai", SourceConfig{Name: "s", Kind: KindAIFallback, AI: &AIConfig{Provider: "bard"}}, "unknown ai provider"},
		{"negative timeout", SourceConfig{Name: "s", Kind: KindStore, Store: &StoreConfig{}, Timeout: -time.Second}, "timeout"},
		{"negative rate", SourceConfig{Name: "s", Kind: KindStore, Store: &StoreConfig{}, RateLimit: RateLimitConfig{RPS: -1}}, "rate limit"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfig_DuplicateNames(t *testing.T) {
	cfg := &Config{Sources: []SourceConfig{
		{Name: "s", Kind: KindStore, Store: &StoreConfig{}},
		{Name: "s", Kind: KindStore, Store: &StoreConfig{}},
	}}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate name")
}

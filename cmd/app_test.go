package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/jobsearch-cli/internal/config"
	"github.com/sells-group/jobsearch-cli/internal/model"
	"github.com/sells-group/jobsearch-cli/internal/source"
	"github.com/sells-group/jobsearch-cli/internal/store"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Store: config.StoreConfig{
			Driver:      "sqlite",
			DatabaseURL: filepath.Join(t.TempDir(), "test.db"),
		},
		Aggregate: config.AggregateConfig{
			MinJobs:        10,
			MinContacts:    5,
			MaxResults:     20,
			AdapterTimeout: 5 * time.Second,
			TierBudget:     10 * time.Second,
		},
		Scrape:     config.ScrapeConfig{MaxConcurrent: 3, SearchCount: 20},
		Jina:       config.JinaConfig{BaseURL: "https://r.jina.ai", SearchBaseURL: "https://s.jina.ai"},
		Perplexity: config.PerplexityConfig{BaseURL: "https://api.perplexity.ai", Model: "sonar-pro"},
		Anthropic:  config.AnthropicConfig{Model: "claude-haiku-4-5-20251001"},
		OpenAI:     config.OpenAIConfig{Model: "gpt-4o-mini"},
	}
}

func testStore(t *testing.T, c *config.Config) store.Store {
	t.Helper()
	st, err := initStore(context.Background(), c.Store)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.Migrate(context.Background()))
	return st
}

const fullSources = `
defaults:
  timeout: 8s
  rate_limit:
    rps: 2
sources:
  - name: cache
    kind: cache
    cache:
      max_entries: 500
      durable: true
  - name: index
    kind: store
    store:
      limit: 25
  - name: greenhouse
    kind: scraper
    timeout: 4s
    scraper:
      provider: greenhouse
      boards:
        - company: Acme
          slug: acme
  - name: lever
    kind: scraper
    scraper:
      provider: lever
      boards:
        - company: Globex
          slug: globex
  - name: smartrecruiters
    kind: scraper
    scraper:
      provider: smartrecruiters
      max_pages: 2
      boards:
        - company: Initech
          slug: initech
  - name: web-jobs
    kind: scraper
    scraper:
      provider: jina_jobs
  - name: team-pages
    kind: scraper
    scraper:
      provider: website_contacts
  - name: linkedin
    kind: scraper
    scraper:
      provider: linkedin_search
  - name: claude
    kind: ai_fallback
    ai:
      provider: anthropic
      max_tokens: 2048
      max_cost_usd: 0.05
  - name: gpt
    kind: ai_fallback
    ai:
      provider: openai
      model: gpt-4o-mini
`

func TestBuildOrchestrator_AllSources(t *testing.T) {
	c := testConfig(t)
	c.Anthropic.Key = "sk-ant-test"
	c.OpenAI.Key = "sk-test"
	st := testStore(t, c)

	sc, err := source.ParseConfig([]byte(fullSources))
	require.NoError(t, err)

	orch, layer, err := buildOrchestrator(c, sc, st)
	require.NoError(t, err)
	require.NotNil(t, layer)

	statuses := orch.Sources()
	names := make([]string, len(statuses))
	for i, s := range statuses {
		names[i] = s.Name
	}
	// Both AI sources are chained behind the first one's name.
	assert.Equal(t, []string{"index", "greenhouse", "lever", "smartrecruiters", "web-jobs", "team-pages", "linkedin", "claude"}, names)

	assert.Equal(t, model.SourceStore, statuses[0].Tier)
	assert.Equal(t, model.SourceScrape, statuses[1].Tier)
	assert.Equal(t, model.SourceAIFallback, statuses[7].Tier)

	assert.True(t, statuses[1].Jobs)
	assert.False(t, statuses[1].Contacts)
	assert.True(t, statuses[5].Contacts)
	assert.False(t, statuses[5].Jobs)
	for _, s := range statuses {
		assert.Equal(t, "closed", s.Circuit, s.Name)
		assert.Nil(t, s.CoolingDownTo, s.Name)
	}
}

func TestBuildOrchestrator_AISkippedWithoutKey(t *testing.T) {
	c := testConfig(t)
	st := testStore(t, c)

	sc, err := source.ParseConfig([]byte(fullSources))
	require.NoError(t, err)

	orch, _, err := buildOrchestrator(c, sc, st)
	require.NoError(t, err)

	for _, s := range orch.Sources() {
		assert.NotEqual(t, model.SourceAIFallback, s.Tier, "ai source %s should be disabled", s.Name)
	}
}

func TestBuildOrchestrator_DuplicateStore(t *testing.T) {
	c := testConfig(t)
	st := testStore(t, c)

	sc, err := source.ParseConfig([]byte(`
sources:
  - name: a
    kind: store
    store: {}
  - name: b
    kind: store
    store: {}
`))
	require.NoError(t, err)

	_, _, err = buildOrchestrator(c, sc, st)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "only one store source")
}

func TestBuildOrchestrator_NoCacheSource(t *testing.T) {
	c := testConfig(t)
	st := testStore(t, c)

	sc, err := source.ParseConfig([]byte(`
sources:
  - name: index
    kind: store
    store: {}
`))
	require.NoError(t, err)

	_, layer, err := buildOrchestrator(c, sc, st)
	require.NoError(t, err)
	assert.Nil(t, layer)
}

func TestBuildOrchestrator_StoreThenCache(t *testing.T) {
	c := testConfig(t)
	st := testStore(t, c)
	ctx := context.Background()

	_, err := st.UpsertJobs(ctx, []model.ValidatedRecord{{
		Candidate: model.NewJobCandidate("greenhouse", 75, time.Now().UTC(), model.Job{
			Title:       "Registered Nurse",
			Company:     "Tampa General Hospital",
			Location:    "Tampa, FL",
			URL:         "https://careers.tgh.org/jobs/1234",
			Description: "Provide direct patient care on a busy medical-surgical unit.",
		}),
		Confidence: 85,
	}})
	require.NoError(t, err)

	orch, _, err := buildOrchestrator(c, defaultSources(), st)
	require.NoError(t, err)

	q := model.NewJobQuery(model.JobQuery{Keywords: []string{"nurse"}, MinAcceptable: 1})

	first, err := orch.Aggregate(ctx, q)
	require.NoError(t, err)
	require.Len(t, first.Records, 1)
	assert.Equal(t, model.SourceStore, first.Source)
	assert.False(t, first.Cached)

	second, err := orch.Aggregate(ctx, q)
	require.NoError(t, err)
	require.Len(t, second.Records, 1)
	assert.Equal(t, model.SourceCache, second.Source)
	assert.True(t, second.Cached)
}

func TestLoadSources_MissingFileUsesDefaults(t *testing.T) {
	sc, err := loadSources(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	require.Len(t, sc.Sources, 2)
	assert.Equal(t, source.KindCache, sc.Sources[0].Kind)
	assert.Equal(t, source.KindStore, sc.Sources[1].Kind)
	require.NoError(t, sc.Validate())
}

func TestLoadSources_InvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sources:\n  - name: x\n    kind: bogus\n"), 0o644))

	_, err := loadSources(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "load source config")
}

func TestInitStore_UnknownDriver(t *testing.T) {
	_, err := initStore(context.Background(), config.StoreConfig{Driver: "mysql"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported store driver")
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "b", firstNonEmpty("", "b", "c"))
	assert.Equal(t, "", firstNonEmpty("", ""))
}

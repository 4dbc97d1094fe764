package main

import (
	"context"
	"errors"
	"io/fs"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/jobsearch-cli/internal/aggregate"
	"github.com/sells-group/jobsearch-cli/internal/cache"
	"github.com/sells-group/jobsearch-cli/internal/config"
	"github.com/sells-group/jobsearch-cli/internal/cost"
	"github.com/sells-group/jobsearch-cli/internal/model"
	"github.com/sells-group/jobsearch-cli/internal/resilience"
	"github.com/sells-group/jobsearch-cli/internal/scrape"
	"github.com/sells-group/jobsearch-cli/internal/source"
	"github.com/sells-group/jobsearch-cli/internal/source/aifallback"
	"github.com/sells-group/jobsearch-cli/internal/source/scraper"
	"github.com/sells-group/jobsearch-cli/internal/source/storesrc"
	"github.com/sells-group/jobsearch-cli/internal/store"
	anthropicpkg "github.com/sells-group/jobsearch-cli/pkg/anthropic"
	"github.com/sells-group/jobsearch-cli/pkg/jina"
	"github.com/sells-group/jobsearch-cli/pkg/perplexity"
)

// appEnv holds the store and orchestrator needed by the search, serve, and
// cache commands.
type appEnv struct {
	Store        store.Store
	Cache        *cache.Layer // nil when no cache source is configured
	Orchestrator *aggregate.Orchestrator
}

// Close releases resources held by the environment.
func (e *appEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initApp opens and migrates the store, loads the source file, and builds
// the orchestrator. Callers should defer env.Close().
func initApp(ctx context.Context, mode string) (*appEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	st, err := initStore(ctx, cfg.Store)
	if err != nil {
		return nil, err
	}

	if err := st.Migrate(ctx); err != nil {
		_ = st.Close()
		return nil, eris.Wrap(err, "migrate store")
	}

	sources, err := loadSources(cfg.Sources.File)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	orch, layer, err := buildOrchestrator(cfg, sources, st)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	return &appEnv{Store: st, Cache: layer, Orchestrator: orch}, nil
}

// loadSources reads the source file. A missing file falls back to the
// cache and local index only.
func loadSources(path string) (*source.Config, error) {
	sc, err := source.LoadConfig(path)
	if errors.Is(err, fs.ErrNotExist) {
		zap.L().Warn("source config not found, using cache and store only", zap.String("path", path))
		return defaultSources(), nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "load source config")
	}
	return sc, nil
}

func defaultSources() *source.Config {
	return &source.Config{
		Defaults: source.DefaultsConfig{
			Timeout:    aggregate.DefaultAdapterTimeout,
			TierBudget: aggregate.DefaultTierBudget,
		},
		Sources: []source.SourceConfig{
			{Name: "cache", Kind: source.KindCache, Cache: &source.CacheConfig{MaxEntries: 1000, Durable: true}},
			{Name: "store", Kind: source.KindStore, Timeout: aggregate.DefaultAdapterTimeout, Store: &source.StoreConfig{Limit: 50}},
		},
	}
}

// builder turns the source file into adapters. Clients shared between
// sources are created on first use.
type builder struct {
	cfg   *config.Config
	st    store.Store
	calc  *cost.Calculator
	retry resilience.RetryConfig

	jina jina.Client
}

func (b *builder) jinaClient() jina.Client {
	if b.jina == nil {
		opts := []jina.Option{jina.WithRetry(b.retry)}
		if b.cfg.Jina.BaseURL != "" {
			opts = append(opts, jina.WithBaseURL(b.cfg.Jina.BaseURL))
		}
		if b.cfg.Jina.SearchBaseURL != "" {
			opts = append(opts, jina.WithSearchBaseURL(b.cfg.Jina.SearchBaseURL))
		}
		if b.cfg.Jina.RemoveSelector != "" {
			opts = append(opts, jina.WithRemoveSelector(b.cfg.Jina.RemoveSelector))
		}
		b.jina = jina.NewClient(b.cfg.Jina.Key, opts...)
	}
	return b.jina
}

// buildOrchestrator wires every configured source into an Orchestrator. The
// returned cache layer is nil when the file has no cache source.
func buildOrchestrator(c *config.Config, sc *source.Config, st store.Store) (*aggregate.Orchestrator, *cache.Layer, error) {
	b := &builder{
		cfg:   c,
		st:    st,
		calc:  cost.NewCalculator(c.Pricing.Rates()),
		retry: c.Resilience.Retry(),
	}

	limits := resilience.NewSourceLimits(c.Resilience.Cooldown())
	deps := aggregate.Deps{
		Limits:   limits,
		Breakers: resilience.NewServiceBreakers(c.Resilience.Breaker()),
		Indexer:  st,
	}
	timeouts := make(map[string]time.Duration)
	reg := source.NewRegistry()

	register := func(s source.SourceConfig) {
		if s.RateLimit.RPS > 0 {
			limits.SetLimit(s.Name, s.RateLimit.RPS, s.RateLimit.Burst)
		}
		if s.Timeout > 0 {
			timeouts[s.Name] = s.Timeout
		}
	}

	for _, s := range sc.Sources {
		switch s.Kind {
		case source.KindCache:
			if deps.Cache != nil {
				return nil, nil, eris.Errorf("source %s: only one cache source is allowed", s.Name)
			}
			deps.Cache = b.cache(*s.Cache)

		case source.KindStore:
			if deps.Store != nil {
				return nil, nil, eris.Errorf("source %s: only one store source is allowed", s.Name)
			}
			deps.Store = storesrc.New(s.Name, st, s.Store.Limit)
			register(s)

		case source.KindScraper:
			a, err := b.scraper(s)
			if err != nil {
				return nil, nil, err
			}
			reg.Register(a)
			register(s)

		case source.KindAIFallback:
			a, ok := b.ai(s)
			if !ok {
				continue
			}
			reg.Register(a)
			register(s)
		}
	}

	deps.Scrapers = reg.ForTier(model.SourceScrape)
	// AI sources fall back to one another in file order; the orchestrator
	// guards each stage separately.
	for _, a := range reg.ForTier(model.SourceAIFallback) {
		if deps.AI == nil {
			deps.AI = a
		} else {
			deps.AI = source.NewStaged("", deps.AI, a)
		}
	}

	tierBudget := c.Aggregate.TierBudget
	if tierBudget <= 0 {
		tierBudget = sc.Defaults.TierBudget
	}
	orch := aggregate.New(deps, aggregate.Config{
		MinJobs:        c.Aggregate.MinJobs,
		MinContacts:    c.Aggregate.MinContacts,
		MaxResults:     c.Aggregate.MaxResults,
		AdapterTimeout: c.Aggregate.AdapterTimeout,
		TierBudget:     tierBudget,
		Timeouts:       timeouts,
	})

	zap.L().Info("sources configured",
		zap.Bool("cache", deps.Cache != nil),
		zap.Bool("store", deps.Store != nil),
		zap.Int("scrapers", len(deps.Scrapers)),
		zap.Bool("ai_fallback", deps.AI != nil),
	)
	return orch, deps.Cache, nil
}

func (b *builder) cache(cc source.CacheConfig) *cache.Layer {
	var backend cache.Backend = cache.NewMemory(cc.MaxEntries)
	if cc.Durable {
		backend = cache.NewTiered(backend, cache.NewDurable(b.st))
	}
	return cache.NewLayer(backend, cache.Config{
		JobTTL:     cc.JobTTL,
		ContactTTL: cc.ContactTTL,
	})
}

func (b *builder) scraper(s source.SourceConfig) (source.Adapter, error) {
	sc := s.Scraper
	opts := []scraper.Option{scraper.WithRetry(b.retry)}
	if sc.BaseURL != "" {
		opts = append(opts, scraper.WithBaseURL(sc.BaseURL))
	}
	boards := scraper.BoardsFromConfig(sc.Boards)

	switch sc.Provider {
	case source.ProviderGreenhouse:
		return scraper.NewGreenhouse(s.Name, boards, opts...), nil
	case source.ProviderLever:
		return scraper.NewLever(s.Name, boards, opts...), nil
	case source.ProviderSmartRecruiters:
		return scraper.NewSmartRecruiters(s.Name, boards, sc.MaxPages, opts...), nil
	case source.ProviderJinaJobs:
		return scraper.NewJinaJobs(s.Name, b.jinaClient(), b.cfg.Scrape.SearchCount), nil
	case source.ProviderLinkedInSearch:
		return scraper.NewLinkedInSearch(s.Name, b.jinaClient(), b.cfg.Scrape.SearchCount), nil
	case source.ProviderWebsiteContacts:
		// Local fetch first; Jina Reader for blocked or script-rendered pages.
		chain := scrape.NewChain(scrape.NewPathMatcher(b.cfg.Scrape.ExcludePaths),
			scrape.NewLocalFetcher(),
			scrape.NewJinaFetcher(b.jinaClient()),
		)
		return scraper.NewWebsiteContacts(s.Name, chain).WithConcurrency(b.cfg.Scrape.MaxConcurrent), nil
	default:
		return nil, eris.Errorf("source %s: unknown scraper provider %q", s.Name, sc.Provider)
	}
}

// ai builds an AI fallback adapter. Sources whose provider has no API key
// are skipped.
func (b *builder) ai(s source.SourceConfig) (source.Adapter, bool) {
	ac := s.AI
	var comp aifallback.Completer

	switch ac.Provider {
	case source.ProviderAnthropic:
		if b.cfg.Anthropic.Key == "" {
			zap.L().Warn("JOBSEARCH_ANTHROPIC_KEY not set, ai source disabled", zap.String("source", s.Name))
			return nil, false
		}
		var opts []anthropicpkg.Option
		if b.cfg.Anthropic.BaseURL != "" {
			opts = append(opts, anthropicpkg.WithBaseURL(b.cfg.Anthropic.BaseURL))
		}
		modelName := firstNonEmpty(ac.Model, b.cfg.Anthropic.Model)
		comp = aifallback.NewAnthropic(anthropicpkg.NewClient(b.cfg.Anthropic.Key, opts...), modelName, b.calc)

	case source.ProviderPerplexity:
		if b.cfg.Perplexity.Key == "" {
			zap.L().Warn("JOBSEARCH_PERPLEXITY_KEY not set, ai source disabled", zap.String("source", s.Name))
			return nil, false
		}
		modelName := firstNonEmpty(ac.Model, b.cfg.Perplexity.Model)
		client := perplexity.NewClient(b.cfg.Perplexity.Key,
			perplexity.WithBaseURL(b.cfg.Perplexity.BaseURL),
			perplexity.WithModel(modelName),
			perplexity.WithRetry(b.retry),
		)
		comp = aifallback.NewPerplexity(client, modelName, b.calc)

	case source.ProviderOpenAI:
		if b.cfg.OpenAI.Key == "" {
			zap.L().Warn("JOBSEARCH_OPENAI_KEY not set, ai source disabled", zap.String("source", s.Name))
			return nil, false
		}
		modelName := firstNonEmpty(ac.Model, b.cfg.OpenAI.Model)
		comp = aifallback.NewOpenAI(aifallback.NewOpenAIClient(b.cfg.OpenAI.Key, b.cfg.OpenAI.BaseURL), modelName, b.calc)

	default:
		zap.L().Warn("unknown ai provider, source disabled", zap.String("source", s.Name), zap.String("provider", ac.Provider))
		return nil, false
	}

	if !b.calc.Known(comp.Provider(), comp.Model()) {
		zap.L().Warn("no pricing for model, estimating with the highest configured rate",
			zap.String("source", s.Name),
			zap.String("model", comp.Model()),
		)
	}

	return aifallback.New(s.Name, comp,
		aifallback.WithMaxTokens(ac.MaxTokens),
		aifallback.WithMaxCost(ac.MaxCostUSD),
	), true
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// Package aggregate drives source adapters through the tiered fallback and
// turns their candidates into one ranked, deduplicated result set.
package aggregate

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/jobsearch-cli/internal/cache"
	"github.com/sells-group/jobsearch-cli/internal/cost"
	"github.com/sells-group/jobsearch-cli/internal/model"
	"github.com/sells-group/jobsearch-cli/internal/resilience"
	"github.com/sells-group/jobsearch-cli/internal/source"
)

// Defaults applied by New to zero config values.
const (
	DefaultMinJobs        = 10
	DefaultMinContacts    = 5
	DefaultMaxResults     = 20
	DefaultAdapterTimeout = 10 * time.Second
	DefaultTierBudget     = 20 * time.Second
	DefaultIndexTimeout   = 5 * time.Second
)

// Config holds orchestrator settings.
type Config struct {
	MinJobs        int                      `mapstructure:"min_jobs"`
	MinContacts    int                      `mapstructure:"min_contacts"`
	MaxResults     int                      `mapstructure:"max_results"`
	AdapterTimeout time.Duration            `mapstructure:"adapter_timeout"`
	TierBudget     time.Duration            `mapstructure:"tier_budget"`
	IndexTimeout   time.Duration            `mapstructure:"index_timeout"`
	Timeouts       map[string]time.Duration `mapstructure:"-"` // per adapter name
}

// Indexer receives validated records from the scrape and AI tiers so later
// queries can be answered from the structured store.
type Indexer interface {
	UpsertJobs(ctx context.Context, records []model.ValidatedRecord) (int, error)
	UpsertContacts(ctx context.Context, records []model.ValidatedRecord) (int, error)
}

// Deps are the collaborators shared by every request. All fields are
// optional; a nil tier is skipped.
type Deps struct {
	Cache    *cache.Layer
	Store    source.Adapter
	Scrapers []source.Adapter
	AI       source.Adapter
	Limits   *resilience.SourceLimits
	Breakers *resilience.ServiceBreakers
	Indexer  Indexer
	Now      func() time.Time
}

// Orchestrator runs aggregation requests. It is safe for concurrent use and
// is meant to be constructed once per process.
type Orchestrator struct {
	deps Deps
	cfg  Config
	now  func() time.Time
}

// New creates an Orchestrator.
func New(deps Deps, cfg Config) *Orchestrator {
	if cfg.MinJobs <= 0 {
		cfg.MinJobs = DefaultMinJobs
	}
	if cfg.MinContacts <= 0 {
		cfg.MinContacts = DefaultMinContacts
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultMaxResults
	}
	if cfg.AdapterTimeout <= 0 {
		cfg.AdapterTimeout = DefaultAdapterTimeout
	}
	if cfg.TierBudget <= 0 {
		cfg.TierBudget = DefaultTierBudget
	}
	if cfg.IndexTimeout <= 0 {
		cfg.IndexTimeout = DefaultIndexTimeout
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{deps: deps, cfg: cfg, now: now}
}

// minAcceptable is the sufficiency threshold for q. It never exceeds the
// number of records the caller asked for.
func (o *Orchestrator) minAcceptable(q model.Query) int {
	def := o.cfg.MinJobs
	if q.Kind == model.KindContact {
		def = o.cfg.MinContacts
	}
	return min(q.MinAcceptable(def), q.Limit(o.cfg.MaxResults))
}

// Aggregate answers q. Only a malformed query is an error; source failures
// degrade to later tiers, and finding nothing is a Response with Source
// none.
func (o *Orchestrator) Aggregate(ctx context.Context, q model.Query) (*model.Response, error) {
	if err := q.Validate(); err != nil {
		return nil, eris.Wrap(err, "aggregate")
	}

	start := o.now()
	fp := q.Fingerprint()
	limit := q.Limit(o.cfg.MaxResults)
	need := o.minAcceptable(q)
	log := zap.L().With(
		zap.String("kind", string(q.Kind)),
		zap.String("fingerprint", fp[:12]),
	)

	// Tier 0: cache.
	if o.deps.Cache != nil {
		if entry, ok := o.deps.Cache.Get(ctx, fp); ok && len(entry.Records) >= need {
			records := truncate(entry.Records, limit)
			log.Info("aggregate: satisfied from cache",
				zap.Int("cached", len(entry.Records)),
				zap.Int("returned", len(records)),
			)
			return &model.Response{
				Records:     records,
				Source:      model.SourceCache,
				Cached:      true,
				FetchedAt:   o.now(),
				Fingerprint: fp,
				Stats:       model.Stats{Validated: len(entry.Records)},
			}, nil
		}
	}

	tracker := &cost.Tracker{}
	ctx = cost.WithTracker(ctx, tracker)
	ws := newWorkingSet(q.Kind)

	// Tier 1: structured store.
	if a := o.deps.Store; a != nil {
		cands, outcomes, _ := o.run(ctx, a, q)
		ws.record(outcomes...)
		ws.add(model.SourceStore, cands)
	}

	// Tier 2: scrapers, concurrently.
	if n := ws.count(); n < need && len(o.deps.Scrapers) > 0 {
		log.Debug("aggregate: running scrapers", zap.Int("have", n), zap.Int("need", need))
		results, outcomes := o.scrape(ctx, q)
		for i := range results {
			ws.record(outcomes[i]...)
			ws.add(model.SourceScrape, results[i])
		}
	}

	// Tier 3: AI fallback, only when everything cheaper fell short.
	if n := ws.count(); n < need && o.deps.AI != nil {
		log.Info("aggregate: falling back to ai", zap.Int("have", n), zap.Int("need", need))
		cands, outcomes, _ := o.run(ctx, o.deps.AI, q)
		ws.record(outcomes...)
		ws.add(model.SourceAIFallback, cands)
	}

	// Tier 4: finalize.
	records, dropped := ws.final()
	ws.stats.Duplicates = dropped
	ws.stats.AICostUSD = tracker.Total()

	if len(records) > 0 {
		persistCtx := context.WithoutCancel(ctx)
		if o.deps.Cache != nil {
			o.deps.Cache.Store(persistCtx, q, records)
		}
		o.index(persistCtx, q.Kind, records)
	}

	resp := &model.Response{
		Records:     truncate(records, limit),
		Source:      highestSource(records),
		FetchedAt:   o.now(),
		Fingerprint: fp,
		Stats:       ws.stats,
	}
	log.Info("aggregate: complete",
		zap.String("source", string(resp.Source)),
		zap.Int("candidates", ws.stats.Candidates),
		zap.Int("rejected", ws.stats.Rejected),
		zap.Int("duplicates", ws.stats.Duplicates),
		zap.Int("returned", len(resp.Records)),
		zap.Float64("ai_cost_usd", ws.stats.AICostUSD),
		zap.Duration("elapsed", o.now().Sub(start)),
	)
	return resp, nil
}

// scrape fans out to every Tier 2 adapter under the tier budget. Results
// are returned in adapter order so arrival order is deterministic. A failed
// adapter never cancels its siblings.
func (o *Orchestrator) scrape(ctx context.Context, q model.Query) ([][]model.Candidate, [][]model.Outcome) {
	tierCtx, cancel := context.WithTimeout(ctx, o.cfg.TierBudget)
	defer cancel()

	adapters := o.deps.Scrapers
	results := make([][]model.Candidate, len(adapters))
	outcomes := make([][]model.Outcome, len(adapters))

	var g errgroup.Group
	for i, a := range adapters {
		g.Go(func() error {
			results[i], outcomes[i], _ = o.run(tierCtx, a, q)
			return nil
		})
	}
	_ = g.Wait()
	return results, outcomes
}

// index writes newly discovered records back to the structured store.
// Records that came from the store are skipped. Failures are logged only.
func (o *Orchestrator) index(ctx context.Context, kind model.RecordKind, records []model.ValidatedRecord) {
	if o.deps.Indexer == nil {
		return
	}
	fresh := make([]model.ValidatedRecord, 0, len(records))
	for _, r := range records {
		if r.Origin == model.SourceScrape || r.Origin == model.SourceAIFallback {
			fresh = append(fresh, r)
		}
	}
	if len(fresh) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, o.cfg.IndexTimeout)
	defer cancel()

	var (
		n   int
		err error
	)
	switch kind {
	case model.KindJob:
		n, err = o.deps.Indexer.UpsertJobs(ctx, fresh)
	case model.KindContact:
		n, err = o.deps.Indexer.UpsertContacts(ctx, fresh)
	}
	if err != nil {
		zap.L().Warn("aggregate: index write failed",
			zap.String("kind", string(kind)),
			zap.Int("records", len(fresh)),
			zap.Error(err),
		)
		return
	}
	zap.L().Debug("aggregate: indexed records", zap.String("kind", string(kind)), zap.Int("upserted", n))
}

func truncate(records []model.ValidatedRecord, limit int) []model.ValidatedRecord {
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	out := make([]model.ValidatedRecord, len(records))
	copy(out, records)
	return out
}

// highestSource returns the most expensive tier that contributed a
// surviving record, or SourceNone.
func highestSource(records []model.ValidatedRecord) model.Source {
	best := model.SourceNone
	for _, r := range records {
		if r.Origin.Rank() > best.Rank() {
			best = r.Origin
		}
	}
	return best
}

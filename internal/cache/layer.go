package cache

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/jobsearch-cli/internal/model"
)

// Default TTLs per record kind.
const (
	DefaultJobTTL     = 21 * 24 * time.Hour
	DefaultContactTTL = 7 * 24 * time.Hour
	DefaultOpTimeout  = 2 * time.Second
)

// Config holds cache layer settings.
type Config struct {
	JobTTL     time.Duration `yaml:"job_ttl" mapstructure:"job_ttl"`
	ContactTTL time.Duration `yaml:"contact_ttl" mapstructure:"contact_ttl"`
	OpTimeout  time.Duration `yaml:"op_timeout" mapstructure:"op_timeout"`
}

// Layer is the cache read/write path used by the orchestrator. Backend
// failures degrade to misses and are only logged.
type Layer struct {
	backend Backend
	cfg     Config
	nowFunc func() time.Time
}

// NewLayer wraps backend. Zero config values take the defaults; a negative
// TTL disables caching for that kind.
func NewLayer(backend Backend, cfg Config) *Layer {
	if cfg.JobTTL == 0 {
		cfg.JobTTL = DefaultJobTTL
	}
	if cfg.ContactTTL == 0 {
		cfg.ContactTTL = DefaultContactTTL
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = DefaultOpTimeout
	}
	return &Layer{backend: backend, cfg: cfg, nowFunc: time.Now}
}

// WithClock replaces the layer's clock. Intended for tests.
func (l *Layer) WithClock(now func() time.Time) *Layer {
	l.nowFunc = now
	return l
}

// TTL returns the configured expiry for kind.
func (l *Layer) TTL(kind model.RecordKind) time.Duration {
	if kind == model.KindContact {
		return l.cfg.ContactTTL
	}
	return l.cfg.JobTTL
}

// Get returns the live entry for fingerprint, or false on a miss, an
// expired entry, or a backend failure.
func (l *Layer) Get(ctx context.Context, fingerprint string) (*model.CacheEntry, bool) {
	ctx, cancel := context.WithTimeout(ctx, l.cfg.OpTimeout)
	defer cancel()

	e, err := l.backend.Get(ctx, fingerprint)
	if err != nil {
		zap.L().Warn("cache: read failed, treating as miss",
			zap.String("fingerprint", fingerprint),
			zap.Error(err),
		)
		return nil, false
	}
	if e == nil || e.Expired(l.nowFunc()) {
		return nil, false
	}
	return e, true
}

// Lookup is Get keyed by the query's fingerprint.
func (l *Layer) Lookup(ctx context.Context, q model.Query) (*model.CacheEntry, bool) {
	return l.Get(ctx, q.Fingerprint())
}

// Set stores records under fingerprint for ttl, replacing any previous
// entry. A ttl <= 0 removes the fingerprint instead, so later reads miss.
func (l *Layer) Set(ctx context.Context, fingerprint string, kind model.RecordKind, records []model.ValidatedRecord, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, l.cfg.OpTimeout)
	defer cancel()

	if ttl <= 0 {
		return l.backend.Delete(ctx, fingerprint)
	}
	now := l.nowFunc()
	return l.backend.Set(ctx, model.CacheEntry{
		Fingerprint: fingerprint,
		Kind:        kind,
		Records:     records,
		CachedAt:    now,
		ExpiresAt:   now.Add(ttl),
	})
}

// Store writes records for q with the TTL configured for its kind. Errors
// are logged and swallowed.
func (l *Layer) Store(ctx context.Context, q model.Query, records []model.ValidatedRecord) {
	fp := q.Fingerprint()
	if err := l.Set(ctx, fp, q.Kind, records, l.TTL(q.Kind)); err != nil {
		zap.L().Warn("cache: write failed",
			zap.String("fingerprint", fp),
			zap.Int("records", len(records)),
			zap.Error(err),
		)
	}
}

// Invalidate removes fingerprint from every backend.
func (l *Layer) Invalidate(ctx context.Context, fingerprint string) error {
	ctx, cancel := context.WithTimeout(ctx, l.cfg.OpTimeout)
	defer cancel()
	return l.backend.Delete(ctx, fingerprint)
}

// Sweep drops expired entries from the backends.
func (l *Layer) Sweep(ctx context.Context) (int, error) {
	return l.backend.DeleteExpired(ctx)
}

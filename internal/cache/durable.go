package cache

import (
	"context"

	"github.com/sells-group/jobsearch-cli/internal/model"
)

// ResultStore is the result-cache subset of store.Store.
type ResultStore interface {
	GetCachedResults(ctx context.Context, fingerprint string) (*model.CacheEntry, error)
	SetCachedResults(ctx context.Context, entry model.CacheEntry) error
	DeleteCachedResults(ctx context.Context, fingerprint string) error
	DeleteExpiredResults(ctx context.Context) (int, error)
}

// Durable adapts the structured store's result_cache table to Backend.
type Durable struct {
	st ResultStore
}

// NewDurable wraps st.
func NewDurable(st ResultStore) *Durable {
	return &Durable{st: st}
}

func (d *Durable) Get(ctx context.Context, fingerprint string) (*model.CacheEntry, error) {
	return d.st.GetCachedResults(ctx, fingerprint)
}

func (d *Durable) Set(ctx context.Context, entry model.CacheEntry) error {
	return d.st.SetCachedResults(ctx, entry)
}

func (d *Durable) Delete(ctx context.Context, fingerprint string) error {
	return d.st.DeleteCachedResults(ctx, fingerprint)
}

func (d *Durable) DeleteExpired(ctx context.Context) (int, error) {
	return d.st.DeleteExpiredResults(ctx)
}

package cache

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/jobsearch-cli/internal/model"
)

// Tiered reads through backends fastest first and back-fills the faster
// ones on a slower hit. Writes and deletes go to every backend.
type Tiered struct {
	layers []Backend
}

// NewTiered builds a read-through chain, fastest backend first.
func NewTiered(layers ...Backend) *Tiered {
	return &Tiered{layers: layers}
}

func (t *Tiered) Get(ctx context.Context, fingerprint string) (*model.CacheEntry, error) {
	var errs []error
	for i, b := range t.layers {
		e, err := b.Get(ctx, fingerprint)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if e == nil {
			continue
		}
		for _, faster := range t.layers[:i] {
			if err := faster.Set(ctx, *e); err != nil {
				zap.L().Warn("cache: back-fill failed", zap.String("fingerprint", fingerprint), zap.Error(err))
			}
		}
		return e, nil
	}
	if len(errs) == len(t.layers) && len(errs) > 0 {
		return nil, eris.Wrap(errors.Join(errs...), "cache: all backends failed")
	}
	return nil, nil
}

func (t *Tiered) Set(ctx context.Context, entry model.CacheEntry) error {
	var errs []error
	for _, b := range t.layers {
		if err := b.Set(ctx, entry); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return eris.Wrap(errors.Join(errs...), "cache: set")
	}
	return nil
}

func (t *Tiered) Delete(ctx context.Context, fingerprint string) error {
	var errs []error
	for _, b := range t.layers {
		if err := b.Delete(ctx, fingerprint); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return eris.Wrap(errors.Join(errs...), "cache: delete")
	}
	return nil
}

func (t *Tiered) DeleteExpired(ctx context.Context) (int, error) {
	total := 0
	var errs []error
	for _, b := range t.layers {
		n, err := b.DeleteExpired(ctx)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		total += n
	}
	if len(errs) > 0 {
		return total, eris.Wrap(errors.Join(errs...), "cache: delete expired")
	}
	return total, nil
}

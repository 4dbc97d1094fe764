// Package cache stores validated result sets by query fingerprint with a
// per-kind expiry. Entries at or past their expiry are never returned.
package cache

import (
	"context"

	"github.com/sells-group/jobsearch-cli/internal/model"
)

// Backend is a key-value store of cache entries. Get returns (nil, nil) on
// a miss. Set replaces any entry for the same fingerprint. Implementations
// must be safe for concurrent use.
type Backend interface {
	Get(ctx context.Context, fingerprint string) (*model.CacheEntry, error)
	Set(ctx context.Context, entry model.CacheEntry) error
	Delete(ctx context.Context, fingerprint string) error
	DeleteExpired(ctx context.Context) (int, error)
}

// cloneEntry deep-copies an entry so callers never share records with the
// backend.
func cloneEntry(e model.CacheEntry) model.CacheEntry {
	out := e
	if e.Records != nil {
		out.Records = make([]model.ValidatedRecord, len(e.Records))
		for i, r := range e.Records {
			r.Candidate = r.Candidate.Clone()
			if r.Issues != nil {
				r.Issues = append([]string(nil), r.Issues...)
			}
			out.Records[i] = r
		}
	}
	return out
}

// Package source defines the contract shared by every record source the
// aggregator can query, plus a registry and a two-stage fallback wrapper.
package source

import (
	"context"
	"sort"
	"sync"

	"github.com/sells-group/jobsearch-cli/internal/model"
	"github.com/sells-group/jobsearch-cli/internal/resilience"
)

// Base raw confidence per source family.
const (
	ConfidenceStore      = 90
	ConfidenceAPIBoard   = 75
	ConfidenceHTMLBoard  = 65
	ConfidenceWebSearch  = 50
	ConfidenceAIFallback = 40
)

// Adapter fetches candidate records from one external source.
type Adapter interface {
	// Name returns the source identifier (matches the name in source config).
	Name() string
	// Tier returns the fallback tier the adapter runs in.
	Tier() model.Source
	// Supports reports whether the adapter can answer queries of kind.
	Supports(kind model.RecordKind) bool
	// Fetch returns raw candidates for q. Zero results is (nil, nil).
	// Implementations honor ctx and may return partial results with ctx.Err().
	Fetch(ctx context.Context, q model.Query) ([]model.Candidate, error)
}

// Registry manages the adapters available to the orchestrator.
type Registry struct {
	mu       sync.RWMutex
	adapters map[string]Adapter
	order    []string
}

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{
		adapters: make(map[string]Adapter),
	}
}

// Register adds an adapter. Re-registering a name replaces the adapter but
// keeps its original position.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.adapters[a.Name()]; !ok {
		r.order = append(r.order, a.Name())
	}
	r.adapters[a.Name()] = a
}

// Get returns an adapter by name, or nil if not found.
func (r *Registry) Get(name string) Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.adapters[name]
}

// List returns all registered adapter names, sorted.
func (r *Registry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ForTier returns the adapters of one tier in registration order.
func (r *Registry) ForTier(tier model.Source) []Adapter {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Adapter
	for _, name := range r.order {
		if a := r.adapters[name]; a.Tier() == tier {
			out = append(out, a)
		}
	}
	return out
}

// Staged runs Preferred and, when it fails with an error worth falling back
// on, Fallback. Terminal errors from Preferred are returned unchanged.
type Staged struct {
	Preferred Adapter
	Fallback  Adapter

	// ShouldFallback decides whether an error from Preferred moves on to
	// Fallback. Defaults to resilience.IsFallbackWorthy.
	ShouldFallback func(err error) bool

	name string
}

// NewStaged builds a two-stage adapter registered under name. The tier is
// the preferred adapter's tier.
func NewStaged(name string, preferred, fallback Adapter) *Staged {
	return &Staged{Preferred: preferred, Fallback: fallback, name: name}
}

// Name implements Adapter.
func (s *Staged) Name() string {
	if s.name != "" {
		return s.name
	}
	return s.Preferred.Name()
}

// Tier implements Adapter.
func (s *Staged) Tier() model.Source { return s.Preferred.Tier() }

// Supports implements Adapter.
func (s *Staged) Supports(kind model.RecordKind) bool {
	return s.Preferred.Supports(kind) || (s.Fallback != nil && s.Fallback.Supports(kind))
}

// FallsBack reports whether err from Preferred moves on to Fallback.
func (s *Staged) FallsBack(err error) bool {
	if s.ShouldFallback != nil {
		return s.ShouldFallback(err)
	}
	return resilience.IsFallbackWorthy(err)
}

// Fetch implements Adapter.
func (s *Staged) Fetch(ctx context.Context, q model.Query) ([]model.Candidate, error) {
	if s.Preferred.Supports(q.Kind) {
		out, err := s.Preferred.Fetch(ctx, q)
		if err == nil || s.Fallback == nil || ctx.Err() != nil || !s.FallsBack(err) {
			return out, err
		}
	}
	if s.Fallback == nil || !s.Fallback.Supports(q.Kind) {
		return nil, nil
	}
	return s.Fallback.Fetch(ctx, q)
}

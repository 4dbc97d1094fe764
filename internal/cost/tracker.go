package cost

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Entry is one paid call.
type Entry struct {
	Provider     string  `json:"provider"`
	Model        string  `json:"model"`
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
	USD          float64 `json:"usd"`
}

// Tracker accumulates spend for one request. Safe for concurrent use.
type Tracker struct {
	mu      sync.Mutex
	entries []Entry
	total   float64
}

// Add records e.
func (t *Tracker) Add(e Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, e)
	t.total += e.USD
}

// Total returns the accumulated spend in USD.
func (t *Tracker) Total() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

// Entries returns a copy of the recorded calls.
func (t *Tracker) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Entry(nil), t.entries...)
}

type trackerKey struct{}

// WithTracker returns a context carrying t.
func WithTracker(ctx context.Context, t *Tracker) context.Context {
	return context.WithValue(ctx, trackerKey{}, t)
}

// FromContext returns the tracker carried by ctx, or nil.
func FromContext(ctx context.Context) *Tracker {
	t, _ := ctx.Value(trackerKey{}).(*Tracker)
	return t
}

// Record logs e and adds it to the context's tracker when there is one.
func Record(ctx context.Context, e Entry) {
	zap.L().Info("cost attribution",
		zap.String("provider", e.Provider),
		zap.String("model", e.Model),
		zap.Int64("input_tokens", e.InputTokens),
		zap.Int64("output_tokens", e.OutputTokens),
		zap.Float64("estimated_cost_usd", e.USD),
	)
	if t := FromContext(ctx); t != nil {
		t.Add(e)
	}
}

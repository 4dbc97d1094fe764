package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// DefaultCooldown is how long a source stays skipped after a rate limit
// response that carried no Retry-After hint.
const DefaultCooldown = time.Minute

// SourceLimits holds the per-source rate-limit state shared by every request
// in the process: a token bucket each caller queues on, and a cooldown window
// set when a source answers with a rate limit error.
type SourceLimits struct {
	mu        sync.Mutex
	limiters  map[string]*rate.Limiter
	cooldowns map[string]time.Time
	cooldown  time.Duration

	nowFunc func() time.Time
}

// NewSourceLimits creates an empty registry. Sources without a configured
// limit are not throttled.
func NewSourceLimits(cooldown time.Duration) *SourceLimits {
	if cooldown <= 0 {
		cooldown = DefaultCooldown
	}
	return &SourceLimits{
		limiters:  make(map[string]*rate.Limiter),
		cooldowns: make(map[string]time.Time),
		cooldown:  cooldown,
		nowFunc:   time.Now,
	}
}

// SetLimit installs a token bucket for source. rps <= 0 removes the limit.
func (l *SourceLimits) SetLimit(source string, rps float64, burst int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if rps <= 0 {
		delete(l.limiters, source)
		return
	}
	if burst <= 0 {
		burst = 1
	}
	l.limiters[source] = rate.NewLimiter(rate.Limit(rps), burst)
}

// Wait blocks until source may be called. It fails fast with ErrRateLimited
// while the source is cooling down, and with the context error if ctx ends
// before a token is available.
func (l *SourceLimits) Wait(ctx context.Context, source string) error {
	if until, ok := l.CooldownUntil(source); ok {
		return eris.Wrapf(ErrRateLimited, "%s: cooling down until %s", source, until.Format(time.RFC3339))
	}
	l.mu.Lock()
	lim := l.limiters[source]
	l.mu.Unlock()
	if lim == nil {
		return nil
	}
	if err := lim.Wait(ctx); err != nil {
		return eris.Wrapf(err, "%s: rate limiter wait", source)
	}
	return nil
}

// Trip starts a cooldown for source. A positive retryAfter overrides the
// default window.
func (l *SourceLimits) Trip(source string, retryAfter time.Duration) {
	d := l.cooldown
	if retryAfter > 0 {
		d = retryAfter
	}
	l.mu.Lock()
	until := l.nowFunc().Add(d)
	if cur, ok := l.cooldowns[source]; !ok || until.After(cur) {
		l.cooldowns[source] = until
	}
	l.mu.Unlock()

	zap.L().Warn("source rate limited, cooling down",
		zap.String("source", source),
		zap.Duration("cooldown", d),
	)
}

// CooldownUntil reports whether source is cooling down and until when.
// Elapsed windows are cleared.
func (l *SourceLimits) CooldownUntil(source string) (time.Time, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	until, ok := l.cooldowns[source]
	if !ok {
		return time.Time{}, false
	}
	if !l.nowFunc().Before(until) {
		delete(l.cooldowns, source)
		return time.Time{}, false
	}
	return until, true
}

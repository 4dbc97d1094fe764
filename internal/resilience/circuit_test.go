package resilience

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func failN(t *testing.T, cb *CircuitBreaker, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		_ = cb.Execute(context.Background(), func(context.Context) error {
			return errors.New("upstream 500")
		})
	}
}

func TestCircuitBreaker_ClosedPassesThrough(t *testing.T) {
	cb := NewCircuitBreaker("lever", DefaultCircuitBreakerConfig())

	calls := 0
	err := cb.Execute(context.Background(), func(context.Context) error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, CircuitClosed, cb.State())
	assert.Equal(t, "lever", cb.Name())
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb := NewCircuitBreaker("lever", CircuitBreakerConfig{FailureThreshold: 3, ResetTimeout: time.Minute})
	failN(t, cb, 3)
	assert.Equal(t, CircuitOpen, cb.State())

	err := cb.Execute(context.Background(), func(context.Context) error {
		t.Error("call must not run while open")
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Contains(t, err.Error(), "lever")
}

func TestCircuitBreaker_SuccessResetsFailures(t *testing.T) {
	cb := NewCircuitBreaker("lever", CircuitBreakerConfig{FailureThreshold: 3, ResetTimeout: time.Minute})
	failN(t, cb, 2)

	failures, state := cb.Counters()
	assert.Equal(t, 2, failures)
	assert.Equal(t, CircuitClosed, state)

	require.NoError(t, cb.Execute(context.Background(), func(context.Context) error { return nil }))
	failures, _ = cb.Counters()
	assert.Zero(t, failures)
}

func TestCircuitBreaker_HalfOpenProbeCloses(t *testing.T) {
	clock := newClock()
	cb := NewCircuitBreaker("lever", CircuitBreakerConfig{FailureThreshold: 2, ResetTimeout: 30 * time.Second})
	cb.nowFunc = clock.Now

	failN(t, cb, 2)
	assert.Equal(t, CircuitOpen, cb.State())

	clock.Advance(31 * time.Second)
	assert.Equal(t, CircuitHalfOpen, cb.State())

	require.NoError(t, cb.Execute(context.Background(), func(context.Context) error { return nil }))
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	clock := newClock()
	cb := NewCircuitBreaker("lever", CircuitBreakerConfig{FailureThreshold: 2, ResetTimeout: 30 * time.Second})
	cb.nowFunc = clock.Now

	failN(t, cb, 2)
	clock.Advance(31 * time.Second)
	failN(t, cb, 1)

	_, state := cb.Counters()
	assert.Equal(t, CircuitOpen, state)
	assert.ErrorIs(t, cb.Allow(), ErrCircuitOpen)
}

func TestCircuitBreaker_OnStateChange(t *testing.T) {
	var transitions []string
	cb := NewCircuitBreaker("greenhouse", CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     time.Minute,
		OnStateChange: func(name string, from, to CircuitState) {
			transitions = append(transitions, name+":"+from.String()+"->"+to.String())
		},
	})
	failN(t, cb, 1)
	cb.Reset()
	assert.Equal(t, []string{"greenhouse:closed->open", "greenhouse:open->closed"}, transitions)
}

func TestCircuitBreaker_ShouldTrip(t *testing.T) {
	cb := NewCircuitBreaker("lever", CircuitBreakerConfig{FailureThreshold: 1, ShouldTrip: TripsBreaker})

	err := cb.Execute(context.Background(), func(context.Context) error {
		return &RateLimitError{Source: "lever"}
	})
	assert.True(t, IsRateLimited(err))
	assert.Equal(t, CircuitClosed, cb.State())

	_ = cb.Execute(context.Background(), func(context.Context) error { return context.Canceled })
	assert.Equal(t, CircuitClosed, cb.State())

	failN(t, cb, 1)
	assert.Equal(t, CircuitOpen, cb.State())
}

func TestCircuitBreaker_ConcurrentAccess(t *testing.T) {
	cb := NewCircuitBreaker("lever", CircuitBreakerConfig{FailureThreshold: 1000})
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_ = cb.Execute(context.Background(), func(context.Context) error {
				if i%2 == 0 {
					return errors.New("fail")
				}
				return nil
			})
		}(i)
	}
	wg.Wait()
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestExecuteVal(t *testing.T) {
	cb := NewCircuitBreaker("lever", CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Minute})

	v, err := ExecuteVal(context.Background(), cb, func(context.Context) (int, error) { return 42, nil })
	require.NoError(t, err)
	assert.Equal(t, 42, v)

	failN(t, cb, 1)
	v, err = ExecuteVal(context.Background(), cb, func(context.Context) (int, error) { return 7, nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Zero(t, v)
}

func TestServiceBreakers(t *testing.T) {
	sb := NewServiceBreakers(CircuitBreakerConfig{FailureThreshold: 1, ResetTimeout: time.Minute})
	a := sb.Get("lever")
	assert.Same(t, a, sb.Get("lever"))

	failN(t, sb.Get("greenhouse"), 1)

	snap := sb.Snapshot()
	require.Len(t, snap, 2)
	assert.Equal(t, BreakerState{Source: "greenhouse", State: "open", Failures: 1}, snap[0])
	assert.Equal(t, BreakerState{Source: "lever", State: "closed"}, snap[1])
}

func TestCircuitState_String(t *testing.T) {
	assert.Equal(t, "closed", CircuitClosed.String())
	assert.Equal(t, "open", CircuitOpen.String())
	assert.Equal(t, "half-open", CircuitHalfOpen.String())
	assert.Equal(t, "unknown", CircuitState(9).String())
}

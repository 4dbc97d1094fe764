package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSourceLimits_NoLimitPassesThrough(t *testing.T) {
	l := NewSourceLimits(0)
	for i := 0; i < 100; i++ {
		require.NoError(t, l.Wait(context.Background(), "lever"))
	}
}

func TestSourceLimits_WaitRespectsContext(t *testing.T) {
	l := NewSourceLimits(time.Minute)
	l.SetLimit("jina", 0.001, 1)
	require.NoError(t, l.Wait(context.Background(), "jina"))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := l.Wait(ctx, "jina")
	require.Error(t, err)
	assert.False(t, IsRateLimited(err))
}

func TestSourceLimits_CooldownAcrossCalls(t *testing.T) {
	clock := newClock()
	l := NewSourceLimits(time.Minute)
	l.nowFunc = clock.Now

	l.Trip("lever", 0)
	until, ok := l.CooldownUntil("lever")
	require.True(t, ok)
	assert.Equal(t, clock.Now().Add(time.Minute), until)

	err := l.Wait(context.Background(), "lever")
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.True(t, IsFallbackWorthy(err))

	require.NoError(t, l.Wait(context.Background(), "greenhouse"))

	clock.Advance(time.Minute)
	_, ok = l.CooldownUntil("lever")
	assert.False(t, ok)
	assert.NoError(t, l.Wait(context.Background(), "lever"))
}

func TestSourceLimits_RetryAfterOverridesDefault(t *testing.T) {
	clock := newClock()
	l := NewSourceLimits(time.Minute)
	l.nowFunc = clock.Now

	l.Trip("jina", 5*time.Minute)
	until, ok := l.CooldownUntil("jina")
	require.True(t, ok)
	assert.Equal(t, clock.Now().Add(5*time.Minute), until)

	// A shorter window never shortens an active cooldown.
	l.Trip("jina", time.Second)
	until, _ = l.CooldownUntil("jina")
	assert.Equal(t, clock.Now().Add(5*time.Minute), until)
}

func TestSourceLimits_SetLimitRemoves(t *testing.T) {
	l := NewSourceLimits(0)
	l.SetLimit("jina", 1, 1)
	l.SetLimit("jina", 0, 0)
	for i := 0; i < 10; i++ {
		require.NoError(t, l.Wait(context.Background(), "jina"))
	}
}

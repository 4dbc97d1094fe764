package cache

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/jobsearch-cli/internal/model"
	"github.com/sells-group/jobsearch-cli/internal/store"
)

type mockBackend struct {
	mock.Mock
}

func (m *mockBackend) Get(ctx context.Context, fp string) (*model.CacheEntry, error) {
	args := m.Called(ctx, fp)
	e, _ := args.Get(0).(*model.CacheEntry)
	return e, args.Error(1)
}

func (m *mockBackend) Set(ctx context.Context, e model.CacheEntry) error {
	return m.Called(ctx, e).Error(0)
}

func (m *mockBackend) Delete(ctx context.Context, fp string) error {
	return m.Called(ctx, fp).Error(0)
}

func (m *mockBackend) DeleteExpired(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func newMemoryLayer(now *time.Time) *Layer {
	mem := NewMemory(100)
	mem.nowFunc = func() time.Time { return *now }
	return NewLayer(mem, Config{}).WithClock(func() time.Time { return *now })
}

func TestLayer_DefaultTTLs(t *testing.T) {
	l := NewLayer(NewMemory(1), Config{})
	assert.Equal(t, 21*24*time.Hour, l.TTL(model.KindJob))
	assert.Equal(t, 7*24*time.Hour, l.TTL(model.KindContact))
}

func TestLayer_SetThenGet(t *testing.T) {
	now := t0
	l := newMemoryLayer(&now)
	ctx := context.Background()

	require.NoError(t, l.Set(ctx, "fp", model.KindJob, records(4), time.Hour))
	e, ok := l.Get(ctx, "fp")
	require.True(t, ok)
	assert.Len(t, e.Records, 4)
	assert.Equal(t, t0, e.CachedAt)
	assert.Equal(t, t0.Add(time.Hour), e.ExpiresAt)
}

func TestLayer_ExpiredNeverReturned(t *testing.T) {
	now := t0
	l := newMemoryLayer(&now)
	ctx := context.Background()

	require.NoError(t, l.Set(ctx, "fp", model.KindJob, records(1), time.Hour))
	now = t0.Add(time.Hour)
	_, ok := l.Get(ctx, "fp")
	assert.False(t, ok)
}

func TestLayer_ZeroTTLDeletes(t *testing.T) {
	now := t0
	l := newMemoryLayer(&now)
	ctx := context.Background()

	require.NoError(t, l.Set(ctx, "fp", model.KindJob, records(3), time.Hour))
	require.NoError(t, l.Set(ctx, "fp", model.KindJob, records(3), 0))
	_, ok := l.Get(ctx, "fp")
	assert.False(t, ok)
}

func TestLayer_WriteOverwrites(t *testing.T) {
	now := t0
	l := newMemoryLayer(&now)
	ctx := context.Background()

	require.NoError(t, l.Set(ctx, "fp", model.KindJob, records(6), time.Hour))
	now = t0.Add(time.Minute)
	require.NoError(t, l.Set(ctx, "fp", model.KindJob, records(2), time.Hour))

	e, ok := l.Get(ctx, "fp")
	require.True(t, ok)
	assert.Len(t, e.Records, 2)
	assert.Equal(t, t0.Add(time.Minute), e.CachedAt)
}

func TestLayer_LookupAndStoreByQuery(t *testing.T) {
	now := t0
	l := newMemoryLayer(&now)
	ctx := context.Background()

	q1 := model.NewJobQuery(model.JobQuery{Keywords: []string{"Nurse"}, Location: "Toronto, ON"})
	q2 := model.NewJobQuery(model.JobQuery{Keywords: []string{" nurse "}, Location: "toronto,  on", MaxResults: 5})
	l.Store(ctx, q1, records(2))

	e, ok := l.Lookup(ctx, q2)
	require.True(t, ok)
	assert.Len(t, e.Records, 2)
	assert.Equal(t, model.KindJob, e.Kind)
}

func TestLayer_BackendErrorIsMiss(t *testing.T) {
	b := &mockBackend{}
	b.On("Get", mock.Anything, "fp").Return(nil, errors.New("redis down"))
	l := NewLayer(b, Config{})

	e, ok := l.Get(context.Background(), "fp")
	assert.False(t, ok)
	assert.Nil(t, e)
	b.AssertExpectations(t)
}

func TestLayer_StoreSwallowsErrors(t *testing.T) {
	b := &mockBackend{}
	b.On("Set", mock.Anything, mock.AnythingOfType("model.CacheEntry")).Return(errors.New("disk full"))
	l := NewLayer(b, Config{})

	assert.NotPanics(t, func() {
		l.Store(context.Background(), model.NewContactQuery(model.ContactQuery{CompanyName: "Acme"}), records(1))
	})
	b.AssertExpectations(t)
}

func TestLayer_SweepAndInvalidate(t *testing.T) {
	b := &mockBackend{}
	b.On("DeleteExpired", mock.Anything).Return(3, nil)
	b.On("Delete", mock.Anything, "fp").Return(nil)
	l := NewLayer(b, Config{})

	n, err := l.Sweep(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	require.NoError(t, l.Invalidate(context.Background(), "fp"))
	b.AssertExpectations(t)
}

func TestTiered_BackfillsFasterLayer(t *testing.T) {
	ctx := context.Background()
	fast := NewMemory(10)
	fast.nowFunc = func() time.Time { return t0 }
	slow := NewMemory(10)
	slow.nowFunc = func() time.Time { return t0 }
	require.NoError(t, slow.Set(ctx, entry("fp", 2, t0.Add(time.Hour))))

	tc := NewTiered(fast, slow)
	e, err := tc.Get(ctx, "fp")
	require.NoError(t, err)
	require.NotNil(t, e)

	filled, _ := fast.Get(ctx, "fp")
	require.NotNil(t, filled)
	assert.Len(t, filled.Records, 2)
}

func TestTiered_FailingLayerFallsThrough(t *testing.T) {
	ctx := context.Background()
	broken := &mockBackend{}
	broken.On("Get", mock.Anything, "fp").Return(nil, errors.New("unavailable"))
	broken.On("Set", mock.Anything, mock.Anything).Return(errors.New("unavailable"))

	slow := NewMemory(10)
	slow.nowFunc = func() time.Time { return t0 }
	require.NoError(t, slow.Set(ctx, entry("fp", 1, t0.Add(time.Hour))))

	e, err := NewTiered(broken, slow).Get(ctx, "fp")
	require.NoError(t, err)
	assert.NotNil(t, e)
}

func TestTiered_AllFailIsError(t *testing.T) {
	broken := &mockBackend{}
	broken.On("Get", mock.Anything, "fp").Return(nil, errors.New("unavailable"))

	_, err := NewTiered(broken).Get(context.Background(), "fp")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all backends failed")
}

func TestTiered_SetWritesAll(t *testing.T) {
	ctx := context.Background()
	a, b := NewMemory(10), NewMemory(10)
	a.nowFunc = func() time.Time { return t0 }
	b.nowFunc = func() time.Time { return t0 }
	tc := NewTiered(a, b)

	require.NoError(t, tc.Set(ctx, entry("fp", 1, t0.Add(time.Hour))))
	ea, _ := a.Get(ctx, "fp")
	eb, _ := b.Get(ctx, "fp")
	assert.NotNil(t, ea)
	assert.NotNil(t, eb)

	require.NoError(t, tc.Delete(ctx, "fp"))
	ea, _ = a.Get(ctx, "fp")
	assert.Nil(t, ea)
}

func TestDurable_OverSQLiteStore(t *testing.T) {
	ctx := context.Background()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() }) //nolint:errcheck
	require.NoError(t, st.Migrate(ctx))

	l := NewLayer(NewTiered(NewMemory(10), NewDurable(st)), Config{})
	require.NoError(t, l.Set(ctx, "fp", model.KindJob, records(3), time.Hour))

	// A fresh memory layer still hits through the durable store.
	cold := NewLayer(NewTiered(NewMemory(10), NewDurable(st)), Config{})
	e, ok := cold.Get(ctx, "fp")
	require.True(t, ok)
	assert.Len(t, e.Records, 3)

	require.NoError(t, cold.Set(ctx, "fp", model.KindJob, nil, -time.Second))
	_, ok = NewLayer(NewDurable(st), Config{}).Get(ctx, "fp")
	assert.False(t, ok)
}

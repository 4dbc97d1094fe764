package cache

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sells-group/jobsearch-cli/internal/model"
)

const (
	defaultMaxEntries = 10000
	defaultSweepEvery = 256
)

// Memory is an in-process LRU backend. Expired entries are dropped when read
// and by a sweep that runs every SweepEvery writes.
type Memory struct {
	mu         sync.Mutex
	items      map[string]*list.Element // values are model.CacheEntry
	ll         *list.List               // front is most recently used
	maxEntries int
	sweepEvery int
	writes     int

	hits   atomic.Int64
	misses atomic.Int64

	nowFunc func() time.Time
}

// MemoryStats reports cache size and hit counts.
type MemoryStats struct {
	Entries    int     `json:"entries"`
	MaxEntries int     `json:"max_entries"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	HitRate    float64 `json:"hit_rate"`
}

// NewMemory creates a Memory backend holding at most maxEntries entries.
func NewMemory(maxEntries int) *Memory {
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}
	return &Memory{
		items:      make(map[string]*list.Element),
		ll:         list.New(),
		maxEntries: maxEntries,
		sweepEvery: defaultSweepEvery,
		nowFunc:    time.Now,
	}
}

func (m *Memory) Get(_ context.Context, fingerprint string) (*model.CacheEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	el, ok := m.items[fingerprint]
	if !ok {
		m.misses.Add(1)
		return nil, nil
	}
	e := el.Value.(model.CacheEntry)
	if e.Expired(m.nowFunc()) {
		m.removeElement(el)
		m.misses.Add(1)
		return nil, nil
	}
	m.ll.MoveToFront(el)
	m.hits.Add(1)
	out := cloneEntry(e)
	return &out, nil
}

func (m *Memory) Set(_ context.Context, entry model.CacheEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if el, ok := m.items[entry.Fingerprint]; ok {
		el.Value = cloneEntry(entry)
		m.ll.MoveToFront(el)
	} else {
		for m.ll.Len() >= m.maxEntries {
			m.removeElement(m.ll.Back())
		}
		m.items[entry.Fingerprint] = m.ll.PushFront(cloneEntry(entry))
	}

	m.writes++
	if m.writes%m.sweepEvery == 0 {
		m.sweep()
	}
	return nil
}

func (m *Memory) Delete(_ context.Context, fingerprint string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if el, ok := m.items[fingerprint]; ok {
		m.removeElement(el)
	}
	return nil
}

func (m *Memory) DeleteExpired(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sweep(), nil
}

// Stats returns a snapshot of cache statistics.
func (m *Memory) Stats() MemoryStats {
	m.mu.Lock()
	n := m.ll.Len()
	m.mu.Unlock()

	hits, misses := m.hits.Load(), m.misses.Load()
	var rate float64
	if total := hits + misses; total > 0 {
		rate = float64(hits) / float64(total)
	}
	return MemoryStats{Entries: n, MaxEntries: m.maxEntries, Hits: hits, Misses: misses, HitRate: rate}
}

// sweep drops expired entries. Caller holds the lock.
func (m *Memory) sweep() int {
	now := m.nowFunc()
	removed := 0
	for el := m.ll.Back(); el != nil; {
		prev := el.Prev()
		e := el.Value.(model.CacheEntry)
		if e.Expired(now) {
			m.removeElement(el)
			removed++
		}
		el = prev
	}
	return removed
}

func (m *Memory) removeElement(el *list.Element) {
	e := m.ll.Remove(el).(model.CacheEntry)
	delete(m.items, e.Fingerprint)
}

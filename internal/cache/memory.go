package cache

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/Rorschach3/chore-chart/internal/clock"
	"github.com/cespare/xxhash/v2"
)

const shardCount = 16

type shard struct {
	mu    sync.RWMutex
	items map[string]Entry
}

// Stats is a point-in-time view of cache activity.
type Stats struct {
	Entries      int       `json:"entries"`
	Hits         uint64    `json:"hits"`
	Misses       uint64    `json:"misses"`
	ExpiredReads uint64    `json:"expired_reads"`
	Evictions    uint64    `json:"evictions"`
	Sweeps       uint64    `json:"sweeps"`
	LastSweep    time.Time `json:"last_sweep,omitempty"`
	TTLSeconds   float64   `json:"ttl_seconds"`
}

// Memory is a thread-safe in-memory TTL cache. Entries are spread over
// independently locked shards so a sweep never holds a lock that a read of a
// key in another shard would wait on.
type Memory struct {
	ttl    time.Duration
	clock  clock.Clock
	shards [shardCount]*shard

	hits         atomic.Uint64
	misses       atomic.Uint64
	expiredReads atomic.Uint64
	evictions    atomic.Uint64
	sweeps       atomic.Uint64
	lastSweep    atomic.Int64 // unix nanos, 0 = never
}

// NewMemory creates an empty cache. A non-positive ttl falls back to
// DefaultTTL and a nil clock to the wall clock.
func NewMemory(ttl time.Duration, clk clock.Clock) *Memory {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if clk == nil {
		clk = clock.Real{}
	}
	m := &Memory{ttl: ttl, clock: clk}
	for i := range m.shards {
		m.shards[i] = &shard{items: make(map[string]Entry)}
	}
	return m
}

// TTL returns the configured time-to-live.
func (m *Memory) TTL() time.Duration { return m.ttl }

func (m *Memory) shardFor(key string) *shard {
	return m.shards[xxhash.Sum64String(key)%shardCount]
}

func (m *Memory) fresh(e Entry, now time.Time) bool {
	return now.Sub(e.StoredAt) < m.ttl
}

// Get returns the entry for the normalized key if it is still valid. An
// expired entry is deleted on the spot and reported as a miss.
func (m *Memory) Get(key string) (Entry, bool) {
	key = NormalizeKey(key)
	s := m.shardFor(key)

	s.mu.RLock()
	e, ok := s.items[key]
	s.mu.RUnlock()

	if !ok {
		m.misses.Add(1)
		return Entry{}, false
	}

	now := m.clock.Now()
	if m.fresh(e, now) {
		m.hits.Add(1)
		return e, true
	}

	s.mu.Lock()
	// A writer may have refreshed the key between the two locks.
	if cur, ok := s.items[key]; ok && !m.fresh(cur, now) {
		delete(s.items, key)
		m.evictions.Add(1)
	}
	s.mu.Unlock()

	m.expiredReads.Add(1)
	m.misses.Add(1)
	return Entry{}, false
}

// Put stores value under the normalized key, replacing any previous entry.
func (m *Memory) Put(key, value string) {
	key = NormalizeKey(key)
	s := m.shardFor(key)
	e := Entry{Key: key, Value: value, StoredAt: m.clock.Now()}

	s.mu.Lock()
	s.items[key] = e
	s.mu.Unlock()
}

// Delete removes the entry for the normalized key.
func (m *Memory) Delete(key string) {
	key = NormalizeKey(key)
	s := m.shardFor(key)

	s.mu.Lock()
	delete(s.items, key)
	s.mu.Unlock()
}

// Len returns the number of stored entries, including expired ones that have
// not been swept yet.
func (m *Memory) Len() int {
	n := 0
	for _, s := range m.shards {
		s.mu.RLock()
		n += len(s.items)
		s.mu.RUnlock()
	}
	return n
}

// Clear removes every entry.
func (m *Memory) Clear() {
	for _, s := range m.shards {
		s.mu.Lock()
		s.items = make(map[string]Entry)
		s.mu.Unlock()
	}
}

// Sweep removes every entry whose age has reached the TTL and returns how many
// were removed. Shards are locked one at a time.
func (m *Memory) Sweep() int {
	now := m.clock.Now()
	removed := 0
	for _, s := range m.shards {
		s.mu.Lock()
		for k, e := range s.items {
			if !m.fresh(e, now) {
				delete(s.items, k)
				removed++
			}
		}
		s.mu.Unlock()
	}
	m.evictions.Add(uint64(removed))
	m.sweeps.Add(1)
	m.lastSweep.Store(now.UnixNano())
	return removed
}

// Stats returns counters accumulated since the cache was created.
func (m *Memory) Stats() Stats {
	st := Stats{
		Entries:      m.Len(),
		Hits:         m.hits.Load(),
		Misses:       m.misses.Load(),
		ExpiredReads: m.expiredReads.Load(),
		Evictions:    m.evictions.Load(),
		Sweeps:       m.sweeps.Load(),
		TTLSeconds:   m.ttl.Seconds(),
	}
	if ns := m.lastSweep.Load(); ns != 0 {
		st.LastSweep = time.Unix(0, ns).UTC()
	}
	return st
}

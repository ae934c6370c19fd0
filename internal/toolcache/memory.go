// Package toolcache implements the two-tier result cache: a bounded
// in-memory LRU tier and a durable persistent tier, composed behind a
// Manager facade with singleflight-deduplicated misses and an
// asynchronous write-behind queue. Grounded on the teacher's
// internal/cache/dedupe.go locking idiom (bounded map, pruning under a
// single mutex) generalized to full get/set/evict semantics, and on
// other_examples' generic multi-tier Cache interface for the surrounding
// doc-comment shape.
package toolcache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// record is what the memory tier stores per composed key.
type record struct {
	Value       any
	ExpiresAt   *time.Time
	Namespace   string
	Version     string
}

// MemoryStats is the snapshot returned by Memory.Stats.
type MemoryStats struct {
	MaxSize     int
	CurrentSize int
	Hits        uint64
	Misses      uint64
}

// Memory is a thread-safe, bounded LRU cache keyed by composed cache key.
// Per spec.md §4.1, all mutating operations hold a single lock, and
// iteration (Stats) returns a point-in-time snapshot.
type Memory struct {
	mu      sync.Mutex
	lru     *lru.Cache[string, *record]
	maxSize int
	hits    uint64
	misses  uint64
}

// NewMemory constructs a Memory cache bounded to maxSize entries. maxSize
// is clamped to at least 1.
func NewMemory(maxSize int) *Memory {
	if maxSize < 1 {
		maxSize = 1
	}
	c, _ := lru.New[string, *record](maxSize)
	return &Memory{lru: c, maxSize: maxSize}
}

// Get returns the value for key if present and not expired. An expired
// entry is evicted and treated as a miss.
func (m *Memory) Get(key string) (any, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.lru.Get(key)
	if !ok {
		m.misses++
		return nil, false
	}

	if rec.ExpiresAt != nil && !rec.ExpiresAt.After(time.Now()) {
		m.lru.Remove(key)
		m.misses++
		return nil, false
	}

	m.hits++
	return rec.Value, true
}

// Set upserts key. ttl of zero means no expiry tracked at this tier
// (callers that want "expire immediately" should not call Set at all —
// see Manager.Set's ttl=0 handling).
func (m *Memory) Set(key string, value any, namespace, version string, ttl *time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec := &record{Value: value, Namespace: namespace, Version: version}
	if ttl != nil {
		expires := time.Now().Add(*ttl)
		rec.ExpiresAt = &expires
	}
	m.lru.Add(key, rec)
}

// Delete removes key without affecting hit/miss counters.
func (m *Memory) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lru.Remove(key)
}

// Clear drops all entries and resets counters.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lru.Purge()
	m.hits = 0
	m.misses = 0
}

// Stats returns a snapshot of size and hit/miss counters.
func (m *Memory) Stats() MemoryStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MemoryStats{
		MaxSize:     m.maxSize,
		CurrentSize: m.lru.Len(),
		Hits:        m.hits,
		Misses:      m.misses,
	}
}

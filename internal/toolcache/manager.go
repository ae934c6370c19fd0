package toolcache

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/scitool/toolengine/internal/observability"
)

// ComposeKey builds the composed cache key
// `namespace::version::cache_key`, the only key ever stored — changing a
// tool's version transparently invalidates its cached results.
func ComposeKey(namespace, version, cacheKey string) string {
	return namespace + "::" + version + "::" + cacheKey
}

// writeJob is one item on the async write-behind queue.
type writeJob struct {
	stop      bool
	key       string
	namespace string
	version   string
	value     any
	ttl       *time.Duration
}

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// Enabled gates all caching; when false, Get always misses and Set is
	// a no-op.
	Enabled bool

	// DefaultTTL is used when Set is called without an explicit TTL.
	DefaultTTL *time.Duration

	// AsyncPersist enables the write-behind queue; when false, every Set
	// persists synchronously.
	AsyncPersist bool

	// AsyncQueueSize bounds the write-behind channel.
	AsyncQueueSize int
}

// Manager is the two-tier cache facade: in-memory LRU in front of a
// durable persistent store, with singleflight-deduplicated cold misses
// and an asynchronous write-behind queue. Grounded on spec.md §4.3.
type Manager struct {
	mem        *Memory
	persistent *Persistent
	cfg        ManagerConfig
	logger     *slog.Logger
	metrics    *observability.Metrics

	group singleflight.Group

	writeQueue      chan writeJob
	asyncEnabled    bool
	asyncMu         sync.Mutex
	writerWG        sync.WaitGroup
}

// NewManager constructs a Manager and starts its async writer goroutine if
// cfg.AsyncPersist is set and persistent is non-nil.
func NewManager(mem *Memory, persistent *Persistent, cfg ManagerConfig, logger *slog.Logger, metrics *observability.Metrics) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.AsyncQueueSize <= 0 {
		cfg.AsyncQueueSize = 256
	}

	m := &Manager{
		mem:        mem,
		persistent: persistent,
		cfg:        cfg,
		logger:     logger.With("component", "toolcache.manager"),
		metrics:    metrics,
	}

	if cfg.AsyncPersist && persistent != nil {
		m.writeQueue = make(chan writeJob, cfg.AsyncQueueSize)
		m.asyncEnabled = true
		m.writerWG.Add(1)
		go m.runWriter()
	}

	return m
}

// Get implements spec.md §4.3's get: memory first, then persistent with
// promotion back into memory on hit.
func (m *Manager) Get(namespace, version, cacheKey string) (any, bool) {
	if !m.cfg.Enabled {
		return nil, false
	}

	key := ComposeKey(namespace, version, cacheKey)

	if v, ok := m.mem.Get(key); ok {
		m.recordHit("memory")
		return v, true
	}
	m.recordMiss("memory")

	if m.persistent == nil {
		return nil, false
	}

	v, ok, err := m.persistent.Get(key)
	if err != nil {
		m.logger.Error("persistent get failed", "key", key, "error", err)
		return nil, false
	}
	if !ok {
		m.recordMiss("persistent")
		return nil, false
	}
	m.recordHit("persistent")

	// Promote to memory with the manager's default TTL, since the exact
	// remaining TTL isn't tracked by Memory's record; this is a
	// deliberate simplification — the persistent tier remains the source
	// of truth for expiry.
	m.mem.Set(key, v, namespace, version, m.cfg.DefaultTTL)

	return v, true
}

// Set implements spec.md §4.3's set: compute effective TTL, write memory
// synchronously, then persist either via the async queue (falling back to
// synchronous on a full queue) or synchronously if async persistence is
// disabled.
func (m *Manager) Set(namespace, version, cacheKey string, value any, ttl *time.Duration) {
	if !m.cfg.Enabled {
		return
	}

	effectiveTTL := ttl
	if effectiveTTL == nil {
		effectiveTTL = m.cfg.DefaultTTL
	}

	// ttl=0 means "expire immediately" (spec.md §9 resolved open
	// question): treat it as a no-op rather than caching something that
	// is already stale.
	if effectiveTTL != nil && *effectiveTTL == 0 {
		return
	}

	key := ComposeKey(namespace, version, cacheKey)
	m.mem.Set(key, value, namespace, version, effectiveTTL)

	if m.persistent == nil {
		return
	}

	if m.asyncPersistenceEnabled() {
		job := writeJob{key: key, namespace: namespace, version: version, value: value, ttl: effectiveTTL}
		select {
		case m.writeQueue <- job:
		default:
			m.logger.Warn("async write queue full, falling back to synchronous persist", "key", key)
			if m.metrics != nil {
				m.metrics.CacheAsyncWriteFallbacks.Inc()
			}
			m.persistSync(key, namespace, version, value, effectiveTTL)
		}
		if m.metrics != nil {
			m.metrics.CacheAsyncWriteQueueDepth.Set(float64(len(m.writeQueue)))
		}
		return
	}

	m.persistSync(key, namespace, version, value, effectiveTTL)
}

func (m *Manager) persistSync(key, namespace, version string, value any, ttl *time.Duration) {
	if err := m.persistent.Set(key, namespace, version, value, ttl); err != nil {
		m.logger.Error("synchronous persist failed", "key", key, "error", err)
	}
}

// Delete removes the composed key from both tiers.
func (m *Manager) Delete(namespace, version, cacheKey string) {
	key := ComposeKey(namespace, version, cacheKey)
	m.mem.Delete(key)
	if m.persistent != nil {
		if err := m.persistent.Delete(key); err != nil {
			m.logger.Error("persistent delete failed", "key", key, "error", err)
		}
	}
}

// Clear drops all entries, or only those for namespace if non-empty.
func (m *Manager) Clear(namespace string) {
	if namespace == "" {
		m.mem.Clear()
	}
	if m.persistent != nil {
		if err := m.persistent.Clear(namespace); err != nil {
			m.logger.Error("persistent clear failed", "namespace", namespace, "error", err)
		}
	}
}

// BulkRequest is one entry of a BulkGet call.
type BulkRequest struct {
	Namespace string
	Version   string
	CacheKey  string
}

// BulkGet is a convenience that issues per-entry Gets, per spec.md §4.3.
func (m *Manager) BulkGet(requests []BulkRequest) map[string]any {
	results := make(map[string]any, len(requests))
	for _, req := range requests {
		if v, ok := m.Get(req.Namespace, req.Version, req.CacheKey); ok {
			results[ComposeKey(req.Namespace, req.Version, req.CacheKey)] = v
		}
	}
	return results
}

// SingleflightGuard collapses concurrent cold-cache computations for the
// same composed key into one call to fn. Per spec.md §4.3, implementations
// MUST re-check the cache after acquiring the guard; compute does that by
// construction since fn is expected to call Get again internally when
// wrapped by the engine.
func (m *Manager) SingleflightGuard(composedKey string, fn func() (any, error)) (any, error, bool) {
	v, err, shared := m.group.Do(composedKey, fn)
	if shared && m.metrics != nil {
		m.metrics.EngineSingleflightCollapses.Inc()
	}
	return v, err, shared
}

func (m *Manager) asyncPersistenceEnabled() bool {
	m.asyncMu.Lock()
	defer m.asyncMu.Unlock()
	return m.asyncEnabled
}

func (m *Manager) disableAsyncPersistence() {
	m.asyncMu.Lock()
	m.asyncEnabled = false
	m.asyncMu.Unlock()
}

// runWriter drains the write-behind queue on a single goroutine. On a
// persistent-layer failure it logs and disables async persistence for the
// process lifetime, per spec.md §4.3/§7 — subsequent writes fall back to
// synchronous.
func (m *Manager) runWriter() {
	defer m.writerWG.Done()

	for job := range m.writeQueue {
		if job.stop {
			return
		}

		if err := m.persistent.Set(job.key, job.namespace, job.version, job.value, job.ttl); err != nil {
			m.logger.Error("async persist failed, disabling async persistence", "key", job.key, "error", err)
			m.disableAsyncPersistence()
		}

		if m.metrics != nil {
			m.metrics.CacheAsyncWriteQueueDepth.Set(float64(len(m.writeQueue)))
		}
	}
}

// Shutdown pushes the sentinel stop job and waits for the writer to drain,
// per spec.md §4.3's "shutdown pushes a sentinel and joins".
func (m *Manager) Shutdown() {
	if m.writeQueue == nil {
		return
	}
	m.writeQueue <- writeJob{stop: true}
	close(m.writeQueue)
	m.writerWG.Wait()
}

func (m *Manager) recordHit(tier string) {
	if m.metrics != nil {
		m.metrics.RecordCacheHit(tier)
	}
}

func (m *Manager) recordMiss(tier string) {
	if m.metrics != nil {
		m.metrics.RecordCacheMiss(tier)
	}
}

// Stats reports combined memory and persistent statistics for CLI/API
// inspection (`enginectl cache stats`).
type Stats struct {
	Memory     MemoryStats
	Persistent PersistentStats
}

// Stats returns a snapshot of both cache tiers.
func (m *Manager) Stats() (Stats, error) {
	s := Stats{Memory: m.mem.Stats()}
	if m.persistent != nil {
		ps, err := m.persistent.Stats()
		if err != nil {
			return s, fmt.Errorf("persistent stats: %w", err)
		}
		s.Persistent = ps
	}
	return s, nil
}

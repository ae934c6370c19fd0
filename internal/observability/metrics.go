package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides a centralized interface for collecting application metrics
// for the tool dispatch and integration engine.
//
// The metrics system is built on Prometheus and tracks:
//   - Cache hit/miss rates across the memory and persistent tiers
//   - Engine dispatch latency and outcome by tool
//   - Hook pipeline invocation counts and outcomes
//   - Loader filtering decisions (excluded, deduplicated, missing keys)
//
// Usage:
//
//	metrics := observability.NewMetrics()
//	metrics.RecordCacheHit("memory")
//	defer metrics.EngineDispatchDurationSeconds.WithLabelValues("Echo").Observe(...)
type Metrics struct {
	// CacheHits counts cache hits by tier (memory|persistent).
	CacheHits *prometheus.CounterVec

	// CacheMisses counts cache misses by tier.
	CacheMisses *prometheus.CounterVec

	// CacheEvictions counts LRU evictions from the memory tier.
	CacheEvictions prometheus.Counter

	// CacheAsyncWriteQueueDepth tracks the depth of the write-behind queue.
	CacheAsyncWriteQueueDepth prometheus.Gauge

	// CacheAsyncWriteFallbacks counts synchronous fallbacks triggered by a full queue.
	CacheAsyncWriteFallbacks prometheus.Counter

	// EngineDispatchTotal counts dispatches by tool name and outcome (hit|success|error).
	EngineDispatchTotal *prometheus.CounterVec

	// EngineDispatchDurationSeconds measures end-to-end run_one latency.
	// Labels: tool_name
	// Buckets: 0.001s .. 30s
	EngineDispatchDurationSeconds *prometheus.HistogramVec

	// EngineSingleflightCollapses counts concurrent misses collapsed into one computation.
	EngineSingleflightCollapses prometheus.Counter

	// EngineBatchJobsTotal counts batch jobs by outcome.
	EngineBatchJobsTotal *prometheus.CounterVec

	// HookInvocationsTotal counts hook invocations by hook name and outcome.
	HookInvocationsTotal *prometheus.CounterVec

	// LoaderToolsTotal counts loaded tools by outcome (loaded|excluded|duplicate|missing_keys).
	LoaderToolsTotal *prometheus.CounterVec

	// RegistryUnavailableTotal counts tool types marked unavailable.
	RegistryUnavailableTotal prometheus.Counter

	// MCPRequestsTotal counts JSON-RPC requests handled by the MCP adapter,
	// by method and outcome (ok|error).
	MCPRequestsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics against the
// default registerer. This should be called once at application startup.
func NewMetrics() *Metrics {
	return NewMetricsWith(prometheus.DefaultRegisterer)
}

// NewMetricsWith creates and registers all metrics against the given
// registerer, so tests can use an isolated *prometheus.Registry instead of
// polluting the global one.
func NewMetricsWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		CacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolengine_cache_hits_total",
				Help: "Total cache hits by tier (memory|persistent)",
			},
			[]string{"tier"},
		),

		CacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolengine_cache_misses_total",
				Help: "Total cache misses by tier (memory|persistent)",
			},
			[]string{"tier"},
		),

		CacheEvictions: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "toolengine_cache_evictions_total",
				Help: "Total LRU evictions from the in-memory cache tier",
			},
		),

		CacheAsyncWriteQueueDepth: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "toolengine_cache_async_queue_depth",
				Help: "Current depth of the write-behind persistence queue",
			},
		),

		CacheAsyncWriteFallbacks: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "toolengine_cache_async_fallbacks_total",
				Help: "Total synchronous persistence fallbacks triggered by a full async queue",
			},
		),

		EngineDispatchTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolengine_dispatch_total",
				Help: "Total tool dispatches by tool name and outcome",
			},
			[]string{"tool_name", "outcome"},
		),

		EngineDispatchDurationSeconds: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "toolengine_dispatch_duration_seconds",
				Help:    "Duration of run_one dispatches in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
			},
			[]string{"tool_name"},
		),

		EngineSingleflightCollapses: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "toolengine_singleflight_collapses_total",
				Help: "Total concurrent cold-cache calls collapsed into a single computation",
			},
		),

		EngineBatchJobsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolengine_batch_jobs_total",
				Help: "Total batch jobs by outcome (executed|cached|deduplicated|error)",
			},
			[]string{"outcome"},
		),

		HookInvocationsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolengine_hook_invocations_total",
				Help: "Total hook invocations by hook name and outcome (applied|skipped|error)",
			},
			[]string{"hook_name", "outcome"},
		),

		LoaderToolsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolengine_loader_tools_total",
				Help: "Total tool config entries processed by the loader, by outcome",
			},
			[]string{"outcome"},
		),

		RegistryUnavailableTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "toolengine_registry_unavailable_total",
				Help: "Total tool types marked unavailable in the registry",
			},
		),

		MCPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "toolengine_mcp_requests_total",
				Help: "Total JSON-RPC requests handled by the MCP adapter, by method and outcome",
			},
			[]string{"method", "outcome"},
		),
	}
}

// RecordCacheHit records a cache hit for the given tier.
func (m *Metrics) RecordCacheHit(tier string) {
	if m == nil {
		return
	}
	m.CacheHits.WithLabelValues(tier).Inc()
}

// RecordCacheMiss records a cache miss for the given tier.
func (m *Metrics) RecordCacheMiss(tier string) {
	if m == nil {
		return
	}
	m.CacheMisses.WithLabelValues(tier).Inc()
}

// RecordDispatch records a dispatch outcome for a tool.
func (m *Metrics) RecordDispatch(toolName, outcome string) {
	if m == nil {
		return
	}
	m.EngineDispatchTotal.WithLabelValues(toolName, outcome).Inc()
}

// RecordHookInvocation records a hook pipeline outcome.
func (m *Metrics) RecordHookInvocation(hookName, outcome string) {
	if m == nil {
		return
	}
	m.HookInvocationsTotal.WithLabelValues(hookName, outcome).Inc()
}

// RecordLoaderOutcome records a loader filtering decision.
func (m *Metrics) RecordLoaderOutcome(outcome string) {
	if m == nil {
		return
	}
	m.LoaderToolsTotal.WithLabelValues(outcome).Inc()
}

// RecordMCPRequest records a JSON-RPC request handled by the MCP adapter.
func (m *Metrics) RecordMCPRequest(method, outcome string) {
	if m == nil {
		return
	}
	m.MCPRequestsTotal.WithLabelValues(method, outcome).Inc()
}

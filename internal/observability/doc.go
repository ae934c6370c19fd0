// Package observability provides metrics and structured logging for the
// tool dispatch engine.
//
// # Metrics
//
// Metrics are Prometheus counters/histograms tracking cache hit/miss rates,
// dispatch outcomes and latency, singleflight collapses, batch job counts,
// hook invocation outcomes, loader outcomes, and MCP request outcomes.
// NewMetrics registers against the default Prometheus registerer; tests use
// NewMetricsWith(registry) against an isolated one so parallel tests don't
// collide on duplicate registration.
//
//	metrics := observability.NewMetrics()
//	metrics.RecordDispatch("get_weather", "success")
//	metrics.RecordCacheHit("memory")
//
// # Logging
//
// Logger wraps slog with request-ID correlation (via context) and
// redaction of sensitive values (API keys, passwords, bearer/JWT tokens) in
// both free-form messages and structured fields, so a tool argument that
// happens to carry a credential doesn't land in a log sink verbatim. It is
// supporting infrastructure for components that want that correlation and
// redaction behavior; the engine, loader, registry, cache, hooks and MCP
// packages are wired with a plain caller-supplied *slog.Logger instead,
// since their call sites don't need per-request correlation across a
// multi-hop message pipeline the way a gateway-style caller might.
//
//	logger := observability.NewLogger(observability.LogConfig{Level: "info", Format: "json"})
//	ctx := observability.AddRequestID(ctx, requestID)
//	logger.Info(ctx, "dispatching tool", "tool", name, "api_key", key) // api_key redacted
package observability

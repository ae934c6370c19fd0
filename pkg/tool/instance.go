package tool

import "context"

// RunOptions carries the optional, per-call parameters the engine forwards
// to a tool's Run method. Only fields a tool opts into via AcceptsOption are
// actually passed; this replaces the original's kwargs-inspection trick with
// an explicit capabilities set (spec.md §9).
type RunOptions struct {
	// UseCache mirrors the call-level cache opt-out/opt-in.
	UseCache bool

	// Validate requests parameter validation before Run executes.
	Validate bool

	// StreamCallback, when non-nil and the tool supports streaming,
	// receives chunks as they are produced. The final Run return value is
	// the concatenation of chunks. Callback panics/errors are caught by the
	// engine and never interrupt execution.
	StreamCallback func(chunk string)
}

// Instance is a live implementation of a Config. The dispatch engine only
// depends on this interface; concrete tools (HTTP clients, file readers,
// etc.) are external collaborators that satisfy it.
type Instance interface {
	// Run executes the tool with the given arguments and options.
	Run(ctx context.Context, args map[string]any, opts RunOptions) (any, error)

	// ValidateParameters checks args against the tool's parameter schema,
	// returning a Validation-kind ToolError on mismatch, nil on success.
	ValidateParameters(args map[string]any) error

	// HandleError classifies a runtime error into a ToolError. The default
	// implementation in this package matches spec.md §4.6's substring rules.
	HandleError(err error) *ToolError

	// GetCacheKey derives the cache key for a given argument set.
	GetCacheKey(args map[string]any) string

	// GetCacheNamespace returns the tool's cache namespace, normally its name.
	GetCacheNamespace() string

	// GetCacheVersion returns a stable version string; it MUST NOT change
	// across runs unless the tool's source or parameter schema changes.
	GetCacheVersion() string

	// GetCacheTTL returns the effective TTL for a given result, or nil for
	// "use the manager default" / "no expiry" depending on config.
	GetCacheTTL(result any) *int64

	// SupportsCaching reports whether results from this tool may be cached.
	SupportsCaching() bool

	// SupportsStreaming reports whether Run honors RunOptions.StreamCallback.
	SupportsStreaming() bool

	// GetBatchConcurrencyLimit returns the tool's semaphore capacity for
	// batch dispatch; 0 means unbounded.
	GetBatchConcurrencyLimit() int

	// AcceptsOption reports whether the tool consumes the named optional
	// run parameter ("stream_callback", "use_cache", "validate"). The
	// engine only forwards the intersection of what it offers and what the
	// tool accepts.
	AcceptsOption(name string) bool
}

// Constructor builds a new Instance from its Config. Registered against a
// type tag in internal/registry.
type Constructor func(cfg *Config) (Instance, error)

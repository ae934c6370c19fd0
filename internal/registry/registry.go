// Package registry maps tool type-tags to constructors and tracks the
// health of each type, so the engine can short-circuit repeated
// instantiation failures instead of retrying a broken tool type on every
// call. Adapted from the plugin capability registry pattern (the same
// register/lookup/health shape, narrowed from arbitrary plugin
// capabilities down to a single tool-type → constructor map).
package registry

import (
	"fmt"
	"sync"
	"time"

	"github.com/scitool/toolengine/pkg/tool"
)

// UnavailableRecord captures why a type was marked unavailable and when.
type UnavailableRecord struct {
	Error     string
	Timestamp time.Time
}

// Health is a point-in-time snapshot of registry state.
type Health struct {
	Total       int
	Available   int
	Unavailable int
	Details     map[string]UnavailableRecord
}

// Registry maps tool type-tags to Constructors and tracks which types have
// been marked unavailable. Safe for concurrent use.
type Registry struct {
	mu            sync.RWMutex
	constructors  map[string]tool.Constructor
	unavailable   map[string]UnavailableRecord
	metricsHook   func()
}

// New creates an empty Registry.
func New() *Registry {
	return &Registry{
		constructors: make(map[string]tool.Constructor),
		unavailable:  make(map[string]UnavailableRecord),
	}
}

// OnUnavailable installs a callback invoked every time MarkUnavailable
// records a new entry, used by the engine to feed
// observability.Metrics.RegistryUnavailableTotal without this package
// importing observability directly.
func (r *Registry) OnUnavailable(hook func()) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metricsHook = hook
}

// Register adds or overrides the constructor for typeTag. Per spec.md §4.4,
// this is a plain map write: later registrations for the same tag win.
func (r *Registry) Register(typeTag string, constructor tool.Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.constructors[typeTag] = constructor
}

// Lookup returns the constructor registered for typeTag, or false if none
// is registered (including types previously marked unavailable — callers
// should check IsUnavailable first if they want to short-circuit).
func (r *Registry) Lookup(typeTag string) (tool.Constructor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ctor, ok := r.constructors[typeTag]
	return ctor, ok
}

// IsUnavailable reports whether typeTag was previously marked unavailable.
func (r *Registry) IsUnavailable(typeTag string) (UnavailableRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.unavailable[typeTag]
	return rec, ok
}

// MarkUnavailable records that typeTag failed to construct or resolve,
// so the engine can short-circuit future lookups without retrying a
// construction that is expected to fail again.
func (r *Registry) MarkUnavailable(typeTag string, err error) {
	r.mu.Lock()
	r.unavailable[typeTag] = UnavailableRecord{
		Error:     errString(err),
		Timestamp: time.Now(),
	}
	hook := r.metricsHook
	r.mu.Unlock()

	if hook != nil {
		hook()
	}
}

// ClearUnavailable removes a type from the unavailable set, e.g. after a
// reload replaces a broken tool implementation.
func (r *Registry) ClearUnavailable(typeTag string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.unavailable, typeTag)
}

// Health returns a snapshot of the registry's current state.
func (r *Registry) Health() Health {
	r.mu.RLock()
	defer r.mu.RUnlock()

	details := make(map[string]UnavailableRecord, len(r.unavailable))
	for k, v := range r.unavailable {
		details[k] = v
	}

	return Health{
		Total:       len(r.constructors),
		Available:   len(r.constructors) - len(details),
		Unavailable: len(details),
		Details:     details,
	}
}

// Construct resolves typeTag's constructor and invokes it with cfg. It does
// not consult or update the unavailable set; callers (the engine's lazy
// instantiation path) are responsible for calling MarkUnavailable on
// failure.
func (r *Registry) Construct(typeTag string, cfg *tool.Config) (tool.Instance, error) {
	ctor, ok := r.Lookup(typeTag)
	if !ok {
		return nil, fmt.Errorf("no constructor registered for tool type %q", typeTag)
	}
	return ctor(cfg)
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

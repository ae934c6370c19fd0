package outputhook

import (
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/scitool/toolengine/internal/observability"
)

// Manager owns the ordered hook set and applies it to engine results. It is
// safe for concurrent use: the hook list is copied under a read lock
// before iteration, and ReloadConfig publishes a new list atomically,
// matching spec.md §5's shared-resource policy.
type Manager struct {
	mu sync.RWMutex

	hooks        []*Hook
	enabledGlob  bool
	hookToolsSet map[string]bool // recursion guard allowlist

	logger  *slog.Logger
	metrics *observability.Metrics
}

// NewManager constructs a Manager with hooks enabled globally by default.
func NewManager(logger *slog.Logger, metrics *observability.Metrics) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		enabledGlob:  true,
		hookToolsSet: make(map[string]bool),
		logger:       logger.With("component", "outputhook"),
		metrics:      metrics,
	}
}

// RegisterHookTool adds toolName to the recursion-guard allowlist: hooks
// never run for invocations of these tools (e.g. the summarization
// composer), preventing a hook from recursively triggering itself.
func (m *Manager) RegisterHookTool(toolName string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hookToolsSet[toolName] = true
}

// SetHooks atomically replaces the hook set, sorted by ascending priority.
// This is ReloadConfig's publish step; callers build the new []*Hook from
// a parsed config file and hand it here.
func (m *Manager) SetHooks(hooks []*Hook) {
	sorted := make([]*Hook, len(hooks))
	copy(sorted, hooks)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority < sorted[j].Priority })

	m.mu.Lock()
	defer m.mu.Unlock()
	m.hooks = sorted
}

// ToggleHooks enables or disables the entire pipeline without discarding
// the configured hook set.
func (m *Manager) ToggleHooks(enabled bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabledGlob = enabled
}

// EnableHook / DisableHook flip a single hook's Enabled flag by name.
func (m *Manager) EnableHook(name string) bool  { return m.setHookEnabled(name, true) }
func (m *Manager) DisableHook(name string) bool { return m.setHookEnabled(name, false) }

func (m *Manager) setHookEnabled(name string, enabled bool) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, h := range m.hooks {
		if h.Name == name {
			h.Enabled = enabled
			return true
		}
	}
	return false
}

// ListHooks returns a snapshot of the configured hooks for inspection
// (`enginectl hooks list`).
func (m *Manager) ListHooks() []*Hook {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Hook, len(m.hooks))
	copy(out, m.hooks)
	return out
}

// Apply runs the hook pipeline over result, per spec.md §4.8's
// apply_hooks: global disable short-circuits, the recursion guard skips
// known hook-tools, hooks run in ascending priority order, and each
// enabled, applicable, rule-triggered hook's output replaces the running
// result for the next hook.
func (m *Manager) Apply(ctx Context, result any) any {
	m.mu.RLock()
	if !m.enabledGlob {
		m.mu.RUnlock()
		return result
	}
	if m.hookToolsSet[ctx.ToolName] {
		m.mu.RUnlock()
		return result
	}
	hooks := make([]*Hook, len(m.hooks))
	copy(hooks, m.hooks)
	m.mu.RUnlock()

	current := result
	for _, h := range hooks {
		if !h.Enabled {
			continue
		}
		if !h.Binding.appliesTo(ctx) {
			continue
		}
		if !h.Rule.Matches(current, ctx) {
			continue
		}

		next, err := m.invoke(h, ctx, current)
		if err != nil {
			m.logger.Warn("hook failed, keeping previous result", "hook", h.Name, "tool", ctx.ToolName, "error", err)
			m.recordOutcome(h.Name, "error")
			continue
		}
		m.recordOutcome(h.Name, "applied")
		current = next
	}

	return current
}

// invoke calls h.Process, recovering from panics the same way the
// teacher's hook registry guards handler dispatch.
func (m *Manager) invoke(h *Hook, ctx Context, result any) (out any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("hook %s panicked: %v", h.Name, p)
		}
	}()
	return h.Process(ctx, result)
}

func (m *Manager) recordOutcome(hookName, outcome string) {
	if m.metrics != nil {
		m.metrics.RecordHookInvocation(hookName, outcome)
	}
}

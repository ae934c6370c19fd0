package engine

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"time"

	itool "github.com/scitool/toolengine/internal/tool"

	"github.com/scitool/toolengine/internal/observability"
	"github.com/scitool/toolengine/internal/outputhook"
	"github.com/scitool/toolengine/internal/registry"
	"github.com/scitool/toolengine/internal/toolcache"
	"github.com/scitool/toolengine/pkg/tool"
)

// Engine is the dispatch core: it owns the known tool configs, the
// lazily-built instance cache, and wires every call through the registry,
// cache manager, and hook pipeline per spec.md §4.7.
type Engine struct {
	mu        sync.RWMutex
	configs   map[string]*tool.Config
	instances map[string]tool.Instance

	schemaMu        sync.Mutex
	schemaValidator map[string]*itool.SchemaValidator

	registry *registry.Registry
	cache    *toolcache.Manager
	hooks    *outputhook.Manager
	logger   *slog.Logger
	metrics  *observability.Metrics

	maxWorkers int
}

// New constructs an Engine over configs. cache and hooks may be nil, in
// which case caching and the hook pipeline are skipped entirely.
func New(configs []*tool.Config, reg *registry.Registry, cache *toolcache.Manager, hooks *outputhook.Manager, logger *slog.Logger, metrics *observability.Metrics, maxWorkers int) *Engine {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	e := &Engine{
		instances:       make(map[string]tool.Instance),
		schemaValidator: make(map[string]*itool.SchemaValidator),
		registry:        reg,
		cache:           cache,
		hooks:           hooks,
		logger:          logger.With("component", "engine"),
		metrics:         metrics,
		maxWorkers:      maxWorkers,
	}
	e.Reload(configs)
	return e
}

// Reload replaces the known config set. Existing tool instances are
// dropped so the next call to each rebuilds it against its new config.
func (e *Engine) Reload(configs []*tool.Config) {
	m := make(map[string]*tool.Config, len(configs))
	for _, cfg := range configs {
		m[cfg.Name] = cfg
	}

	e.mu.Lock()
	e.configs = m
	e.instances = make(map[string]tool.Instance)
	e.mu.Unlock()

	e.schemaMu.Lock()
	e.schemaValidator = make(map[string]*itool.SchemaValidator)
	e.schemaMu.Unlock()
}

func (e *Engine) lookupConfig(name string) (*tool.Config, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	cfg, ok := e.configs[name]
	return cfg, ok
}

// resolveInstance returns the cached instance for cfg, constructing and
// caching it on first use. The instance map is a concurrent map with
// first-writer-wins semantics, per spec.md §5.
func (e *Engine) resolveInstance(cfg *tool.Config) (tool.Instance, *tool.ToolError) {
	e.mu.RLock()
	inst, ok := e.instances[cfg.Name]
	e.mu.RUnlock()
	if ok {
		return inst, nil
	}

	if e.registry == nil {
		return nil, tool.UnavailableError(fmt.Sprintf("no registry configured, cannot construct tool %q", cfg.Name))
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if inst, ok := e.instances[cfg.Name]; ok {
		return inst, nil
	}

	if rec, unavailable := e.registry.IsUnavailable(cfg.Type); unavailable {
		return nil, tool.UnavailableError(
			fmt.Sprintf("tool type %q is marked unavailable: %s", cfg.Type, rec.Error),
			"Check tool name spelling", "Refresh tools")
	}

	built, err := e.registry.Construct(cfg.Type, cfg)
	if err != nil {
		e.registry.MarkUnavailable(cfg.Type, err)
		return nil, tool.UnavailableError(
			fmt.Sprintf("failed to instantiate tool %q: %v", cfg.Name, err),
			"Check tool name spelling", "Refresh tools")
	}

	e.instances[cfg.Name] = built
	return built, nil
}

// RunOne implements spec.md §4.7's run_one_function: name/argument
// validation, cache lookup, singleflight-guarded computation, parameter
// and schema validation, invocation, error classification, hook
// application, and cache population.
func (e *Engine) RunOne(ctx context.Context, call Call, opts Options) Result {
	start := time.Now()
	name := strings.TrimSpace(call.Name)

	// Step 1: name/arguments validation.
	if name == "" {
		return e.finish("", start, Result{Error: tool.ValidationError("Missing or empty function name")})
	}
	if call.Arguments == nil {
		call.Arguments = map[string]any{}
	}

	cfg, ok := e.lookupConfig(name)
	if !ok {
		return e.finish(name, start, Result{Error: tool.UnavailableError(
			fmt.Sprintf("unknown tool %q", name), "Check tool name spelling", "Refresh tools")})
	}

	// Step 6 (performed early): lazy instantiation. Instance methods drive
	// cache-key/namespace/version computation needed by steps 2-3, so the
	// instance must exist before the cache is consulted; a second call for
	// the same tool reuses the cached instance, matching "instantiate if
	// not yet cached".
	instance, toolErr := e.resolveInstance(cfg)
	if toolErr != nil {
		return e.finish(name, start, Result{Error: toolErr})
	}

	useCache := opts.UseCache && cfg.Cacheable && instance.SupportsCaching() && e.cache != nil
	if !useCache {
		return e.finish(name, start, e.execute(ctx, cfg, instance, call, opts))
	}

	ns := instance.GetCacheNamespace()
	ver := instance.GetCacheVersion()
	ck := instance.GetCacheKey(call.Arguments)
	composed := toolcache.ComposeKey(ns, ver, ck)

	// Step 2: cache lookup.
	if cached, hit := e.cache.Get(ns, ver, ck); hit {
		return e.finish(name, start, Result{Value: cached})
	}

	// Step 3: singleflight guard, re-checking the cache after acquiring it.
	raw, _, _ := e.cache.SingleflightGuard(composed, func() (any, error) {
		if cached, hit := e.cache.Get(ns, ver, ck); hit {
			return Result{Value: cached}, nil
		}

		result := e.execute(ctx, cfg, instance, call, opts)

		// Step 10: populate the cache on a non-error result.
		if result.Error == nil {
			e.cache.Set(ns, ver, ck, result.Value, ttlDuration(instance.GetCacheTTL(result.Value)))
		}
		return result, nil
	})

	result, _ := raw.(Result)
	return e.finish(name, start, result)
}

// execute runs steps 4-5 and 7-9: parameter validation, the general
// consistency check, invocation with the capability-filtered option set,
// error classification, and hook application.
func (e *Engine) execute(ctx context.Context, cfg *tool.Config, instance tool.Instance, call Call, opts Options) Result {
	// Step 4: explicit parameter validation, if requested.
	if opts.Validate {
		if err := instance.ValidateParameters(call.Arguments); err != nil {
			return Result{Error: toToolError(err)}
		}
	}

	// Step 5: belt-and-braces schema/required consistency check, run
	// regardless of the Validate option.
	if toolErr := e.generalConsistencyCheck(cfg, call.Arguments); toolErr != nil {
		return Result{Error: toolErr}
	}

	// Step 7: forward only the optional parameters the tool accepts.
	runOpts := tool.RunOptions{UseCache: opts.UseCache, Validate: opts.Validate}
	if !instance.AcceptsOption("use_cache") {
		runOpts.UseCache = false
	}
	if !instance.AcceptsOption("validate") {
		runOpts.Validate = false
	}
	if opts.StreamCallback != nil && instance.SupportsStreaming() && instance.AcceptsOption("stream_callback") {
		runOpts.StreamCallback = opts.StreamCallback
	}

	value, err := instance.Run(ctx, call.Arguments, runOpts)
	if err != nil {
		// Step 8: classify the failure.
		return Result{Error: instance.HandleError(err)}
	}

	// Step 9: apply the hook pipeline.
	final := value
	if e.hooks != nil {
		final = e.hooks.Apply(outputhook.Context{
			ToolName: cfg.Name,
			ToolType: cfg.Type,
			Args:     call.Arguments,
			Extra:    ctx,
		}, value)
	}

	return Result{Value: final}
}

// generalConsistencyCheck re-validates args against the config's declared
// parameter schema independent of whatever a tool's own
// ValidateParameters does, per spec.md §4.7 step 5.
func (e *Engine) generalConsistencyCheck(cfg *tool.Config, args map[string]any) *tool.ToolError {
	validator, err := e.schemaValidatorFor(cfg)
	if err != nil {
		return tool.NewError(tool.ErrConfig, fmt.Sprintf("invalid parameter schema for %s: %v", cfg.Name, err))
	}
	return validator.Validate(args)
}

func (e *Engine) schemaValidatorFor(cfg *tool.Config) (*itool.SchemaValidator, error) {
	e.schemaMu.Lock()
	defer e.schemaMu.Unlock()

	if v, ok := e.schemaValidator[cfg.Name]; ok {
		return v, nil
	}
	v, err := itool.NewSchemaValidator(cfg.Name, cfg.Parameter)
	if err != nil {
		return nil, err
	}
	e.schemaValidator[cfg.Name] = v
	return v, nil
}

func (e *Engine) finish(toolName string, start time.Time, result Result) Result {
	if e.metrics == nil {
		return result
	}
	outcome := "success"
	if result.Error != nil {
		outcome = "error"
	}
	e.metrics.RecordDispatch(toolName, outcome)
	e.metrics.EngineDispatchDurationSeconds.WithLabelValues(toolName).Observe(time.Since(start).Seconds())
	return result
}

func toToolError(err error) *tool.ToolError {
	if err == nil {
		return nil
	}
	if te, ok := err.(*tool.ToolError); ok {
		return te
	}
	return tool.ClassifyError(err)
}

func ttlDuration(seconds *int64) *time.Duration {
	if seconds == nil {
		return nil
	}
	d := time.Duration(*seconds) * time.Second
	return &d
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/scitool/toolengine/internal/config"
	"github.com/scitool/toolengine/internal/engine"
	"github.com/scitool/toolengine/internal/loader"
	"github.com/scitool/toolengine/internal/mcpclient"
	"github.com/scitool/toolengine/internal/observability"
	"github.com/scitool/toolengine/internal/outputhook"
	"github.com/scitool/toolengine/internal/registry"
	exectool "github.com/scitool/toolengine/internal/tool"
	"github.com/scitool/toolengine/internal/toolcache"
	"github.com/scitool/toolengine/pkg/tool"
)

// shutdownGrace bounds how long "serve" waits for in-flight requests to
// drain on SIGINT/SIGTERM before forcing the listener closed.
const shutdownGrace = 5 * time.Second

// sharedFlags are the filter/server flags common to "serve" and "stdio",
// per spec.md §6.1's CLI surface.
type sharedFlags struct {
	configPath       string
	hookEnabled      bool
	hookEnabledSet   bool
	hookType         string
	toolCategories   []string
	includeTools     []string
	excludeTools     []string
	excludeToolTypes []string
	maxWorkers       int
}

// app bundles every wired subsystem a command needs, plus a logger that
// already accounts for stdio mode (stderr-only, so stdout stays reserved
// for MCP protocol frames).
type app struct {
	cfg      *config.Config
	configs  []*tool.Config
	report   loader.Report
	registry *registry.Registry
	cache    *toolcache.Manager
	hooks    *outputhook.Manager
	engine   *engine.Engine
	metrics  *observability.Metrics
	logger   *slog.Logger
	closers  []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.logger.Warn("error during shutdown", "error", err)
		}
	}
}

// buildApp loads configuration, resolves category sources, runs the
// loader, and wires the registry/cache/hooks/engine exactly as "serve" and
// "stdio" need them. stdioMode forces stderr-only logging regardless of
// TOOLUNIVERSE_STDIO_MODE, since any MCP client invoking "enginectl stdio"
// needs stdout reserved for protocol frames.
func buildApp(ctx context.Context, f sharedFlags, stdioMode bool) (*app, error) {
	cfg, err := config.Load(f.configPath, os.LookupEnv)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	applyFlagOverrides(cfg, f)

	logger := newLogger(cfg, stdioMode)
	metrics := observability.NewMetrics()
	reg := buildRegistry()

	ld := loader.New(reg, logger, metrics)
	sources, err := resolveSources(cfg.Loader)
	if err != nil {
		return nil, fmt.Errorf("resolve tool config sources: %w", err)
	}

	filters := loader.Filters{
		IncludeTools:      cfg.Loader.IncludeTools,
		ToolsFile:         cfg.Loader.ToolsFile,
		ToolCategories:    cfg.Loader.ToolCategories,
		ExcludeTools:      cfg.Loader.ExcludeTools,
		ExcludeCategories: cfg.Loader.ExcludeCategories,
		ExcludeToolTypes:  cfg.Loader.ExcludeToolTypes,
	}

	configs, report, err := ld.Load(ctx, sources, filters)
	if err != nil {
		return nil, fmt.Errorf("load tool configs: %w", err)
	}
	logger.Info("tool configs loaded",
		"loaded", report.Loaded, "excluded", report.Excluded,
		"duplicates", report.Duplicates, "discovered", report.Discovered)

	a := &app{cfg: cfg, configs: configs, report: report, registry: reg, metrics: metrics, logger: logger}

	cacheMgr, err := buildCache(cfg.Cache, logger, metrics)
	if err != nil {
		return nil, fmt.Errorf("build cache: %w", err)
	}
	a.cache = cacheMgr
	if cacheMgr != nil {
		a.closers = append(a.closers, func() error { cacheMgr.Shutdown(); return nil })
	}

	a.hooks = buildHooks(cfg.Hooks, logger, metrics)
	a.engine = engine.New(configs, reg, a.cache, a.hooks, logger, metrics, cfg.Server.MaxWorkers)

	return a, nil
}

// buildRegistry registers the built-in type constructors this engine ships
// with. Concrete domain tool bodies (remote-API-backed, etc.) are expected
// to register themselves the same way, typically from an init() in their
// own package; the MCP auto-loader machinery is built-in since the engine
// itself depends on it for discovery, and "script_runner" is built-in as
// the one concrete consumer of internal/tool's subprocess helper.
func buildRegistry() *registry.Registry {
	reg := registry.New()
	reg.Register("mcp_auto_loader", mcpclient.NewAutoLoader)
	reg.Register("mcp_remote", mcpclient.NewRemoteTool)
	reg.Register("script_runner", exectool.NewScriptRunner)
	return reg
}

// resolveSources turns LoaderConfig into concrete category sources: one
// per named category if ToolCategories is set, else every *.json/*.yaml
// file in Dir (category name taken from the file's base name).
func resolveSources(lc config.LoaderConfig) ([]loader.CategorySource, error) {
	dir := lc.Dir
	if dir == "" {
		dir = "."
	}

	if len(lc.ToolCategories) > 0 {
		sources := make([]loader.CategorySource, 0, len(lc.ToolCategories))
		for _, cat := range lc.ToolCategories {
			path, err := findCategoryFile(dir, cat)
			if err != nil {
				return nil, err
			}
			sources = append(sources, loader.CategorySource{Category: cat, Path: path})
		}
		return sources, nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read tool config dir %s: %w", dir, err)
	}

	var sources []loader.CategorySource
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		if ext != ".json" && ext != ".yaml" && ext != ".yml" {
			continue
		}
		category := strings.TrimSuffix(e.Name(), filepath.Ext(e.Name()))
		sources = append(sources, loader.CategorySource{Category: category, Path: filepath.Join(dir, e.Name())})
	}
	sort.Slice(sources, func(i, j int) bool { return sources[i].Category < sources[j].Category })
	return sources, nil
}

func findCategoryFile(dir, category string) (string, error) {
	for _, ext := range []string{".json", ".yaml", ".yml"} {
		candidate := filepath.Join(dir, category+ext)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no config file found for category %q under %s", category, dir)
}

func buildCache(cc config.CacheConfig, logger *slog.Logger, metrics *observability.Metrics) (*toolcache.Manager, error) {
	if !cc.Enabled {
		// Stats()/Clear() assume a non-nil memory tier even when caching
		// is disabled, so this stays a minimal real Memory rather than nil.
		return toolcache.NewManager(toolcache.NewMemory(1), nil, toolcache.ManagerConfig{Enabled: false}, logger, metrics), nil
	}

	mem := toolcache.NewMemory(cc.MemorySize)

	var persistent *toolcache.Persistent
	if cc.Persist {
		path := cc.Path
		if path == "" {
			dir := cc.Dir
			if dir == "" {
				dir = "."
			}
			path = filepath.Join(dir, "toolcache.db")
		}
		p, err := toolcache.OpenPersistent(path, logger)
		if err != nil {
			return nil, fmt.Errorf("open persistent cache at %s: %w", path, err)
		}
		persistent = p
	}

	mgrCfg := toolcache.ManagerConfig{
		Enabled:        true,
		DefaultTTL:     ttlFromSeconds(cc.DefaultTTLSeconds),
		AsyncPersist:   cc.AsyncPersist,
		AsyncQueueSize: 256,
	}
	return toolcache.NewManager(mem, persistent, mgrCfg, logger, metrics), nil
}

func buildHooks(hc config.HooksConfig, logger *slog.Logger, metrics *observability.Metrics) *outputhook.Manager {
	mgr := outputhook.NewManager(logger, metrics)
	if !hc.Enabled {
		mgr.ToggleHooks(false)
		return mgr
	}

	switch hc.HookType {
	case "filesave", "":
		opts := outputhook.FileSaveOptions{Dir: "./tool_outputs"}
		mgr.SetHooks([]*outputhook.Hook{
			outputhook.NewFileSaveHook("filesave", opts, outputhook.Binding{Global: true}),
		})
	default:
		logger.Warn("unrecognized hook_type, starting with no hooks configured", "hook_type", hc.HookType)
	}
	return mgr
}

func applyFlagOverrides(cfg *config.Config, f sharedFlags) {
	if f.hookEnabledSet {
		cfg.Hooks.Enabled = f.hookEnabled
	}
	if f.hookType != "" {
		cfg.Hooks.HookType = f.hookType
	}
	if len(f.toolCategories) > 0 {
		cfg.Loader.ToolCategories = f.toolCategories
	}
	if len(f.includeTools) > 0 {
		cfg.Loader.IncludeTools = f.includeTools
	}
	if len(f.excludeTools) > 0 {
		cfg.Loader.ExcludeTools = f.excludeTools
	}
	if len(f.excludeToolTypes) > 0 {
		cfg.Loader.ExcludeToolTypes = f.excludeToolTypes
	}
	if f.maxWorkers > 0 {
		cfg.Server.MaxWorkers = f.maxWorkers
	}
}

// newLogger always logs to stderr, per the teacher's convention and
// spec.md §6's requirement that stdout stay reserved for MCP protocol
// frames when running under "enginectl stdio".
func newLogger(cfg *config.Config, stdioMode bool) *slog.Logger {
	level := parseLevel(cfg.Logging.Level)
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func parseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func ttlFromSeconds(seconds *int64) *time.Duration {
	if seconds == nil {
		return nil
	}
	d := time.Duration(*seconds) * time.Second
	return &d
}

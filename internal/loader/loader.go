// Package loader resolves category config files and filters into the
// concrete set of ToolConfigs the engine will serve, per spec.md §4.5.
package loader

import (
	"context"
	"log/slog"
	"os"

	"github.com/scitool/toolengine/internal/observability"
	"github.com/scitool/toolengine/internal/registry"
	"github.com/scitool/toolengine/pkg/tool"
)

// EnvLookup mirrors os.LookupEnv; overridable in tests.
type EnvLookup func(key string) (string, bool)

// Loader reads category config files, applies inclusion/exclusion/API-key
// filters, dedups, and merges in anything contributed by auto-loader
// discovery.
type Loader struct {
	registry *registry.Registry
	logger   *slog.Logger
	metrics  *observability.Metrics
	lookup   EnvLookup
}

// New builds a Loader. logger and metrics may be nil.
func New(reg *registry.Registry, logger *slog.Logger, metrics *observability.Metrics) *Loader {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	return &Loader{registry: reg, logger: logger, metrics: metrics, lookup: os.LookupEnv}
}

// WithEnvLookup overrides the environment lookup function, for testing
// required/optional API key gating without mutating process environment.
func (l *Loader) WithEnvLookup(lookup EnvLookup) *Loader {
	l.lookup = lookup
	return l
}

// Load reads every source, applies filters, gates on API keys, dedups by
// name, and merges in auto-loader discovery results. It never returns a
// hard error for a single bad tool entry; per-source read failures are
// returned, since a missing/malformed category file is an operator error
// worth failing startup over.
func (l *Loader) Load(ctx context.Context, sources []CategorySource, filters Filters) ([]*tool.Config, Report, error) {
	var all []candidate
	for _, src := range sources {
		configs, err := readCategoryFile(src.Path)
		if err != nil {
			return nil, Report{}, err
		}
		for _, cfg := range configs {
			all = append(all, candidate{cfg: cfg, category: src.Category})
		}
	}

	included, missingRequested := applyInclusion(all, filters)
	excludedByFilter := len(all) - len(included)
	afterExclusion := applyExclusion(included, filters)
	excludedByFilter += len(included) - len(afterExclusion)

	gated, missingAPIKeys := l.gateByAPIKeys(afterExclusion)
	excludedByFilter += len(afterExclusion) - len(gated)

	deduped, duplicates := dedupByName(gated)

	discovered := l.runAutoDiscovery(ctx, deduped)
	merged, moreDuplicates := mergeDiscovered(deduped, discovered)

	report := Report{
		Loaded:           len(merged),
		Excluded:         excludedByFilter,
		Duplicates:       duplicates + moreDuplicates,
		MissingRequested: missingRequested,
		MissingAPIKeys:   missingAPIKeys,
		Discovered:       len(discovered),
	}

	configs := make([]*tool.Config, 0, len(merged))
	for _, c := range merged {
		if c.cfg.Deprecated {
			l.logger.Warn("loading deprecated tool", "tool", c.cfg.Name, "message", c.cfg.DeprecationMessage)
		}
		configs = append(configs, c.cfg)
	}

	l.recordOutcome(len(configs), report.Excluded, report.Duplicates)
	return configs, report, nil
}

func (l *Loader) gateByAPIKeys(candidates []candidate) (kept []candidate, missing map[string][]string) {
	missing = map[string][]string{}
	for _, c := range candidates {
		var missingRequired []string
		for _, key := range c.cfg.RequiredAPIKeys {
			if v, ok := l.lookup(key); !ok || v == "" {
				missingRequired = append(missingRequired, key)
			}
		}
		if len(missingRequired) > 0 {
			missing[c.cfg.Name] = missingRequired
			continue
		}

		if len(c.cfg.OptionalAPIKeys) > 0 {
			anyPresent := false
			for _, key := range c.cfg.OptionalAPIKeys {
				if v, ok := l.lookup(key); ok && v != "" {
					anyPresent = true
					break
				}
			}
			if !anyPresent {
				missing[c.cfg.Name] = append([]string{}, c.cfg.OptionalAPIKeys...)
				continue
			}
		}

		kept = append(kept, c)
	}
	if len(missing) == 0 {
		missing = nil
	}
	return kept, missing
}

func dedupByName(candidates []candidate) (kept []candidate, duplicates int) {
	seen := make(map[string]bool, len(candidates))
	for _, c := range candidates {
		if seen[c.cfg.Name] {
			duplicates++
			continue
		}
		seen[c.cfg.Name] = true
		kept = append(kept, c)
	}
	return kept, duplicates
}

// runAutoDiscovery constructs each surviving candidate whose type is
// registered and, if the instance implements Discoverer, runs its
// discovery and collects the resulting configs.
func (l *Loader) runAutoDiscovery(ctx context.Context, candidates []candidate) []*tool.Config {
	if l.registry == nil {
		return nil
	}

	var discovered []*tool.Config
	for _, c := range candidates {
		ctor, ok := l.registry.Lookup(c.cfg.Type)
		if !ok {
			continue
		}
		instance, err := ctor(c.cfg)
		if err != nil {
			continue
		}
		finder, ok := instance.(Discoverer)
		if !ok {
			continue
		}
		found, err := finder.Discover(ctx)
		if err != nil {
			l.logger.Warn("auto-loader discovery failed", "tool", c.cfg.Name, "error", err)
			continue
		}
		discovered = append(discovered, found...)
	}
	return discovered
}

// mergeDiscovered folds discovered configs into the existing set,
// preserving first-occurrence-wins dedup semantics.
func mergeDiscovered(existing []candidate, discovered []*tool.Config) (merged []candidate, duplicates int) {
	merged = existing
	seen := make(map[string]bool, len(existing))
	for _, c := range existing {
		seen[c.cfg.Name] = true
	}
	for _, cfg := range discovered {
		if seen[cfg.Name] {
			duplicates++
			continue
		}
		seen[cfg.Name] = true
		merged = append(merged, candidate{cfg: cfg, category: "discovered"})
	}
	return merged, duplicates
}

func (l *Loader) recordOutcome(loaded, excluded, duplicates int) {
	if l.metrics == nil {
		return
	}
	for i := 0; i < loaded; i++ {
		l.metrics.RecordLoaderOutcome("loaded")
	}
	for i := 0; i < excluded; i++ {
		l.metrics.RecordLoaderOutcome("excluded")
	}
	for i := 0; i < duplicates; i++ {
		l.metrics.RecordLoaderOutcome("duplicate")
	}
}

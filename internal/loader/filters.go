package loader

import (
	"strings"

	"github.com/scitool/toolengine/pkg/tool"
)

// Filters narrows the set of tool configs a Load pass considers, per
// spec.md §4.5 steps 2–3.
type Filters struct {
	// Inclusion filters, applied in precedence order (first non-empty wins):
	IncludeTools   []string // by exact tool name
	ToolsFile      string   // path to a newline-delimited name list
	ToolCategories []string // by ToolConfig.Tags / source category

	// Exclusion filters, always applied after inclusion narrows the set.
	ExcludeTools      []string
	ExcludeCategories []string
	ExcludeToolTypes  []string
}

type candidate struct {
	cfg      *tool.Config
	category string
}

func toSet(values []string) map[string]bool {
	set := make(map[string]bool, len(values))
	for _, v := range values {
		set[v] = true
	}
	return set
}

func matchesAny(tags []string, set map[string]bool) bool {
	for _, t := range tags {
		if set[t] {
			return true
		}
	}
	return false
}

// applyInclusion returns the subset of candidates selected by the
// highest-precedence non-empty inclusion filter, plus the set of requested
// names that matched nothing (used for the missing-requested report).
func applyInclusion(candidates []candidate, f Filters) (kept []candidate, missing []string) {
	switch {
	case len(f.IncludeTools) > 0:
		want := toSet(f.IncludeTools)
		found := make(map[string]bool, len(f.IncludeTools))
		for _, c := range candidates {
			if want[c.cfg.Name] {
				kept = append(kept, c)
				found[c.cfg.Name] = true
			}
		}
		for _, name := range f.IncludeTools {
			if !found[name] {
				missing = append(missing, name)
			}
		}
		return kept, missing

	case strings.TrimSpace(f.ToolsFile) != "":
		names, err := readToolsFile(f.ToolsFile)
		if err != nil {
			return nil, nil
		}
		want := toSet(names)
		found := make(map[string]bool, len(names))
		for _, c := range candidates {
			if want[c.cfg.Name] {
				kept = append(kept, c)
				found[c.cfg.Name] = true
			}
		}
		for _, name := range names {
			if !found[name] {
				missing = append(missing, name)
			}
		}
		return kept, missing

	case len(f.ToolCategories) > 0:
		want := toSet(f.ToolCategories)
		for _, c := range candidates {
			if want[c.category] || matchesAny(c.cfg.Tags, want) {
				kept = append(kept, c)
			}
		}
		return kept, nil

	default:
		return candidates, nil
	}
}

// applyExclusion drops candidates matched by any exclusion filter.
func applyExclusion(candidates []candidate, f Filters) []candidate {
	if len(f.ExcludeTools) == 0 && len(f.ExcludeCategories) == 0 && len(f.ExcludeToolTypes) == 0 {
		return candidates
	}
	excludeNames := toSet(f.ExcludeTools)
	excludeCategories := toSet(f.ExcludeCategories)
	excludeTypes := toSet(f.ExcludeToolTypes)

	kept := make([]candidate, 0, len(candidates))
	for _, c := range candidates {
		if excludeNames[c.cfg.Name] {
			continue
		}
		if excludeCategories[c.category] || matchesAny(c.cfg.Tags, excludeCategories) {
			continue
		}
		if excludeTypes[c.cfg.Type] {
			continue
		}
		kept = append(kept, c)
	}
	return kept
}

package loader

import (
	"fmt"
	"os"
	"sort"
	"strings"
)

// Report summarizes the outcome of a Load pass, per spec.md §4.5's
// reporting requirement.
type Report struct {
	Loaded           int
	Excluded         int
	Duplicates       int
	MissingRequested []string            // requested names (include_tools/tools_file) that matched nothing
	MissingAPIKeys   map[string][]string // tool name -> required env vars it was missing
	Discovered       int                 // tools contributed by auto-loader discovery
}

// WriteMissingAPIKeysTemplate writes a template file listing, per tool, the
// environment variables that must be set to enable it. Returns "" without
// writing anything when there is nothing to report.
func WriteMissingAPIKeysTemplate(path string, missing map[string][]string) error {
	if len(missing) == 0 {
		return nil
	}

	names := make([]string, 0, len(missing))
	for name := range missing {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("# Tools skipped because required API keys were not set.\n")
	b.WriteString("# Export these environment variables, then reload, to enable them.\n\n")
	for _, name := range names {
		keys := missing[name]
		sort.Strings(keys)
		fmt.Fprintf(&b, "%s:\n", name)
		for _, key := range keys {
			fmt.Fprintf(&b, "  - %s\n", key)
		}
	}

	return os.WriteFile(path, []byte(b.String()), 0o644)
}

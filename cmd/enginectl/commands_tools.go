package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/scitool/toolengine/pkg/tool"
)

func buildToolsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Inspect the loaded tool set without starting a server",
	}
	cmd.AddCommand(buildToolsListCmd(), buildToolsFindCmd())
	return cmd
}

func buildToolsListCmd() *cobra.Command {
	var f sharedFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List every loaded tool",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd.Context(), f, false)
			if err != nil {
				return err
			}
			defer a.Close()

			configs := append([]*tool.Config(nil), a.configs...)
			sort.Slice(configs, func(i, j int) bool { return configs[i].Name < configs[j].Name })

			out := cmd.OutOrStdout()
			for _, cfg := range configs {
				fmt.Fprintf(out, "%-32s %-20s %s\n", cfg.Name, cfg.Type, cfg.Description)
			}
			fmt.Fprintf(out, "\n%d tools loaded (%d excluded, %d duplicates, %d discovered)\n",
				len(configs), a.report.Excluded, a.report.Duplicates, a.report.Discovered)
			return nil
		},
	}
	bindSharedFlags(cmd, &f)
	return cmd
}

func buildToolsFindCmd() *cobra.Command {
	var f sharedFlags
	var query string
	var limit int
	var categories []string

	cmd := &cobra.Command{
		Use:   "find",
		Short: "Keyword-search the loaded tool set by name, description, or tag",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(query) == "" {
				return fmt.Errorf("--query is required")
			}
			a, err := buildApp(cmd.Context(), f, false)
			if err != nil {
				return err
			}
			defer a.Close()

			matches := keywordSearch(a.configs, query, categories, limit)
			out := cmd.OutOrStdout()
			if len(matches) == 0 {
				fmt.Fprintln(out, "no tools matched")
				return nil
			}
			for _, cfg := range matches {
				fmt.Fprintf(out, "%-32s %-20s %s\n", cfg.Name, cfg.Type, cfg.Description)
			}
			return nil
		},
	}
	bindSharedFlags(cmd, &f)
	cmd.Flags().StringVar(&query, "query", "", "search term")
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum number of results")
	cmd.Flags().StringSliceVar(&categories, "categories", nil, "restrict results to tools tagged with any of these categories")
	return cmd
}

// keywordSearch is deliberately simple: a case-insensitive substring match
// over name, description, and tags. It mirrors the "keyword" method the
// MCP adapter's tools/find prefers (internal/mcpserver/finder.go), but runs
// directly over the loaded configs since "tools find" is documented to
// work without a running server or a registered finder tool.
func keywordSearch(configs []*tool.Config, query string, categories []string, limit int) []*tool.Config {
	needle := strings.ToLower(query)
	var catSet map[string]bool
	if len(categories) > 0 {
		catSet = make(map[string]bool, len(categories))
		for _, c := range categories {
			catSet[strings.ToLower(c)] = true
		}
	}

	var matches []*tool.Config
	for _, cfg := range configs {
		if catSet != nil && !hasAnyTag(cfg.Tags, catSet) {
			continue
		}
		haystack := strings.ToLower(cfg.Name + " " + cfg.Description + " " + strings.Join(cfg.Tags, " "))
		if strings.Contains(haystack, needle) {
			matches = append(matches, cfg)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].Name < matches[j].Name })
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

func hasAnyTag(tags []string, set map[string]bool) bool {
	for _, t := range tags {
		if set[strings.ToLower(t)] {
			return true
		}
	}
	return false
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func buildCacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect or clear the two-tier result cache",
	}
	cmd.AddCommand(buildCacheStatsCmd(), buildCacheClearCmd())
	return cmd
}

func buildCacheStatsCmd() *cobra.Command {
	var f sharedFlags
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Print memory and persistent cache statistics",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd.Context(), f, false)
			if err != nil {
				return err
			}
			defer a.Close()

			stats, err := a.cache.Stats()
			if err != nil {
				return fmt.Errorf("read cache stats: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "memory:     size=%d/%d hits=%d misses=%d\n",
				stats.Memory.CurrentSize, stats.Memory.MaxSize, stats.Memory.Hits, stats.Memory.Misses)
			fmt.Fprintf(out, "persistent: entries=%d approx_bytes=%d path=%s\n",
				stats.Persistent.Entries, stats.Persistent.ApproxBytes, stats.Persistent.Path)
			return nil
		},
	}
	bindSharedFlags(cmd, &f)
	return cmd
}

func buildCacheClearCmd() *cobra.Command {
	var f sharedFlags
	var namespace string
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear cache entries, optionally scoped to one namespace",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd.Context(), f, false)
			if err != nil {
				return err
			}
			defer a.Close()

			a.cache.Clear(namespace)
			if namespace == "" {
				fmt.Fprintln(cmd.OutOrStdout(), "cleared all cache entries")
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "cleared cache entries for namespace %q\n", namespace)
			}
			return nil
		},
	}
	bindSharedFlags(cmd, &f)
	cmd.Flags().StringVar(&namespace, "namespace", "", "limit the clear to this cache namespace (default: all)")
	return cmd
}

// Package main provides the CLI entry point for the tool dispatch and
// integration engine.
//
// enginectl loads a declarative tool configuration, starts the MCP server
// adapter over stdio, HTTP, or SSE, and offers local inspection commands
// (tools, cache, hooks) that do not require a running server.
//
// # Basic usage
//
// Start an HTTP server:
//
//	enginectl serve --config engine.yaml --transport http --port 8080
//
// Run over stdio, the default transport for MCP clients that spawn a
// subprocess:
//
//	enginectl stdio --config engine.yaml
//
// # Environment variables
//
//   - TOOLUNIVERSE_CACHE_ENABLED, TOOLUNIVERSE_CACHE_MEMORY_SIZE, ...:
//     see internal/config for the full TOOLUNIVERSE_* override surface.
//   - TOOLUNIVERSE_STDIO_MODE: forces stderr-only logging.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

// Build information, populated by ldflags during build.
//
//	go build -ldflags "-X main.version=v1.0.0 -X main.commit=$(git rev-parse HEAD) -X main.date=$(date -u +%Y-%m-%dT%H:%M:%SZ)"
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	rootCmd := buildRootCmd()
	if err := rootCmd.Execute(); err != nil {
		slog.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

// buildRootCmd creates the root command with every subcommand attached.
// Separated from main() to allow tests to exercise the command tree.
func buildRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "enginectl",
		Short: "Tool dispatch and integration engine",
		Long: `enginectl loads tool configurations, dispatches calls through the
result cache and output hook pipeline, and exposes the tool set over the
Model Context Protocol (stdio, HTTP, or SSE).`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage: true,
	}

	rootCmd.AddCommand(
		buildServeCmd(),
		buildStdioCmd(),
		buildToolsCmd(),
		buildCacheCmd(),
		buildHooksCmd(),
		buildConfigCmd(),
	)

	return rootCmd
}

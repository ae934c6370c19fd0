package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/scitool/toolengine/internal/mcpserver"
)

func bindSharedFlags(cmd *cobra.Command, f *sharedFlags) {
	cmd.Flags().StringVarP(&f.configPath, "config", "c", "", "path to the engine config file")
	cmd.Flags().BoolVar(&f.hookEnabled, "hook-enabled", true, "enable the output hook pipeline")
	cmd.Flags().StringVar(&f.hookType, "hook-type", "", "output hook type (filesave)")
	cmd.Flags().StringSliceVar(&f.toolCategories, "tool-categories", nil, "restrict loading to these categories")
	cmd.Flags().StringSliceVar(&f.includeTools, "include-tools", nil, "restrict loading to these tool names")
	cmd.Flags().StringSliceVar(&f.excludeTools, "exclude-tools", nil, "exclude these tool names")
	cmd.Flags().StringSliceVar(&f.excludeToolTypes, "exclude-tool-types", nil, "exclude tools of these type tags")
	cmd.Flags().IntVar(&f.maxWorkers, "max-workers", 0, "override the batch worker pool size (0 keeps the config value)")
	cmd.PreRun = func(cmd *cobra.Command, args []string) {
		f.hookEnabledSet = cmd.Flags().Changed("hook-enabled")
	}
}

func buildServeCmd() *cobra.Command {
	var f sharedFlags
	var transport, host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the tool set over HTTP or SSE",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, f, false)
			if err != nil {
				return err
			}
			defer a.Close()
			if transport != "" {
				a.cfg.Server.Transport = transport
			}
			if host != "" {
				a.cfg.Server.Host = host
			}
			if port != 0 {
				a.cfg.Server.Port = port
			}

			srv := mcpserver.New(a.engine, a.configs, a.cfg.Server.Name, version, a.logger, a.metrics)
			return runHTTPLikeServer(ctx, a, srv)
		},
	}

	bindSharedFlags(cmd, &f)
	cmd.Flags().StringVar(&transport, "transport", "http", "transport: http or sse")
	cmd.Flags().StringVar(&host, "host", "", "listen host (overrides config)")
	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides config)")
	return cmd
}

func runHTTPLikeServer(ctx context.Context, a *app, srv *mcpserver.Server) error {
	mux := http.NewServeMux()
	switch a.cfg.Server.Transport {
	case "sse":
		mux.Handle("/", srv.SSEHandler())
	case "http":
		mux.Handle("/", srv.HTTPHandler())
	default:
		return fmt.Errorf("unsupported transport %q for serve (want http or sse)", a.cfg.Server.Transport)
	}

	addr := fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port)
	httpSrv := &http.Server{Addr: addr, Handler: mux}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("serving MCP adapter", "transport", a.cfg.Server.Transport, "addr", addr)
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func buildStdioCmd() *cobra.Command {
	var f sharedFlags

	cmd := &cobra.Command{
		Use:   "stdio",
		Short: "Serve the tool set over stdio (line-delimited JSON-RPC)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := buildApp(ctx, f, true)
			if err != nil {
				return err
			}
			defer a.Close()

			srv := mcpserver.New(a.engine, a.configs, a.cfg.Server.Name, version, a.logger, a.metrics)
			a.logger.Info("serving MCP adapter", "transport", "stdio")
			return srv.ServeStdio(ctx, os.Stdin, os.Stdout)
		},
	}

	bindSharedFlags(cmd, &f)
	return cmd
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func buildHooksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hooks",
		Short: "Inspect the output hook pipeline configured for this process",
		Long: `hooks builds the same hook pipeline "serve"/"stdio" would from the
active config and flags, then reports or toggles it for this invocation.
Since the pipeline is rebuilt fresh per process, "enable"/"disable" only
demonstrate the effect of toggling a hook by name; persist the change by
setting hooks.enabled or hooks.hook_type in the config file for it to
stick across runs of a long-lived server.`,
	}
	cmd.AddCommand(buildHooksListCmd(), buildHooksEnableCmd(), buildHooksDisableCmd())
	return cmd
}

func buildHooksListCmd() *cobra.Command {
	var f sharedFlags
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List configured hooks and their enabled state",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd.Context(), f, false)
			if err != nil {
				return err
			}
			defer a.Close()
			printHooks(cmd, a)
			return nil
		},
	}
	bindSharedFlags(cmd, &f)
	return cmd
}

func buildHooksEnableCmd() *cobra.Command {
	return buildHooksToggleCmd("enable", true)
}

func buildHooksDisableCmd() *cobra.Command {
	return buildHooksToggleCmd("disable", false)
}

func buildHooksToggleCmd(use string, enabled bool) *cobra.Command {
	var f sharedFlags
	cmd := &cobra.Command{
		Use:   use + " <hook-name>",
		Short: fmt.Sprintf("%s a hook by name for this invocation", use),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := buildApp(cmd.Context(), f, false)
			if err != nil {
				return err
			}
			defer a.Close()

			name := args[0]
			var ok bool
			if enabled {
				ok = a.hooks.EnableHook(name)
			} else {
				ok = a.hooks.DisableHook(name)
			}
			if !ok {
				return fmt.Errorf("no hook named %q is configured", name)
			}
			printHooks(cmd, a)
			return nil
		},
	}
	bindSharedFlags(cmd, &f)
	return cmd
}

func printHooks(cmd *cobra.Command, a *app) {
	out := cmd.OutOrStdout()
	hooks := a.hooks.ListHooks()
	if len(hooks) == 0 {
		fmt.Fprintln(out, "no hooks configured")
		return
	}
	for _, h := range hooks {
		state := "disabled"
		if h.Enabled {
			state = "enabled"
		}
		fmt.Fprintf(out, "%-24s %-10s priority=%d\n", h.Name, state, h.Priority)
	}
}

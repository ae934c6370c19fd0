package main

import "testing"

func TestBuildRootCmdIncludesSubcommands(t *testing.T) {
	cmd := buildRootCmd()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}

	required := []string{"serve", "stdio", "tools", "cache", "hooks", "config"}
	for _, name := range required {
		if !names[name] {
			t.Fatalf("expected subcommand %q to be registered", name)
		}
	}
}

func TestToolsCmdHasListAndFind(t *testing.T) {
	cmd := buildToolsCmd()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	if !names["list"] || !names["find"] {
		t.Fatalf("got subcommands %v, want list and find", names)
	}
}

func TestCacheCmdHasStatsAndClear(t *testing.T) {
	cmd := buildCacheCmd()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	if !names["stats"] || !names["clear"] {
		t.Fatalf("got subcommands %v, want stats and clear", names)
	}
}

func TestHooksCmdHasListEnableDisable(t *testing.T) {
	cmd := buildHooksCmd()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	if !names["list"] || !names["enable"] || !names["disable"] {
		t.Fatalf("got subcommands %v, want list, enable and disable", names)
	}
}

func TestConfigCmdHasSchema(t *testing.T) {
	cmd := buildConfigCmd()
	names := map[string]bool{}
	for _, sub := range cmd.Commands() {
		names[sub.Name()] = true
	}
	if !names["schema"] {
		t.Fatalf("got subcommands %v, want schema", names)
	}
}

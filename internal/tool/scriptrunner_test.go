package tool

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/scitool/toolengine/pkg/tool"
)

func newScriptRunnerConfig(t *testing.T, command string) *tool.Config {
	t.Helper()
	cfg := tool.NewConfig("run_shell", "script_runner", "runs a shell command", json.RawMessage(`{}`))
	cfg.Extra = map[string]any{"command": command}
	return cfg
}

func TestNewScriptRunnerRequiresCommand(t *testing.T) {
	cfg := tool.NewConfig("run_shell", "script_runner", "runs a shell command", json.RawMessage(`{}`))
	if _, err := NewScriptRunner(cfg); err == nil {
		t.Fatal("expected an error when cfg.Extra carries no command")
	}
}

func TestScriptRunnerRunSuccess(t *testing.T) {
	instance, err := NewScriptRunner(newScriptRunnerConfig(t, "sh"))
	if err != nil {
		t.Fatalf("NewScriptRunner: %v", err)
	}

	out, err := instance.Run(context.Background(), map[string]any{
		"script_path": "-c",
		"script_args": []any{"exit 0"},
	}, tool.RunOptions{})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	result, ok := out.(*SubprocessResult)
	if !ok || !result.Success {
		t.Fatalf("got %+v, want a successful SubprocessResult", out)
	}
}

func TestScriptRunnerRunMissingScriptPath(t *testing.T) {
	instance, err := NewScriptRunner(newScriptRunnerConfig(t, "sh"))
	if err != nil {
		t.Fatalf("NewScriptRunner: %v", err)
	}

	_, runErr := instance.Run(context.Background(), map[string]any{}, tool.RunOptions{})
	if runErr == nil {
		t.Fatal("expected an error when script_path is missing")
	}
	var toolErr *tool.ToolError
	if !asToolError(runErr, &toolErr) || toolErr.Kind != tool.ErrValidation {
		t.Fatalf("got %v, want a validation ToolError", runErr)
	}
}

func TestScriptRunnerValidateParameters(t *testing.T) {
	instance, err := NewScriptRunner(newScriptRunnerConfig(t, "sh"))
	if err != nil {
		t.Fatalf("NewScriptRunner: %v", err)
	}

	if err := instance.ValidateParameters(map[string]any{}); err == nil {
		t.Fatal("expected a validation error when script_path is missing")
	}
	if err := instance.ValidateParameters(map[string]any{"script_path": "-c"}); err != nil {
		t.Errorf("unexpected validation error: %v", err)
	}
}

func TestClampTimeoutBounds(t *testing.T) {
	if got := clampTimeout(float64(0)); got != minScriptTimeout {
		t.Errorf("got %v, want the minimum of %v", got, minScriptTimeout)
	}
	if got := clampTimeout(float64(10_000)); got != maxScriptTimeout {
		t.Errorf("got %v, want the maximum of %v", got, maxScriptTimeout)
	}
	if got := clampTimeout(nil); got != defaultScriptTimeout {
		t.Errorf("got %v, want the default of %v", got, defaultScriptTimeout)
	}
}

func asToolError(err error, target **tool.ToolError) bool {
	te, ok := err.(*tool.ToolError)
	if !ok {
		return false
	}
	*target = te
	return true
}

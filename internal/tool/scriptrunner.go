package tool

import (
	"context"
	"fmt"
	"time"

	"github.com/scitool/toolengine/pkg/tool"
)

// ScriptRunner is the "script_runner" built-in tool type: it runs a fixed
// interpreter/command (cfg.Extra's "command", e.g. "python3") against a
// script path and arguments supplied per-call, grounded on the original's
// python_executor_tool.py PythonScriptRunner (script_path + script_args
// call arguments, a clamped timeout, captured stdout/stderr/exit code).
// It is the one concrete consumer of SubprocessRunner shipped with this
// engine; other subprocess-backed tool categories are expected to bring
// their own Instance the same way.
type ScriptRunner struct {
	tool.Base
	command string
}

// ScriptRunnerSpec is the Config.Extra shape a "script_runner" entry
// carries: the fixed interpreter/command invoked with the call's
// script_path and script_args.
type ScriptRunnerSpec struct {
	Command string `json:"command"`
}

// NewScriptRunner builds a ScriptRunner from cfg. cfg.Extra must decode
// into a ScriptRunnerSpec naming the interpreter to invoke.
func NewScriptRunner(cfg *tool.Config) (tool.Instance, error) {
	command, _ := cfg.Extra["command"].(string)
	if command == "" {
		return nil, fmt.Errorf("script_runner %s: cfg.Extra.command is required", cfg.Name)
	}
	return &ScriptRunner{Base: *tool.NewBase(cfg), command: command}, nil
}

// minScriptTimeout/maxScriptTimeout clamp the call-supplied timeout_seconds,
// mirroring the original's `min(max(timeout, 1), 300)`.
const (
	minScriptTimeout     = 1 * time.Second
	maxScriptTimeout     = 300 * time.Second
	defaultScriptTimeout = 60 * time.Second
)

// Run extracts script_path (required string), script_args (optional
// []string) and timeout_seconds (optional number) from args, then invokes
// command+script_path+script_args through a SubprocessRunner.
func (s *ScriptRunner) Run(ctx context.Context, args map[string]any, opts tool.RunOptions) (any, error) {
	scriptPath, _ := args["script_path"].(string)
	if scriptPath == "" {
		return nil, tool.ValidationError("%s: script_path is required", s.Config.Name)
	}

	scriptArgs, err := stringSlice(args["script_args"])
	if err != nil {
		return nil, tool.ValidationError("%s: script_args: %v", s.Config.Name, err)
	}

	timeout := clampTimeout(args["timeout_seconds"])

	runner := NewSubprocessRunner(timeout)
	result, toolErr := runner.Run(ctx, s.command, append([]string{scriptPath}, scriptArgs...), nil)
	if toolErr != nil {
		return nil, toolErr
	}
	return result, nil
}

func (s *ScriptRunner) ValidateParameters(args map[string]any) error {
	if _, ok := args["script_path"].(string); !ok {
		return tool.ValidationError("%s: script_path is required", s.Config.Name)
	}
	return nil
}

func stringSlice(v any) ([]string, error) {
	if v == nil {
		return nil, nil
	}
	raw, ok := v.([]any)
	if !ok {
		return nil, fmt.Errorf("expected a list of strings")
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			return nil, fmt.Errorf("expected a list of strings")
		}
		out = append(out, s)
	}
	return out, nil
}

func clampTimeout(v any) time.Duration {
	seconds, ok := v.(float64)
	if !ok {
		return defaultScriptTimeout
	}
	d := time.Duration(seconds) * time.Second
	if d < minScriptTimeout {
		return minScriptTimeout
	}
	if d > maxScriptTimeout {
		return maxScriptTimeout
	}
	return d
}

package tool

import (
	"bytes"
	"context"
	"os/exec"
	"time"

	ourexec "github.com/scitool/toolengine/internal/exec"
	"github.com/scitool/toolengine/pkg/tool"
)

// SubprocessResult mirrors the result shape subprocess-backed tool
// categories return: captured stdout/stderr, exit code, and timing.
type SubprocessResult struct {
	Success        bool
	Stdout         string
	Stderr         string
	ExitCode       int
	ExecutionTime  time.Duration
	TimedOut       bool
}

// SubprocessRunner wraps exec.CommandContext with argument safety
// validation and a hard timeout, for the subprocess-category tools
// mentioned in spec.md §4.11/§5 (out of core scope individually; this is
// the reusable helper concrete tool bodies may embed).
type SubprocessRunner struct {
	// Timeout bounds a single Run call; zero means no timeout.
	Timeout time.Duration
}

// NewSubprocessRunner constructs a runner with the given timeout.
func NewSubprocessRunner(timeout time.Duration) *SubprocessRunner {
	return &SubprocessRunner{Timeout: timeout}
}

// Run executes name with args, validating each argument with
// internal/exec's shell-metacharacter/null-byte checks before spawning.
// On timeout, it returns a Server-kind ToolError per spec.md §5's
// classifier-unless-overridden rule.
func (r *SubprocessRunner) Run(ctx context.Context, name string, args []string, env []string) (*SubprocessResult, *tool.ToolError) {
	if _, err := ourexec.SanitizeExecutableValue(name); err != nil {
		return nil, tool.ValidationError("unsafe executable %q: %v", name, err)
	}
	if _, err := ourexec.SanitizeArguments(args); err != nil {
		return nil, tool.ValidationError("unsafe arguments for %q: %v", name, err)
	}

	runCtx := ctx
	var cancel context.CancelFunc
	if r.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, r.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(runCtx, name, args...)
	if env != nil {
		cmd.Env = env
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err := cmd.Run()
	elapsed := time.Since(start)

	if runCtx.Err() == context.DeadlineExceeded {
		return &SubprocessResult{
			Stdout:        stdout.String(),
			Stderr:        stderr.String(),
			ExecutionTime: elapsed,
			TimedOut:      true,
		}, tool.NewError(tool.ErrServer, "subprocess timed out after "+r.Timeout.String())
	}

	exitCode := 0
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			exitCode = exitErr.ExitCode()
		} else {
			return nil, tool.ClassifyError(err)
		}
	}

	return &SubprocessResult{
		Success:       exitCode == 0,
		Stdout:        stdout.String(),
		Stderr:        stderr.String(),
		ExitCode:      exitCode,
		ExecutionTime: elapsed,
	}, nil
}

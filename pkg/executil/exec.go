// Package executil provides shell execution utilities.
package executil

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// ShellResult holds the outcome of a shell command run.
type ShellResult struct {
	// Output is the combined stdout+stderr, capped to the last maxOutput
	// bytes. Build and test tools print their summaries at the end, so the
	// tail is the part worth keeping.
	Output   string
	ExitCode int
	Duration time.Duration
}

// RunShCapture executes a shell command via `sh -c` in the given directory
// (empty means inherit cwd), capturing combined output capped at maxOutput
// bytes from the tail. A non-zero exit is reported through ExitCode, not the
// error; the error is reserved for spawn failures and context cancellation.
func RunShCapture(ctx context.Context, dir, cmd string, maxOutput int) (ShellResult, error) {
	c := exec.CommandContext(ctx, "sh", "-c", cmd)
	if dir != "" {
		c.Dir = dir
	}

	tail := NewTailWriter(maxOutput)
	c.Stdout = tail
	c.Stderr = tail

	start := time.Now()
	err := c.Run()
	res := ShellResult{
		Output:   tail.String(),
		Duration: time.Since(start),
	}

	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			res.ExitCode = -1
			return res, fmt.Errorf("run %q: %w", cmd, ctxErr)
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			res.ExitCode = exitErr.ExitCode()
			return res, nil
		}
		res.ExitCode = -1
		return res, fmt.Errorf("run %q: %w", cmd, err)
	}

	return res, nil
}

// Executor runs commands.
type Executor interface {
	// Run executes a command and returns its combined output.
	Run(ctx context.Context, cmd string, args ...string) ([]byte, error)
	// RunDir executes a command in a specific directory.
	RunDir(ctx context.Context, dir, cmd string, args ...string) ([]byte, error)
}

// RealExecutor calls actual shell commands.
type RealExecutor struct{}

// Run executes a command and returns its combined output.
func (e *RealExecutor) Run(ctx context.Context, cmd string, args ...string) ([]byte, error) {
	out, err := exec.CommandContext(ctx, cmd, args...).CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("exec %s: %w", cmd, err)
	}
	return out, nil
}

// RunDir executes a command in a specific directory.
func (e *RealExecutor) RunDir(ctx context.Context, dir, cmd string, args ...string) ([]byte, error) {
	c := exec.CommandContext(ctx, cmd, args...)
	c.Dir = dir
	out, err := c.CombinedOutput()
	if err != nil {
		return out, fmt.Errorf("exec %s in %s: %w", cmd, dir, err)
	}
	return out, nil
}

// ExitCode extracts the process exit code from an error returned by an
// Executor. Returns 0 for nil, the real code for exit errors, and -1 when the
// command never ran.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

package agent

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// DefaultGracePeriod is how long a terminated agent gets between SIGTERM and
// SIGKILL when no grace period is configured.
const DefaultGracePeriod = 30 * time.Second

// RunRequest describes one agent dispatch.
type RunRequest struct {
	Def     Definition
	Prompt  string
	Dir     string
	Timeout time.Duration
	// LogPath receives the agent's combined stdout/stderr.
	LogPath string
}

// RunResult is the outcome of one dispatch. TimedOut runs are failures
// regardless of what the exit code claims.
type RunResult struct {
	ExitCode int
	TimedOut bool
	Duration time.Duration
	LogPath  string
	Tokens   TokenUsage
}

// Success reports whether the agent exited cleanly within its deadline.
func (r RunResult) Success() bool {
	return r.ExitCode == 0 && !r.TimedOut
}

// Runner executes agent processes.
type Runner struct {
	log     zerolog.Logger
	grace   time.Duration
	envDrop []string
}

// NewRunner creates a Runner. grace is the SIGTERM→SIGKILL window (zero
// means DefaultGracePeriod); envDrop lists environment variable name
// prefixes stripped from the agent's environment.
func NewRunner(log zerolog.Logger, grace time.Duration, envDrop []string) *Runner {
	return &Runner{
		log:     log.With().Str("component", "agent").Logger(),
		grace:   grace,
		envDrop: envDrop,
	}
}

// Run dispatches the agent and waits for it to finish, time out, or be
// cancelled. The agent gets its own process group so the whole tree can be
// signalled at once. The returned error is reserved for runs that never
// happened (spawn failure) or were cancelled; timeouts and nonzero exits are
// reported through RunResult.
func (r *Runner) Run(ctx context.Context, req RunRequest) (RunResult, error) {
	if req.Timeout <= 0 {
		return RunResult{}, fmt.Errorf("agent %s: timeout must be positive", req.Def.Name)
	}

	if err := os.MkdirAll(filepath.Dir(req.LogPath), 0o755); err != nil {
		return RunResult{}, fmt.Errorf("create log directory: %w", err)
	}
	logFile, err := os.Create(req.LogPath)
	if err != nil {
		return RunResult{}, fmt.Errorf("create agent log: %w", err)
	}
	defer logFile.Close()

	counter := NewTokenCounter()

	cmd := exec.Command(req.Def.Command, req.Def.BuildArgs(req.Prompt)...)
	cmd.Dir = req.Dir
	cmd.Env = filterEnv(os.Environ(), r.envDrop)
	cmd.Stdout = io.MultiWriter(logFile, counter)
	cmd.Stderr = logFile
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	r.log.Info().
		Str("agent", req.Def.Name).
		Str("log", req.LogPath).
		Dur("timeout", req.Timeout).
		Msg("dispatching agent")

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return RunResult{LogPath: req.LogPath}, fmt.Errorf("start agent %s: %w", req.Def.Name, err)
	}

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	deadline := time.NewTimer(req.Timeout)
	defer deadline.Stop()

	var waitErr error
	timedOut := false

	select {
	case waitErr = <-done:
	case <-deadline.C:
		timedOut = true
		r.log.Warn().
			Str("agent", req.Def.Name).
			Dur("timeout", req.Timeout).
			Msg("agent hit deadline, sending SIGTERM")
		waitErr = r.terminate(cmd, done)
	case <-ctx.Done():
		r.log.Warn().Str("agent", req.Def.Name).Msg("run cancelled, stopping agent")
		r.terminate(cmd, done)
		res := RunResult{
			ExitCode: -1,
			Duration: time.Since(start),
			LogPath:  req.LogPath,
			Tokens:   counter.Usage(),
		}
		return res, fmt.Errorf("agent %s interrupted: %w", req.Def.Name, ctx.Err())
	}

	res := RunResult{
		ExitCode: exitCodeFrom(waitErr),
		TimedOut: timedOut,
		Duration: time.Since(start),
		LogPath:  req.LogPath,
		Tokens:   counter.Usage(),
	}

	evt := r.log.Info()
	if !res.Success() {
		evt = r.log.Warn()
	}
	evt.Str("agent", req.Def.Name).
		Int("exit_code", res.ExitCode).
		Bool("timed_out", res.TimedOut).
		Dur("duration", res.Duration).
		Int64("input_tokens", res.Tokens.Input).
		Int64("output_tokens", res.Tokens.Output).
		Msg("agent finished")

	return res, nil
}

// terminate escalates: SIGTERM to the process group, wait out the grace
// period, then SIGKILL. Returns the wait error once the leader is reaped.
func (r *Runner) terminate(cmd *exec.Cmd, done <-chan error) error {
	pgid := -cmd.Process.Pid
	_ = syscall.Kill(pgid, syscall.SIGTERM)

	grace := r.grace
	if grace <= 0 {
		grace = DefaultGracePeriod
	}
	graceTimer := time.NewTimer(grace)
	defer graceTimer.Stop()

	select {
	case err := <-done:
		// Leader went down in time; sweep anything left in the group.
		_ = syscall.Kill(pgid, syscall.SIGKILL)
		return err
	case <-graceTimer.C:
		r.log.Warn().Dur("grace", grace).Msg("grace period expired, sending SIGKILL")
		_ = syscall.Kill(pgid, syscall.SIGKILL)
		return <-done
	}
}

func exitCodeFrom(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}

// Package verify runs the configured verification commands after an agent
// claims success. The gates trust only real exit codes and real output,
// never the agent's own account of what passed.
package verify

import (
	"context"
	"fmt"
	"time"

	"github.com/gafferworks/gaffer/pkg/executil"
	"github.com/rs/zerolog"
)

// DefaultOutputCap bounds how much of each command's combined output is
// retained, from the tail, where test runners print their summaries.
const DefaultOutputCap = 64 * 1024

// Step is the outcome of one verification command.
type Step struct {
	Command  string
	ExitCode int
	Passed   bool
	// Note says why a step failed when the exit code alone doesn't: parsed
	// failures, help-text detection, spawn errors.
	Note     string
	Output   string
	Counts   *Counts
	Duration time.Duration
}

// Verifier executes verification commands strictly in order.
type Verifier struct {
	log zerolog.Logger

	// OutputCap overrides DefaultOutputCap when positive.
	OutputCap int
}

// New creates a Verifier.
func New(log zerolog.Logger) *Verifier {
	return &Verifier{log: log.With().Str("component", "verify").Logger()}
}

// Run executes commands in order via `sh -c`, stopping at the first failure
// so a broken build doesn't bury its real cause under later noise. Commands
// come from configuration, never from story content.
func (v *Verifier) Run(ctx context.Context, dir string, commands []string) []Step {
	limit := v.OutputCap
	if limit <= 0 {
		limit = DefaultOutputCap
	}

	steps := make([]Step, 0, len(commands))
	for _, cmd := range commands {
		v.log.Info().Str("command", cmd).Msg("verification step")

		res, err := executil.RunShCapture(ctx, dir, cmd, limit)
		step := Step{
			Command:  cmd,
			ExitCode: res.ExitCode,
			Output:   res.Output,
			Duration: res.Duration,
		}

		switch {
		case err != nil:
			step.Note = fmt.Sprintf("command did not run: %v", err)
		case res.ExitCode != 0:
			step.Note = fmt.Sprintf("exit status %d", res.ExitCode)
		default:
			step.Passed = true
		}

		if step.Passed {
			if counts := ParseCounts(step.Output); counts != nil {
				step.Counts = counts
				if counts.Failed > 0 {
					step.Passed = false
					step.Note = fmt.Sprintf("output reports %d failed despite exit 0", counts.Failed)
				}
			} else if IsHelpOutput(step.Output) {
				step.Passed = false
				step.Note = "output looks like help text, not a real run"
			}
		} else if counts := ParseCounts(step.Output); counts != nil {
			step.Counts = counts
		}

		steps = append(steps, step)

		if !step.Passed {
			v.log.Warn().
				Str("command", cmd).
				Int("exit_code", step.ExitCode).
				Str("note", step.Note).
				Msg("verification failed")
			break
		}

		v.log.Debug().
			Str("command", cmd).
			Dur("duration", step.Duration).
			Msg("verification passed")
	}

	return steps
}

// AllPassed reports whether every step passed and at least one ran.
func AllPassed(steps []Step) bool {
	if len(steps) == 0 {
		return false
	}
	for _, s := range steps {
		if !s.Passed {
			return false
		}
	}
	return true
}

// FirstFailure returns the first failing step.
func FirstFailure(steps []Step) (Step, bool) {
	for _, s := range steps {
		if !s.Passed {
			return s, true
		}
	}
	return Step{}, false
}

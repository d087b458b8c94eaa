package gaffer

import (
	"fmt"
	"os"
	"strings"
	"time"
)

const activityTimeFormat = "2006-01-02T15:04:05Z"

// ActivityLog is the plan folder's append-only run history. One line
// per event, a summary block per run. Only one process writes at a
// time because runs hold the plan lock.
type ActivityLog struct {
	path string
}

func NewActivityLog(path string) *ActivityLog {
	return &ActivityLog{path: path}
}

// Event appends an info line: timestamp, story id (or "-"), event
// name, detail.
func (a *ActivityLog) Event(story, event, detailf string, args ...any) error {
	return a.append("INFO", story, event, fmt.Sprintf(detailf, args...))
}

// Warn appends a warning line in the same shape as Event.
func (a *ActivityLog) Warn(story, event, detailf string, args ...any) error {
	return a.append("WARN", story, event, fmt.Sprintf(detailf, args...))
}

func (a *ActivityLog) append(level, story, event, detail string) error {
	if story == "" {
		story = "-"
	}
	ts := time.Now().UTC().Format(activityTimeFormat)
	return a.write(fmt.Sprintf("%s %s %s %s %s\n", ts, level, story, event, detail))
}

// Summary appends the end-of-run block.
func (a *ActivityLog) Summary(sum *RunSummary) error {
	var b strings.Builder
	b.WriteString("=== Run Summary ===\n")
	fmt.Fprintf(&b, "Run:        %s\n", sum.RunID)
	if sum.Detail != "" {
		fmt.Fprintf(&b, "Outcome:    %s (%s)\n", sum.Outcome, sum.Detail)
	} else {
		fmt.Fprintf(&b, "Outcome:    %s\n", sum.Outcome)
	}
	fmt.Fprintf(&b, "Stories:    %d completed, %d failed\n", len(sum.StoriesCompleted), len(sum.StoriesFailed))
	fmt.Fprintf(&b, "Iterations: %d (%d rollbacks)\n", sum.Iterations, sum.Rollbacks)
	fmt.Fprintf(&b, "Agents:     %s\n", strings.Join(sum.AgentsTried, ", "))
	fmt.Fprintf(&b, "Tokens:     %d in / %d out\n", sum.Tokens.Input, sum.Tokens.Output)
	fmt.Fprintf(&b, "Duration:   %s\n", sum.Duration.Round(time.Second))
	return a.write(b.String())
}

func (a *ActivityLog) write(s string) error {
	f, err := os.OpenFile(a.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", a.path, err)
	}
	if _, err := f.WriteString(s); err != nil {
		_ = f.Close()
		return fmt.Errorf("append activity: %w", err)
	}
	return f.Close()
}

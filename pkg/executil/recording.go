package executil

import (
	"context"
	"sync"
)

// RecordedCommand is one call an Executor received: working directory,
// binary, and argv tail.
type RecordedCommand struct {
	Dir  string
	Cmd  string
	Args []string
}

// RecordingExecutor is an Executor for tests: it records every call and
// answers from canned tables instead of spawning processes.
//
// Outputs and Errors are keyed by "<cmd> <first-arg>" when such an
// entry exists, falling back to the bare command name, so a test can
// give "git rev-parse" a SHA while every other git call stays silent.
type RecordingExecutor struct {
	mu       sync.Mutex
	Commands []RecordedCommand

	Outputs map[string][]byte
	Errors  map[string]error
}

// Run records the call and answers from the canned tables.
func (e *RecordingExecutor) Run(ctx context.Context, cmd string, args ...string) ([]byte, error) {
	return e.record("", cmd, args)
}

// RunDir records the call with its working directory.
func (e *RecordingExecutor) RunDir(ctx context.Context, dir, cmd string, args ...string) ([]byte, error) {
	return e.record(dir, cmd, args)
}

func (e *RecordingExecutor) record(dir, cmd string, args []string) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.Commands = append(e.Commands, RecordedCommand{Dir: dir, Cmd: cmd, Args: args})

	subkey := ""
	if len(args) > 0 {
		subkey = cmd + " " + args[0]
	}

	var out []byte
	if e.Outputs != nil {
		ok := false
		if subkey != "" {
			out, ok = e.Outputs[subkey]
		}
		if !ok {
			out = e.Outputs[cmd]
		}
	}

	var err error
	if e.Errors != nil {
		ok := false
		if subkey != "" {
			err, ok = e.Errors[subkey]
		}
		if !ok {
			err = e.Errors[cmd]
		}
	}

	return out, err
}

// Reset clears the recorded calls; the answer tables stay.
func (e *RecordingExecutor) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.Commands = nil
}

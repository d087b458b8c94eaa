// Package agent dispatches an external coding agent CLI for a single
// iteration, enforcing a hard wall-clock timeout with SIGTERM→grace→SIGKILL
// escalation on the agent's whole process group.
package agent

import "strings"

// Definition describes how to invoke one agent CLI.
type Definition struct {
	// Name is the key used in config and fallback chains.
	Name string
	// Command is the executable to run.
	Command string
	// Args are the base arguments, before the prompt.
	Args []string
	// PromptArg, when set, is the flag that carries the prompt (e.g. "-p").
	// Empty means the prompt is passed as the trailing positional argument.
	PromptArg string
}

// BuildArgs assembles the full argv tail for a run: base args plus the
// prompt, handed over the way the agent expects.
func (d Definition) BuildArgs(prompt string) []string {
	args := make([]string, 0, len(d.Args)+2)
	args = append(args, d.Args...)
	if d.PromptArg != "" {
		return append(args, d.PromptArg, prompt)
	}
	return append(args, prompt)
}

// DefaultDefinitions returns the built-in agent catalog. Config can override
// or extend these.
func DefaultDefinitions() map[string]Definition {
	return map[string]Definition{
		"claude": {
			Name:    "claude",
			Command: "claude",
			// stream-json keeps the log machine-readable and carries the
			// usage records the token counter reads.
			Args: []string{"-p", "--dangerously-skip-permissions", "--output-format", "stream-json", "--verbose"},
		},
		"crush": {
			Name:    "crush",
			Command: "crush",
			Args:    []string{"run", "-q"},
		},
	}
}

// filterEnv drops environment variables whose names start with any of the
// given prefixes. Nested agent runs must not inherit markers identifying the
// orchestrator's own host session.
func filterEnv(environ, dropPrefixes []string) []string {
	if len(dropPrefixes) == 0 {
		return environ
	}
	kept := make([]string, 0, len(environ))
	for _, kv := range environ {
		name, _, _ := strings.Cut(kv, "=")
		drop := false
		for _, prefix := range dropPrefixes {
			if strings.HasPrefix(name, prefix) {
				drop = true
				break
			}
		}
		if !drop {
			kept = append(kept, kv)
		}
	}
	return kept
}

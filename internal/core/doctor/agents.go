package doctor

import (
	"context"
	"fmt"

	"github.com/gafferworks/gaffer/internal/core/agent"
)

// AgentsCheck verifies that configured agent commands resolve on PATH. The
// initial agent is required; fallbacks only matter if the run switches to
// them, so a missing fallback is a warning.
type AgentsCheck struct {
	initial  string
	fallback []string
	resolve  func(name string) agent.Definition
}

// NewAgentsCheck creates an agents check. resolve maps an agent name to its
// definition, the way the run itself would.
func NewAgentsCheck(initial string, fallback []string, resolve func(name string) agent.Definition) *AgentsCheck {
	return &AgentsCheck{initial: initial, fallback: fallback, resolve: resolve}
}

func (c *AgentsCheck) Name() string {
	return "Agents"
}

func (c *AgentsCheck) Run(_ context.Context) Result {
	result := Result{Name: c.Name()}

	result.Items = append(result.Items, c.checkAgent(c.initial, StatusFail))

	for _, name := range c.fallback {
		if name == c.initial {
			continue
		}
		result.Items = append(result.Items, c.checkAgent(name, StatusWarn))
	}

	return result
}

func (c *AgentsCheck) checkAgent(name string, missingStatus Status) CheckItem {
	def := c.resolve(name)
	path, err := lookPathFunc(def.Command)
	if err != nil {
		return CheckItem{
			Label:  name,
			Status: missingStatus,
			Detail: fmt.Sprintf("command %q not found on PATH", def.Command),
		}
	}
	return CheckItem{
		Label:  name,
		Status: StatusPass,
		Detail: path,
	}
}

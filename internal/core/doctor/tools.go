package doctor

import (
	"context"
	"os/exec"
)

// lookPathFunc is the function used to find executables on PATH.
// Package-level variable to allow test overrides.
var lookPathFunc = exec.LookPath

// ToolsCheck verifies that required external tools are available on $PATH.
type ToolsCheck struct{}

// NewToolsCheck creates a new tools check.
func NewToolsCheck() *ToolsCheck {
	return &ToolsCheck{}
}

func (c *ToolsCheck) Name() string {
	return "Tools"
}

func (c *ToolsCheck) Run(_ context.Context) Result {
	result := Result{Name: c.Name()}

	// git drives commit, rollback, and resume; sh runs verification commands.
	for _, tool := range []string{"git", "sh"} {
		if path, err := lookPathFunc(tool); err != nil {
			result.Items = append(result.Items, CheckItem{
				Label:  tool,
				Status: StatusFail,
				Detail: "not found on PATH",
			})
		} else {
			result.Items = append(result.Items, CheckItem{
				Label:  tool,
				Status: StatusPass,
				Detail: path,
			})
		}
	}

	return result
}

package config

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/hay-kot/criterio"
)

// ValidationWarning represents a non-fatal configuration issue.
type ValidationWarning struct {
	Category string `json:"category"`
	Item     string `json:"item,omitempty"`
	Message  string `json:"message"`
}

// ValidateDeep performs comprehensive validation including executable
// lookups and config file accessibility. The configPath argument specifies
// the config file location to validate (empty string skips the file check).
// This calls Validate() first for basic structural validation, then adds
// I/O checks.
func (c *Config) ValidateDeep(configPath string) error {
	if err := c.Validate(); err != nil {
		return err
	}

	initial := c.ResolveAgent(c.Agent.Initial)

	return criterio.ValidateStruct(
		validateConfigFile(configPath),
		criterio.Run("agent.initial", initial.Command, executableExists),
		criterio.Run("git", "git", executableExists),
		criterio.Run("sh", "sh", executableExists),
	)
}

// FallbackWarnings reports fallback agents whose commands are not on PATH.
// Missing fallbacks only matter if the run ever switches to them, so these
// are warnings, not errors.
func (c *Config) FallbackWarnings() []ValidationWarning {
	var warnings []ValidationWarning
	for _, name := range c.Agent.Fallback {
		def := c.ResolveAgent(name)
		if err := executableExists(def.Command); err != nil {
			warnings = append(warnings, ValidationWarning{
				Category: "Agent",
				Item:     name,
				Message:  fmt.Sprintf("fallback agent unavailable: %v", err),
			})
		}
	}
	return warnings
}

func validateConfigFile(configPath string) error {
	if configPath == "" {
		return nil
	}

	info, err := os.Stat(configPath)
	if os.IsNotExist(err) {
		return nil // not found is fine, using defaults
	}
	if err != nil {
		return criterio.NewFieldErrors("config_file", fmt.Errorf("cannot access: %w", err))
	}
	if info.IsDir() {
		return criterio.NewFieldErrors("config_file", fmt.Errorf("%s is a directory, not a file", configPath))
	}
	return nil
}

// executableExists validates that a command resolves on PATH.
func executableExists(command string) error {
	if command == "" {
		return nil
	}
	if _, err := exec.LookPath(command); err != nil {
		return fmt.Errorf("executable not found: %s", command)
	}
	return nil
}

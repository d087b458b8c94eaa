// Package config handles configuration loading and validation for gaffer.
//
// Configuration lives in gaffer.yaml inside the plan folder. Every field has
// a default; GAFFER_* environment variables override file values, and CLI
// flags override both.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/gafferworks/gaffer/internal/core/agent"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// FileName is the config file looked up inside the plan folder.
const FileName = "gaffer.yaml"

// Retry pacing policies.
const (
	RetryPolicyFixed       = "fixed"
	RetryPolicyExponential = "exponential"
)

// HardMaxIterations caps the iteration count whatever the config or flags
// ask for. A runaway loop burning agent time all night is worse than an
// early stop.
const HardMaxIterations = 100

// Config holds the application configuration.
type Config struct {
	Agent  AgentConfig  `yaml:"agent"`
	Verify VerifyConfig `yaml:"verify"`
	Loop   LoopConfig   `yaml:"loop"`
	Retry  RetryConfig  `yaml:"retry"`
	Commit CommitConfig `yaml:"commit"`
	Log    LogConfig    `yaml:"log"`
}

// AgentConfig selects and tunes the coding agents.
type AgentConfig struct {
	// Initial is the agent the run starts with.
	Initial string `yaml:"initial"`
	// Fallback is the ordered agent rotation; the run walks it when an
	// agent keeps failing.
	Fallback []string `yaml:"fallback"`
	// Timeout is the hard wall-clock limit per dispatch.
	Timeout Duration `yaml:"timeout"`
	// GracePeriod is the SIGTERM→SIGKILL window.
	GracePeriod Duration `yaml:"grace_period"`
	// EnvDrop lists environment variable name prefixes stripped from the
	// agent's environment.
	EnvDrop []string `yaml:"env_drop"`
	// Definitions overrides or extends the built-in agent catalog.
	Definitions map[string]AgentDef `yaml:"definitions"`
}

// AgentDef describes how to invoke one agent CLI. An empty command inherits
// the built-in definition's command, or defaults to the agent name itself.
type AgentDef struct {
	Command   string   `yaml:"command"`
	Args      []string `yaml:"args"`
	PromptArg string   `yaml:"prompt_arg"`
}

// VerifyConfig lists the commands that gate each iteration.
type VerifyConfig struct {
	Commands []string `yaml:"commands"`
}

// LoopConfig bounds the run.
type LoopConfig struct {
	MaxIterations int `yaml:"max_iterations"`
	// MaxFailures is the consecutive-failure count that triggers an agent
	// switch.
	MaxFailures int      `yaml:"max_failures"`
	MaxRunTime  Duration `yaml:"max_run_time"`
}

// RetryConfig paces the loop between failed iterations.
type RetryConfig struct {
	Policy   string   `yaml:"policy"`
	Delay    Duration `yaml:"delay"`
	MaxDelay Duration `yaml:"max_delay"`
}

// CommitConfig controls git commits after verified iterations.
type CommitConfig struct {
	Enabled bool `yaml:"enabled"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Agent: AgentConfig{
			Initial:     "claude",
			Fallback:    []string{"claude", "crush"},
			Timeout:     Duration(20 * time.Minute),
			GracePeriod: Duration(30 * time.Second),
			EnvDrop:     []string{"CLAUDECODE"},
		},
		Loop: LoopConfig{
			MaxIterations: 10,
			MaxFailures:   3,
			MaxRunTime:    Duration(4 * time.Hour),
		},
		Retry: RetryConfig{
			Policy:   RetryPolicyFixed,
			Delay:    0,
			MaxDelay: Duration(5 * time.Minute),
		},
		Commit: CommitConfig{Enabled: true},
		Log:    LogConfig{Level: "info"},
	}
}

// Load reads configuration from the given path. A missing file is fine and
// yields defaults. Environment overrides are applied on top of file values.
func Load(configPath string) (*Config, error) {
	cfg := DefaultConfig()

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			data, err := os.ReadFile(configPath)
			if err != nil {
				return nil, fmt.Errorf("read config file: %w", err)
			}

			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return nil, fmt.Errorf("parse config file: %w", err)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// applyDefaults sets default values for any unset configuration options.
// Unmarshalling over DefaultConfig covers absent keys; this covers fields an
// override explicitly zeroed.
func (c *Config) applyDefaults() {
	defaults := DefaultConfig()
	if c.Agent.Initial == "" {
		c.Agent.Initial = defaults.Agent.Initial
	}
	if c.Agent.Timeout == 0 {
		c.Agent.Timeout = defaults.Agent.Timeout
	}
	if c.Agent.GracePeriod == 0 {
		c.Agent.GracePeriod = defaults.Agent.GracePeriod
	}
	if c.Loop.MaxIterations == 0 {
		c.Loop.MaxIterations = defaults.Loop.MaxIterations
	}
	if c.Loop.MaxFailures == 0 {
		c.Loop.MaxFailures = defaults.Loop.MaxFailures
	}
	if c.Loop.MaxRunTime == 0 {
		c.Loop.MaxRunTime = defaults.Loop.MaxRunTime
	}
	if c.Retry.Policy == "" {
		c.Retry.Policy = defaults.Retry.Policy
	}
	if c.Retry.MaxDelay == 0 {
		c.Retry.MaxDelay = defaults.Retry.MaxDelay
	}
	if c.Log.Level == "" {
		c.Log.Level = defaults.Log.Level
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Agent.Initial == "" {
		return fmt.Errorf("agent.initial cannot be empty")
	}
	if c.Agent.Timeout <= 0 {
		return fmt.Errorf("agent.timeout must be positive")
	}
	if c.Agent.GracePeriod <= 0 {
		return fmt.Errorf("agent.grace_period must be positive")
	}
	for i, name := range c.Agent.Fallback {
		if name == "" {
			return fmt.Errorf("agent.fallback[%d] cannot be empty", i)
		}
	}

	for i, cmd := range c.Verify.Commands {
		if cmd == "" {
			return fmt.Errorf("verify.commands[%d] cannot be empty", i)
		}
	}

	if c.Loop.MaxIterations < 1 {
		return fmt.Errorf("loop.max_iterations must be at least 1")
	}
	if c.Loop.MaxFailures < 1 {
		return fmt.Errorf("loop.max_failures must be at least 1")
	}
	if c.Loop.MaxRunTime <= 0 {
		return fmt.Errorf("loop.max_run_time must be positive")
	}

	switch c.Retry.Policy {
	case RetryPolicyFixed, RetryPolicyExponential:
	default:
		return fmt.Errorf("retry.policy must be %q or %q, got %q",
			RetryPolicyFixed, RetryPolicyExponential, c.Retry.Policy)
	}
	if c.Retry.Delay < 0 {
		return fmt.Errorf("retry.delay cannot be negative")
	}
	if c.Retry.MaxDelay <= 0 {
		return fmt.Errorf("retry.max_delay must be positive")
	}

	if _, err := zerolog.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}

	return nil
}

// Warnings returns non-fatal configuration issues.
func (c *Config) Warnings() []ValidationWarning {
	var warnings []ValidationWarning

	if len(c.Verify.Commands) == 0 {
		warnings = append(warnings, ValidationWarning{
			Category: "Verify",
			Message:  "no verification commands configured; iterations pass without any checks",
		})
	}

	if c.Agent.Timeout.Duration() >= c.Loop.MaxRunTime.Duration() {
		warnings = append(warnings, ValidationWarning{
			Category: "Loop",
			Message:  "agent.timeout is at least loop.max_run_time; a single dispatch can consume the whole run budget",
		})
	}

	return warnings
}

// AgentDefinitions resolves the agent catalog: built-in definitions overlaid
// with the config's own.
func (c *Config) AgentDefinitions() map[string]agent.Definition {
	defs := agent.DefaultDefinitions()
	for name, d := range c.Agent.Definitions {
		def := agent.Definition{
			Name:      name,
			Command:   d.Command,
			Args:      d.Args,
			PromptArg: d.PromptArg,
		}
		if def.Command == "" {
			if base, ok := defs[name]; ok {
				def.Command = base.Command
			} else {
				def.Command = name
			}
		}
		defs[name] = def
	}
	return defs
}

// ResolveAgent returns the definition for an agent name. Names without any
// definition get the generic form: the name as the command, prompt as the
// trailing argument.
func (c *Config) ResolveAgent(name string) agent.Definition {
	if def, ok := c.AgentDefinitions()[name]; ok {
		return def
	}
	return agent.Definition{Name: name, Command: name}
}

package config

import (
	"os"
	"strconv"
	"time"
)

// Environment override variables. Values use the same syntax as the YAML
// fields they override.
const (
	EnvAgent         = "GAFFER_AGENT"
	EnvAgentTimeout  = "GAFFER_AGENT_TIMEOUT"
	EnvGracePeriod   = "GAFFER_AGENT_GRACE_PERIOD"
	EnvMaxIterations = "GAFFER_MAX_ITERATIONS"
	EnvMaxFailures   = "GAFFER_MAX_FAILURES"
	EnvMaxRunTime    = "GAFFER_MAX_RUN_TIME"
	EnvRetryPolicy   = "GAFFER_RETRY_POLICY"
	EnvRetryDelay    = "GAFFER_RETRY_DELAY"
	EnvRetryMaxDelay = "GAFFER_RETRY_MAX_DELAY"
	EnvCommit        = "GAFFER_COMMIT"
	EnvLogLevel      = "GAFFER_LOG_LEVEL"
	EnvLogFile       = "GAFFER_LOG_FILE"
)

// applyEnvOverrides layers GAFFER_* environment variables over file values.
func (c *Config) applyEnvOverrides() {
	c.Agent.Initial = getEnvString(EnvAgent, c.Agent.Initial)
	c.Agent.Timeout = getEnvDuration(EnvAgentTimeout, c.Agent.Timeout)
	c.Agent.GracePeriod = getEnvDuration(EnvGracePeriod, c.Agent.GracePeriod)

	c.Loop.MaxIterations = getEnvInt(EnvMaxIterations, c.Loop.MaxIterations)
	c.Loop.MaxFailures = getEnvInt(EnvMaxFailures, c.Loop.MaxFailures)
	c.Loop.MaxRunTime = getEnvDuration(EnvMaxRunTime, c.Loop.MaxRunTime)

	c.Retry.Policy = getEnvString(EnvRetryPolicy, c.Retry.Policy)
	c.Retry.Delay = getEnvDuration(EnvRetryDelay, c.Retry.Delay)
	c.Retry.MaxDelay = getEnvDuration(EnvRetryMaxDelay, c.Retry.MaxDelay)

	c.Commit.Enabled = getEnvBool(EnvCommit, c.Commit.Enabled)

	c.Log.Level = getEnvString(EnvLogLevel, c.Log.Level)
	c.Log.File = getEnvString(EnvLogFile, c.Log.File)
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue Duration) Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return Duration(parsed)
		}
	}
	return defaultValue
}

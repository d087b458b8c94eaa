package agent

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeScript drops an executable sh stub and returns its path.
func writeScript(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "stub.sh")
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0o755))
	return path
}

func runRequest(t *testing.T, script string, timeout time.Duration) RunRequest {
	t.Helper()
	return RunRequest{
		Def:     Definition{Name: "stub", Command: script},
		Prompt:  "do the thing",
		Timeout: timeout,
		LogPath: filepath.Join(t.TempDir(), "logs", "iter-0001-stub.log"),
	}
}

func readLog(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(data)
}

func TestRunnerSuccess(t *testing.T) {
	r := NewRunner(zerolog.Nop(), time.Second, nil)
	script := writeScript(t, `echo hello from agent`)

	res, err := r.Run(context.Background(), runRequest(t, script, 10*time.Second))
	require.NoError(t, err)
	assert.True(t, res.Success())
	assert.Equal(t, 0, res.ExitCode)
	assert.False(t, res.TimedOut)
	assert.Contains(t, readLog(t, res.LogPath), "hello from agent")
}

func TestRunnerExitCodeIsNotAnError(t *testing.T) {
	r := NewRunner(zerolog.Nop(), time.Second, nil)
	script := writeScript(t, `exit 7`)

	res, err := r.Run(context.Background(), runRequest(t, script, 10*time.Second))
	require.NoError(t, err, "a failing agent is a result, not a runner error")
	assert.False(t, res.Success())
	assert.Equal(t, 7, res.ExitCode)
	assert.False(t, res.TimedOut)
}

func TestRunnerTimeoutSIGTERM(t *testing.T) {
	// Long grace proves SIGTERM alone stopped the agent.
	r := NewRunner(zerolog.Nop(), 30*time.Second, nil)
	script := writeScript(t, `echo started
sleep 30`)

	start := time.Now()
	res, err := r.Run(context.Background(), runRequest(t, script, 200*time.Millisecond))
	require.NoError(t, err)
	assert.True(t, res.TimedOut)
	assert.False(t, res.Success())
	assert.Less(t, time.Since(start), 10*time.Second)
	assert.Contains(t, readLog(t, res.LogPath), "started")
}

func TestRunnerTimeoutEscalatesToSIGKILL(t *testing.T) {
	r := NewRunner(zerolog.Nop(), 200*time.Millisecond, nil)
	// Ignored TERM is inherited by sleep, so only SIGKILL ends this one.
	script := writeScript(t, `trap '' TERM
sleep 30`)

	start := time.Now()
	res, err := r.Run(context.Background(), runRequest(t, script, 200*time.Millisecond))
	require.NoError(t, err)
	assert.True(t, res.TimedOut)
	assert.False(t, res.Success())
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestRunnerCancelledContext(t *testing.T) {
	r := NewRunner(zerolog.Nop(), 200*time.Millisecond, nil)
	script := writeScript(t, `sleep 30`)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := r.Run(ctx, runRequest(t, script, 10*time.Minute))
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 10*time.Second)
}

func TestRunnerPromptHandover(t *testing.T) {
	r := NewRunner(zerolog.Nop(), time.Second, nil)
	script := writeScript(t, `printf 'arg:%s\n' "$@"`)

	t.Run("trailing positional", func(t *testing.T) {
		req := runRequest(t, script, 10*time.Second)
		req.Def.Args = []string{"--base"}

		res, err := r.Run(context.Background(), req)
		require.NoError(t, err)
		log := readLog(t, res.LogPath)
		assert.Contains(t, log, "arg:--base\n")
		assert.Contains(t, log, "arg:do the thing\n")
	})

	t.Run("flag value", func(t *testing.T) {
		req := runRequest(t, script, 10*time.Second)
		req.Def.PromptArg = "-p"

		res, err := r.Run(context.Background(), req)
		require.NoError(t, err)
		log := readLog(t, res.LogPath)
		assert.Contains(t, log, "arg:-p\narg:do the thing\n")
	})
}

func TestRunnerDropsEnvPrefixes(t *testing.T) {
	t.Setenv("CLAUDECODE", "1")
	t.Setenv("CLAUDECODE_EXTRA", "x")
	t.Setenv("GAFFER_TEST_KEEP", "yes")

	r := NewRunner(zerolog.Nop(), time.Second, []string{"CLAUDECODE"})
	script := writeScript(t, `echo "cc=[${CLAUDECODE:-unset}]"
echo "extra=[${CLAUDECODE_EXTRA:-unset}]"
echo "keep=[${GAFFER_TEST_KEEP:-unset}]"`)

	res, err := r.Run(context.Background(), runRequest(t, script, 10*time.Second))
	require.NoError(t, err)
	log := readLog(t, res.LogPath)
	assert.Contains(t, log, "cc=[unset]")
	assert.Contains(t, log, "extra=[unset]")
	assert.Contains(t, log, "keep=[yes]")
}

func TestRunnerCapturesBothStreams(t *testing.T) {
	r := NewRunner(zerolog.Nop(), time.Second, nil)
	script := writeScript(t, `echo to-stdout
echo to-stderr >&2`)

	res, err := r.Run(context.Background(), runRequest(t, script, 10*time.Second))
	require.NoError(t, err)
	log := readLog(t, res.LogPath)
	assert.Contains(t, log, "to-stdout")
	assert.Contains(t, log, "to-stderr")
}

func TestRunnerReportsTokenUsage(t *testing.T) {
	r := NewRunner(zerolog.Nop(), time.Second, nil)
	script := writeScript(t, `echo '{"type":"assistant","message":{"usage":{"input_tokens":4,"output_tokens":50}}}'
echo '{"type":"result","usage":{"input_tokens":100,"output_tokens":200}}'`)

	res, err := r.Run(context.Background(), runRequest(t, script, 10*time.Second))
	require.NoError(t, err)
	assert.Equal(t, int64(100), res.Tokens.Input)
	assert.Equal(t, int64(200), res.Tokens.Output)
}

func TestRunnerSpawnFailure(t *testing.T) {
	r := NewRunner(zerolog.Nop(), time.Second, nil)
	req := runRequest(t, filepath.Join(t.TempDir(), "missing-agent"), 10*time.Second)

	_, err := r.Run(context.Background(), req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "start agent")
}

func TestRunnerRejectsZeroTimeout(t *testing.T) {
	r := NewRunner(zerolog.Nop(), time.Second, nil)
	script := writeScript(t, `true`)

	_, err := r.Run(context.Background(), runRequest(t, script, 0))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "timeout must be positive")
}

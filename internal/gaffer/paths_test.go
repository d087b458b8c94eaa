package gaffer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPaths_Layout(t *testing.T) {
	p := NewPaths("/work/plan")

	assert.Equal(t, "/work/plan/.gaffer", p.DataDir())
	assert.Equal(t, "/work/plan/.gaffer/checkpoint.json", p.CheckpointFile())
	assert.Equal(t, "/work/plan/.gaffer/status.json", p.StatusFile())
	assert.Equal(t, "/work/plan/.gaffer/activity.log", p.ActivityFile())
	assert.Equal(t, "/work/plan/.gaffer/gaffer.lock", p.LockFile())
	assert.Equal(t, "/work/plan/.gaffer/logs/iter-0007-claude.log", p.IterationLog(7, "claude"))
	assert.Equal(t, "/work/plan/.gaffer/runs/run-abc123.md", p.RunReport("abc123"))
	assert.Equal(t, "/work/plan/gaffer.yaml", p.ConfigFile())
}

func TestPaths_Ensure(t *testing.T) {
	p := NewPaths(t.TempDir())

	require.NoError(t, p.Ensure())

	for _, dir := range []string{p.DataDir(), p.LogsDir(), p.RunsDir()} {
		info, err := os.Stat(dir)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}

	// The data dir ignores itself so git never sees orchestrator state.
	data, err := os.ReadFile(filepath.Join(p.DataDir(), ".gitignore"))
	require.NoError(t, err)
	assert.Equal(t, "*\n", string(data))

	require.NoError(t, p.Ensure())
}

func TestPaths_EnsureKeepsCustomGitignore(t *testing.T) {
	p := NewPaths(t.TempDir())
	require.NoError(t, os.MkdirAll(p.DataDir(), 0o755))

	custom := filepath.Join(p.DataDir(), ".gitignore")
	require.NoError(t, os.WriteFile(custom, []byte("logs/\n"), 0o644))

	require.NoError(t, p.Ensure())

	data, err := os.ReadFile(custom)
	require.NoError(t, err)
	assert.Equal(t, "logs/\n", string(data))
}

package plan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("### [ ] US-001: stub\n"), 0o644))
	return path
}

func TestDiscover(t *testing.T) {
	t.Run("exact name wins", func(t *testing.T) {
		dir := t.TempDir()
		want := touch(t, dir, "PLAN.md")
		touch(t, dir, "notes.plan.md")

		got, err := Discover(dir, nil)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("falls through to glob pattern", func(t *testing.T) {
		dir := t.TempDir()
		want := touch(t, dir, "sprint-7.plan.md")

		got, err := Discover(dir, nil)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})

	t.Run("ambiguous glob is an error", func(t *testing.T) {
		dir := t.TempDir()
		touch(t, dir, "a.plan.md")
		touch(t, dir, "b.plan.md")

		_, err := Discover(dir, nil)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "a.plan.md")
		assert.Contains(t, err.Error(), "b.plan.md")
	})

	t.Run("nothing found", func(t *testing.T) {
		_, err := Discover(t.TempDir(), nil)
		require.ErrorIs(t, err, ErrNoDocument)
	})

	t.Run("custom patterns", func(t *testing.T) {
		dir := t.TempDir()
		want := touch(t, dir, "stories.md")

		got, err := Discover(dir, []string{"stories.md"})
		require.NoError(t, err)
		assert.Equal(t, want, got)
	})
}

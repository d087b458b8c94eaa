package executil

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunShCapture(t *testing.T) {
	ctx := context.Background()

	t.Run("captures combined output", func(t *testing.T) {
		res, err := RunShCapture(ctx, "", "echo out; echo err >&2", 4096)
		require.NoError(t, err)
		assert.Equal(t, 0, res.ExitCode)
		assert.Contains(t, res.Output, "out")
		assert.Contains(t, res.Output, "err")
	})

	t.Run("nonzero exit is a result, not an error", func(t *testing.T) {
		res, err := RunShCapture(ctx, "", "echo broken; exit 3", 4096)
		require.NoError(t, err)
		assert.Equal(t, 3, res.ExitCode)
		assert.Contains(t, res.Output, "broken")
	})

	t.Run("keeps tail of long output", func(t *testing.T) {
		res, err := RunShCapture(ctx, "", "printf 'AAAA%.0s' $(seq 1 100); printf 'TAIL'", 16)
		require.NoError(t, err)
		assert.Len(t, res.Output, 16)
		assert.True(t, strings.HasSuffix(res.Output, "TAIL"), "output %q should end with TAIL", res.Output)
	})

	t.Run("runs in directory", func(t *testing.T) {
		res, err := RunShCapture(ctx, "/tmp", "pwd", 4096)
		require.NoError(t, err)
		assert.Contains(t, res.Output, "/tmp")
	})

	t.Run("cancelled context is an error", func(t *testing.T) {
		cctx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()

		_, err := RunShCapture(cctx, "", "sleep 5", 4096)
		require.Error(t, err)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("records duration", func(t *testing.T) {
		res, err := RunShCapture(ctx, "", "true", 4096)
		require.NoError(t, err)
		assert.Greater(t, res.Duration, time.Duration(0))
	})
}

func TestTailWriter(t *testing.T) {
	tests := []struct {
		name   string
		max    int
		writes []string
		want   string
	}{
		{"under cap", 10, []string{"abc"}, "abc"},
		{"exact cap", 3, []string{"abc"}, "abc"},
		{"single write over cap", 3, []string{"abcdef"}, "def"},
		{"accumulated overflow", 5, []string{"abc", "def"}, "bcdef"},
		{"many small writes", 4, []string{"a", "b", "c", "d", "e", "f"}, "cdef"},
		{"zero cap discards", 0, []string{"abc"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := NewTailWriter(tt.max)
			for _, s := range tt.writes {
				n, err := w.Write([]byte(s))
				require.NoError(t, err)
				assert.Equal(t, len(s), n, "Write must report full length")
			}
			assert.Equal(t, tt.want, w.String())
		})
	}
}

func TestExitCode(t *testing.T) {
	ctx := context.Background()
	exec := &RealExecutor{}

	t.Run("nil error", func(t *testing.T) {
		assert.Equal(t, 0, ExitCode(nil))
	})

	t.Run("exit error", func(t *testing.T) {
		_, err := exec.Run(ctx, "sh", "-c", "exit 7")
		require.Error(t, err)
		assert.Equal(t, 7, ExitCode(err))
	})

	t.Run("spawn failure", func(t *testing.T) {
		_, err := exec.Run(ctx, "nonexistent-command-12345")
		require.Error(t, err)
		assert.Equal(t, -1, ExitCode(err))
	})

	t.Run("unrelated error", func(t *testing.T) {
		assert.Equal(t, -1, ExitCode(errors.New("boom")))
	})
}

func TestRealExecutor_Run(t *testing.T) {
	exec := &RealExecutor{}
	ctx := context.Background()

	t.Run("successful command", func(t *testing.T) {
		out, err := exec.Run(ctx, "echo", "hello")
		require.NoError(t, err)
		assert.Equal(t, "hello\n", string(out))
	})

	t.Run("command not found", func(t *testing.T) {
		_, err := exec.Run(ctx, "nonexistent-command-12345")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "exec nonexistent-command-12345")
	})

	t.Run("command fails", func(t *testing.T) {
		_, err := exec.Run(ctx, "false")
		require.Error(t, err)
	})
}

func TestRealExecutor_RunDir(t *testing.T) {
	exec := &RealExecutor{}
	ctx := context.Background()

	t.Run("runs in specified directory", func(t *testing.T) {
		out, err := exec.RunDir(ctx, "/tmp", "pwd")
		require.NoError(t, err)
		assert.Contains(t, string(out), "/tmp")
	})

	t.Run("invalid directory", func(t *testing.T) {
		_, err := exec.RunDir(ctx, "/nonexistent-dir-12345", "pwd")
		require.Error(t, err)
	})
}

func TestRecordingExecutor_Run(t *testing.T) {
	t.Run("records commands", func(t *testing.T) {
		exec := &RecordingExecutor{}
		ctx := context.Background()

		_, _ = exec.Run(ctx, "git", "rev-parse", "HEAD")
		_, _ = exec.Run(ctx, "git", "status", "--porcelain")

		require.Len(t, exec.Commands, 2)
		assert.Equal(t, "git", exec.Commands[0].Cmd)
		assert.Equal(t, []string{"rev-parse", "HEAD"}, exec.Commands[0].Args)
		assert.Empty(t, exec.Commands[0].Dir)
	})

	t.Run("records directory", func(t *testing.T) {
		exec := &RecordingExecutor{}
		ctx := context.Background()

		_, _ = exec.RunDir(ctx, "/tmp/repo", "git", "status")

		require.Len(t, exec.Commands, 1)
		assert.Equal(t, "/tmp/repo", exec.Commands[0].Dir)
	})

	t.Run("returns configured output", func(t *testing.T) {
		exec := &RecordingExecutor{
			Outputs: map[string][]byte{
				"git": []byte("output"),
			},
		}
		ctx := context.Background()

		out, err := exec.Run(ctx, "git", "status")
		require.NoError(t, err)
		assert.Equal(t, []byte("output"), out)
	})

	t.Run("returns configured error", func(t *testing.T) {
		expectedErr := errors.New("command failed")
		exec := &RecordingExecutor{
			Errors: map[string]error{
				"git": expectedErr,
			},
		}
		ctx := context.Background()

		_, err := exec.Run(ctx, "git", "status")
		assert.Equal(t, expectedErr, err)
	})

	t.Run("subcommand key wins over command key", func(t *testing.T) {
		exec := &RecordingExecutor{
			Outputs: map[string][]byte{
				"git":           []byte("fallback"),
				"git rev-parse": []byte("abc123\n"),
			},
		}
		ctx := context.Background()

		out, err := exec.Run(ctx, "git", "rev-parse", "HEAD")
		require.NoError(t, err)
		assert.Equal(t, []byte("abc123\n"), out)

		out, err = exec.Run(ctx, "git", "status")
		require.NoError(t, err)
		assert.Equal(t, []byte("fallback"), out)
	})

	t.Run("reset clears commands", func(t *testing.T) {
		exec := &RecordingExecutor{}
		ctx := context.Background()

		_, _ = exec.Run(ctx, "echo", "hello")
		require.Len(t, exec.Commands, 1)

		exec.Reset()
		assert.Empty(t, exec.Commands)
	})
}

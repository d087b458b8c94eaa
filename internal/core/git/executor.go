package git

import (
	"context"
	"fmt"
	"strings"

	"github.com/gafferworks/gaffer/pkg/executil"
)

// Executor implements Git using the git command-line tool. Arguments are
// passed as an argv, never through a shell, so refs and commit messages
// cannot be interpreted as commands.
type Executor struct {
	gitPath string
	exec    executil.Executor
}

// NewExecutor creates a new git executor with the specified git binary path.
func NewExecutor(gitPath string, exec executil.Executor) *Executor {
	return &Executor{gitPath: gitPath, exec: exec}
}

func (e *Executor) IsRepo(ctx context.Context, dir string) (bool, error) {
	_, err := e.exec.RunDir(ctx, dir, e.gitPath, "rev-parse", "--git-dir")
	if err != nil {
		if executil.ExitCode(err) > 0 {
			return false, nil
		}
		return false, fmt.Errorf("git rev-parse: %w", err)
	}
	return true, nil
}

func (e *Executor) Root(ctx context.Context, dir string) (string, error) {
	out, err := e.exec.RunDir(ctx, dir, e.gitPath, "rev-parse", "--show-toplevel")
	if err != nil {
		return "", fmt.Errorf("git rev-parse --show-toplevel: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

func (e *Executor) Head(ctx context.Context, dir string) (string, error) {
	out, err := e.exec.RunDir(ctx, dir, e.gitPath, "rev-parse", "HEAD")
	if err != nil {
		return "", fmt.Errorf("git rev-parse HEAD: %w", err)
	}
	return strings.TrimSpace(string(out)), nil
}

func (e *Executor) IsClean(ctx context.Context, dir string) (bool, error) {
	out, err := e.exec.RunDir(ctx, dir, e.gitPath, "status", "--porcelain")
	if err != nil {
		return false, fmt.Errorf("git status: %w", err)
	}
	return len(strings.TrimSpace(string(out))) == 0, nil
}

func (e *Executor) Branch(ctx context.Context, dir string) (string, error) {
	// Try to get branch name first
	out, err := e.exec.RunDir(ctx, dir, e.gitPath, "branch", "--show-current")
	if err != nil {
		return "", fmt.Errorf("git branch: %w", err)
	}

	branch := strings.TrimSpace(string(out))
	if branch != "" {
		return branch, nil
	}

	// Empty branch name means detached HEAD - get short commit SHA
	out, err = e.exec.RunDir(ctx, dir, e.gitPath, "rev-parse", "--short", "HEAD")
	if err != nil {
		return "", fmt.Errorf("git rev-parse: %w", err)
	}

	return strings.TrimSpace(string(out)), nil
}

func (e *Executor) CommitAll(ctx context.Context, dir, message string) (string, error) {
	if _, err := e.exec.RunDir(ctx, dir, e.gitPath, "add", "-A"); err != nil {
		return "", fmt.Errorf("git add -A: %w", err)
	}
	if _, err := e.exec.RunDir(ctx, dir, e.gitPath, "commit", "-m", message); err != nil {
		return "", fmt.Errorf("git commit: %w", err)
	}
	return e.Head(ctx, dir)
}

func (e *Executor) CommitPaths(ctx context.Context, dir, message string, paths ...string) (string, error) {
	if len(paths) == 0 {
		return "", fmt.Errorf("commit paths: no paths given")
	}
	addArgs := append([]string{"add", "--"}, paths...)
	if _, err := e.exec.RunDir(ctx, dir, e.gitPath, addArgs...); err != nil {
		return "", fmt.Errorf("git add: %w", err)
	}
	commitArgs := append([]string{"commit", "-m", message, "--"}, paths...)
	if _, err := e.exec.RunDir(ctx, dir, e.gitPath, commitArgs...); err != nil {
		return "", fmt.Errorf("git commit: %w", err)
	}
	return e.Head(ctx, dir)
}

func (e *Executor) ResetHard(ctx context.Context, dir, ref string) error {
	if ref == "" {
		return fmt.Errorf("reset --hard: empty ref")
	}
	if _, err := e.exec.RunDir(ctx, dir, e.gitPath, "reset", "--hard", ref); err != nil {
		return fmt.Errorf("git reset --hard %s: %w", ref, err)
	}
	return nil
}

func (e *Executor) CleanUntracked(ctx context.Context, dir string, keep ...string) error {
	args := []string{"clean", "-fd"}
	for _, pattern := range keep {
		args = append(args, "-e", pattern)
	}
	if _, err := e.exec.RunDir(ctx, dir, e.gitPath, args...); err != nil {
		return fmt.Errorf("git clean: %w", err)
	}
	return nil
}

func (e *Executor) IsAncestor(ctx context.Context, dir, ancestor, descendant string) (bool, error) {
	_, err := e.exec.RunDir(ctx, dir, e.gitPath, "merge-base", "--is-ancestor", ancestor, descendant)
	if err != nil {
		// Exit 1 is the documented "not an ancestor" answer.
		if executil.ExitCode(err) == 1 {
			return false, nil
		}
		return false, fmt.Errorf("git merge-base: %w", err)
	}
	return true, nil
}

func (e *Executor) DiffStats(ctx context.Context, dir, from, to string) (files, additions, deletions int, err error) {
	out, err := e.exec.RunDir(ctx, dir, e.gitPath, "diff", "--shortstat", from, to)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("git diff: %w", err)
	}

	return parseDiffStats(string(out))
}

// parseDiffStats parses git diff --shortstat output.
// Example: " 3 files changed, 10 insertions(+), 5 deletions(-)"
func parseDiffStats(output string) (files, additions, deletions int, err error) {
	output = strings.TrimSpace(output)
	if output == "" {
		return 0, 0, 0, nil
	}

	// Parse files changed
	if idx := strings.Index(output, "file"); idx != -1 {
		numStr := strings.TrimSpace(output[:idx])
		files, _ = parseInt(numStr)
	}

	// Parse insertions
	if idx := strings.Index(output, "insertion"); idx != -1 {
		// Find the number before "insertion"
		start := strings.LastIndex(output[:idx], ",")
		if start != -1 {
			numStr := strings.TrimSpace(output[start+1 : idx])
			numStr = strings.Fields(numStr)[0]
			additions, _ = parseInt(numStr)
		}
	}

	// Parse deletions
	if idx := strings.Index(output, "deletion"); idx != -1 {
		// Find the number before "deletion"
		start := strings.LastIndex(output[:idx], ",")
		if start != -1 {
			numStr := strings.TrimSpace(output[start+1 : idx])
			numStr = strings.Fields(numStr)[0]
			deletions, _ = parseInt(numStr)
		}
	}

	return files, additions, deletions, nil
}

func parseInt(s string) (int, error) {
	var n int
	for _, c := range s {
		if c >= '0' && c <= '9' {
			n = n*10 + int(c-'0')
		}
	}
	return n, nil
}

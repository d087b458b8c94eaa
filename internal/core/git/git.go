// Package git provides the git operations the build loop depends on:
// inspecting state before and after an agent runs, committing on the agent's
// behalf when it forgot, and hard rollback to the pre-iteration commit.
package git

import "context"

// Git defines the git operations needed by the orchestrator.
type Git interface {
	// IsRepo reports whether dir is inside a git working tree.
	IsRepo(ctx context.Context, dir string) (bool, error)
	// Root returns the absolute path of the working tree root containing dir.
	Root(ctx context.Context, dir string) (string, error)
	// Head returns the full SHA of HEAD. Errors on a repo with no commits.
	Head(ctx context.Context, dir string) (string, error)
	// IsClean returns true if there are no uncommitted changes in dir.
	IsClean(ctx context.Context, dir string) (bool, error)
	// Branch returns the current branch name, or short commit SHA if in detached HEAD state.
	Branch(ctx context.Context, dir string) (string, error)
	// CommitAll stages everything and commits with the given message,
	// returning the new commit SHA.
	CommitAll(ctx context.Context, dir, message string) (string, error)
	// CommitPaths stages only the given paths and commits them, returning
	// the new commit SHA.
	CommitPaths(ctx context.Context, dir, message string, paths ...string) (string, error)
	// ResetHard discards all changes and moves the working tree to ref.
	ResetHard(ctx context.Context, dir, ref string) error
	// CleanUntracked removes untracked files and directories. Ignored files
	// survive, as do paths matching the keep patterns.
	CleanUntracked(ctx context.Context, dir string, keep ...string) error
	// IsAncestor reports whether ancestor is an ancestor of descendant.
	IsAncestor(ctx context.Context, dir, ancestor, descendant string) (bool, error)
	// DiffStats returns files changed, insertions, and deletions between two refs.
	DiffStats(ctx context.Context, dir, from, to string) (files, additions, deletions int, err error)
}

package git

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
)

// ErrNoChanges means the agent claimed success but HEAD did not move and the
// working tree is clean. There is nothing to commit, so the story must not be
// marked complete.
var ErrNoChanges = errors.New("agent produced no commit and no working tree changes")

// ReconcileResult describes how an iteration's work was committed.
type ReconcileResult struct {
	CommitSHA string
	// FallbackCommit is true when the orchestrator had to commit on the
	// agent's behalf.
	FallbackCommit bool
	FilesChanged   int
	Additions      int
	Deletions      int
}

// Committer reconciles git state after an agent run and rolls back failures.
type Committer struct {
	git  Git
	log  zerolog.Logger
	keep []string
}

// NewCommitter creates a Committer. The keep patterns name untracked paths
// that rollback must never delete, such as the orchestrator's own data dir.
func NewCommitter(g Git, log zerolog.Logger, keep ...string) *Committer {
	return &Committer{
		git:  g,
		log:  log.With().Str("component", "committer").Logger(),
		keep: keep,
	}
}

// Reconcile compares HEAD against headBefore after a successful agent run.
// An agent that committed is taken at its word; an agent that modified the
// tree without committing gets a fallback commit referencing the story; an
// agent that changed nothing is an error, because a success claim with no
// observable change must not complete a story.
func (c *Committer) Reconcile(ctx context.Context, dir, headBefore, storyID, title string) (ReconcileResult, error) {
	headAfter, err := c.git.Head(ctx, dir)
	if err != nil {
		return ReconcileResult{}, fmt.Errorf("read HEAD: %w", err)
	}

	res := ReconcileResult{CommitSHA: headAfter}

	if headAfter == headBefore {
		clean, err := c.git.IsClean(ctx, dir)
		if err != nil {
			return ReconcileResult{}, fmt.Errorf("check working tree: %w", err)
		}
		if clean {
			return ReconcileResult{}, ErrNoChanges
		}

		c.log.Warn().Str("story", storyID).Msg("agent did not commit; creating fallback commit")
		sha, err := c.git.CommitAll(ctx, dir, fmt.Sprintf("%s: %s (auto-commit)", storyID, title))
		if err != nil {
			return ReconcileResult{}, fmt.Errorf("fallback commit: %w", err)
		}
		res.CommitSHA = sha
		res.FallbackCommit = true
	} else {
		clean, err := c.git.IsClean(ctx, dir)
		if err != nil {
			return ReconcileResult{}, fmt.Errorf("check working tree: %w", err)
		}
		if !clean {
			c.log.Warn().Str("story", storyID).Msg("agent committed but left uncommitted changes behind")
		}
	}

	files, add, del, err := c.git.DiffStats(ctx, dir, headBefore, res.CommitSHA)
	if err != nil {
		c.log.Debug().Err(err).Msg("diff stats unavailable")
	} else {
		res.FilesChanged = files
		res.Additions = add
		res.Deletions = del
	}

	return res, nil
}

// Rollback hard-resets the working tree to headBefore and removes untracked
// files the agent left behind, so a later fallback commit cannot sweep stale
// junk into an unrelated story. Ignored files and the keep patterns survive.
// The exclusivity lock brackets the span from checkpoint to rollback, so
// headBefore is still the commit this run started the iteration from.
func (c *Committer) Rollback(ctx context.Context, dir, headBefore string) error {
	c.log.Info().Str("target", shortSHA(headBefore)).Msg("rolling back working tree")
	if err := c.git.ResetHard(ctx, dir, headBefore); err != nil {
		return fmt.Errorf("rollback to %s: %w", headBefore, err)
	}
	if err := c.git.CleanUntracked(ctx, dir, c.keep...); err != nil {
		return fmt.Errorf("clean after rollback: %w", err)
	}
	return nil
}

func shortSHA(sha string) string {
	if len(sha) > 8 {
		return sha[:8]
	}
	return sha
}

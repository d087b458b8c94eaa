package doctor

import (
	"context"
	"fmt"

	"github.com/gafferworks/gaffer/internal/core/git"
	"github.com/gafferworks/gaffer/internal/core/runlock"
)

// RepoCheck verifies the working tree is a git repository in a state a run
// can start from.
type RepoCheck struct {
	git      git.Git
	workDir  string
	lockPath string
}

// NewRepoCheck creates a repository state check. lockPath may be empty to
// skip the lock inspection.
func NewRepoCheck(g git.Git, workDir, lockPath string) *RepoCheck {
	return &RepoCheck{git: g, workDir: workDir, lockPath: lockPath}
}

func (c *RepoCheck) Name() string {
	return "Repository"
}

func (c *RepoCheck) Run(ctx context.Context) Result {
	result := Result{Name: c.Name()}

	isRepo, err := c.git.IsRepo(ctx, c.workDir)
	if err != nil {
		result.Items = append(result.Items, CheckItem{
			Label:  "git repository",
			Status: StatusFail,
			Detail: fmt.Sprintf("cannot inspect: %v", err),
		})
		return result
	}
	if !isRepo {
		result.Items = append(result.Items, CheckItem{
			Label:  "git repository",
			Status: StatusFail,
			Detail: "working tree is not inside a git repository; commit and rollback need one",
		})
		return result
	}
	result.Items = append(result.Items, CheckItem{
		Label:  "git repository",
		Status: StatusPass,
		Detail: c.workDir,
	})

	clean, err := c.git.IsClean(ctx, c.workDir)
	switch {
	case err != nil:
		result.Items = append(result.Items, CheckItem{
			Label:  "working tree",
			Status: StatusWarn,
			Detail: fmt.Sprintf("cannot check status: %v", err),
		})
	case !clean:
		result.Items = append(result.Items, CheckItem{
			Label:  "working tree",
			Status: StatusWarn,
			Detail: "uncommitted changes present; a rollback would discard them",
		})
	default:
		result.Items = append(result.Items, CheckItem{
			Label:  "working tree",
			Status: StatusPass,
			Detail: "clean",
		})
	}

	if c.lockPath != "" {
		result.Items = append(result.Items, c.checkLock())
	}

	return result
}

func (c *RepoCheck) checkLock() CheckItem {
	token, ok, alive := runlock.Inspect(c.lockPath)
	switch {
	case !ok:
		return CheckItem{
			Label:  "run lock",
			Status: StatusPass,
			Detail: "free",
		}
	case alive:
		return CheckItem{
			Label:  "run lock",
			Status: StatusWarn,
			Detail: fmt.Sprintf("held by PID %d on %s since %s", token.PID, token.Hostname, token.AcquiredAt.Format("15:04:05")),
		}
	default:
		return CheckItem{
			Label:  "run lock",
			Status: StatusWarn,
			Detail: fmt.Sprintf("stale lock from dead PID %d; the next run will reclaim it", token.PID),
		}
	}
}

// Package gaffer wires the core packages into the build loop: story
// selection, agent dispatch, verification, commit or rollback, checkpointing,
// and run reporting. Commands consume the App type instead of cherry-picking
// raw dependencies.
package gaffer

import (
	"fmt"
	"os"
	"path/filepath"
)

// DataDirName is the orchestrator's folder inside the plan folder.
const DataDirName = ".gaffer"

// Paths resolves every file the orchestrator keeps inside the plan folder's
// data dir.
type Paths struct {
	PlanDir string
}

// NewPaths creates path helpers rooted at the plan folder.
func NewPaths(planDir string) Paths {
	return Paths{PlanDir: planDir}
}

// DataDir returns the .gaffer directory path.
func (p Paths) DataDir() string {
	return filepath.Join(p.PlanDir, DataDirName)
}

// CheckpointFile is the crash-safe resume point.
func (p Paths) CheckpointFile() string {
	return filepath.Join(p.DataDir(), "checkpoint.json")
}

// StatusFile is the live run status other processes watch.
func (p Paths) StatusFile() string {
	return filepath.Join(p.DataDir(), "status.json")
}

// ActivityFile is the append-only human-readable run log.
func (p Paths) ActivityFile() string {
	return filepath.Join(p.DataDir(), "activity.log")
}

// LockFile guards the plan folder against concurrent runs.
func (p Paths) LockFile() string {
	return filepath.Join(p.DataDir(), "gaffer.lock")
}

// LogsDir holds per-iteration agent output.
func (p Paths) LogsDir() string {
	return filepath.Join(p.DataDir(), "logs")
}

// IterationLog names one iteration's agent output file.
func (p Paths) IterationLog(iteration int, agentName string) string {
	return filepath.Join(p.LogsDir(), fmt.Sprintf("iter-%04d-%s.log", iteration, agentName))
}

// RunsDir holds per-run reports.
func (p Paths) RunsDir() string {
	return filepath.Join(p.DataDir(), "runs")
}

// RunReport names one run's report file.
func (p Paths) RunReport(runID string) string {
	return filepath.Join(p.RunsDir(), fmt.Sprintf("run-%s.md", runID))
}

// ConfigFile is the plan folder's gaffer.yaml.
func (p Paths) ConfigFile() string {
	return filepath.Join(p.PlanDir, "gaffer.yaml")
}

// Ensure creates the data dir tree and drops a `*` gitignore inside it so
// `git add -A`, status checks, and `git clean` never see orchestrator
// metadata.
func (p Paths) Ensure() error {
	for _, dir := range []string{p.DataDir(), p.LogsDir(), p.RunsDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create data dir: %w", err)
		}
	}

	gitignore := filepath.Join(p.DataDir(), ".gitignore")
	if _, err := os.Stat(gitignore); os.IsNotExist(err) {
		if err := os.WriteFile(gitignore, []byte("*\n"), 0o644); err != nil {
			return fmt.Errorf("write data dir gitignore: %w", err)
		}
	}
	return nil
}

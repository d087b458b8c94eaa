package gaffer

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gafferworks/gaffer/internal/core/agent"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func reportFixture() *RunSummary {
	return &RunSummary{
		RunID:            "3f2a9c1e",
		Outcome:          RunCompleted,
		Detail:           "all stories complete",
		StoriesCompleted: []string{"US-001", "US-002"},
		Iterations:       3,
		Rollbacks:        1,
		AgentsTried:      []string{"claude"},
		Tokens:           agent.TokenUsage{Input: 900, Output: 200},
		HeadBefore:       "aaaa1111",
		HeadAfter:        "bbbb2222",
		StartedAt:        time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC),
		Duration:         9 * time.Minute,
		Results: []IterationResult{
			{Iteration: 1, StoryID: "US-001", Agent: "claude", Outcome: OutcomeVerifyFailure,
				Detail: "go test ./... (exit status 1)", Duration: 2 * time.Minute},
			{Iteration: 2, StoryID: "US-001", Agent: "claude", Outcome: OutcomeSuccess,
				CommitSHA: "cccc3333", FilesChanged: 4, Duration: 3 * time.Minute},
			{Iteration: 3, StoryID: "US-002", Agent: "claude", Outcome: OutcomeSuccess,
				CommitSHA: "dddd4444", FilesChanged: 2, Duration: 4 * time.Minute},
		},
	}
}

func TestReportService_WriteAndRender(t *testing.T) {
	paths := NewPaths(t.TempDir())
	svc := NewReportService(paths, zerolog.Nop())

	path, err := svc.Write(reportFixture())
	require.NoError(t, err)
	assert.Equal(t, paths.RunReport("3f2a9c1e"), path)

	out, err := svc.Render(path, true)
	require.NoError(t, err)

	assert.Contains(t, out, "# Gaffer Run Summary")
	assert.Contains(t, out, "- Run ID: 3f2a9c1e")
	assert.Contains(t, out, "- Outcome: completed")
	assert.Contains(t, out, "- Started: 2026-03-14T09:00:00Z")
	assert.Contains(t, out, "- Ended: 2026-03-14T09:09:00Z")
	assert.Contains(t, out, "- Completed: US-001, US-002")
	assert.Contains(t, out, "- Failed: (none)")
	assert.Contains(t, out, "| 1 | US-001 | claude | verify_failure | 2m0s | 0 | 0/0 |")
	assert.Contains(t, out, "| 2 | US-001 | claude | success | 3m0s | 4 | 0/0 |")
	assert.Contains(t, out, "## Failures")
	assert.Contains(t, out, "- Iteration 1 (US-001, verify_failure): go test ./... (exit status 1)")
	assert.Contains(t, out, "- Total tokens: 1100")
}

func TestReportService_LatestPicksNewest(t *testing.T) {
	paths := NewPaths(t.TempDir())
	svc := NewReportService(paths, zerolog.Nop())

	older := reportFixture()
	older.RunID = "aaaa0000"
	path1, err := svc.Write(older)
	require.NoError(t, err)

	newer := reportFixture()
	newer.RunID = "bbbb0000"
	path2, err := svc.Write(newer)
	require.NoError(t, err)

	// Separate the mtimes; some filesystems are coarse.
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(path1, past, past))

	latest, err := svc.Latest()
	require.NoError(t, err)
	assert.Equal(t, path2, latest)
}

func TestReportService_Find(t *testing.T) {
	paths := NewPaths(t.TempDir())
	svc := NewReportService(paths, zerolog.Nop())

	a := reportFixture()
	a.RunID = "abc11111"
	_, err := svc.Write(a)
	require.NoError(t, err)

	b := reportFixture()
	b.RunID = "abd22222"
	_, err = svc.Write(b)
	require.NoError(t, err)

	path, err := svc.Find("abc")
	require.NoError(t, err)
	assert.Equal(t, paths.RunReport("abc11111"), path)

	_, err = svc.Find("ab")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ambiguous")

	_, err = svc.Find("zzz")
	require.ErrorIs(t, err, ErrNoReports)
}

func TestReportService_NoReports(t *testing.T) {
	svc := NewReportService(NewPaths(t.TempDir()), zerolog.Nop())

	_, err := svc.Latest()
	require.ErrorIs(t, err, ErrNoReports)
}

func TestReportService_RenderMissingFile(t *testing.T) {
	paths := NewPaths(t.TempDir())
	svc := NewReportService(paths, zerolog.Nop())

	_, err := svc.Render(filepath.Join(paths.RunsDir(), "run-nope.md"), true)
	require.Error(t, err)
}

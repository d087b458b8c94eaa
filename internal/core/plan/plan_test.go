package plan

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writePlan(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "PLAN.md")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const samplePlan = `# Demo Plan

Some intro text.

### [ ] US-001: Add login form

Acceptance:
- form renders
- submit posts credentials

### [x] US-002: Wire session storage

### [ ] API-3: Expose health endpoint
`

func TestParse(t *testing.T) {
	path := writePlan(t, samplePlan)

	doc, err := Parse(path)
	require.NoError(t, err)
	require.Len(t, doc.Stories, 3)

	first := doc.Stories[0]
	assert.Equal(t, "US-001", first.ID)
	assert.Equal(t, "Add login form", first.Title)
	assert.False(t, first.Done)
	assert.Equal(t, 5, first.Line)
	assert.Contains(t, first.Body, "form renders")

	assert.True(t, doc.Stories[1].Done)
	assert.Equal(t, "API-3", doc.Stories[2].ID)

	pending, done := doc.Counts()
	assert.Equal(t, 2, pending)
	assert.Equal(t, 1, done)
}

func TestParse_UppercaseCheckbox(t *testing.T) {
	path := writePlan(t, "### [X] US-001: Done work\n### [ ] US-002: Next\n")

	doc, err := Parse(path)
	require.NoError(t, err)
	assert.True(t, doc.Stories[0].Done)
	assert.False(t, doc.Stories[1].Done)
}

func TestParse_MissingFile(t *testing.T) {
	_, err := Parse(filepath.Join(t.TempDir(), "nope.md"))
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoStories, "a missing plan must not look like an empty one")
}

func TestParse_NoStories(t *testing.T) {
	path := writePlan(t, "# Just prose\n\nNo checkboxes here.\n")

	_, err := Parse(path)
	require.ErrorIs(t, err, ErrNoStories)
}

func TestParse_InvalidStoryID(t *testing.T) {
	path := writePlan(t, "### [ ] notes: remember things\n")

	_, err := Parse(path)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidStoryID)
	assert.Contains(t, err.Error(), ":1:", "error should name the offending line")
}

func TestParse_DuplicateStoryID(t *testing.T) {
	path := writePlan(t, "### [ ] US-001: First\n### [ ] US-001: Again\n")

	_, err := Parse(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate story id")
}

func TestNextPending(t *testing.T) {
	t.Run("first pending in order", func(t *testing.T) {
		doc := &Document{Stories: []Story{
			{ID: "US-001", Done: true},
			{ID: "US-002", Done: false},
			{ID: "US-003", Done: false},
		}}

		s, ok := doc.NextPending()
		require.True(t, ok)
		assert.Equal(t, "US-002", s.ID)
	})

	t.Run("all done", func(t *testing.T) {
		doc := &Document{Stories: []Story{{ID: "US-001", Done: true}}}

		_, ok := doc.NextPending()
		assert.False(t, ok)
	})
}

func TestMarkComplete(t *testing.T) {
	path := writePlan(t, samplePlan)

	require.NoError(t, MarkComplete(path, "US-001"))

	doc, err := Parse(path)
	require.NoError(t, err)
	s, ok := doc.Get("US-001")
	require.True(t, ok)
	assert.True(t, s.Done)

	// Everything except the flipped checkbox is untouched.
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "### [x] US-001: Add login form")
	assert.Contains(t, string(data), "- form renders")
	assert.Contains(t, string(data), "### [ ] API-3: Expose health endpoint")
}

func TestMarkComplete_AlreadyComplete(t *testing.T) {
	path := writePlan(t, samplePlan)

	err := MarkComplete(path, "US-002")
	require.ErrorIs(t, err, ErrAlreadyComplete)
}

func TestMarkComplete_NotFound(t *testing.T) {
	path := writePlan(t, samplePlan)

	err := MarkComplete(path, "US-999")
	require.ErrorIs(t, err, ErrStoryNotFound)
}

func TestMarkComplete_RejectsInvalidIDs(t *testing.T) {
	ids := []string{
		"",
		"us-001",
		"US001",
		"US-",
		"-001",
		"US-001; rm -rf /",
		"); rm -rf /; (",
		".*",
		"US-001|x",
		"US-001\n### [x] US-002: fake",
	}

	for _, id := range ids {
		t.Run(id, func(t *testing.T) {
			// Nonexistent path proves validation happens before any file IO.
			err := MarkComplete("/nonexistent/plan.md", id)
			require.ErrorIs(t, err, ErrInvalidStoryID)
		})
	}
}

func TestMarkComplete_RelocatesByID(t *testing.T) {
	path := writePlan(t, samplePlan)

	doc, err := Parse(path)
	require.NoError(t, err)
	target, ok := doc.Get("API-3")
	require.True(t, ok)
	require.Equal(t, 13, target.Line)

	// Concurrent edit moves the story before the mark lands.
	reordered := `### [ ] API-3: Expose health endpoint
### [ ] US-001: Add login form
### [x] US-002: Wire session storage
`
	require.NoError(t, os.WriteFile(path, []byte(reordered), 0o644))

	require.NoError(t, MarkComplete(path, "API-3"))

	doc, err = Parse(path)
	require.NoError(t, err)
	s, ok := doc.Get("API-3")
	require.True(t, ok)
	assert.True(t, s.Done)
	s, ok = doc.Get("US-001")
	require.True(t, ok)
	assert.False(t, s.Done, "only the requested story flips")
}

func TestValidateStoryID(t *testing.T) {
	assert.NoError(t, ValidateStoryID("US-001"))
	assert.NoError(t, ValidateStoryID("FEAT-42"))
	assert.Error(t, ValidateStoryID("feat-42"))
	assert.Error(t, ValidateStoryID("US_001"))
}

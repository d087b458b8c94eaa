// Package plan parses and mutates checkbox-markdown plan documents. It is the
// sole authority on story status; nothing else writes the plan file.
package plan

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
)

var (
	// ErrNoStories means the document parsed but contained no story headings.
	// Distinct from a document whose stories are all complete, which is a
	// normal terminal state rather than an error.
	ErrNoStories = errors.New("no stories found in plan document")

	// ErrStoryNotFound means no heading carries the requested story ID.
	ErrStoryNotFound = errors.New("story not found")

	// ErrAlreadyComplete means the story's checkbox is already checked.
	ErrAlreadyComplete = errors.New("story already complete")

	// ErrInvalidStoryID means the ID does not match the required format.
	ErrInvalidStoryID = errors.New("invalid story id")
)

// headingRE matches story headings: "### [ ] ID: Title" or "### [x] ID: Title".
// The ID field is validated separately so malformed IDs fail loudly instead of
// silently dropping a story.
var headingRE = regexp.MustCompile(`^###\s+\[([ xX])\]\s+(\S+):\s*(.*)$`)

// storyIDRE is the required story ID format.
var storyIDRE = regexp.MustCompile(`^[A-Z]+-[0-9]+$`)

// ValidateStoryID rejects IDs that do not match the strict format. Every
// mutation validates up front so untrusted IDs never reach a shell, a regex,
// or the plan file.
func ValidateStoryID(id string) error {
	if !storyIDRE.MatchString(id) {
		return fmt.Errorf("%w: %q (want letters-dash-digits, e.g. US-001)", ErrInvalidStoryID, id)
	}
	return nil
}

// Story is one unit of backlog work.
type Story struct {
	ID    string
	Title string
	Done  bool
	// Line is the 1-based heading line number, valid only for the read that
	// produced it. Mutations relocate by ID, never by line.
	Line int
	// Body is the text between this heading and the next one, typically
	// acceptance criteria. Used for prompt rendering.
	Body string
}

// Document is an ordered story list parsed from one plan file.
type Document struct {
	Path    string
	Stories []Story
}

// Parse reads and parses the plan document at path. A missing or unreadable
// file is a hard error; callers must never confuse it with an empty backlog.
func Parse(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read plan document: %w", err)
	}

	doc := &Document{Path: path}
	seen := map[string]int{}

	lines := strings.Split(string(data), "\n")
	for i, line := range lines {
		m := headingRE.FindStringSubmatch(line)
		if m == nil {
			continue
		}

		lineNo := i + 1
		id := m[2]
		if err := ValidateStoryID(id); err != nil {
			return nil, fmt.Errorf("%s:%d: story heading: %w", path, lineNo, err)
		}
		if prev, dup := seen[id]; dup {
			return nil, fmt.Errorf("%s:%d: duplicate story id %q (first at line %d)", path, lineNo, id, prev)
		}
		seen[id] = lineNo

		doc.Stories = append(doc.Stories, Story{
			ID:    id,
			Title: strings.TrimSpace(m[3]),
			Done:  m[1] == "x" || m[1] == "X",
			Line:  lineNo,
			Body:  storyBody(lines, i),
		})
	}

	if len(doc.Stories) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoStories)
	}
	return doc, nil
}

// storyBody collects the lines between the heading at index i and the next
// heading (or EOF).
func storyBody(lines []string, i int) string {
	var body []string
	for _, line := range lines[i+1:] {
		if strings.HasPrefix(line, "### ") {
			break
		}
		body = append(body, line)
	}
	return strings.TrimSpace(strings.Join(body, "\n"))
}

// NextPending returns the first pending story in document order. Selection is
// deterministic so interrupted runs resume on the same story.
func (d *Document) NextPending() (Story, bool) {
	for _, s := range d.Stories {
		if !s.Done {
			return s, true
		}
	}
	return Story{}, false
}

// Get returns the story with the given ID.
func (d *Document) Get(id string) (Story, bool) {
	for _, s := range d.Stories {
		if s.ID == id {
			return s, true
		}
	}
	return Story{}, false
}

// Counts returns how many stories are pending and done.
func (d *Document) Counts() (pending, done int) {
	for _, s := range d.Stories {
		if s.Done {
			done++
		} else {
			pending++
		}
	}
	return pending, done
}

// MarkComplete flips the story's checkbox from "[ ]" to "[x]". The file is
// re-read and the story relocated by ID as a fixed string, so concurrent
// edits move lines without corrupting the wrong one. The write goes through a
// temp file and rename in the same directory.
func MarkComplete(path, storyID string) error {
	if err := ValidateStoryID(storyID); err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read plan document: %w", err)
	}

	lines := strings.Split(string(data), "\n")
	found := false
	for i, line := range lines {
		m := headingRE.FindStringSubmatch(line)
		if m == nil || m[2] != storyID {
			continue
		}
		if m[1] == "x" || m[1] == "X" {
			return fmt.Errorf("%w: %s", ErrAlreadyComplete, storyID)
		}
		// Flip only the checkbox; the rest of the line stays byte-identical.
		lines[i] = strings.Replace(line, "[ ]", "[x]", 1)
		found = true
		break
	}

	if !found {
		return fmt.Errorf("%w: %s in %s", ErrStoryNotFound, storyID, path)
	}

	return writeAtomic(path, []byte(strings.Join(lines, "\n")))
}

// writeAtomic writes data to path via a temp file in the same directory plus
// rename, preserving the original file mode.
func writeAtomic(path string, data []byte) error {
	mode := os.FileMode(0o644)
	if info, err := os.Stat(path); err == nil {
		mode = info.Mode().Perm()
	}

	tmp := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+".tmp")
	if err := os.WriteFile(tmp, data, mode); err != nil {
		return fmt.Errorf("write temp plan file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace plan file: %w", err)
	}
	return nil
}

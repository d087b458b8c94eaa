package plan

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
)

// ErrNoDocument means no file in the plan folder matched any discovery pattern.
var ErrNoDocument = errors.New("no plan document found")

// DefaultPatterns are tried in order when discovering the plan document
// inside a plan folder.
var DefaultPatterns = []string{
	"PLAN.md",
	"plan.md",
	"BACKLOG.md",
	"backlog.md",
	"*.plan.md",
}

// Discover locates the plan document inside folder by trying each glob
// pattern in order. The first pattern with exactly one match wins; a pattern
// matching more than one file is an ambiguity error rather than a guess.
func Discover(folder string, patterns []string) (string, error) {
	if len(patterns) == 0 {
		patterns = DefaultPatterns
	}

	for _, pattern := range patterns {
		matches, err := doublestar.FilepathGlob(filepath.Join(folder, pattern))
		if err != nil {
			return "", fmt.Errorf("glob %q: %w", pattern, err)
		}
		sort.Strings(matches)

		switch len(matches) {
		case 0:
			continue
		case 1:
			return matches[0], nil
		default:
			return "", fmt.Errorf("pattern %q matches multiple plan documents in %s: %s",
				pattern, folder, strings.Join(matches, ", "))
		}
	}

	return "", fmt.Errorf("%w in %s (tried: %s)", ErrNoDocument, folder, strings.Join(patterns, ", "))
}

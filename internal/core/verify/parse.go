package verify

import (
	"regexp"
	"strconv"
	"strings"
)

// Counts are pass/fail tallies parsed from a test runner's output.
type Counts struct {
	Passed int
	Failed int
}

var (
	// "12 passed", "3 tests passed", "5 passing"
	passedRE = regexp.MustCompile(`(?i)\b(\d+)\s+(?:tests?\s+)?pass(?:ed|ing)\b`)
	// "2 failed", "1 test failed", "4 failing"
	failedRE = regexp.MustCompile(`(?i)\b(\d+)\s+(?:tests?\s+)?fail(?:ed|ing)\b`)
	// go test package lines: "ok  	pkg/foo	0.012s" / "FAIL	pkg/bar	0.2s"
	goOkRE   = regexp.MustCompile(`(?m)^ok\s+\S+\s+[\d.]+s`)
	goFailRE = regexp.MustCompile(`(?m)^FAIL\s+\S+`)
)

// ParseCounts extracts pass/fail counts from test output. Explicit "N
// passed/failed" summaries win; otherwise go test's per-package lines are
// tallied. Returns nil when the output carries no recognizable counts.
func ParseCounts(output string) *Counts {
	if output == "" {
		return nil
	}

	var counts Counts
	found := false

	if m := passedRE.FindStringSubmatch(output); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			counts.Passed = n
			found = true
		}
	}
	if m := failedRE.FindStringSubmatch(output); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			counts.Failed = n
			found = true
		}
	}
	if found {
		return &counts
	}

	okLines := len(goOkRE.FindAllString(output, -1))
	failLines := len(goFailRE.FindAllString(output, -1))
	if okLines > 0 || failLines > 0 {
		return &Counts{Passed: okLines, Failed: failLines}
	}

	return nil
}

// helpMarkers are phrases common to usage/help screens.
var helpMarkers = []string{
	"usage:",
	"--help",
	"-h, --help",
	"show help",
	"show this help",
	"options:",
}

// realRunMarkers indicate genuine build or test activity.
var realRunMarkers = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(pass|fail|error).*\d`),
	regexp.MustCompile(`(?i)test.*\([\d.]+s\)`),
	regexp.MustCompile(`✓|✗`),
	regexp.MustCompile(`(?i)ok\s+\S+\s+[\d.]+s`),
	regexp.MustCompile(`(?i)test suites?:\s*\d+`),
}

// IsHelpOutput detects a command that printed its usage screen instead of
// doing real work, the classic signature of a malformed verification
// command that still exits 0.
func IsHelpOutput(output string) bool {
	if output == "" {
		return false
	}

	for _, pattern := range realRunMarkers {
		if pattern.MatchString(output) {
			return false
		}
	}

	lower := strings.ToLower(output)
	hits := 0
	for _, marker := range helpMarkers {
		if strings.Contains(lower, marker) {
			hits++
		}
	}
	return hits >= 2
}

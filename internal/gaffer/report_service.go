package gaffer

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/glamour"
	"github.com/rs/zerolog"
	"golang.org/x/term"
)

// ErrNoReports means the runs directory holds nothing to show.
var ErrNoReports = errors.New("no run reports found")

// ReportService writes per-run markdown reports and renders them for
// the terminal.
type ReportService struct {
	paths Paths
	log   zerolog.Logger
}

func NewReportService(paths Paths, log zerolog.Logger) *ReportService {
	return &ReportService{
		paths: paths,
		log:   log.With().Str("component", "report").Logger(),
	}
}

// Write stores the run report under runs/ and returns its path.
func (r *ReportService) Write(sum *RunSummary) (string, error) {
	path := r.paths.RunReport(sum.RunID)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("create runs dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(renderSummary(sum)), 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

// Latest returns the most recently written report path.
func (r *ReportService) Latest() (string, error) {
	names, err := r.reportNames()
	if err != nil {
		return "", err
	}

	var (
		best     string
		bestTime time.Time
	)
	for _, name := range names {
		info, err := os.Stat(filepath.Join(r.paths.RunsDir(), name))
		if err != nil {
			continue
		}
		if best == "" || info.ModTime().After(bestTime) {
			best = name
			bestTime = info.ModTime()
		}
	}
	if best == "" {
		return "", ErrNoReports
	}
	return filepath.Join(r.paths.RunsDir(), best), nil
}

// Find returns the report whose run ID starts with idPrefix.
func (r *ReportService) Find(idPrefix string) (string, error) {
	names, err := r.reportNames()
	if err != nil {
		return "", err
	}

	var matches []string
	for _, name := range names {
		id := strings.TrimSuffix(strings.TrimPrefix(name, "run-"), ".md")
		if strings.HasPrefix(id, idPrefix) {
			matches = append(matches, name)
		}
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("%w matching %q", ErrNoReports, idPrefix)
	case 1:
		return filepath.Join(r.paths.RunsDir(), matches[0]), nil
	default:
		return "", fmt.Errorf("run id %q is ambiguous (%d reports match)", idPrefix, len(matches))
	}
}

// Render reads a report and renders it for the terminal. plain skips
// markdown styling; styling failures fall back to the raw markdown.
func (r *ReportService) Render(path string, plain bool) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read report: %w", err)
	}
	if plain {
		return string(data), nil
	}

	width := 100
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 20 {
		width = w
	}

	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		r.log.Debug().Err(err).Msg("markdown renderer unavailable")
		return string(data), nil
	}
	out, err := renderer.Render(string(data))
	if err != nil {
		r.log.Debug().Err(err).Msg("markdown render failed")
		return string(data), nil
	}
	return out, nil
}

func (r *ReportService) reportNames() ([]string, error) {
	entries, err := os.ReadDir(r.paths.RunsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoReports
		}
		return nil, fmt.Errorf("read runs dir: %w", err)
	}

	var names []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasPrefix(name, "run-") || !strings.HasSuffix(name, ".md") {
			continue
		}
		names = append(names, name)
	}
	if len(names) == 0 {
		return nil, ErrNoReports
	}
	return names, nil
}

func renderSummary(sum *RunSummary) string {
	var b strings.Builder

	b.WriteString("# Gaffer Run Summary\n\n")
	fmt.Fprintf(&b, "- Run ID: %s\n", sum.RunID)
	fmt.Fprintf(&b, "- Outcome: %s\n", sum.Outcome)
	if sum.Detail != "" {
		fmt.Fprintf(&b, "- Detail: %s\n", sum.Detail)
	}
	fmt.Fprintf(&b, "- Started: %s\n", sum.StartedAt.UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "- Ended: %s\n", sum.StartedAt.Add(sum.Duration).UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "- Duration: %s\n", sum.Duration.Round(time.Second))
	fmt.Fprintf(&b, "- Iterations: %d\n\n", sum.Iterations)

	b.WriteString("## Git\n\n")
	fmt.Fprintf(&b, "- Head (before): %s\n", orUnknown(sum.HeadBefore))
	fmt.Fprintf(&b, "- Head (after): %s\n\n", orUnknown(sum.HeadAfter))

	b.WriteString("## Stories\n\n")
	fmt.Fprintf(&b, "- Completed: %s\n", orNone(sum.StoriesCompleted))
	fmt.Fprintf(&b, "- Failed: %s\n\n", orNone(sum.StoriesFailed))

	b.WriteString("## Iterations\n\n")
	if len(sum.Results) == 0 {
		b.WriteString("- (none)\n\n")
	} else {
		b.WriteString("| # | Story | Agent | Outcome | Duration | Files | Tokens in/out |\n")
		b.WriteString("|---|-------|-------|---------|----------|-------|---------------|\n")
		for _, res := range sum.Results {
			fmt.Fprintf(&b, "| %d | %s | %s | %s | %s | %d | %d/%d |\n",
				res.Iteration, res.StoryID, res.Agent, res.Outcome,
				res.Duration.Round(time.Second), res.FilesChanged,
				res.Tokens.Input, res.Tokens.Output)
		}
		b.WriteString("\n")
	}

	var failures []IterationResult
	for _, res := range sum.Results {
		if res.Outcome != OutcomeSuccess && res.Detail != "" {
			failures = append(failures, res)
		}
	}
	if len(failures) > 0 {
		b.WriteString("## Failures\n\n")
		for _, res := range failures {
			fmt.Fprintf(&b, "- Iteration %d (%s, %s): %s\n", res.Iteration, res.StoryID, res.Outcome, res.Detail)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Agents\n\n")
	fmt.Fprintf(&b, "- Tried: %s\n\n", strings.Join(sum.AgentsTried, ", "))

	b.WriteString("## Token Usage\n\n")
	fmt.Fprintf(&b, "- Input tokens: %d\n", sum.Tokens.Input)
	fmt.Fprintf(&b, "- Output tokens: %d\n", sum.Tokens.Output)
	fmt.Fprintf(&b, "- Total tokens: %d\n", sum.Tokens.Total())

	return b.String()
}

func orUnknown(s string) string {
	if s == "" {
		return "(unknown)"
	}
	return s
}

func orNone(list []string) string {
	if len(list) == 0 {
		return "(none)"
	}
	return strings.Join(list, ", ")
}

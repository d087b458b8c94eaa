package gaffer

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gafferworks/gaffer/internal/core/plan"
	"github.com/gafferworks/gaffer/pkg/tmpl"
)

//go:embed templates/prompt.md
var defaultBuildPrompt string

//go:embed templates/prompt_retry.md
var defaultRetryPrompt string

// Prompt template files a plan folder may provide to override the
// embedded defaults.
const (
	PromptFile      = "prompt.md"
	RetryPromptFile = "prompt_retry.md"
)

// PromptVars is the fixed schema prompt templates render against.
// Substitution is single-pass; values are never re-expanded.
type PromptVars struct {
	StoryID    string
	StoryTitle string
	StoryBlock string
	PlanPath   string
	Iteration  int

	// Retry context, zero on first attempts.
	FailureContext   string
	PreviousAttempts string
	RetryAttempt     int
	RetryMax         int
}

// PromptRenderer renders agent prompts from plan folder templates,
// falling back to the embedded defaults.
type PromptRenderer struct {
	planDir string
}

func NewPromptRenderer(planDir string) *PromptRenderer {
	return &PromptRenderer{planDir: planDir}
}

// Build renders the first-attempt prompt for a story.
func (p *PromptRenderer) Build(vars PromptVars) (string, error) {
	text, ok, err := p.planTemplate(PromptFile)
	if err != nil {
		return "", err
	}
	if !ok {
		text = defaultBuildPrompt
	}
	return p.render(PromptFile, text, vars)
}

// Retry renders the prompt for a story that already failed. A plan
// folder that customizes prompt.md but not prompt_retry.md retries
// with its own build prompt rather than the embedded retry default.
func (p *PromptRenderer) Retry(vars PromptVars) (string, error) {
	name := RetryPromptFile
	text, ok, err := p.planTemplate(RetryPromptFile)
	if err != nil {
		return "", err
	}
	if !ok {
		name = PromptFile
		text, ok, err = p.planTemplate(PromptFile)
		if err != nil {
			return "", err
		}
	}
	if !ok {
		name = RetryPromptFile
		text = defaultRetryPrompt
	}
	return p.render(name, text, vars)
}

func (p *PromptRenderer) render(name, text string, vars PromptVars) (string, error) {
	out, err := tmpl.Render(text, vars)
	if err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return out, nil
}

func (p *PromptRenderer) planTemplate(name string) (string, bool, error) {
	path := filepath.Join(p.planDir, name)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("read %s: %w", path, err)
	}
	return string(data), true, nil
}

// storyBlock reconstructs the story's plan chunk: the heading line plus
// its body, so a custom template can show the story with {{ .StoryBlock }}
// alone.
func storyBlock(story plan.Story) string {
	head := fmt.Sprintf("### [ ] %s: %s", story.ID, story.Title)
	if story.Body == "" {
		return head
	}
	return head + "\n\n" + story.Body
}

package gaffer

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gafferworks/gaffer/internal/core/config"
)

//go:embed templates/gaffer.yaml
var starterConfig []byte

// Scaffold writes a starter config and the default prompt templates into
// the plan folder, creating it if needed. Existing files are kept unless
// force is set; the returned names are the files actually written.
func Scaffold(planDir string, force bool) ([]string, error) {
	if err := os.MkdirAll(planDir, 0o755); err != nil {
		return nil, fmt.Errorf("create plan folder: %w", err)
	}

	files := []struct {
		name string
		body []byte
	}{
		{config.FileName, starterConfig},
		{PromptFile, []byte(defaultBuildPrompt)},
		{RetryPromptFile, []byte(defaultRetryPrompt)},
	}

	var written []string
	for _, f := range files {
		path := filepath.Join(planDir, f.name)
		if !force {
			if _, err := os.Stat(path); err == nil {
				continue
			}
		}
		if err := os.WriteFile(path, f.body, 0o644); err != nil {
			return written, fmt.Errorf("write %s: %w", f.name, err)
		}
		written = append(written, f.name)
	}

	return written, nil
}

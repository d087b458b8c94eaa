// Package commands implements the gaffer CLI commands.
//
// Every command operates on a plan folder given as its first positional
// argument, defaulting to the current directory. Configuration lives in
// gaffer.yaml inside that folder, so the app is constructed per command
// rather than in a root Before hook.
package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/gafferworks/gaffer/internal/core/config"
	"github.com/gafferworks/gaffer/internal/gaffer"
	"github.com/gafferworks/gaffer/pkg/logutils"
)

// planDirArg resolves the plan folder positional argument to an absolute
// path. The folder must exist.
func planDirArg(c *cli.Command) (string, error) {
	if c.Args().Len() > 1 {
		return "", fmt.Errorf("unexpected argument %q", c.Args().Get(1))
	}

	dir := c.Args().First()
	if dir == "" {
		dir = "."
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve plan folder: %w", err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("plan folder %s: %w", dir, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("plan folder %s is not a directory", dir)
	}

	return abs, nil
}

// loadApp builds the application for the command's plan folder. The global
// logger is rebuilt here rather than in a Before hook: log settings resolve
// flag > environment > config file, and the config file location is only
// known once the plan folder argument is parsed.
func loadApp(c *cli.Command, flags *Flags) (*gaffer.App, error) {
	planDir, err := planDirArg(c)
	if err != nil {
		return nil, err
	}

	paths := gaffer.NewPaths(planDir)
	cfg, err := config.Load(paths.ConfigFile())
	if err != nil {
		return nil, err
	}

	root := c.Root()
	level := flags.LogLevel
	if !root.IsSet("log-level") {
		level = cfg.Log.Level
	}
	file := flags.LogFile
	if !root.IsSet("log-file") {
		file = cfg.Log.File
		if file != "" && !filepath.IsAbs(file) {
			file = filepath.Join(planDir, file)
		}
	}

	logger, closer, err := logutils.New(level, file)
	if err != nil {
		return nil, fmt.Errorf("setup logger: %w", err)
	}
	log.Logger = logger
	flags.logCloser = closer

	return gaffer.NewApp(cfg, planDir, logger), nil
}

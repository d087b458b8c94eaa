package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"syscall"

	"github.com/urfave/cli/v3"

	"github.com/gafferworks/gaffer/internal/commands"
)

var (
	// Build information. Populated at build-time via -ldflags flag.
	// When installed via `go install module@version`, build() populates
	// these from runtime/debug.BuildInfo instead.
	version = "dev"
	commit  = "HEAD"
	date    = "now"
)

func build() string {
	v, c, d := version, commit, date

	// When installed via `go install module@version`, ldflags aren't set
	// so version remains "dev". Fall back to runtime/debug.BuildInfo which
	// Go populates automatically with the module version and VCS metadata.
	if v == "dev" {
		if info, ok := debug.ReadBuildInfo(); ok {
			if mv := info.Main.Version; mv != "" && mv != "(devel)" {
				v = mv
			}
			for _, s := range info.Settings {
				switch s.Key {
				case "vcs.revision":
					c = s.Value
				case "vcs.time":
					d = s.Value
				}
			}
		}
	}

	short := c
	if len(c) > 7 {
		short = c[:7]
	}

	return fmt.Sprintf("%s (%s) %s", v, short, d)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	flags := &commands.Flags{}

	app := &cli.Command{
		Name:      "gaffer",
		Usage:     "Drive an AI coding agent through a story plan",
		UsageText: "gaffer [global options] command [planFolder] [command options]",
		Description: `Gaffer runs a build loop over a plan of checkbox stories: it picks the
next unfinished story, dispatches a coding agent, verifies the result
with your commands, and commits the work or rolls it back. Interrupted
or crashed runs resume from a checkpoint.

A plan folder is any directory holding a markdown plan with stories like
'### [ ] US-001: Add login form'. Gaffer keeps its own state under
.gaffer/ inside the folder.

Run 'gaffer init <folder>' to scaffold the config and prompt templates,
then 'gaffer run <folder>' to start building.`,
		Version: build(),
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "log-level",
				Usage:       "log level (debug, info, warn, error, fatal, panic)",
				Sources:     cli.EnvVars("GAFFER_LOG_LEVEL"),
				Value:       "info",
				Destination: &flags.LogLevel,
			},
			&cli.StringFlag{
				Name:        "log-file",
				Usage:       "path to log file (defaults to stderr)",
				Sources:     cli.EnvVars("GAFFER_LOG_FILE"),
				Destination: &flags.LogFile,
			},
		},
		After: func(ctx context.Context, c *cli.Command) error {
			flags.CloseLog()
			return nil
		},
	}

	app = commands.NewInitCmd(flags).Register(app)
	app = commands.NewRunCmd(flags).Register(app)
	app = commands.NewCheckCmd(flags).Register(app)
	app = commands.NewStatusCmd(flags).Register(app)
	app = commands.NewReportCmd(flags).Register(app)

	exitCode := 0
	runErr := app.Run(ctx, os.Args)
	if runErr != nil {
		var exitErr cli.ExitCoder
		if errors.As(runErr, &exitErr) {
			// Message already written by the CLI's exit handling.
			os.Exit(exitErr.ExitCode())
		}
		fmt.Println()
		fmt.Println(runErr.Error())
		exitCode = 1
	}

	os.Exit(exitCode)
}

package commands

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v3"

	"github.com/gafferworks/gaffer/internal/core/runlock"
	"github.com/gafferworks/gaffer/internal/gaffer"
	"github.com/gafferworks/gaffer/pkg/iojson"
	"github.com/gafferworks/gaffer/pkg/profiler"
)

type RunCmd struct {
	flags *Flags

	iterations int
	agent      string
	noCommit   bool
	json       bool
	pprofPort  int
}

func NewRunCmd(flags *Flags) *RunCmd {
	return &RunCmd{flags: flags}
}

func (cmd *RunCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "run",
		Usage:     "Run the build loop against a plan folder",
		UsageText: "gaffer run [planFolder] [options]",
		Description: `Selects the next unfinished story from the plan, dispatches the configured
agent, verifies the result, and commits or rolls back. Repeats until the
plan is complete or a stop condition fires.

An interrupted or crashed run resumes from its checkpoint on the next
invocation of the same plan folder.

Exit codes:
  0    plan complete, iteration budget spent, or run time limit reached
  1    fatal error
  2    another gaffer instance holds the plan folder lock
  124  the run ended on an agent timeout`,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:        "iterations",
				Aliases:     []string{"n"},
				Usage:       "iteration budget for this run (overrides config)",
				Destination: &cmd.iterations,
			},
			&cli.StringFlag{
				Name:        "agent",
				Usage:       "agent to start with (overrides config and checkpoint)",
				Destination: &cmd.agent,
			},
			&cli.BoolFlag{
				Name:        "no-commit",
				Usage:       "disable git commits and rollbacks for this run",
				Destination: &cmd.noCommit,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "print the run summary as JSON on stdout",
				Destination: &cmd.json,
			},
			&cli.IntFlag{
				Name:        "pprof-port",
				Usage:       "serve pprof on 127.0.0.1:<port> for the duration of the run (e.g. 6060)",
				Sources:     cli.EnvVars("GAFFER_PPROF_PORT"),
				Destination: &cmd.pprofPort,
			},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *RunCmd) run(ctx context.Context, c *cli.Command) error {
	app, err := loadApp(c, cmd.flags)
	if err != nil {
		return err
	}

	if err := app.Config.ValidateDeep(app.Paths.ConfigFile()); err != nil {
		return err
	}
	for _, w := range app.Config.Warnings() {
		log.Warn().Str("category", w.Category).Msg(w.Message)
	}
	for _, w := range app.Config.FallbackWarnings() {
		log.Warn().Str("agent", w.Item).Msg(w.Message)
	}

	if cmd.pprofPort > 0 {
		prof := profiler.New(log.Logger)
		if err := prof.Start(cmd.pprofPort); err != nil {
			return err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := prof.Shutdown(shutdownCtx); err != nil {
				log.Error().Err(err).Msg("pprof server shutdown failed")
			}
		}()
		log.Info().Str("url", "http://"+prof.Addr()+"/debug/pprof/").Msg("pprof endpoint available")
	}

	sum, runErr := app.Loop.Run(ctx, gaffer.LoopOptions{
		Iterations: cmd.iterations,
		Agent:      cmd.agent,
		NoCommit:   cmd.noCommit,
	})

	if sum != nil && cmd.json {
		if err := iojson.WriteWith(c.Root().Writer, os.Stderr, sum); err != nil {
			return err
		}
	}

	if sum != nil && sum.EndedOnTimeout {
		if runErr != nil {
			return cli.Exit(runErr.Error(), 124)
		}
		return cli.Exit("", 124)
	}

	if runErr != nil {
		if errors.Is(runErr, runlock.ErrBusy) {
			return cli.Exit(runErr.Error(), 2)
		}
		return runErr
	}

	return nil
}

package commands

import (
	"context"
	"fmt"

	"github.com/urfave/cli/v3"
)

type ReportCmd struct {
	flags *Flags
	runID string
	plain bool
}

func NewReportCmd(flags *Flags) *ReportCmd {
	return &ReportCmd{flags: flags}
}

func (cmd *ReportCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "report",
		Usage:     "Show a run report",
		UsageText: "gaffer report [planFolder] [options]",
		Description: `Renders the report a run leaves under .gaffer/runs/. Without --run the
most recent report is shown.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "run",
				Usage:       "run ID (or unique prefix) to show",
				Destination: &cmd.runID,
			},
			&cli.BoolFlag{
				Name:        "plain",
				Usage:       "print raw markdown without terminal styling",
				Destination: &cmd.plain,
			},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *ReportCmd) run(ctx context.Context, c *cli.Command) error {
	app, err := loadApp(c, cmd.flags)
	if err != nil {
		return err
	}

	var path string
	if cmd.runID != "" {
		path, err = app.Reports.Find(cmd.runID)
	} else {
		path, err = app.Reports.Latest()
	}
	if err != nil {
		return err
	}

	out, err := app.Reports.Render(path, cmd.plain)
	if err != nil {
		return err
	}

	_, err = fmt.Fprint(c.Root().Writer, out)
	return err
}

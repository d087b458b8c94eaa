package commands

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/urfave/cli/v3"

	"github.com/gafferworks/gaffer/internal/core/styles"
	"github.com/gafferworks/gaffer/internal/gaffer"
)

type InitCmd struct {
	flags *Flags
	force bool
}

func NewInitCmd(flags *Flags) *InitCmd {
	return &InitCmd{flags: flags}
}

func (cmd *InitCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "init",
		Usage:     "Scaffold a plan folder",
		UsageText: "gaffer init [planFolder] [options]",
		Description: `Writes a starter gaffer.yaml and the default prompt templates into the
plan folder, creating the folder if needed. Existing files are kept
unless --force is given. The plan document itself is yours to write.`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "force",
				Aliases:     []string{"f"},
				Usage:       "overwrite existing files",
				Destination: &cmd.force,
			},
		},
		Action: cmd.run,
	})
	return app
}

func (cmd *InitCmd) run(_ context.Context, c *cli.Command) error {
	if c.Args().Len() > 1 {
		return fmt.Errorf("unexpected argument %q", c.Args().Get(1))
	}

	dir := c.Args().First()
	if dir == "" {
		dir = "."
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return fmt.Errorf("resolve plan folder: %w", err)
	}

	written, err := gaffer.Scaffold(abs, cmd.force)
	if err != nil {
		return err
	}

	w := c.Root().Writer
	if len(written) == 0 {
		_, _ = fmt.Fprintln(w, styles.TextMutedStyle.Render("all files exist already; use --force to overwrite"))
		return nil
	}

	for _, name := range written {
		_, _ = fmt.Fprintf(w, "%s %s\n", styles.TextSuccessStyle.Render("✔"), name)
	}
	_, _ = fmt.Fprintln(w, styles.TextMutedStyle.Render(fmt.Sprintf("wrote %d file(s) to %s", len(written), abs)))

	return nil
}

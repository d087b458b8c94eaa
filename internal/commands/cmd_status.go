package commands

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/urfave/cli/v3"

	"github.com/gafferworks/gaffer/internal/core/checkpoint"
	"github.com/gafferworks/gaffer/internal/core/styles"
	"github.com/gafferworks/gaffer/internal/gaffer"
	"github.com/gafferworks/gaffer/pkg/iojson"
)

type StatusCmd struct {
	flags  *Flags
	follow bool
	json   bool
}

func NewStatusCmd(flags *Flags) *StatusCmd {
	return &StatusCmd{flags: flags}
}

func (cmd *StatusCmd) Register(app *cli.Command) *cli.Command {
	app.Commands = append(app.Commands, &cli.Command{
		Name:      "status",
		Usage:     "Show what a running gaffer instance is doing",
		UsageText: "gaffer status [planFolder] [options]",
		Description: `Prints the status file a running instance keeps in the plan folder.

With --follow the command streams status updates until the run ends. A
plan folder with no active run prints "no active run".`,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:        "follow",
				Aliases:     []string{"f"},
				Usage:       "stream status updates until the run ends",
				Destination: &cmd.follow,
			},
			&cli.BoolFlag{
				Name:        "json",
				Usage:       "output status as JSON",
				Destination: &cmd.json,
			},
		},
		Action: cmd.run,
	})
	return app
}

type statusJSON struct {
	Active bool               `json:"active"`
	Status *checkpoint.Status `json:"status,omitempty"`
}

func (cmd *StatusCmd) run(ctx context.Context, c *cli.Command) error {
	app, err := loadApp(c, cmd.flags)
	if err != nil {
		return err
	}

	if cmd.follow {
		return cmd.runFollow(ctx, c, app)
	}

	st, err := app.Status.Load()
	if errors.Is(err, checkpoint.ErrNotFound) {
		if cmd.json {
			return iojson.WriteWith(c.Root().Writer, os.Stderr, statusJSON{Active: false})
		}
		_, _ = fmt.Fprintln(c.Root().Writer, styles.TextMutedStyle.Render("no active run"))
		return nil
	}
	if err != nil {
		return err
	}

	if cmd.json {
		return iojson.WriteWith(c.Root().Writer, os.Stderr, statusJSON{Active: true, Status: &st})
	}

	cmd.printStatus(c, st)
	return nil
}

func (cmd *StatusCmd) printStatus(c *cli.Command, st checkpoint.Status) {
	w := c.Root().Writer
	label := styles.TextMutedStyle

	_, _ = fmt.Fprintf(w, "%s  %s\n", label.Render("Phase    "), phaseStyle(st.Phase).Render(st.Phase))
	story := "-"
	if st.StoryID != "" {
		story = st.StoryID
		if st.StoryTitle != "" {
			story += "  " + st.StoryTitle
		}
	}
	_, _ = fmt.Fprintf(w, "%s  %s\n", label.Render("Story    "), story)
	_, _ = fmt.Fprintf(w, "%s  %d\n", label.Render("Iteration"), st.Iteration)
	_, _ = fmt.Fprintf(w, "%s  %s\n", label.Render("Elapsed  "), elapsed(st))
	_, _ = fmt.Fprintf(w, "%s  %s\n", label.Render("Updated  "), st.UpdatedAt.Local().Format("2006-01-02 15:04:05"))
}

// runFollow streams updates until the status file is removed. A folder
// with no active run waits for one to start, tail -f style.
func (cmd *StatusCmd) runFollow(ctx context.Context, c *cli.Command, app *gaffer.App) error {
	events, err := app.Status.Watch(ctx)
	if err != nil {
		return fmt.Errorf("watch status: %w", err)
	}

	w := c.Root().Writer
	if st, err := app.Status.Load(); err == nil {
		_, _ = fmt.Fprintln(w, statusLine(st))
	}

	for ev := range events {
		if ev.Removed {
			_, _ = fmt.Fprintln(w, styles.TextMutedStyle.Render("run ended"))
			return nil
		}
		_, _ = fmt.Fprintln(w, statusLine(ev.Status))
	}

	return ctx.Err()
}

func statusLine(st checkpoint.Status) string {
	story := st.StoryID
	if story == "" {
		story = "-"
	}
	return fmt.Sprintf("%s  %s  iter %-3d  %s  %s",
		styles.TextMutedStyle.Render(st.UpdatedAt.Local().Format("15:04:05")),
		phaseStyle(st.Phase).Render(fmt.Sprintf("%-15s", st.Phase)),
		st.Iteration,
		styles.TextForegroundBoldStyle.Render(story),
		styles.TextMutedStyle.Render(elapsed(st)),
	)
}

func elapsed(st checkpoint.Status) string {
	return (time.Duration(st.ElapsedSeconds) * time.Second).String()
}

func phaseStyle(phase string) lipgloss.Style {
	switch gaffer.Phase(phase) {
	case gaffer.PhaseDone:
		return styles.TextSuccessStyle
	case gaffer.PhaseFatal:
		return styles.TextErrorStyle
	case gaffer.PhaseRollingBack, gaffer.PhaseSwitchingAgent:
		return styles.TextWarningStyle
	default:
		return styles.TextForegroundBoldStyle
	}
}

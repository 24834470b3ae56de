package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/forge/cli/render"
	"github.com/justapithecus/forge/journal"
)

// InspectCommand returns the inspect command.
// Inspect returns a deep view of one run journal: every action row with
// its terminal status and error text.
func InspectCommand() *cli.Command {
	return &cli.Command{
		Name:      "inspect",
		Usage:     "Inspect a run journal",
		ArgsUsage: "<journal-path>",
		Flags: append(TUIReadOnlyFlags(),
			&cli.BoolFlag{
				Name:  "events",
				Usage: "List raw journal records instead of the summary",
			},
		),
		Action: inspectAction,
	}
}

func inspectAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("journal-path required", 1)
	}
	path := c.Args().First()

	events, err := journal.ReadFile(path)
	if err != nil {
		// A fatal decode error still yields the readable prefix; report
		// the error and render nothing.
		return fmt.Errorf("failed to decode journal %q: %w", path, err)
	}

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	if c.Bool("events") {
		if c.Bool("tui") {
			return cli.Exit("--tui is not supported with --events", 1)
		}
		return r.Render(events)
	}

	summary := journal.Summarize(events)

	if c.Bool("tui") {
		return r.RenderTUI("inspect_run", summary)
	}

	return r.Render(summary)
}

package cmd

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/justapithecus/forge/cli/render"
	"github.com/justapithecus/forge/journal"
	"github.com/justapithecus/forge/types"
)

// StatsCommand returns the stats command.
// Stats returns aggregated, derived facts from a run journal; per-action
// rows belong to inspect.
func StatsCommand() *cli.Command {
	return &cli.Command{
		Name:      "stats",
		Usage:     "Show aggregated statistics for a run journal",
		ArgsUsage: "<journal-path>",
		Flags:     TUIReadOnlyFlags(),
		Action:    statsAction,
	}
}

// runStats is the aggregate-only projection of a journal summary.
type runStats struct {
	RunID           string                      `json:"run_id" yaml:"run_id"`
	Events          int                         `json:"events" yaml:"events"`
	EventsByType    map[types.EventType]int     `json:"events_by_type" yaml:"events_by_type"`
	Artifacts       int                         `json:"artifacts" yaml:"artifacts"`
	Actions         int                         `json:"actions" yaml:"actions"`
	ActionsByStatus map[types.ActionStatus]int  `json:"actions_by_status" yaml:"actions_by_status"`
	Alerts          int                         `json:"alerts" yaml:"alerts"`
	Complete        bool                        `json:"complete" yaml:"complete"`
}

func statsAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("journal-path required", 1)
	}
	path := c.Args().First()

	events, err := journal.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to decode journal %q: %w", path, err)
	}
	summary := journal.Summarize(events)

	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}

	// The TUI stat boxes render from the full summary payload.
	if c.Bool("tui") {
		return r.RenderTUI("stats_run", summary)
	}

	return r.Render(&runStats{
		RunID:           summary.RunID,
		Events:          summary.Events,
		EventsByType:    summary.EventsByType,
		Artifacts:       summary.Artifacts,
		Actions:         len(summary.Actions),
		ActionsByStatus: summary.ActionsByStatus,
		Alerts:          summary.Alerts,
		Complete:        summary.Complete,
	})
}

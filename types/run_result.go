//nolint:revive // types is a common Go package naming convention
package types

import "time"

// OutcomeStatus represents the final status of a run.
type OutcomeStatus string

const (
	// OutcomeSuccess indicates every executed action completed.
	OutcomeSuccess OutcomeStatus = "success"
	// OutcomeActionFailure indicates at least one action failed.
	OutcomeActionFailure OutcomeStatus = "action_failure"
	// OutcomeParseFailure indicates the message parse failed structurally.
	OutcomeParseFailure OutcomeStatus = "parse_failure"
	// OutcomeArchiveFailure indicates journal/report archival failed.
	OutcomeArchiveFailure OutcomeStatus = "archive_failure"
)

// RunOutcome represents the final outcome of a run.
type RunOutcome struct {
	// Status is the outcome classification.
	Status OutcomeStatus
	// Message is a human-readable description.
	Message string
}

// RunReport summarizes a completed run for rendering and archival.
type RunReport struct {
	// RunID is the canonical run identifier.
	RunID string `json:"run_id" yaml:"run_id"`
	// Workspace is the workspace root the run executed against.
	Workspace string `json:"workspace" yaml:"workspace"`
	// Outcome is the run outcome classification.
	Outcome OutcomeStatus `json:"outcome" yaml:"outcome"`
	// Message is the human-readable outcome description.
	Message string `json:"message,omitempty" yaml:"message,omitempty"`
	// Duration is the total run duration.
	Duration time.Duration `json:"duration" yaml:"duration"`
	// Artifacts is the number of artifacts parsed.
	Artifacts int `json:"artifacts" yaml:"artifacts"`
	// Actions is the per-action result list in submission order.
	Actions []ActionSnapshot `json:"-" yaml:"-"`
	// ActionsByStatus counts actions by terminal status.
	ActionsByStatus map[ActionStatus]int `json:"actions_by_status" yaml:"actions_by_status"`
}

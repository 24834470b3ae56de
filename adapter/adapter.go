// Package adapter defines the notification boundary for downstream
// systems. Adapters publish run completion events after a run's journal
// and report are archived; they never sit on the execution path.
package adapter

import "context"

// RunCompletedEvent is the payload published when a run finishes.
type RunCompletedEvent struct {
	EventType       string `json:"event_type"` // always "run_completed"
	RunID           string `json:"run_id"`
	Workspace       string `json:"workspace"`
	Day             string `json:"day"`
	Outcome         string `json:"outcome"`
	ArchivePath     string `json:"archive_path,omitempty"`
	Timestamp       string `json:"timestamp"` // ISO 8601
	Artifacts       int    `json:"artifacts"`
	ActionsComplete int    `json:"actions_complete"`
	ActionsFailed   int    `json:"actions_failed"`
	ActionsAborted  int    `json:"actions_aborted"`
	AlertCount      int    `json:"alert_count"`
	DurationMs      int64  `json:"duration_ms"`
}

// Adapter publishes run completion events to a downstream system.
// Implementations must be safe for single-use per run.
type Adapter interface {
	// Publish sends a run completion event to the downstream system.
	// Must respect context cancellation and deadlines.
	Publish(ctx context.Context, event *RunCompletedEvent) error

	// Close releases adapter resources.
	Close() error
}

//nolint:revive // types is a common Go package naming convention
package types

// ActionStatus is the lifecycle status of a surfaced action.
type ActionStatus string

const (
	// StatusPending indicates the action is registered but not yet executing.
	StatusPending ActionStatus = "pending"
	// StatusRunning indicates the action is queued or mid-execution.
	StatusRunning ActionStatus = "running"
	// StatusComplete indicates the action finished successfully.
	StatusComplete ActionStatus = "complete"
	// StatusAborted indicates the action was canceled.
	StatusAborted ActionStatus = "aborted"
	// StatusFailed indicates the action ended with an error.
	StatusFailed ActionStatus = "failed"
)

// IsTerminal returns true for statuses an action never leaves.
func (s ActionStatus) IsTerminal() bool {
	return s == StatusComplete || s == StatusAborted || s == StatusFailed
}

// ActionSnapshot is an immutable point-in-time view of an action's state,
// as exposed to observers and the run report. The runner owns the live
// state; snapshots are safe to retain.
type ActionSnapshot struct {
	Action   Action
	Status   ActionStatus
	// Executed distinguishes "fully committed" from "still streaming preview".
	Executed bool
	// Error is the failure description, populated only when Status is failed.
	Error string
}

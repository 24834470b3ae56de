//nolint:revive // types is a common Go package naming convention
package types

// JournalVersion is the journal record format version.
const JournalVersion = "0.1.0"

// EventType discriminates journal event records.
type EventType string

// Event type constants for the run journal.
const (
	EventTypeArtifactOpen  EventType = "artifact_open"
	EventTypeArtifactClose EventType = "artifact_close"
	EventTypeActionOpen    EventType = "action_open"
	EventTypeActionStream  EventType = "action_stream"
	EventTypeActionClose   EventType = "action_close"
	EventTypeActionStatus  EventType = "action_status"
	EventTypeAlert         EventType = "alert"
	EventTypeRunComplete   EventType = "run_complete"
)

// IsTerminal returns true if this event type ends the journal stream.
func (e EventType) IsTerminal() bool {
	return e == EventTypeRunComplete
}

// EventEnvelope is the journal record envelope.
// All fields use msgpack tags; records are written as length-prefixed
// msgpack frames so a journal can be decoded without a schema registry.
type EventEnvelope struct {
	// JournalVersion is the record format version.
	JournalVersion string `msgpack:"journal_version"`
	// RunID is the canonical run identifier.
	RunID string `msgpack:"run_id"`
	// MessageID is the conversation turn identifier.
	MessageID string `msgpack:"message_id"`
	// Seq is the monotonic record sequence number, starts at 1.
	Seq int64 `msgpack:"seq"`
	// Type is the event type discriminator.
	Type EventType `msgpack:"type"`
	// Ts is the record timestamp in ISO 8601 UTC format.
	Ts string `msgpack:"ts"`
	// ArtifactID is set for artifact and action events.
	ArtifactID string `msgpack:"artifact_id,omitempty"`
	// ActionID is set for action events.
	ActionID string `msgpack:"action_id,omitempty"`
	// ActionType is set for action events.
	ActionType ActionType `msgpack:"action_type,omitempty"`
	// Status is set for action_status events.
	Status ActionStatus `msgpack:"status,omitempty"`
	// Payload carries type-specific fields (title, file_path, content,
	// error, alert fields). Kept loose so the decoder tolerates records
	// from newer writers.
	Payload map[string]any `msgpack:"payload,omitempty"`
}

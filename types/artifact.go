//nolint:revive // types is a common Go package naming convention
package types

// Artifact is one top-level generation unit emitted by the model.
// It is created when the parser recognizes an artifact-open tag and is
// owned by the parser's per-message state until handed to the runner via
// callback, after which it is immutable.
type Artifact struct {
	// ID is the caller-assigned identifier, unique within a message.
	ID string
	// MessageID is the conversation turn this artifact belongs to.
	MessageID string
	// Title is the display string from the opening tag.
	Title string
	// Kind is the free-form classification tag ("type" attribute).
	Kind string
}

package runner

import (
	"errors"
	"fmt"
)

// CommandError is a command-execution failure carrying the raw process
// output. It is the only error type broadcast to the external alert
// channel; every other failure is logged and recorded on the action
// state without flooding observers.
type CommandError struct {
	// Title is a short human-readable heading.
	Title string
	// Description is the human-readable failure description.
	Description string
	// Output is the raw combined command output.
	Output string
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s: %s", e.Title, e.Description)
}

// AsCommandError unwraps a CommandError from an error chain.
func AsCommandError(err error) (*CommandError, bool) {
	var ce *CommandError
	if errors.As(err, &ce) {
		return ce, true
	}
	return nil, false
}

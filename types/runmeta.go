//nolint:revive // types is a common Go package naming convention
package types

import (
	"errors"
	"fmt"
	"strings"
)

// RunMeta contains run identity metadata.
// A run is one invocation of the forge runtime over one or more streamed
// messages against a single workspace.
type RunMeta struct {
	// RunID is the canonical run identifier. Must be globally unique.
	RunID string
	// Workspace is the workspace root directory.
	Workspace string
}

// Validate validates run identity rules:
//   - run_id must be non-empty and contain no path separators
//   - workspace must be non-empty
func (r *RunMeta) Validate() error {
	if r.RunID == "" {
		return errors.New("run_id must be non-empty")
	}
	if strings.ContainsAny(r.RunID, "/\\") {
		return fmt.Errorf("run_id must not contain path separators: %q", r.RunID)
	}
	if r.Workspace == "" {
		return errors.New("workspace must be non-empty")
	}
	return nil
}

// Package types defines core domain types for the Forge runtime.
//
//nolint:revive // types is a common Go package naming convention
package types

import (
	"errors"
	"fmt"
)

// ActionType discriminates the Action variants.
type ActionType string

const (
	// ActionTypeFile writes a file into the workspace (full replacement).
	ActionTypeFile ActionType = "file"
	// ActionTypeShell executes a command in the interactive shell.
	ActionTypeShell ActionType = "shell"
	// ActionTypeStart launches a long-running command (e.g. a dev server).
	ActionTypeStart ActionType = "start"
	// ActionTypeBuild triggers a project build.
	ActionTypeBuild ActionType = "build"
	// ActionTypeService proxies a payload to the local data-backend service.
	ActionTypeService ActionType = "external-service"
)

// Known returns true for action types this runtime dispatches on.
// Unknown types are tolerated at parse time for forward compatibility.
func (t ActionType) Known() bool {
	switch t {
	case ActionTypeFile, ActionTypeShell, ActionTypeStart, ActionTypeBuild, ActionTypeService:
		return true
	}
	return false
}

// ServiceOperation discriminates external-service action payloads.
type ServiceOperation string

const (
	// ServiceOpCollection defines or updates a backend collection.
	ServiceOpCollection ServiceOperation = "collection"
	// ServiceOpQuery carries a query for a human or another subsystem to run.
	ServiceOpQuery ServiceOperation = "query"
)

// ErrInvalidServiceOperation is returned when an external-service action
// carries an operation outside {collection, query}. There is no sane
// default, so this is fatal to the message parse.
var ErrInvalidServiceOperation = errors.New("invalid external-service operation")

// ParseServiceOperation validates an operation attribute value.
func ParseServiceOperation(s string) (ServiceOperation, error) {
	switch ServiceOperation(s) {
	case ServiceOpCollection, ServiceOpQuery:
		return ServiceOperation(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidServiceOperation, s)
	}
}

// Action is one typed instruction inside an artifact.
//
// The Type field drives dispatch. Payload fields are populated per variant:
//   - file: FilePath + Content
//   - shell: Content (command text)
//   - start: Content (command text)
//   - build: no payload
//   - external-service: Operation + Content, FilePath optional
//
// ID is assigned by the parser from a per-message monotonic counter and is
// never reused within a message.
type Action struct {
	// ID is the parser-assigned action identifier, unique per message.
	ID string
	// ArtifactID is the enclosing artifact's identifier.
	ArtifactID string
	// Type is the variant discriminator.
	Type ActionType
	// FilePath is the workspace-relative target path for file actions,
	// and an optional persistence target for external-service actions.
	FilePath string
	// Operation is set for external-service actions only.
	Operation ServiceOperation
	// Content is the accumulated action body.
	Content string
}

// Validate checks variant-specific payload requirements.
// A file action without FilePath is advisory only (the action will fail
// later at execution time), so it is not an error here.
func (a *Action) Validate() error {
	if a.Type == ActionTypeService {
		if _, err := ParseServiceOperation(string(a.Operation)); err != nil {
			return err
		}
	}
	return nil
}

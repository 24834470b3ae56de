// Package workspace defines the capability surface action handlers
// execute against: a rooted file tree plus one interactive shell
// session. Handlers never touch the host directly, so tests substitute
// a recording implementation.
package workspace

import "context"

// SpawnResult is the outcome of a spawned command after it exits.
type SpawnResult struct {
	// ExitCode is the process exit code.
	ExitCode int
	// Output is the combined stdout and stderr.
	Output string
}

// ShellResult is the outcome of one shell command execution.
type ShellResult struct {
	ExitCode int
	Output   string
}

// Shell is an interactive shell session shared by all handlers.
type Shell interface {
	// Ready blocks until the session can accept commands.
	Ready(ctx context.Context) error
	// Execute runs a command in the session and waits for it to finish.
	// Cancelling ctx is the abort signal: the implementation terminates
	// the underlying process best-effort.
	Execute(ctx context.Context, sessionID, command string) (*ShellResult, error)
}

// Workspace is the file system and shell capability consumed by the
// action runner.
type Workspace interface {
	// Root returns the workspace root directory.
	Root() string
	// WriteFile writes content to a workspace-relative path.
	WriteFile(path string, content []byte) error
	// ReadFile reads a workspace-relative path.
	ReadFile(path string) ([]byte, error)
	// MkdirAll creates a directory and any missing parents.
	MkdirAll(path string) error
	// ReadDir lists the entry names of a workspace-relative directory.
	ReadDir(path string) ([]string, error)
	// Spawn runs a command to completion and returns its combined
	// output and exit code.
	Spawn(ctx context.Context, command string, args ...string) (*SpawnResult, error)
	// Shell returns the interactive shell session.
	Shell() Shell
}

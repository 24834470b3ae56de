package workspace

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/justapithecus/forge/log"
)

// ErrPathEscapesRoot is returned when a workspace-relative path would
// resolve outside the workspace root.
var ErrPathEscapesRoot = errors.New("path escapes workspace root")

// Local is a Workspace backed by a directory on the host file system
// and a POSIX shell.
type Local struct {
	root   string
	shell  *localShell
	logger *log.Logger
}

var _ Workspace = (*Local)(nil)

// NewLocal creates a workspace rooted at dir. The directory is created
// if it does not exist.
func NewLocal(dir string, logger *log.Logger) (*Local, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create workspace root: %w", err)
	}
	if logger == nil {
		logger = log.Nop()
	}
	return &Local{
		root:   abs,
		shell:  &localShell{root: abs, logger: logger},
		logger: logger,
	}, nil
}

// Root returns the workspace root directory.
func (w *Local) Root() string {
	return w.root
}

// resolve maps a workspace-relative path onto the host, rejecting
// anything that would climb out of the root.
func (w *Local) resolve(p string) (string, error) {
	abs := filepath.Join(w.root, filepath.FromSlash(p))
	if abs != w.root && !strings.HasPrefix(abs, w.root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrPathEscapesRoot, p)
	}
	return abs, nil
}

// WriteFile writes content to a workspace-relative path, creating
// intermediate directories.
func (w *Local) WriteFile(path string, content []byte) error {
	abs, err := w.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("failed to create parent directories: %w", err)
	}
	if err := os.WriteFile(abs, content, 0o644); err != nil {
		return fmt.Errorf("failed to write file: %w", err)
	}
	return nil
}

// ReadFile reads a workspace-relative path.
func (w *Local) ReadFile(path string) ([]byte, error) {
	abs, err := w.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return data, nil
}

// MkdirAll creates a workspace-relative directory and missing parents.
func (w *Local) MkdirAll(path string) error {
	abs, err := w.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}
	return nil
}

// ReadDir lists the entry names of a workspace-relative directory.
func (w *Local) ReadDir(path string) ([]string, error) {
	abs, err := w.resolve(path)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}

// Spawn runs a command to completion in the workspace root.
func (w *Local) Spawn(ctx context.Context, command string, args ...string) (*SpawnResult, error) {
	cmd := exec.CommandContext(ctx, command, args...)
	cmd.Dir = w.root

	output, err := cmd.CombinedOutput()
	code, err := exitCode(err)
	if err != nil {
		return nil, fmt.Errorf("failed to spawn %s: %w", command, err)
	}

	return &SpawnResult{ExitCode: code, Output: string(output)}, nil
}

// Shell returns the interactive shell session.
func (w *Local) Shell() Shell {
	return w.shell
}

// localShell executes commands through the system shell, one at a time,
// in the workspace root.
type localShell struct {
	root   string
	logger *log.Logger
}

var _ Shell = (*localShell)(nil)

// Ready reports whether the session can accept commands. A local shell
// is ready as soon as the root directory exists.
func (s *localShell) Ready(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := os.Stat(s.root); err != nil {
		return fmt.Errorf("workspace root unavailable: %w", err)
	}
	return nil
}

// Execute runs one command and waits for it to finish. A cancelled ctx
// terminates the process.
func (s *localShell) Execute(ctx context.Context, sessionID, command string) (*ShellResult, error) {
	s.logger.Debug("shell execute", map[string]any{
		"session_id": sessionID,
		"command":    command,
	})

	cmd := exec.CommandContext(ctx, "sh", "-c", command)
	cmd.Dir = s.root

	output, err := cmd.CombinedOutput()
	code, err := exitCode(err)
	if err != nil {
		return nil, fmt.Errorf("failed to execute command: %w", err)
	}

	return &ShellResult{ExitCode: code, Output: string(output)}, nil
}

// exitCode extracts the process exit code from a Wait error. Non-exit
// errors (spawn failures) are passed through.
func exitCode(err error) (int, error) {
	if err == nil {
		return 0, nil
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok {
			return status.ExitStatus(), nil
		}
		return -1, nil
	}
	return 0, err
}

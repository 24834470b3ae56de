package store

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/justapithecus/forge/log"
	"github.com/justapithecus/forge/types"
)

// Local archives runs into a directory tree.
type Local struct {
	root   string
	logger *log.Logger
}

var _ Archiver = (*Local)(nil)

// NewLocal creates a local archiver rooted at dir.
func NewLocal(dir string, logger *log.Logger) *Local {
	if logger == nil {
		logger = log.Nop()
	}
	return &Local{root: dir, logger: logger}
}

// Archive copies the journal and writes the report under the run's
// partition directory.
func (a *Local) Archive(ctx context.Context, meta types.RunMeta, day string, journalPath string, report *types.RunReport) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	dir := filepath.Join(a.root, filepath.FromSlash(partitionPrefix(day, meta.RunID)))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create archive partition: %w", err)
	}

	if err := copyFile(journalPath, filepath.Join(dir, journalObjectName)); err != nil {
		return fmt.Errorf("failed to archive journal: %w", err)
	}

	data, err := encodeReport(report)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(dir, reportObjectName), data, 0o644); err != nil {
		return fmt.Errorf("failed to archive report: %w", err)
	}

	a.logger.Info("archived run", map[string]any{
		"partition": partitionPrefix(day, meta.RunID),
		"root":      a.root,
	})
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// Package store archives completed runs: the journal file plus a run
// report, partitioned by day and run id so archives from many runs can
// share one bucket or directory tree.
package store

import (
	"context"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/justapithecus/forge/types"
)

// DeriveDay computes the partition day from run start time,
// YYYY-MM-DD in UTC.
func DeriveDay(startTime time.Time) string {
	return startTime.UTC().Format("2006-01-02")
}

// Archiver persists a completed run's journal and report.
type Archiver interface {
	// Archive stores the journal file at journalPath and the report
	// under the run's partition. Best-effort cleanup is the caller's
	// concern; Archive itself is atomic per object only.
	Archive(ctx context.Context, meta types.RunMeta, day string, journalPath string, report *types.RunReport) error
}

// Partition keys within an archive root.
const (
	journalObjectName = "run.journal"
	reportObjectName  = "report.yaml"
)

// partitionPrefix builds the day/run_id partition path.
func partitionPrefix(day, runID string) string {
	return fmt.Sprintf("day=%s/run_id=%s", day, runID)
}

// encodeReport renders the run report as YAML.
func encodeReport(report *types.RunReport) ([]byte, error) {
	data, err := yaml.Marshal(report)
	if err != nil {
		return nil, fmt.Errorf("failed to encode report: %w", err)
	}
	return data, nil
}

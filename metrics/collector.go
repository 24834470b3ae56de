// Package metrics provides per-run metrics collection.
//
// The Collector accumulates counters during a single run. It is a leaf
// package with no internal dependencies. Journal persistence metrics are
// absorbed from journal stats at run completion rather than recorded
// live, avoiding double-counting.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all run metrics.
// Returned by Collector.Snapshot(). Safe to read concurrently after
// creation.
type Snapshot struct {
	// Parser
	ArtifactsOpened    int64
	ActionsParsed      int64
	ParseErrors        int64
	FinalizeRecoveries int64

	// Repair rules
	CommandsSanitized int64
	ManifestsRepaired int64
	TruncationRepairs int64
	FrameworksRemoved int64

	// Runner
	ActionsComplete int64
	ActionsFailed   int64
	ActionsAborted  int64
	InstallRetries  int64
	AlertsRaised    int64

	// Journal (absorbed at run completion)
	EventsAppended  int64
	EventsPersisted int64
	JournalErrors   int64

	// Archive
	ArchiveSuccess int64
	ArchiveFailure int64

	// Dimensions (informational, set at construction)
	RunID     string
	Workspace string
}

// Collector accumulates metrics during a single run.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver
// safe so call sites never need guards.
type Collector struct {
	mu sync.Mutex

	artifactsOpened    int64
	actionsParsed      int64
	parseErrors        int64
	finalizeRecoveries int64

	commandsSanitized int64
	manifestsRepaired int64
	truncationRepairs int64
	frameworksRemoved int64

	actionsComplete int64
	actionsFailed   int64
	actionsAborted  int64
	installRetries  int64
	alertsRaised    int64

	eventsAppended  int64
	eventsPersisted int64
	journalErrors   int64

	archiveSuccess int64
	archiveFailure int64

	runID     string
	workspace string
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(runID, workspace string) *Collector {
	return &Collector{runID: runID, workspace: workspace}
}

// --- Parser ---

// IncArtifactOpened records a parsed artifact open.
func (c *Collector) IncArtifactOpened() {
	if c == nil {
		return
	}
	c.inc(&c.artifactsOpened)
}

// IncActionParsed records a parsed action close.
func (c *Collector) IncActionParsed() {
	if c == nil {
		return
	}
	c.inc(&c.actionsParsed)
}

// IncParseError records a fatal structural parse error.
func (c *Collector) IncParseError() {
	if c == nil {
		return
	}
	c.inc(&c.parseErrors)
}

// IncFinalizeRecovery records an action force-closed at stream end.
func (c *Collector) IncFinalizeRecovery() {
	if c == nil {
		return
	}
	c.inc(&c.finalizeRecoveries)
}

// --- Repair rules ---

// IncCommandSanitized records a command rewritten before execution.
func (c *Collector) IncCommandSanitized() {
	if c == nil {
		return
	}
	c.inc(&c.commandsSanitized)
}

// IncManifestRepaired records a manifest changed by repair.
func (c *Collector) IncManifestRepaired() {
	if c == nil {
		return
	}
	c.inc(&c.manifestsRepaired)
}

// IncTruncationRepair records a structural truncation recovery.
func (c *Collector) IncTruncationRepair() {
	if c == nil {
		return
	}
	c.inc(&c.truncationRepairs)
}

// IncFrameworkRemoved records a disallowed framework replacement.
func (c *Collector) IncFrameworkRemoved() {
	if c == nil {
		return
	}
	c.inc(&c.frameworksRemoved)
}

// --- Runner ---

// IncActionComplete records a successfully completed action.
func (c *Collector) IncActionComplete() {
	if c == nil {
		return
	}
	c.inc(&c.actionsComplete)
}

// IncActionFailed records a failed action.
func (c *Collector) IncActionFailed() {
	if c == nil {
		return
	}
	c.inc(&c.actionsFailed)
}

// IncActionAborted records an aborted action.
func (c *Collector) IncActionAborted() {
	if c == nil {
		return
	}
	c.inc(&c.actionsAborted)
}

// IncInstallRetry records an install repair-retry cycle.
func (c *Collector) IncInstallRetry() {
	if c == nil {
		return
	}
	c.inc(&c.installRetries)
}

// IncAlertRaised records a broadcast command alert.
func (c *Collector) IncAlertRaised() {
	if c == nil {
		return
	}
	c.inc(&c.alertsRaised)
}

// --- Archive ---

// IncArchiveSuccess records a successful run archival.
func (c *Collector) IncArchiveSuccess() {
	if c == nil {
		return
	}
	c.inc(&c.archiveSuccess)
}

// IncArchiveFailure records a failed run archival.
func (c *Collector) IncArchiveFailure() {
	if c == nil {
		return
	}
	c.inc(&c.archiveFailure)
}

// AbsorbJournalStats copies journal counters into the collector. Called
// once at run completion.
func (c *Collector) AbsorbJournalStats(appended, persisted, errors int64) {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.eventsAppended = appended
	c.eventsPersisted = persisted
	c.journalErrors = errors
	c.mu.Unlock()
}

// Snapshot returns an atomic snapshot of all counters.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		ArtifactsOpened:    c.artifactsOpened,
		ActionsParsed:      c.actionsParsed,
		ParseErrors:        c.parseErrors,
		FinalizeRecoveries: c.finalizeRecoveries,
		CommandsSanitized:  c.commandsSanitized,
		ManifestsRepaired:  c.manifestsRepaired,
		TruncationRepairs:  c.truncationRepairs,
		FrameworksRemoved:  c.frameworksRemoved,
		ActionsComplete:    c.actionsComplete,
		ActionsFailed:      c.actionsFailed,
		ActionsAborted:     c.actionsAborted,
		InstallRetries:     c.installRetries,
		AlertsRaised:       c.alertsRaised,
		EventsAppended:     c.eventsAppended,
		EventsPersisted:    c.eventsPersisted,
		JournalErrors:      c.journalErrors,
		ArchiveSuccess:     c.archiveSuccess,
		ArchiveFailure:     c.archiveFailure,
		RunID:              c.runID,
		Workspace:          c.workspace,
	}
}

func (c *Collector) inc(counter *int64) {
	c.mu.Lock()
	*counter++
	c.mu.Unlock()
}

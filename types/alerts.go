//nolint:revive // types is a common Go package naming convention
package types

// AlertSeverity classifies alerts for display purposes.
type AlertSeverity string

const (
	// AlertSeverityError is a user-visible failure.
	AlertSeverityError AlertSeverity = "error"
	// AlertSeverityInfo is an informational notification.
	AlertSeverityInfo AlertSeverity = "info"
)

// Alert is a user-visible notification from the runner.
// Only command-execution failures are broadcast as alerts; internal faults
// are logged and recorded on the action state without flooding observers.
type Alert struct {
	// Type is a machine-readable alert category (e.g. "preview").
	Type string
	// Severity classifies the alert.
	Severity AlertSeverity
	// Title is a short human-readable heading.
	Title string
	// Description is the human-readable failure description.
	Description string
	// Content carries raw command output or payload text.
	Content string
	// Source names the originating subsystem ("terminal" or "preview").
	Source string
}

// ServiceAlert surfaces an external-service action payload for a human or
// another subsystem to act on. Query execution is out of scope for this
// runtime; the payload is forwarded as-is.
type ServiceAlert struct {
	// Operation is the external-service operation discriminator.
	Operation ServiceOperation
	// Content is the raw payload.
	Content string
	// FilePath is the optional persistence target.
	FilePath string
	// Title is a short human-readable heading.
	Title string
	// Description is the human-readable summary.
	Description string
}

// DeployAlert reports progress of a build/deploy stage.
type DeployAlert struct {
	// Stage is the deploy stage ("building", "complete", "failed").
	Stage string
	// BuildOutput is the captured combined build output.
	BuildOutput string
	// OutputDir is the detected build output directory.
	OutputDir string
	// ExitCode is the build command's exit code.
	ExitCode int
}

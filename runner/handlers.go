package runner

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/justapithecus/forge/fix"
	"github.com/justapithecus/forge/scaffold"
	"github.com/justapithecus/forge/types"
	"github.com/justapithecus/forge/workspace"
)

const manifestPath = "package.json"

// buildOutputDirs are probed in order after a build; the first existing
// directory wins.
var buildOutputDirs = []string{"dist", "build", "out"}

func (r *Runner) dispatch(ctx context.Context, action types.Action) error {
	switch action.Type {
	case types.ActionTypeFile:
		return r.runFile(ctx, action)
	case types.ActionTypeShell:
		return r.runShell(ctx, action)
	case types.ActionTypeStart:
		return r.runStart(ctx, action)
	case types.ActionTypeBuild:
		return r.runBuild(ctx, action)
	case types.ActionTypeService:
		return r.runService(ctx, action)
	default:
		r.logger.Warn("ignoring unknown action type", map[string]any{
			"action_id":   action.ID,
			"action_type": string(action.Type),
		})
		return nil
	}
}

// runFile applies the repair rule selected by filename pattern, then
// writes the final content. Manifest repair that reveals a disallowed
// framework triggers a one-time scaffold of the baseline toolchain.
func (r *Runner) runFile(ctx context.Context, action types.Action) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path := action.FilePath
	if path == "" {
		return errors.New("file action has no filePath")
	}

	content := action.Content
	switch fix.ForPath(path) {
	case fix.KindManifest:
		result := r.fixer.RepairManifest(content)
		content = result.Content
		if result.FrameworkRemoved {
			if err := r.scaffoldBaseline(); err != nil {
				return err
			}
		}
	case fix.KindViteConfig:
		content = r.fixer.RepairViteConfig(content)
	case fix.KindTailwindConfig:
		result := r.fixer.RepairTailwindConfig(path, content)
		content = result.Content
		if result.Rename != "" {
			path = result.Rename
		}
	case fix.KindSource:
		content = r.fixer.RepairSource(content)
	}

	if err := r.ws.WriteFile(path, []byte(content)); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}

// scaffoldBaseline writes the baseline toolchain files once per run.
// Files the model already produced are left alone.
func (r *Runner) scaffoldBaseline() error {
	r.mu.Lock()
	if r.scaffolded {
		r.mu.Unlock()
		return nil
	}
	r.scaffolded = true
	r.mu.Unlock()

	files, err := scaffold.Files()
	if err != nil {
		return fmt.Errorf("failed to load scaffold: %w", err)
	}
	for _, f := range files {
		if _, err := r.ws.ReadFile(f.Path); err == nil {
			continue
		}
		if err := r.ws.WriteFile(f.Path, f.Content); err != nil {
			return fmt.Errorf("failed to scaffold %s: %w", f.Path, err)
		}
	}
	r.logger.Info("scaffolded baseline toolchain", map[string]any{
		"files": len(files),
	})
	return nil
}

// runShell sanitizes and executes a command in the shared shell. On a
// nonzero exit whose output matches a registry "not found" signature it
// performs exactly one repair-and-retry cycle before giving up.
func (r *Runner) runShell(ctx context.Context, action types.Action) error {
	command := r.fixer.SanitizeCommand(strings.TrimSpace(action.Content))

	sh := r.ws.Shell()
	if err := sh.Ready(ctx); err != nil {
		return fmt.Errorf("shell not ready: %w", err)
	}

	res, err := sh.Execute(ctx, r.sessionID, command)
	if err != nil {
		return fmt.Errorf("failed to execute command: %w", err)
	}
	if res.ExitCode == 0 {
		return nil
	}

	if pkg, ok := fix.FindMissingPackage(res.Output); ok {
		retry, retried := r.repairAndRetry(ctx, pkg, command)
		if retried {
			if retry.ExitCode == 0 {
				return nil
			}
			res = retry
		}
	}

	return &CommandError{
		Title:       "Command failed",
		Description: fmt.Sprintf("command exited with code %d", res.ExitCode),
		Output:      res.Output,
	}
}

// repairAndRetry rewrites or removes the offending package in the
// manifest and reissues the install. At most one cycle per invocation.
func (r *Runner) repairAndRetry(ctx context.Context, pkg, command string) (*workspace.ShellResult, bool) {
	manifest, err := r.ws.ReadFile(manifestPath)
	if err != nil {
		return nil, false
	}
	repaired, changed := r.fixer.ReplacePackage(string(manifest), pkg)
	if !changed {
		return nil, false
	}
	if err := r.ws.WriteFile(manifestPath, []byte(repaired)); err != nil {
		return nil, false
	}

	r.logger.Info("retrying install after manifest repair", map[string]any{
		"package": pkg,
	})

	res, err := r.ws.Shell().Execute(ctx, r.sessionID, command)
	if err != nil {
		return nil, false
	}
	return res, true
}

// runStart launches a long-running command. The process exiting at all
// with a nonzero code is a failure of the action; abort is the expected
// way for it to end.
func (r *Runner) runStart(ctx context.Context, action types.Action) error {
	command := strings.TrimSpace(action.Content)

	sh := r.ws.Shell()
	if err := sh.Ready(ctx); err != nil {
		return fmt.Errorf("shell not ready: %w", err)
	}

	res, err := sh.Execute(ctx, r.sessionID, command)
	if err != nil {
		return fmt.Errorf("failed to execute command: %w", err)
	}
	if res.ExitCode != 0 && ctx.Err() == nil {
		return &CommandError{
			Title:       "Dev process exited",
			Description: fmt.Sprintf("process exited with code %d", res.ExitCode),
			Output:      res.Output,
		}
	}
	return nil
}

// runBuild spawns the build command, records its outcome, and probes
// the conventional output directories.
func (r *Runner) runBuild(ctx context.Context, action types.Action) error {
	command := strings.TrimSpace(action.Content)
	if command == "" {
		command = "npm run build"
	}

	if r.callbacks.OnDeployAlert != nil {
		r.callbacks.OnDeployAlert(types.DeployAlert{Stage: "building"})
	}

	res, err := r.ws.Spawn(ctx, "sh", "-c", command)
	if err != nil {
		return fmt.Errorf("failed to spawn build: %w", err)
	}

	outcome := &BuildOutcome{
		ExitCode:  res.ExitCode,
		Output:    res.Output,
		OutputDir: r.probeOutputDir(),
	}
	r.mu.Lock()
	r.lastBuild = outcome
	r.mu.Unlock()

	stage := "complete"
	if res.ExitCode != 0 {
		stage = "failed"
	}
	if r.callbacks.OnDeployAlert != nil {
		r.callbacks.OnDeployAlert(types.DeployAlert{
			Stage:       stage,
			BuildOutput: res.Output,
			OutputDir:   outcome.OutputDir,
			ExitCode:    res.ExitCode,
		})
	}

	if res.ExitCode != 0 {
		return &CommandError{
			Title:       "Build failed",
			Description: fmt.Sprintf("build exited with code %d", res.ExitCode),
			Output:      res.Output,
		}
	}
	return nil
}

// probeOutputDir returns the first conventional build output directory
// present in the workspace, defaulting to the first convention.
func (r *Runner) probeOutputDir() string {
	for _, dir := range buildOutputDirs {
		if _, err := r.ws.ReadDir(dir); err == nil {
			return dir
		}
	}
	return buildOutputDirs[0]
}

// runService surfaces an external-service payload via the alert channel.
// A collection payload with a target path is additionally persisted
// through the file dispatch. Query execution is out of scope here; the
// payload is surfaced for another subsystem to act on.
func (r *Runner) runService(ctx context.Context, action types.Action) error {
	if err := action.Validate(); err != nil {
		return err
	}

	alert := types.ServiceAlert{
		Operation: action.Operation,
		Content:   action.Content,
		FilePath:  action.FilePath,
		Title:     "External service request",
	}
	switch action.Operation {
	case types.ServiceOpCollection:
		alert.Description = "collection definition received"
	case types.ServiceOpQuery:
		alert.Description = "query pending external execution"
	}
	if r.callbacks.OnServiceAlert != nil {
		r.callbacks.OnServiceAlert(alert)
	}

	if action.Operation == types.ServiceOpCollection && action.FilePath != "" {
		return r.runFile(ctx, action)
	}
	return nil
}

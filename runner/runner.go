// Package runner executes parsed actions against a workspace.
//
// Actions run strictly in submission order on a single serialized chain,
// so a file write never races a shell command that depends on it. Start
// actions (long-running dev processes) are dispatched onto a separate
// chain that is internally ordered but does not block the default chain.
package runner

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/justapithecus/forge/fix"
	"github.com/justapithecus/forge/log"
	"github.com/justapithecus/forge/types"
	"github.com/justapithecus/forge/workspace"
)

// Callbacks are the observer notifications exposed by the runner. All
// are fire-and-forget; nil fields are skipped.
type Callbacks struct {
	// OnStatus fires on every action status or executed-flag change.
	OnStatus func(types.ActionSnapshot)
	// OnAlert fires for command-execution failures only.
	OnAlert func(types.Alert)
	// OnServiceAlert surfaces external-service payloads.
	OnServiceAlert func(types.ServiceAlert)
	// OnDeployAlert reports build stage progress.
	OnDeployAlert func(types.DeployAlert)
}

// Options configures a Runner.
type Options struct {
	Workspace workspace.Workspace
	// Fixer applies repair rules to payloads. Defaults to the standard
	// rule set.
	Fixer *fix.Fixer
	// SessionID identifies the shared shell session. Defaults to a
	// fresh UUID.
	SessionID string
	Logger    *log.Logger
	Callbacks Callbacks
}

// BuildOutcome is the recorded result of the most recent build action.
type BuildOutcome struct {
	ExitCode  int
	Output    string
	OutputDir string
}

type actionState struct {
	action   types.Action
	status   types.ActionStatus
	executed bool
	errText  string
	ctx      context.Context
	cancel   context.CancelFunc
}

// Runner is the action execution engine for one conversation.
type Runner struct {
	ws        workspace.Workspace
	fixer     *fix.Fixer
	sessionID string
	logger    *log.Logger
	callbacks Callbacks

	defaultChain *chain
	startChain   *chain

	mu         sync.Mutex
	actions    map[string]*actionState
	order      []string
	scaffolded bool
	lastBuild  *BuildOutcome
}

// New creates a Runner bound to a workspace.
func New(opts Options) *Runner {
	if opts.Fixer == nil {
		opts.Fixer = fix.New(fix.DefaultRules())
	}
	if opts.SessionID == "" {
		opts.SessionID = uuid.NewString()
	}
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	return &Runner{
		ws:           opts.Workspace,
		fixer:        opts.Fixer,
		sessionID:    opts.SessionID,
		logger:       opts.Logger,
		callbacks:    opts.Callbacks,
		defaultChain: newChain(),
		startChain:   newChain(),
		actions:      make(map[string]*actionState),
	}
}

// AddAction registers an action in pending state exactly once; duplicate
// registration is a no-op. A transition to running is scheduled behind
// the work already queued on the default chain, so observers see the
// action activate in submission order.
func (r *Runner) AddAction(a types.Action) {
	r.mu.Lock()
	if _, ok := r.actions[a.ID]; ok {
		r.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	st := &actionState{
		action: a,
		status: types.StatusPending,
		ctx:    ctx,
		cancel: cancel,
	}
	r.actions[a.ID] = st
	r.order = append(r.order, a.ID)
	r.mu.Unlock()

	r.emit(st)

	r.defaultChain.enqueue(func() {
		r.mu.Lock()
		transition := st.status == types.StatusPending
		if transition {
			st.status = types.StatusRunning
		}
		r.mu.Unlock()
		if transition {
			r.emit(st)
		}
	})
}

// RunAction executes a registered action. It is a no-op when the action
// was already executed. During active streaming only file actions are
// eligible: partial shell or command text is not executable, so other
// types wait for the close event.
func (r *Runner) RunAction(a types.Action, streaming bool) error {
	r.mu.Lock()
	st, ok := r.actions[a.ID]
	if !ok {
		r.mu.Unlock()
		return fmt.Errorf("action %s not registered", a.ID)
	}
	if st.executed || st.status.IsTerminal() {
		r.mu.Unlock()
		return nil
	}
	if streaming && st.action.Type != types.ActionTypeFile {
		r.mu.Unlock()
		return nil
	}

	// Take the freshest payload from the parse event.
	st.action.Content = a.Content
	if a.FilePath != "" {
		st.action.FilePath = a.FilePath
	}
	st.executed = !streaming
	isStart := st.action.Type == types.ActionTypeStart
	r.mu.Unlock()

	if isStart {
		r.startChain.enqueue(func() { r.execute(st) })
	} else {
		r.defaultChain.enqueue(func() { r.execute(st) })
	}
	return nil
}

// execute runs the handler for one queued invocation and settles the
// action state. Streaming preview invocations leave the action running.
func (r *Runner) execute(st *actionState) {
	r.mu.Lock()
	if st.status == types.StatusAborted {
		r.mu.Unlock()
		return
	}
	st.status = types.StatusRunning
	action := st.action
	committed := st.executed
	r.mu.Unlock()
	r.emit(st)

	err := r.dispatch(st.ctx, action)

	r.mu.Lock()
	aborted := st.ctx.Err() != nil || st.status == types.StatusAborted
	switch {
	case aborted:
		// An action whose abort signal already tripped is not
		// re-reported as failed, and does not alert.
		st.status = types.StatusAborted
	case err != nil:
		st.status = types.StatusFailed
		st.errText = err.Error()
	case committed:
		st.status = types.StatusComplete
	}
	r.mu.Unlock()
	r.emit(st)

	if err == nil || aborted {
		return
	}
	r.logger.Error("action failed", map[string]any{
		"action_id":   action.ID,
		"action_type": string(action.Type),
		"error":       err.Error(),
	})
	if ce, ok := AsCommandError(err); ok && r.callbacks.OnAlert != nil {
		r.callbacks.OnAlert(types.Alert{
			Type:        "command",
			Severity:    types.AlertSeverityError,
			Title:       ce.Title,
			Description: ce.Description,
			Content:     ce.Output,
			Source:      "terminal",
		})
	}
}

// Abort marks the action aborted and fires its cancellation signal. A
// mid-execution handler observes the signal best-effort; the execution
// chain proceeds to the next queued action regardless.
func (r *Runner) Abort(actionID string) {
	r.mu.Lock()
	st, ok := r.actions[actionID]
	if !ok || st.status.IsTerminal() {
		r.mu.Unlock()
		return
	}
	st.status = types.StatusAborted
	st.cancel()
	r.mu.Unlock()
	r.emit(st)
}

// AbortAll aborts every non-terminal action.
func (r *Runner) AbortAll() {
	r.mu.Lock()
	ids := make([]string, 0, len(r.order))
	for _, id := range r.order {
		if !r.actions[id].status.IsTerminal() {
			ids = append(ids, id)
		}
	}
	r.mu.Unlock()
	for _, id := range ids {
		r.Abort(id)
	}
}

// Wait blocks until both execution chains have drained the work queued
// so far.
func (r *Runner) Wait() {
	r.defaultChain.wait()
	r.startChain.wait()
}

// Snapshot returns a point-in-time view of one action.
func (r *Runner) Snapshot(actionID string) (types.ActionSnapshot, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.actions[actionID]
	if !ok {
		return types.ActionSnapshot{}, false
	}
	return snapshotLocked(st), true
}

// Snapshots returns all actions in submission order.
func (r *Runner) Snapshots() []types.ActionSnapshot {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]types.ActionSnapshot, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, snapshotLocked(r.actions[id]))
	}
	return out
}

// LastBuild returns the outcome of the most recent build action.
func (r *Runner) LastBuild() (*BuildOutcome, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lastBuild == nil {
		return nil, false
	}
	b := *r.lastBuild
	return &b, true
}

func snapshotLocked(st *actionState) types.ActionSnapshot {
	return types.ActionSnapshot{
		Action:   st.action,
		Status:   st.status,
		Executed: st.executed,
		Error:    st.errText,
	}
}

func (r *Runner) emit(st *actionState) {
	if r.callbacks.OnStatus == nil {
		return
	}
	r.mu.Lock()
	snap := snapshotLocked(st)
	r.mu.Unlock()
	r.callbacks.OnStatus(snap)
}

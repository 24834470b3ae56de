package journal

import (
	"github.com/justapithecus/forge/types"
)

// Summary is the derived, read-only view of a decoded journal. It is the
// payload behind `forge inspect` and `forge stats`; both render from the
// same struct so table, JSON, YAML and TUI output never disagree.
type Summary struct {
	RunID           string                     `json:"run_id" yaml:"run_id"`
	JournalVersion  string                     `json:"journal_version" yaml:"journal_version"`
	Events          int                        `json:"events" yaml:"events"`
	EventsByType    map[types.EventType]int    `json:"events_by_type" yaml:"events_by_type"`
	Artifacts       int                        `json:"artifacts" yaml:"artifacts"`
	Actions         []ActionView               `json:"actions" yaml:"actions"`
	ActionsByStatus map[types.ActionStatus]int `json:"actions_by_status" yaml:"actions_by_status"`
	Alerts          int                        `json:"alerts" yaml:"alerts"`
	// Complete is true when a run_complete record terminates the journal.
	// A journal without one was cut off mid-run.
	Complete bool   `json:"complete" yaml:"complete"`
	FirstTs  string `json:"first_ts,omitempty" yaml:"first_ts,omitempty"`
	LastTs   string `json:"last_ts,omitempty" yaml:"last_ts,omitempty"`
}

// ActionView is one action's journal-derived state.
type ActionView struct {
	ActionID   string             `json:"action_id" yaml:"action_id"`
	ArtifactID string             `json:"artifact_id" yaml:"artifact_id"`
	Type       types.ActionType   `json:"type" yaml:"type"`
	Status     types.ActionStatus `json:"status" yaml:"status"`
	FilePath   string             `json:"file_path,omitempty" yaml:"file_path,omitempty"`
	Error      string             `json:"error,omitempty" yaml:"error,omitempty"`
}

// Summarize folds decoded journal records into a Summary. Records are
// expected in sequence order, as ReadFile returns them. Unknown event
// types are counted but otherwise ignored, so a newer writer's journal
// still summarizes.
func Summarize(events []*types.EventEnvelope) *Summary {
	s := &Summary{
		EventsByType:    make(map[types.EventType]int),
		ActionsByStatus: make(map[types.ActionStatus]int),
	}

	actionIndex := make(map[string]int)

	for _, ev := range events {
		s.Events++
		s.EventsByType[ev.Type]++
		if s.RunID == "" {
			s.RunID = ev.RunID
		}
		if s.JournalVersion == "" {
			s.JournalVersion = ev.JournalVersion
		}
		if s.FirstTs == "" {
			s.FirstTs = ev.Ts
		}
		s.LastTs = ev.Ts

		switch ev.Type {
		case types.EventTypeArtifactOpen:
			s.Artifacts++

		case types.EventTypeActionOpen:
			if _, seen := actionIndex[ev.ActionID]; seen {
				continue
			}
			view := ActionView{
				ActionID:   ev.ActionID,
				ArtifactID: ev.ArtifactID,
				Type:       ev.ActionType,
				Status:     types.StatusPending,
			}
			if fp, ok := ev.Payload["file_path"].(string); ok {
				view.FilePath = fp
			}
			actionIndex[ev.ActionID] = len(s.Actions)
			s.Actions = append(s.Actions, view)

		case types.EventTypeActionStatus:
			idx, seen := actionIndex[ev.ActionID]
			if !seen {
				// Status for an action we never saw open: tolerate a
				// truncated journal head by synthesizing the row.
				idx = len(s.Actions)
				actionIndex[ev.ActionID] = idx
				s.Actions = append(s.Actions, ActionView{
					ActionID:   ev.ActionID,
					ArtifactID: ev.ArtifactID,
					Type:       ev.ActionType,
				})
			}
			s.Actions[idx].Status = ev.Status
			if msg, ok := ev.Payload["error"].(string); ok && msg != "" {
				s.Actions[idx].Error = msg
			}

		case types.EventTypeAlert:
			s.Alerts++

		case types.EventTypeRunComplete:
			s.Complete = true
		}
	}

	for _, a := range s.Actions {
		s.ActionsByStatus[a.Status]++
	}

	return s
}

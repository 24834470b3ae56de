package journal

import (
	"testing"

	"github.com/justapithecus/forge/types"
)

func summaryFixture() []*types.EventEnvelope {
	return []*types.EventEnvelope{
		{RunID: "run-1", JournalVersion: types.JournalVersion, Seq: 1,
			Type: types.EventTypeArtifactOpen, ArtifactID: "app", Ts: "2026-08-24T12:00:00Z"},
		{RunID: "run-1", Seq: 2, Type: types.EventTypeActionOpen,
			ArtifactID: "app", ActionID: "1", ActionType: types.ActionTypeFile,
			Payload: map[string]any{"file_path": "src/App.tsx"}, Ts: "2026-08-24T12:00:01Z"},
		{RunID: "run-1", Seq: 3, Type: types.EventTypeActionStatus,
			ActionID: "1", ActionType: types.ActionTypeFile, Status: types.StatusRunning},
		{RunID: "run-1", Seq: 4, Type: types.EventTypeActionStatus,
			ActionID: "1", ActionType: types.ActionTypeFile, Status: types.StatusComplete},
		{RunID: "run-1", Seq: 5, Type: types.EventTypeActionOpen,
			ArtifactID: "app", ActionID: "2", ActionType: types.ActionTypeShell},
		{RunID: "run-1", Seq: 6, Type: types.EventTypeActionStatus,
			ActionID: "2", ActionType: types.ActionTypeShell, Status: types.StatusFailed,
			Payload: map[string]any{"error": "Command failed: exit code 1"}},
		{RunID: "run-1", Seq: 7, Type: types.EventTypeAlert,
			Payload: map[string]any{"title": "Command Execution Error"}},
		{RunID: "run-1", Seq: 8, Type: types.EventTypeArtifactClose, ArtifactID: "app"},
		{RunID: "run-1", Seq: 9, Type: types.EventTypeRunComplete, Ts: "2026-08-24T12:00:05Z"},
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize(summaryFixture())

	if s.RunID != "run-1" {
		t.Errorf("run id = %q", s.RunID)
	}
	if s.Events != 9 {
		t.Errorf("events = %d, want 9", s.Events)
	}
	if s.Artifacts != 1 {
		t.Errorf("artifacts = %d, want 1", s.Artifacts)
	}
	if len(s.Actions) != 2 {
		t.Fatalf("actions = %d, want 2", len(s.Actions))
	}
	if s.Actions[0].Status != types.StatusComplete {
		t.Errorf("action 1 status = %s", s.Actions[0].Status)
	}
	if s.Actions[0].FilePath != "src/App.tsx" {
		t.Errorf("action 1 file path = %q", s.Actions[0].FilePath)
	}
	if s.Actions[1].Status != types.StatusFailed {
		t.Errorf("action 2 status = %s", s.Actions[1].Status)
	}
	if s.Actions[1].Error == "" {
		t.Error("failed action should carry error text")
	}
	if s.Alerts != 1 {
		t.Errorf("alerts = %d, want 1", s.Alerts)
	}
	if !s.Complete {
		t.Error("journal with run_complete should mark Complete")
	}
	if s.ActionsByStatus[types.StatusComplete] != 1 || s.ActionsByStatus[types.StatusFailed] != 1 {
		t.Errorf("actions by status = %v", s.ActionsByStatus)
	}
	if s.FirstTs != "2026-08-24T12:00:00Z" || s.LastTs != "2026-08-24T12:00:05Z" {
		t.Errorf("timestamps = %q .. %q", s.FirstTs, s.LastTs)
	}
}

func TestSummarize_TruncatedJournal(t *testing.T) {
	// Drop the tail: no run_complete, and a status record whose open was
	// never written.
	events := []*types.EventEnvelope{
		{RunID: "run-2", Seq: 1, Type: types.EventTypeActionStatus,
			ActionID: "7", ActionType: types.ActionTypeBuild, Status: types.StatusRunning},
	}
	s := Summarize(events)

	if s.Complete {
		t.Error("truncated journal must not report Complete")
	}
	if len(s.Actions) != 1 {
		t.Fatalf("actions = %d, want synthesized row", len(s.Actions))
	}
	if s.Actions[0].Status != types.StatusRunning {
		t.Errorf("status = %s", s.Actions[0].Status)
	}
}

func TestSummarize_Empty(t *testing.T) {
	s := Summarize(nil)
	if s.Events != 0 || len(s.Actions) != 0 || s.Complete {
		t.Errorf("empty summary = %+v", s)
	}
}

package parse

import (
	"fmt"
	"strings"
	"testing"

	"github.com/justapithecus/forge/types"
)

// eventRecorder collects callback firings in order for assertions.
type eventRecorder struct {
	events  []string
	actions []types.Action
}

func (r *eventRecorder) callbacks() Callbacks {
	return Callbacks{
		OnArtifactOpen: func(_ string, a types.Artifact) {
			r.events = append(r.events, "artifact_open:"+a.ID)
		},
		OnArtifactClose: func(_ string, a types.Artifact) {
			r.events = append(r.events, "artifact_close:"+a.ID)
		},
		OnActionOpen: func(_ string, a types.Action) {
			r.events = append(r.events, fmt.Sprintf("action_open:%s:%s", a.Type, a.FilePath))
		},
		OnActionClose: func(_ string, a types.Action) {
			r.events = append(r.events, fmt.Sprintf("action_close:%s", a.Type))
			r.actions = append(r.actions, a)
		},
	}
}

const sampleMessage = `Before text <boltArtifact id="a1" title="T" type="app"><boltAction type="file" filePath="src/App.tsx">console.log(1)</boltAction></boltArtifact> after text`

func TestParse_OneShot(t *testing.T) {
	rec := &eventRecorder{}
	p := NewStreamingParser(rec.callbacks(), Options{})

	out, err := p.Parse("m1", sampleMessage)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}

	want := []string{
		"artifact_open:a1",
		"action_open:file:src/App.tsx",
		"action_close:file",
		"artifact_close:a1",
	}
	if len(rec.events) != len(want) {
		t.Fatalf("events = %v, want %v", rec.events, want)
	}
	for i := range want {
		if rec.events[i] != want[i] {
			t.Errorf("event[%d] = %q, want %q", i, rec.events[i], want[i])
		}
	}

	if got := rec.actions[0].Content; got != "console.log(1)\n" {
		t.Errorf("action content = %q, want %q", got, "console.log(1)\n")
	}

	if !strings.HasPrefix(out, "Before text ") || !strings.HasSuffix(out, " after text") {
		t.Errorf("passthrough output mangled prose: %q", out)
	}
	if strings.Contains(out, "boltArtifact") || strings.Contains(out, "boltAction") {
		t.Errorf("passthrough output leaked tags: %q", out)
	}
}

func TestParse_Idempotent(t *testing.T) {
	rec := &eventRecorder{}
	p := NewStreamingParser(rec.callbacks(), Options{})

	out1, err := p.Parse("m1", sampleMessage)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	firstCount := len(rec.events)

	out2, err := p.Parse("m1", sampleMessage)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}

	if out2 != "" {
		t.Errorf("second identical parse produced output %q, want empty", out2)
	}
	if len(rec.events) != firstCount {
		t.Errorf("second identical parse fired %d extra callbacks", len(rec.events)-firstCount)
	}
	if out1 == "" {
		t.Error("first parse produced no output")
	}
}

// TestParse_IdempotentMidStream repeats a buffer while an action is
// still open. The stream preview must not re-fire for bytes already
// seen; only a grown buffer may emit again.
func TestParse_IdempotentMidStream(t *testing.T) {
	partial := `<boltArtifact id="a1" title="T"><boltAction type="file" filePath="src/App.tsx">console.log(`

	var streams int
	p := NewStreamingParser(Callbacks{
		OnActionStream: func(string, types.Action) { streams++ },
	}, Options{})

	if _, err := p.Parse("m1", partial); err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if streams != 1 {
		t.Fatalf("first parse fired %d stream callbacks, want 1", streams)
	}

	out, err := p.Parse("m1", partial)
	if err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if out != "" {
		t.Errorf("identical re-parse produced output %q, want empty", out)
	}
	if streams != 1 {
		t.Errorf("identical re-parse fired %d duplicate stream callbacks", streams-1)
	}

	if _, err := p.Parse("m1", partial+"1)"); err != nil {
		t.Fatalf("unexpected parse error: %v", err)
	}
	if streams != 2 {
		t.Errorf("grown buffer fired %d stream callbacks, want 2", streams)
	}
}

// TestParse_ChunkBoundaryInvariance verifies that splitting the buffer at
// any byte offset yields the same open/close event sequence as a single
// full-buffer parse. Stream events are a preview side channel and are
// excluded by the recorder.
func TestParse_ChunkBoundaryInvariance(t *testing.T) {
	full := &eventRecorder{}
	p := NewStreamingParser(full.callbacks(), Options{})
	if _, err := p.Parse("ref", sampleMessage); err != nil {
		t.Fatalf("reference parse failed: %v", err)
	}

	for split := 1; split < len(sampleMessage); split++ {
		rec := &eventRecorder{}
		sp := NewStreamingParser(rec.callbacks(), Options{})

		var out strings.Builder
		for _, buf := range []string{sampleMessage[:split], sampleMessage} {
			frag, err := sp.Parse("m", buf)
			if err != nil {
				t.Fatalf("split %d: parse error: %v", split, err)
			}
			out.WriteString(frag)
		}

		if len(rec.events) != len(full.events) {
			t.Fatalf("split %d: events = %v, want %v", split, rec.events, full.events)
		}
		for i := range full.events {
			if rec.events[i] != full.events[i] {
				t.Fatalf("split %d: event[%d] = %q, want %q", split, i, rec.events[i], full.events[i])
			}
		}
		if rec.actions[0].Content != full.actions[0].Content {
			t.Fatalf("split %d: content = %q, want %q", split, rec.actions[0].Content, full.actions[0].Content)
		}
	}
}

func TestParse_StreamCallbackForFileActions(t *testing.T) {
	var streamed []string
	cb := Callbacks{
		OnActionStream: func(_ string, a types.Action) {
			streamed = append(streamed, a.Content)
		},
	}
	p := NewStreamingParser(cb, Options{})

	partial := `<boltArtifact id="a1" title="T"><boltAction type="file" filePath="a.js">let x = 1`
	if _, err := p.Parse("m1", partial); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(streamed) == 0 {
		t.Fatal("expected a stream callback for partial file content")
	}
	if got := streamed[len(streamed)-1]; got != "let x = 1" {
		t.Errorf("stream snapshot = %q, want %q", got, "let x = 1")
	}
}

func TestFinalize_RecoversUnclosedAction(t *testing.T) {
	rec := &eventRecorder{}
	p := NewStreamingParser(rec.callbacks(), Options{})

	truncated := `<boltArtifact id="a1" title="T"><boltAction type="file" filePath="a.js">const a = 1`
	if _, err := p.Parse("m1", truncated); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p.Finalize("m1")

	var closes int
	for _, e := range rec.events {
		if strings.HasPrefix(e, "action_close") {
			closes++
		}
	}
	if closes != 1 {
		t.Fatalf("expected exactly one action close after finalize, got %d", closes)
	}
	if got := rec.actions[0].Content; got != "const a = 1\n" {
		t.Errorf("recovered content = %q, want %q", got, "const a = 1\n")
	}
	if last := rec.events[len(rec.events)-1]; last != "artifact_close:a1" {
		t.Errorf("expected artifact close last, got %q", last)
	}

	// A second finalize must not re-fire close events.
	before := len(rec.events)
	p.Finalize("m1")
	if len(rec.events) != before {
		t.Error("second finalize re-fired close events")
	}
}

func TestParse_InvalidServiceOperation(t *testing.T) {
	p := NewStreamingParser(Callbacks{}, Options{})

	input := `<boltArtifact id="a1" title="T"><boltAction type="external-service" operation="migrate">x</boltAction></boltArtifact>`
	if _, err := p.Parse("m1", input); err == nil {
		t.Fatal("expected structural error for invalid operation")
	}
}

func TestParse_UnknownActionTypeTolerated(t *testing.T) {
	rec := &eventRecorder{}
	p := NewStreamingParser(rec.callbacks(), Options{})

	input := `<boltArtifact id="a1" title="T"><boltAction type="deploy">payload</boltAction></boltArtifact>`
	if _, err := p.Parse("m1", input); err != nil {
		t.Fatalf("unknown action type must not fail the parse: %v", err)
	}

	if len(rec.actions) != 1 || rec.actions[0].Type != "deploy" {
		t.Fatalf("expected one tolerated action of type deploy, got %v", rec.actions)
	}
}

func TestParse_MultipleActionsSequentialIDs(t *testing.T) {
	rec := &eventRecorder{}
	p := NewStreamingParser(rec.callbacks(), Options{})

	input := `<boltArtifact id="a1" title="T">` +
		`<boltAction type="shell">npm install</boltAction>` +
		`<boltAction type="file" filePath="a.js">x</boltAction>` +
		`<boltAction type="start">npm run dev</boltAction>` +
		`</boltArtifact>`
	if _, err := p.Parse("m1", input); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(rec.actions) != 3 {
		t.Fatalf("expected 3 closed actions, got %d", len(rec.actions))
	}
	for i, a := range rec.actions {
		if want := fmt.Sprintf("%d", i); a.ID != want {
			t.Errorf("action[%d].ID = %q, want %q", i, a.ID, want)
		}
	}
	if rec.actions[0].Content != "npm install" {
		t.Errorf("shell content = %q, want trimmed command", rec.actions[0].Content)
	}
}

func TestParse_MarkdownFilePassthrough(t *testing.T) {
	rec := &eventRecorder{}
	p := NewStreamingParser(rec.callbacks(), Options{})

	raw := "# Title\n\n```js\ncode\n```"
	input := `<boltArtifact id="a1" title="T"><boltAction type="file" filePath="README.md">` + raw + `</boltAction></boltArtifact>`
	if _, err := p.Parse("m1", input); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := rec.actions[0].Content; got != raw {
		t.Errorf("markdown content modified: %q", got)
	}
}

func TestParse_SeparateMessagesIndependent(t *testing.T) {
	rec := &eventRecorder{}
	p := NewStreamingParser(rec.callbacks(), Options{})

	if _, err := p.Parse("m1", sampleMessage); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := p.Parse("m2", sampleMessage); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Each message assigns action IDs from its own counter.
	if rec.actions[0].ID != "0" || rec.actions[1].ID != "0" {
		t.Errorf("per-message action IDs = %q, %q, want 0, 0", rec.actions[0].ID, rec.actions[1].ID)
	}
}

func TestReset_DropsState(t *testing.T) {
	rec := &eventRecorder{}
	p := NewStreamingParser(rec.callbacks(), Options{})

	if _, err := p.Parse("m1", sampleMessage); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	p.Reset()

	// After reset the same buffer parses from scratch and re-fires events.
	before := len(rec.events)
	if _, err := p.Parse("m1", sampleMessage); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rec.events) == before {
		t.Error("expected events to re-fire after reset")
	}
}

package journal

import (
	"bytes"
	"context"
	"errors"
	"io"
	"path/filepath"
	"sync"
	"testing"

	"github.com/justapithecus/forge/types"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)

	in := []*types.EventEnvelope{
		{Type: types.EventTypeArtifactOpen, ArtifactID: "a1", Payload: map[string]any{"title": "T"}},
		{Type: types.EventTypeActionOpen, ArtifactID: "a1", ActionID: "0", ActionType: types.ActionTypeFile},
		{Type: types.EventTypeRunComplete},
	}
	for _, e := range in {
		if err := enc.WriteEnvelope(e); err != nil {
			t.Fatalf("WriteEnvelope failed: %v", err)
		}
	}

	dec := NewDecoder(&buf)
	for i, want := range in {
		got, err := dec.ReadEnvelope()
		if err != nil {
			t.Fatalf("ReadEnvelope[%d] failed: %v", i, err)
		}
		if got.Type != want.Type || got.ArtifactID != want.ArtifactID || got.ActionID != want.ActionID {
			t.Errorf("envelope[%d] = %+v, want %+v", i, got, want)
		}
	}
	if _, err := dec.ReadEnvelope(); err != io.EOF {
		t.Errorf("expected EOF after last frame, got %v", err)
	}
}

func TestDecoder_PartialFrameIsFatal(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	if err := enc.WriteEnvelope(&types.EventEnvelope{Type: types.EventTypeAlert}); err != nil {
		t.Fatalf("WriteEnvelope failed: %v", err)
	}

	truncated := buf.Bytes()[:buf.Len()-2]
	dec := NewDecoder(bytes.NewReader(truncated))
	_, err := dec.ReadEnvelope()
	if !IsFatalFrameError(err) {
		t.Errorf("expected fatal frame error, got %v", err)
	}
	var fe *FrameError
	if !errors.As(err, &fe) || fe.Kind != FrameErrorPartial {
		t.Errorf("expected FrameErrorPartial, got %v", err)
	}
}

func TestDecoder_OversizedFrameIsFatal(t *testing.T) {
	var prefix [LengthPrefixSize]byte
	prefix[0] = 0xFF
	prefix[1] = 0xFF
	prefix[2] = 0xFF
	prefix[3] = 0xFF

	dec := NewDecoder(bytes.NewReader(prefix[:]))
	_, err := dec.ReadFrame()
	var fe *FrameError
	if !errors.As(err, &fe) || fe.Kind != FrameErrorTooLarge {
		t.Errorf("expected FrameErrorTooLarge, got %v", err)
	}
}

// stubSink records batches and can be made to fail.
type stubSink struct {
	mu      sync.Mutex
	batches [][]*types.EventEnvelope
	fail    bool
	closed  bool
}

func (s *stubSink) WriteEvents(_ context.Context, events []*types.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.New("sink unavailable")
	}
	batch := append([]*types.EventEnvelope(nil), events...)
	s.batches = append(s.batches, batch)
	return nil
}

func (s *stubSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *stubSink) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, b := range s.batches {
		n += len(b)
	}
	return n
}

var testMeta = types.RunMeta{RunID: "run-1", Workspace: "/ws"}

func TestJournal_CountFlush(t *testing.T) {
	sink := &stubSink{}
	j, err := New(sink, testMeta, Config{FlushCount: 2})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		if err := j.Append(ctx, &types.EventEnvelope{Type: types.EventTypeActionStream}); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	if got := sink.total(); got != 2 {
		t.Errorf("persisted %d records before threshold flush, want 2", got)
	}
	stats := j.Stats()
	if stats.Appended != 3 || stats.Buffered != 1 {
		t.Errorf("stats = %+v, want 3 appended 1 buffered", stats)
	}

	if err := j.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if got := sink.total(); got != 3 {
		t.Errorf("persisted %d records after close, want 3", got)
	}
	if !sink.closed {
		t.Error("sink not closed")
	}
}

func TestJournal_StampsIdentityAndSequence(t *testing.T) {
	sink := &stubSink{}
	j, err := New(sink, testMeta, Config{FlushCount: 1})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer j.Close()

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if err := j.Append(ctx, &types.EventEnvelope{Type: types.EventTypeAlert}); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	sink.mu.Lock()
	defer sink.mu.Unlock()
	seq := int64(1)
	for _, batch := range sink.batches {
		for _, e := range batch {
			if e.RunID != "run-1" || e.JournalVersion != types.JournalVersion {
				t.Errorf("identity not stamped: %+v", e)
			}
			if e.Seq != seq {
				t.Errorf("seq = %d, want %d", e.Seq, seq)
			}
			if e.Ts == "" {
				t.Error("timestamp not stamped")
			}
			seq++
		}
	}
}

func TestJournal_FailedFlushPreservesBuffer(t *testing.T) {
	sink := &stubSink{fail: true}
	j, err := New(sink, testMeta, Config{FlushCount: 1})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	ctx := context.Background()
	if err := j.Append(ctx, &types.EventEnvelope{Type: types.EventTypeAlert}); err == nil {
		t.Fatal("expected flush error")
	}

	stats := j.Stats()
	if stats.Buffered != 1 || stats.Errors != 1 {
		t.Errorf("stats after failure = %+v, want 1 buffered 1 error", stats)
	}

	// Sink recovers; the preserved record flushes on the next trigger.
	sink.mu.Lock()
	sink.fail = false
	sink.mu.Unlock()
	if err := j.Flush(ctx); err != nil {
		t.Fatalf("recovery flush failed: %v", err)
	}
	if got := sink.total(); got != 1 {
		t.Errorf("persisted %d records after recovery, want 1", got)
	}
	_ = j.Close()
}

func TestFileSink_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.journal")
	sink, err := NewFileSink(path)
	if err != nil {
		t.Fatalf("NewFileSink failed: %v", err)
	}

	events := []*types.EventEnvelope{
		{RunID: "run-1", Seq: 1, Type: types.EventTypeArtifactOpen},
		{RunID: "run-1", Seq: 2, Type: types.EventTypeRunComplete},
	}
	if err := sink.WriteEvents(context.Background(), events); err != nil {
		t.Fatalf("WriteEvents failed: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	decoded, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if len(decoded) != 2 || decoded[1].Type != types.EventTypeRunComplete {
		t.Errorf("decoded = %+v", decoded)
	}
}

package journal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/justapithecus/forge/log"
	"github.com/justapithecus/forge/types"
)

// Sink persists batches of journal records.
type Sink interface {
	// WriteEvents persists a batch. Either all records in the batch are
	// persisted or the batch fails as a whole.
	WriteEvents(ctx context.Context, events []*types.EventEnvelope) error
	Close() error
}

// Config configures a Journal's flush behavior.
type Config struct {
	// FlushCount triggers a flush after N records accumulate.
	// Zero disables count-based flushing.
	FlushCount int
	// FlushInterval triggers a flush every interval.
	// Zero disables interval-based flushing.
	FlushInterval time.Duration
	// Logger is optional.
	Logger *log.Logger
}

// ErrInvalidConfig is returned when neither flush trigger is set.
var ErrInvalidConfig = errors.New("invalid journal config: at least one of FlushCount or FlushInterval must be set")

// FlushTrigger identifies which trigger caused a flush.
type FlushTrigger string

const (
	// FlushTriggerCount indicates a count-threshold flush.
	FlushTriggerCount FlushTrigger = "count"
	// FlushTriggerInterval indicates an interval-based flush.
	FlushTriggerInterval FlushTrigger = "interval"
	// FlushTriggerTermination indicates an end-of-run flush.
	FlushTriggerTermination FlushTrigger = "termination"
)

// Stats is an atomic snapshot of journal counters.
type Stats struct {
	Appended  int64
	Persisted int64
	Flushes   int64
	Errors    int64
	Buffered  int
}

// Journal records run events with batched persistence. Records are never
// dropped: a failed flush preserves the buffer and retries on the next
// trigger.
//
// mu guards the buffer and counters; flushMu serializes flush writes so
// the interval goroutine and a count trigger never write concurrently.
type Journal struct {
	sink   Sink
	config Config
	logger *log.Logger
	meta   types.RunMeta

	mu        sync.Mutex
	buffer    []*types.EventEnvelope
	seq       int64
	appended  int64
	persisted int64
	flushes   int64
	errors    int64
	stopped   bool

	flushMu sync.Mutex
	stopCh  chan struct{}
}

// New creates a Journal writing to sink.
func New(sink Sink, meta types.RunMeta, config Config) (*Journal, error) {
	if config.FlushCount <= 0 && config.FlushInterval <= 0 {
		return nil, ErrInvalidConfig
	}
	logger := config.Logger
	if logger == nil {
		logger = log.Nop()
	}

	j := &Journal{
		sink:   sink,
		config: config,
		logger: logger,
		meta:   meta,
		buffer: make([]*types.EventEnvelope, 0, 128),
		stopCh: make(chan struct{}),
	}
	if config.FlushInterval > 0 {
		go j.intervalLoop()
	}
	return j, nil
}

// Append stamps the envelope with run identity, sequence number, version,
// and timestamp, then buffers it. A count-threshold breach triggers a
// flush.
func (j *Journal) Append(ctx context.Context, envelope *types.EventEnvelope) error {
	j.mu.Lock()
	j.seq++
	envelope.JournalVersion = types.JournalVersion
	envelope.RunID = j.meta.RunID
	envelope.Seq = j.seq
	envelope.Ts = time.Now().UTC().Format(time.RFC3339Nano)

	j.buffer = append(j.buffer, envelope)
	j.appended++
	shouldFlush := j.config.FlushCount > 0 && len(j.buffer) >= j.config.FlushCount
	j.mu.Unlock()

	if shouldFlush {
		return j.triggerFlush(ctx, FlushTriggerCount)
	}
	return nil
}

// Flush persists all buffered records (end-of-run trigger).
func (j *Journal) Flush(ctx context.Context) error {
	return j.triggerFlush(ctx, FlushTriggerTermination)
}

// triggerFlush swaps the buffer under mu, writes outside mu, and
// restores the batch in front of any newer records on failure.
func (j *Journal) triggerFlush(ctx context.Context, trigger FlushTrigger) error {
	j.flushMu.Lock()
	defer j.flushMu.Unlock()

	j.mu.Lock()
	events := j.buffer
	if len(events) == 0 {
		j.mu.Unlock()
		return nil
	}
	j.buffer = make([]*types.EventEnvelope, 0, 128)
	j.flushes++
	j.mu.Unlock()

	if err := j.sink.WriteEvents(ctx, events); err != nil {
		j.mu.Lock()
		j.errors++
		j.buffer = append(events, j.buffer...)
		j.mu.Unlock()
		j.logger.Error("journal flush failed", map[string]any{
			"trigger": string(trigger),
			"events":  len(events),
			"error":   err.Error(),
		})
		return err
	}

	j.mu.Lock()
	j.persisted += int64(len(events))
	j.mu.Unlock()

	j.logger.Debug("journal flush", map[string]any{
		"trigger": string(trigger),
		"events":  len(events),
	})
	return nil
}

// Close stops the interval goroutine, flushes best-effort, and closes
// the sink.
func (j *Journal) Close() error {
	j.mu.Lock()
	if !j.stopped {
		j.stopped = true
		close(j.stopCh)
	}
	j.mu.Unlock()

	_ = j.Flush(context.Background())
	return j.sink.Close()
}

// Stats returns an atomic snapshot of journal counters.
func (j *Journal) Stats() Stats {
	j.mu.Lock()
	defer j.mu.Unlock()
	return Stats{
		Appended:  j.appended,
		Persisted: j.persisted,
		Flushes:   j.flushes,
		Errors:    j.errors,
		Buffered:  len(j.buffer),
	}
}

func (j *Journal) intervalLoop() {
	ticker := time.NewTicker(j.config.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			j.mu.Lock()
			hasData := len(j.buffer) > 0
			j.mu.Unlock()
			if hasData {
				// Best-effort; errors are logged and the batch retried.
				_ = j.triggerFlush(context.Background(), FlushTriggerInterval)
			}
		case <-j.stopCh:
			return
		}
	}
}

// FileSink writes journal frames to a local file.
type FileSink struct {
	mu      sync.Mutex
	file    *os.File
	encoder *Encoder
}

var _ Sink = (*FileSink)(nil)

// NewFileSink creates (truncating) the journal file at path.
func NewFileSink(path string) (*FileSink, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create journal file: %w", err)
	}
	return &FileSink{file: f, encoder: NewEncoder(f)}, nil
}

// WriteEvents appends a batch of frames to the file.
func (s *FileSink) WriteEvents(_ context.Context, events []*types.EventEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, e := range events {
		if err := s.encoder.WriteEnvelope(e); err != nil {
			return err
		}
	}
	return s.file.Sync()
}

// Close closes the journal file.
func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.file.Close()
}

// ReadFile decodes every envelope in a journal file. Undecodable
// payloads are skipped; a fatal frame error returns the records decoded
// so far alongside the error.
func ReadFile(path string) ([]*types.EventEnvelope, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	defer f.Close()

	dec := NewDecoder(f)
	var out []*types.EventEnvelope
	for {
		envelope, err := dec.ReadEnvelope()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			if IsFatalFrameError(err) {
				return out, err
			}
			continue
		}
		out = append(out, envelope)
	}
}

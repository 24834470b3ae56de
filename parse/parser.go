// Package parse implements the incremental message parser for the Forge
// tag grammar.
//
// The parser consumes a growing text buffer per message and emits
// artifact/action open, stream, and close callbacks as soon as tag
// boundaries are recognized. The caller always passes the entire
// accumulated buffer; the parser tracks its own cursor per message, so
// repeated calls with the same buffer are no-ops and calls with an
// extended buffer resume exactly where parsing left off.
package parse

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/justapithecus/forge/log"
	"github.com/justapithecus/forge/types"
)

// Tag grammar literals. These must match the wire format exactly.
const (
	artifactOpenPrefix = "<boltArtifact"
	artifactCloseTag   = "</boltArtifact>"
	actionOpenPrefix   = "<boltAction"
	actionCloseTag     = "</boltAction>"
)

// Callbacks receives parser events. Any callback may be nil.
// Ownership of emitted artifacts and actions passes to the receiver;
// the parser never mutates them after emission.
type Callbacks struct {
	OnArtifactOpen  func(messageID string, artifact types.Artifact)
	OnArtifactClose func(messageID string, artifact types.Artifact)
	OnActionOpen    func(messageID string, action types.Action)
	// OnActionStream carries a best-effort cleaned snapshot of a file
	// action's content-so-far, for live preview while the close tag has
	// not yet arrived.
	OnActionStream func(messageID string, action types.Action)
	OnActionClose  func(messageID string, action types.Action)
}

// Options configures parser behavior.
type Options struct {
	// ArtifactPlaceholder renders the display marker substituted for an
	// artifact block in the passthrough output. Defaults to a bracketed
	// title marker.
	ArtifactPlaceholder func(artifact types.Artifact) string
	// Logger receives parse-time advisory warnings. Defaults to a no-op.
	Logger *log.Logger
}

// messageState tracks incremental parse progress for one message.
type messageState struct {
	// position is the cursor into the raw buffer processed so far.
	// While inside an action it rests at the action's content start,
	// waiting for the close tag.
	position       int
	insideArtifact bool
	insideAction   bool
	artifact       types.Artifact
	action         types.Action
	// actionSeq assigns action IDs. Monotonic; an ID is never reused
	// within a message.
	actionSeq int
	// lastInput is the last full buffer seen, needed to recover
	// unflushed content when the stream ends abruptly.
	lastInput string
}

// StreamingParser extracts artifacts and actions from streamed model
// output. Safe for concurrent use across distinct messages; calls for
// the same message must be serialized by the caller.
type StreamingParser struct {
	callbacks Callbacks
	opts      Options

	mu       sync.Mutex
	messages map[string]*messageState
}

// NewStreamingParser creates a parser with the given callbacks.
func NewStreamingParser(callbacks Callbacks, opts Options) *StreamingParser {
	if opts.ArtifactPlaceholder == nil {
		opts.ArtifactPlaceholder = defaultPlaceholder
	}
	if opts.Logger == nil {
		opts.Logger = log.Nop()
	}
	return &StreamingParser{
		callbacks: callbacks,
		opts:      opts,
		messages:  make(map[string]*messageState),
	}
}

func defaultPlaceholder(artifact types.Artifact) string {
	title := artifact.Title
	if title == "" {
		title = artifact.ID
	}
	return "[artifact: " + title + "]"
}

// Parse consumes new bytes of the message buffer and returns the newly
// produced passthrough fragment (original prose with artifact blocks
// replaced by placeholder markers).
//
// The caller must pass the entire accumulated buffer for the message,
// not a delta. Passing a buffer identical to the previous call is a
// no-op. A structural error (invalid external-service operation) is
// fatal to this message's parse.
func (p *StreamingParser) Parse(messageID, input string) (string, error) {
	st := p.state(messageID)

	// Identical buffer to the previous call: everything emittable has
	// already been emitted, including the stream snapshot of an open
	// action. Re-firing it would duplicate downstream journal records
	// and preview writes.
	if input == st.lastInput {
		return "", nil
	}

	if len(input) < st.position {
		p.opts.Logger.Warn("message buffer shrank, ignoring", map[string]any{
			"message_id": messageID,
			"position":   st.position,
			"length":     len(input),
		})
		return "", nil
	}

	var out strings.Builder
	i := st.position

	for i < len(input) {
		switch {
		case st.insideAction:
			advanced, err := p.scanActionContent(messageID, st, input, &i)
			if err != nil {
				return out.String(), err
			}
			if !advanced {
				// Waiting for the close tag; cursor stays at content start.
				st.lastInput = input
				st.position = i
				return out.String(), nil
			}

		case st.insideArtifact:
			advanced, err := p.scanInsideArtifact(messageID, st, input, &i)
			if err != nil {
				return out.String(), err
			}
			if !advanced {
				st.lastInput = input
				st.position = i
				return out.String(), nil
			}

		default:
			if !p.scanProse(messageID, st, input, &i, &out) {
				st.lastInput = input
				st.position = i
				return out.String(), nil
			}
		}
	}

	st.lastInput = input
	st.position = i
	return out.String(), nil
}

// scanProse handles the outside-artifact state: passthrough prose until
// an artifact-open tag. Returns false when parsing must pause for more
// input.
func (p *StreamingParser) scanProse(messageID string, st *messageState, input string, i *int, out *strings.Builder) bool {
	rest := input[*i:]
	openIdx := strings.Index(rest, artifactOpenPrefix)
	if openIdx == -1 {
		// Hold back a trailing partial tag prefix so a tag split across
		// chunk boundaries is not emitted as prose.
		hold := partialTagHoldback(rest, artifactOpenPrefix)
		out.WriteString(rest[:hold])
		*i += hold
		return false
	}

	out.WriteString(rest[:openIdx])
	tagStart := *i + openIdx

	tagEnd := strings.Index(input[tagStart:], ">")
	if tagEnd == -1 {
		// Opening tag not fully buffered yet.
		*i = tagStart
		return false
	}

	tag := input[tagStart : tagStart+tagEnd+1]
	attrs := scanAttributes(tag)

	st.artifact = types.Artifact{
		ID:        attrs["id"],
		MessageID: messageID,
		Title:     attrs["title"],
		Kind:      attrs["type"],
	}
	if st.artifact.ID == "" {
		p.opts.Logger.Warn("artifact open tag missing id attribute", map[string]any{
			"message_id": messageID,
		})
	}
	st.insideArtifact = true

	if p.callbacks.OnArtifactOpen != nil {
		p.callbacks.OnArtifactOpen(messageID, st.artifact)
	}
	out.WriteString(p.opts.ArtifactPlaceholder(st.artifact))

	*i = tagStart + tagEnd + 1
	return true
}

// scanInsideArtifact handles the inside-artifact, outside-action state:
// the next action-open tag or the artifact-close tag, whichever occurs
// first by buffer position.
func (p *StreamingParser) scanInsideArtifact(messageID string, st *messageState, input string, i *int) (bool, error) {
	rest := input[*i:]
	actionIdx := strings.Index(rest, actionOpenPrefix)
	closeIdx := strings.Index(rest, artifactCloseTag)

	if actionIdx != -1 && (closeIdx == -1 || actionIdx < closeIdx) {
		tagStart := *i + actionIdx
		tagEnd := strings.Index(input[tagStart:], ">")
		if tagEnd == -1 {
			*i = tagStart
			return false, nil
		}

		tag := input[tagStart : tagStart+tagEnd+1]
		action, err := p.openAction(messageID, st, tag)
		if err != nil {
			return false, err
		}

		st.action = action
		st.insideAction = true
		if p.callbacks.OnActionOpen != nil {
			p.callbacks.OnActionOpen(messageID, action)
		}

		*i = tagStart + tagEnd + 1
		return true, nil
	}

	if closeIdx != -1 {
		artifact := st.artifact
		st.insideArtifact = false
		if p.callbacks.OnArtifactClose != nil {
			p.callbacks.OnArtifactClose(messageID, artifact)
		}
		*i += closeIdx + len(artifactCloseTag)
		return true, nil
	}

	// Neither tag found yet; wait for more input without consuming.
	return false, nil
}

// scanActionContent handles the inside-action state: accumulate content
// until the action-close tag.
func (p *StreamingParser) scanActionContent(messageID string, st *messageState, input string, i *int) (bool, error) {
	rest := input[*i:]
	closeIdx := strings.Index(rest, actionCloseTag)
	if closeIdx == -1 {
		if st.action.Type == types.ActionTypeFile && p.callbacks.OnActionStream != nil {
			snapshot := st.action
			snapshot.Content = CleanFileContent(rest)
			p.callbacks.OnActionStream(messageID, snapshot)
		}
		return false, nil
	}

	action := st.action
	action.Content = finalizeContent(action, rest[:closeIdx])
	st.insideAction = false

	if p.callbacks.OnActionClose != nil {
		p.callbacks.OnActionClose(messageID, action)
	}

	*i += closeIdx + len(actionCloseTag)
	return true, nil
}

// openAction parses an action-open tag into a new Action with the next
// sequence ID.
func (p *StreamingParser) openAction(messageID string, st *messageState, tag string) (types.Action, error) {
	attrs := scanAttributes(tag)

	action := types.Action{
		ID:         strconv.Itoa(st.actionSeq),
		ArtifactID: st.artifact.ID,
		Type:       types.ActionType(attrs["type"]),
		FilePath:   attrs["filePath"],
	}
	st.actionSeq++

	switch action.Type {
	case types.ActionTypeFile:
		if action.FilePath == "" {
			// Advisory only; execution will fail the action later.
			p.opts.Logger.Warn("file action missing filePath attribute", map[string]any{
				"message_id": messageID,
				"action_id":  action.ID,
			})
		}
	case types.ActionTypeService:
		op, err := types.ParseServiceOperation(attrs["operation"])
		if err != nil {
			return types.Action{}, fmt.Errorf("action %s: %w", action.ID, err)
		}
		action.Operation = op
	case types.ActionTypeShell, types.ActionTypeStart, types.ActionTypeBuild:
		// No extra attributes.
	default:
		p.opts.Logger.Warn("unknown action type", map[string]any{
			"message_id":  messageID,
			"action_id":   action.ID,
			"action_type": string(action.Type),
		})
	}

	return action, nil
}

// Finalize force-closes any open action and artifact for the message,
// recovering bytes the main loop had not yet consumed because it was
// waiting for a close tag that never arrived. Call it when the
// underlying stream ends, on success or truncation.
func (p *StreamingParser) Finalize(messageID string) {
	st := p.state(messageID)

	if st.insideAction {
		action := st.action
		action.Content = finalizeContent(action, st.lastInput[st.position:])
		st.insideAction = false
		st.position = len(st.lastInput)

		if p.callbacks.OnActionClose != nil {
			p.callbacks.OnActionClose(messageID, action)
		}
	}

	if st.insideArtifact {
		artifact := st.artifact
		st.insideArtifact = false
		if p.callbacks.OnArtifactClose != nil {
			p.callbacks.OnArtifactClose(messageID, artifact)
		}
	}
}

// Reset drops all per-message state. Used when a conversation is
// discarded.
func (p *StreamingParser) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = make(map[string]*messageState)
}

func (p *StreamingParser) state(messageID string) *messageState {
	p.mu.Lock()
	defer p.mu.Unlock()

	st, ok := p.messages[messageID]
	if !ok {
		st = &messageState{}
		p.messages[messageID] = st
	}
	return st
}

// partialTagHoldback returns the length of s that is safe to emit as
// prose, holding back a trailing '<...' run that could still turn out to
// be the given tag split across a chunk boundary.
func partialTagHoldback(s, tag string) int {
	start := len(s) - len(tag) + 1
	if start < 0 {
		start = 0
	}
	for j := start; j < len(s); j++ {
		if s[j] == '<' && strings.HasPrefix(tag, s[j:]) {
			return j
		}
	}
	return len(s)
}

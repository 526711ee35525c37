package stream

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"

	"github.com/spoq-dev/spoq/internal/cache"
	"github.com/spoq-dev/spoq/internal/streamevt"
)

// maxLineSize bounds a single NDJSON line. Tool argument chunks and
// permission tool_input payloads are the largest variants seen in
// practice; this comfortably covers them without letting a runaway
// response exhaust memory.
const maxLineSize = 8 * 1024 * 1024

// Request is the JSON body posted to the stream endpoint.
type Request struct {
	Content    string `json:"content"`
	ThreadID   string `json:"thread_id,omitempty"`
	ThreadType string `json:"thread_type,omitempty"`
	PlanMode   bool   `json:"plan_mode,omitempty"`
}

// NewRequest builds a Request for submission, omitting ThreadID for
// a brand new thread. PlanMode only has meaning for Programming
// threads; it's dropped otherwise.
func NewRequest(content, threadID string, kind cache.ThreadKind, planMode bool) Request {
	req := Request{Content: content, ThreadID: threadID}
	switch kind {
	case cache.ThreadProgramming:
		req.ThreadType = "programming"
		req.PlanMode = planMode
	case cache.ThreadConversation:
		req.ThreadType = "conversation"
	}
	return req
}

// Body marshals the request for the HTTP POST body.
func (r Request) Body() ([]byte, error) {
	return json.Marshal(r)
}

// DebugSink receives best-effort diagnostic events from a session. A
// nil DebugSink is valid and simply means no one is watching.
type DebugSink interface {
	Emit(threadID, phase string, detail string)
}

// RunSession reads newline-delimited events from body, translating
// each into bus messages sent to out, until the reader is exhausted,
// ctx is cancelled, or an `error` event arrives. It never returns an
// error: malformed lines and transport failures are reported to debug
// (if non-nil) and otherwise swallowed, matching the session's
// local-recovery contract.
//
// Callers run this in its own goroutine per submission; cancelling
// ctx drops the session without further cache mutation (the caller
// is responsible for calling cache.CancelStreamingMessage).
func RunSession(ctx context.Context, threadID string, body io.Reader, out chan<- BusMessage, debug DebugSink) {
	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 64*1024), maxLineSize)

	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		default:
		}

		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}

		event, err := streamevt.Decode(line)
		if err != nil {
			if debug != nil {
				debug.Emit(threadID, "malformed_event", err.Error())
			}
			continue
		}
		if debug != nil {
			debug.Emit(threadID, string(event.Type), "")
		}

		for _, msg := range translate(threadID, event) {
			select {
			case out <- msg:
			case <-ctx.Done():
				return
			}
		}

		if event.Type == streamevt.TypeError {
			return
		}
	}

	if err := scanner.Err(); err != nil && debug != nil {
		debug.Emit(threadID, "transport_error", err.Error())
	}
}

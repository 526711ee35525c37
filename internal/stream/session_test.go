package stream

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/spoq-dev/spoq/internal/cache"
)

func drain(t *testing.T, out <-chan BusMessage, n int) []BusMessage {
	t.Helper()
	msgs := make([]BusMessage, 0, n)
	for i := 0; i < n; i++ {
		select {
		case m := <-out:
			msgs = append(msgs, m)
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for message %d/%d, got %d", i+1, n, len(msgs))
		}
	}
	return msgs
}

func TestRunSessionTranslatesContentAndDone(t *testing.T) {
	body := strings.NewReader(
		`{"type":"content","text":"Hel"}` + "\n" +
			`{"type":"content","text":"lo"}` + "\n" +
			`{"type":"done","message_id":"42"}` + "\n",
	)
	out := make(chan BusMessage, 8)
	RunSession(context.Background(), "t-1", body, out, nil)
	close(out)

	msgs := drain(t, out, 3)
	if msgs[0].Kind != KindStreamToken || msgs[0].StreamToken.Text != "Hel" {
		t.Fatalf("unexpected first message: %+v", msgs[0])
	}
	if msgs[1].StreamToken.Text != "lo" {
		t.Fatalf("unexpected second message: %+v", msgs[1])
	}
	if msgs[2].Kind != KindStreamComplete || msgs[2].StreamComplete.MessageID != 42 {
		t.Fatalf("unexpected done message: %+v", msgs[2])
	}
}

func TestRunSessionDropsEmptyChunks(t *testing.T) {
	body := strings.NewReader(
		`{"type":"content","text":""}` + "\n" +
			`{"type":"reasoning","text":""}` + "\n" +
			`{"type":"content","text":"real"}` + "\n",
	)
	out := make(chan BusMessage, 8)
	RunSession(context.Background(), "t-1", body, out, nil)
	close(out)

	var msgs []BusMessage
	for m := range out {
		msgs = append(msgs, m)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected only the non-empty chunk to survive, got %d: %+v", len(msgs), msgs)
	}
	if msgs[0].StreamToken.Text != "real" {
		t.Fatalf("unexpected survivor: %+v", msgs[0])
	}
}

func TestRunSessionStopsOnErrorEvent(t *testing.T) {
	body := strings.NewReader(
		`{"type":"error","message":"backend exploded"}` + "\n" +
			`{"type":"content","text":"should never arrive"}` + "\n",
	)
	out := make(chan BusMessage, 8)
	RunSession(context.Background(), "t-1", body, out, nil)
	close(out)

	msgs := drain(t, out, 1)
	if msgs[0].Kind != KindStreamError || msgs[0].StreamError.Message != "backend exploded" {
		t.Fatalf("unexpected error message: %+v", msgs[0])
	}
	if len(out) != 0 {
		t.Fatal("expected read loop to stop after the error event")
	}
}

func TestRunSessionKeepsDrainingAfterDone(t *testing.T) {
	body := strings.NewReader(
		`{"type":"done","message_id":"1"}` + "\n" +
			`{"type":"thread_updated","thread_id":"t-1","title":"Renamed"}` + "\n",
	)
	out := make(chan BusMessage, 8)
	RunSession(context.Background(), "t-1", body, out, nil)
	close(out)

	msgs := drain(t, out, 2)
	if msgs[0].Kind != KindStreamComplete {
		t.Fatalf("expected done first, got %+v", msgs[0])
	}
	if msgs[1].Kind != KindThreadMetaUpdated || *msgs[1].ThreadMetaUpdated.Title != "Renamed" {
		t.Fatalf("expected thread_updated to still be processed, got %+v", msgs[1])
	}
}

func TestRunSessionSkipsMalformedLineAndContinues(t *testing.T) {
	body := strings.NewReader(
		"not json at all\n" +
			`{"type":"content","text":"survives"}` + "\n",
	)
	var notes []string
	debug := debugSinkFunc(func(threadID, phase, detail string) {
		notes = append(notes, phase)
	})

	out := make(chan BusMessage, 8)
	RunSession(context.Background(), "t-1", body, out, debug)
	close(out)

	msgs := drain(t, out, 1)
	if msgs[0].StreamToken.Text != "survives" {
		t.Fatalf("expected the valid line to still decode, got %+v", msgs[0])
	}
	if len(notes) != 2 || notes[0] != "malformed_event" || notes[1] != "content" {
		t.Fatalf("expected malformed_event then content notes, got %v", notes)
	}
}

func TestRunSessionHonorsCancellation(t *testing.T) {
	body := strings.NewReader(
		`{"type":"content","text":"one"}` + "\n" +
			`{"type":"content","text":"two"}` + "\n",
	)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := make(chan BusMessage, 8)
	RunSession(ctx, "t-1", body, out, nil)
	close(out)

	for range out {
		t.Fatal("expected no messages once the context is already cancelled")
	}
}

func TestRunSessionToolLifecycle(t *testing.T) {
	body := strings.NewReader(
		`{"type":"tool_call_start","tool_name":"bash","tool_call_id":"c1"}` + "\n" +
			`{"type":"tool_call_argument","tool_call_id":"c1","chunk":"ls"}` + "\n" +
			`{"type":"tool_executing","tool_call_id":"c1"}` + "\n" +
			`{"type":"tool_result","tool_call_id":"c1","result":"error: not found"}` + "\n",
	)
	out := make(chan BusMessage, 8)
	RunSession(context.Background(), "t-1", body, out, nil)
	close(out)

	msgs := drain(t, out, 4)
	if msgs[0].Kind != KindToolStarted || msgs[0].ToolStarted.ToolName != "bash" {
		t.Fatalf("unexpected start: %+v", msgs[0])
	}
	if msgs[2].Kind != KindToolExecuting {
		t.Fatalf("unexpected executing: %+v", msgs[2])
	}
	if msgs[3].Kind != KindToolCompleted || msgs[3].ToolCompleted.Success {
		t.Fatalf("expected a failed completion, got %+v", msgs[3])
	}
}

func TestDecideSubmissionOnCommandDeckAlwaysNew(t *testing.T) {
	c := cache.New()
	d := DecideSubmission(c, true, "pending-stale-id", "hi", cache.ThreadNormal)
	if d.Kind != DecisionNew {
		t.Fatalf("expected DecisionNew, got %v", d.Kind)
	}
	if !cache.IsPending(d.ThreadID) {
		t.Fatalf("expected a fresh pending id, got %s", d.ThreadID)
	}
}

func TestDecideSubmissionBlocksOnPendingActiveID(t *testing.T) {
	c := cache.New()
	pending := c.CreatePendingThread("hi", cache.ThreadNormal)
	d := DecideSubmission(c, false, pending, "again", cache.ThreadNormal)
	if d.Kind != DecisionBlocked || d.Message != blockedStillStreaming {
		t.Fatalf("expected blocked-still-streaming, got %+v", d)
	}
}

func TestDecideSubmissionBlocksOnMissingThread(t *testing.T) {
	c := cache.New()
	d := DecideSubmission(c, false, "t-999", "hi", cache.ThreadNormal)
	if d.Kind != DecisionBlocked || d.Message != blockedThreadGone {
		t.Fatalf("expected blocked-thread-gone, got %+v", d)
	}
}

func TestDecideSubmissionContinuesExistingThread(t *testing.T) {
	c := cache.New()
	pending := c.CreatePendingThread("hi", cache.ThreadNormal)
	c.ReconcileThreadID(pending, "t-42", nil)

	d := DecideSubmission(c, false, "t-42", "more", cache.ThreadNormal)
	if d.Kind != DecisionContinue || d.ThreadID != "t-42" {
		t.Fatalf("expected continue on t-42, got %+v", d)
	}
}

func TestDecideSubmissionFallsBackToNewWithNoActiveID(t *testing.T) {
	c := cache.New()
	d := DecideSubmission(c, false, "", "hi", cache.ThreadNormal)
	if d.Kind != DecisionNew {
		t.Fatalf("expected DecisionNew fallback, got %+v", d)
	}
}

type debugSinkFunc func(threadID, phase, detail string)

func (f debugSinkFunc) Emit(threadID, phase, detail string) { f(threadID, phase, detail) }

package owner

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/spoq-dev/spoq/internal/cache"
	"github.com/spoq-dev/spoq/internal/permission"
	"github.com/spoq-dev/spoq/internal/stream"
)

type fakeTransport struct {
	body string
	err  error
}

func (f fakeTransport) Stream(ctx context.Context, req stream.Request) (io.ReadCloser, error) {
	if f.err != nil {
		return nil, f.err
	}
	return io.NopCloser(strings.NewReader(f.body)), nil
}

func runOwnerUntilIdle(t *testing.T, o *Owner, cmd Command) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan struct{})
	go func() {
		o.Run(ctx)
		close(done)
	}()

	o.Commands() <- cmd
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done
	o.Shutdown()
}

func TestOwnerSubmitAppliesStreamedTokens(t *testing.T) {
	c := cache.New()
	body := `{"type":"content","text":"Hello"}` + "\n" + `{"type":"done","message_id":"7"}` + "\n"
	o := New(c, fakeTransport{body: body}, nil, nil, permission.Policy{})

	runOwnerUntilIdle(t, o, Command{
		Kind: CmdSubmit,
		Submit: &SubmitCommand{
			Content:       "hi",
			ThreadKind:    cache.ThreadNormal,
			OnCommandDeck: true,
		},
	})

	order := c.ThreadOrder()
	if len(order) != 1 {
		t.Fatalf("expected one thread, got %d", len(order))
	}
	msgs := c.GetMessages(order[0])
	if len(msgs) != 2 {
		t.Fatalf("expected user + assistant message, got %d", len(msgs))
	}
	assistant := msgs[1]
	if assistant.Content != "Hello" || assistant.Streaming {
		t.Fatalf("expected finalized assistant content, got %+v", assistant)
	}
	if assistant.ID != 7 {
		t.Fatalf("expected finalized id 7, got %d", assistant.ID)
	}
}

func TestOwnerSubmitBlockedOnPendingActiveThreadRecordsError(t *testing.T) {
	c := cache.New()
	pending := c.CreatePendingThread("hi", cache.ThreadNormal)
	o := New(c, fakeTransport{body: ""}, nil, nil, permission.Policy{})

	runOwnerUntilIdle(t, o, Command{
		Kind: CmdSubmit,
		Submit: &SubmitCommand{
			Content:        "again",
			ThreadKind:     cache.ThreadNormal,
			ActiveThreadID: pending,
		},
	})

	thread, ok := c.GetThread(pending)
	if !ok {
		t.Fatal("expected thread to still exist")
	}
	if len(thread.Errors) != 1 || thread.Errors[0].Kind != "submission_blocked" {
		t.Fatalf("expected a submission_blocked error, got %+v", thread.Errors)
	}
}

func TestOwnerTransportErrorSurfacesAsStreamError(t *testing.T) {
	c := cache.New()
	o := New(c, fakeTransport{err: errors.New("connection refused")}, nil, nil, permission.Policy{})

	runOwnerUntilIdle(t, o, Command{
		Kind: CmdSubmit,
		Submit: &SubmitCommand{
			Content:       "hi",
			ThreadKind:    cache.ThreadNormal,
			OnCommandDeck: true,
		},
	})

	order := c.ThreadOrder()
	if len(order) != 1 {
		t.Fatalf("expected one thread, got %d", len(order))
	}
	thread, _ := c.GetThread(order[0])
	if len(thread.Errors) != 1 || thread.Errors[0].Kind != "stream" {
		t.Fatalf("expected a stream error, got %+v", thread.Errors)
	}
	if thread.Messages[1].Streaming {
		t.Fatal("expected the placeholder message to be cancelled")
	}
}

func TestOwnerToolLifecycleAndClearOnDone(t *testing.T) {
	c := cache.New()
	body := `{"type":"tool_call_start","tool_name":"bash","tool_call_id":"c1"}` + "\n" +
		`{"type":"tool_result","tool_call_id":"c1","result":"ok"}` + "\n" +
		`{"type":"done","message_id":"1"}` + "\n"
	o := New(c, fakeTransport{body: body}, nil, nil, permission.Policy{})

	runOwnerUntilIdle(t, o, Command{
		Kind: CmdSubmit,
		Submit: &SubmitCommand{
			Content:       "run ls",
			ThreadKind:    cache.ThreadNormal,
			OnCommandDeck: true,
		},
	})

	order := c.ThreadOrder()
	thread, _ := c.GetThread(order[0])
	if len(thread.Tools) != 0 {
		t.Fatalf("expected tools purged after done, got %d", len(thread.Tools))
	}
}

func TestOwnerDismissErrorCommand(t *testing.T) {
	c := cache.New()
	pending := c.CreatePendingThread("hi", cache.ThreadNormal)
	c.AddError(pending, "stream", "boom")
	o := New(c, fakeTransport{}, nil, nil, permission.Policy{})

	runOwnerUntilIdle(t, o, Command{
		Kind:         CmdDismissError,
		DismissError: &DismissErrorCommand{ThreadID: pending},
	})

	thread, _ := c.GetThread(pending)
	if len(thread.Errors) != 0 {
		t.Fatalf("expected error dismissed, got %+v", thread.Errors)
	}
}

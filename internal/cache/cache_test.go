package cache

import "testing"

func TestPendingReconciliationMidStream(t *testing.T) {
	c := New()
	pendingID := c.CreatePendingThread("hi", ThreadNormal)

	c.AppendToken(pendingID, "Hel")
	c.AppendToken(pendingID, "lo")
	c.ReconcileThreadID(pendingID, "t-42", nil)
	c.AppendToken(pendingID, " world")
	c.FinalizeMessage(pendingID, 99)

	viaPending := c.GetMessages(pendingID)
	viaReal := c.GetMessages("t-42")
	if len(viaPending) != len(viaReal) {
		t.Fatalf("alias mismatch: %d vs %d messages", len(viaPending), len(viaReal))
	}
	if len(viaReal) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(viaReal))
	}
	if viaReal[0].ID != 1 || viaReal[0].Content != "hi" {
		t.Fatalf("unexpected user message: %+v", viaReal[0])
	}
	assistant := viaReal[1]
	if assistant.ID != 99 || assistant.Content != "Hello world" || assistant.Streaming {
		t.Fatalf("unexpected assistant message: %+v", assistant)
	}
}

func TestHistoryRacePreservesLocalMessages(t *testing.T) {
	c := New()
	pendingID := c.CreatePendingThread("seed", ThreadNormal)
	c.ReconcileThreadID(pendingID, "t-1", nil)

	thread, ok := c.GetThread("t-1")
	if !ok {
		t.Fatal("thread missing")
	}
	thread.Messages[0].ID = 3
	c.AppendToken("t-1", "Par")

	backend := []*Message{
		{ID: 1, Role: RoleUser, Content: "first"},
		{ID: 2, Role: RoleAssistant, Content: "second"},
	}
	c.SetMessages("t-1", backend)

	msgs := c.GetMessages("t-1")
	if len(msgs) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(msgs))
	}
	if msgs[0].ID != 1 || msgs[1].ID != 2 {
		t.Fatalf("expected backend messages first, got %+v %+v", msgs[0], msgs[1])
	}
	if msgs[2].ID != 3 {
		t.Fatalf("expected preserved local id=3, got %+v", msgs[2])
	}
	if msgs[3].ID != 0 || !msgs[3].Streaming || msgs[3].PartialContent != "Par" {
		t.Fatalf("expected preserved streaming placeholder, got %+v", msgs[3])
	}
}

func TestSetMessagesReplacesOutrightWhenNothingToPreserve(t *testing.T) {
	c := New()
	pendingID := c.CreatePendingThread("seed", ThreadNormal)
	c.ReconcileThreadID(pendingID, "t-2", nil)
	c.FinalizeMessage("t-2", 5)

	thread, _ := c.GetThread("t-2")
	thread.Messages[0].ID = 1

	backend := []*Message{
		{ID: 1, Role: RoleUser, Content: "first"},
		{ID: 5, Role: RoleAssistant, Content: "done"},
	}
	c.SetMessages("t-2", backend)

	msgs := c.GetMessages("t-2")
	if len(msgs) != 2 {
		t.Fatalf("expected outright replacement with 2 messages, got %d", len(msgs))
	}
}

func TestToolFadeWindow(t *testing.T) {
	c := New()
	pendingID := c.CreatePendingThread("seed", ThreadProgramming)

	c.RegisterToolStart(pendingID, "call-1", "Read", 100)
	name := "Reading file"
	c.SetToolExecuting(pendingID, "call-1", &name, nil)
	c.CompleteTool(pendingID, "call-1", true, "Read 50 lines", 120)

	if !c.ShouldRenderTool(pendingID, "call-1", 140) {
		t.Fatal("expected tool to still render at tick 140")
	}
	if c.ShouldRenderTool(pendingID, "call-1", 155) {
		t.Fatal("expected tool to have faded by tick 155")
	}
}

func TestCancelStreamingMessage(t *testing.T) {
	c := New()
	pendingID := c.CreatePendingThread("hi", ThreadNormal)
	c.AppendToken(pendingID, "Hello")

	before := c.GetMessages(pendingID)[1].RenderVersion
	c.CancelStreamingMessage(pendingID)

	msgs := c.GetMessages(pendingID)
	assistant := msgs[1]
	if assistant.Content != "Hello\n\n[Cancelled]" {
		t.Fatalf("unexpected cancelled content: %q", assistant.Content)
	}
	if assistant.ID != -1 {
		t.Fatalf("expected id -1, got %d", assistant.ID)
	}
	if assistant.Streaming {
		t.Fatal("expected streaming cleared")
	}
	if assistant.RenderVersion <= before {
		t.Fatal("expected render-version to increase")
	}
}

func TestFinalizeConservesPartialText(t *testing.T) {
	c := New()
	pendingID := c.CreatePendingThread("hi", ThreadNormal)
	c.AppendToken(pendingID, "partial text")

	c.FinalizeMessage(pendingID, 7)

	msgs := c.GetMessages(pendingID)
	assistant := msgs[1]
	if assistant.Content != "partial text" {
		t.Fatalf("expected content to end with partial text, got %q", assistant.Content)
	}
	if assistant.PartialContent != "" {
		t.Fatal("expected partial content cleared")
	}
	if assistant.Streaming {
		t.Fatal("expected streaming cleared")
	}
	if assistant.ID != 7 {
		t.Fatalf("expected id 7, got %d", assistant.ID)
	}
}

func TestStreamingSingleton(t *testing.T) {
	c := New()
	pendingID := c.CreatePendingThread("hi", ThreadNormal)
	c.FinalizeMessage(pendingID, 1)

	if c.IsThreadStreaming(pendingID) {
		t.Fatal("expected no streaming message after finalize")
	}

	ok := c.AddStreamingMessage(pendingID, "second message")
	if !ok {
		t.Fatal("expected AddStreamingMessage to succeed")
	}

	streamingCount := 0
	for _, m := range c.GetMessages(pendingID) {
		if m.Streaming {
			streamingCount++
		}
	}
	if streamingCount != 1 {
		t.Fatalf("expected exactly 1 streaming message, got %d", streamingCount)
	}
}

func TestAddStreamingMessageFailsOnMissingThread(t *testing.T) {
	c := New()
	if c.AddStreamingMessage("no-such-thread", "hi") {
		t.Fatal("expected false for missing thread")
	}
}

func TestThreadOrderRecency(t *testing.T) {
	c := New()
	first := c.CreatePendingThread("a", ThreadNormal)
	second := c.CreatePendingThread("b", ThreadNormal)
	third := c.CreatePendingThread("c", ThreadNormal)

	order := c.ThreadOrder()
	if order[0] != third || order[1] != second || order[2] != first {
		t.Fatalf("unexpected initial order: %v", order)
	}

	c.AddStreamingMessage(first, "bump")
	order = c.ThreadOrder()
	if order[0] != first {
		t.Fatalf("expected %s to move to front, got order %v", first, order)
	}
	if order[1] != third || order[2] != second {
		t.Fatalf("expected relative order preserved, got %v", order)
	}
}

func TestToggleMessageReasoningRequiresContent(t *testing.T) {
	c := New()
	pendingID := c.CreatePendingThread("hi", ThreadNormal)

	c.ToggleMessageReasoning(pendingID, 1)
	msgs := c.GetMessages(pendingID)
	if msgs[1].ReasoningCollapsed {
		t.Fatal("toggling a message with no reasoning content should be a no-op")
	}

	c.AppendReasoning(pendingID, "thinking...")
	c.ToggleMessageReasoning(pendingID, 1)
	msgs = c.GetMessages(pendingID)
	if !msgs[1].ReasoningCollapsed {
		t.Fatal("expected reasoning-collapsed to flip once content is present")
	}
}

func TestAddErrorAndDismiss(t *testing.T) {
	c := New()
	pendingID := c.CreatePendingThread("hi", ThreadNormal)

	c.AddError(pendingID, "network", "connection reset")
	thread, _ := c.GetThread(pendingID)
	if len(thread.Errors) != 1 {
		t.Fatalf("expected 1 error, got %d", len(thread.Errors))
	}

	c.DismissFocusedError(pendingID)
	thread, _ = c.GetThread(pendingID)
	if len(thread.Errors) != 0 {
		t.Fatal("expected error dismissed")
	}
}

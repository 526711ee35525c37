package cache

import "sort"

// Fade windows, in ticks, for completed tool displays. A successful
// completion fades quickly; a failure stays visible longer so the
// user has time to notice it.
const (
	successFadeTicks = 30
	failureFadeTicks = 90
)

// RegisterToolStart begins tracking a tool call, moving it to the
// Pending state with a Started display.
func (c *Cache) RegisterToolStart(threadID, callID, toolName string, tick int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	thread, ok := c.threads[c.resolve(threadID)]
	if !ok {
		return
	}
	tc := &ToolCall{
		CallID:      callID,
		ToolName:    toolName,
		State:       ToolPending,
		Display:     DisplayStarted,
		DisplayName: toolName,
		StartedTick: tick,
	}
	thread.Tools[callID] = tc
	thread.ToolOrder = append(thread.ToolOrder, callID)
}

// AppendToolArgument appends a raw argument chunk to a tracked call's
// input buffer. No display-state change.
func (c *Cache) AppendToolArgument(threadID, callID, chunk string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	thread, ok := c.threads[c.resolve(threadID)]
	if !ok {
		return
	}
	tc, ok := thread.Tools[callID]
	if !ok {
		return
	}
	tc.Input.WriteString(chunk)
}

// SetToolExecuting transitions a tracked call to Running with an
// Executing display, preferring displayName, then url, then a
// generic fallback.
func (c *Cache) SetToolExecuting(threadID, callID string, displayName, url *string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	thread, ok := c.threads[c.resolve(threadID)]
	if !ok {
		return
	}
	tc, ok := thread.Tools[callID]
	if !ok {
		return
	}
	tc.State = ToolRunning
	tc.Display = DisplayExecuting
	switch {
	case displayName != nil && *displayName != "":
		tc.DisplayName = *displayName
	case url != nil && *url != "":
		tc.DisplayName = *url
	default:
		tc.DisplayName = "Executing..."
	}
}

// CompleteTool records an already-classified result (success and
// summary) and transitions the tracked call to its terminal state
// with a Done display.
func (c *Cache) CompleteTool(threadID, callID string, success bool, summary string, tick int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	thread, ok := c.threads[c.resolve(threadID)]
	if !ok {
		return
	}
	tc, ok := thread.Tools[callID]
	if !ok {
		return
	}
	if success {
		tc.State = ToolCompleted
	} else {
		tc.State = ToolFailed
	}
	tc.Display = DisplayDone
	tc.Success = success
	tc.Summary = summary
	tc.CompletedTick = tick
}

// ShouldRenderTool reports whether the tracked call should still be
// displayed at tick. In-progress calls always render; completed ones
// fade out after a bounded window from their completion tick.
func (c *Cache) ShouldRenderTool(threadID, callID string, tick int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	thread, ok := c.threads[c.resolve(threadID)]
	if !ok {
		return false
	}
	tc, ok := thread.Tools[callID]
	if !ok {
		return false
	}
	if tc.State == ToolPending || tc.State == ToolRunning {
		return true
	}
	window := int64(successFadeTicks)
	if tc.State == ToolFailed {
		window = failureFadeTicks
	}
	return tick-tc.CompletedTick < window
}

// VisibleTools returns the tracked calls for a thread ordered
// in-progress first, then completed ordered by most-recent
// completion, filtered to those that should render at tick.
func (c *Cache) VisibleTools(threadID string, tick int64) []*ToolCall {
	c.mu.Lock()
	defer c.mu.Unlock()

	thread, ok := c.threads[c.resolve(threadID)]
	if !ok {
		return nil
	}

	var inProgress, completed []*ToolCall
	for _, callID := range thread.ToolOrder {
		tc, ok := thread.Tools[callID]
		if !ok {
			continue
		}
		switch tc.State {
		case ToolPending, ToolRunning:
			inProgress = append(inProgress, tc)
		default:
			window := int64(successFadeTicks)
			if tc.State == ToolFailed {
				window = failureFadeTicks
			}
			if tick-tc.CompletedTick < window {
				completed = append(completed, tc)
			}
		}
	}

	sort.Slice(completed, func(i, j int) bool {
		return completed[i].CompletedTick > completed[j].CompletedTick
	})

	return append(inProgress, completed...)
}

// ClearTools purges all tracked tool states for a thread. Invoked
// when the session emits Done.
func (c *Cache) ClearTools(threadID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	thread, ok := c.threads[c.resolve(threadID)]
	if !ok {
		return
	}
	thread.Tools = make(map[string]*ToolCall)
	thread.ToolOrder = nil
}

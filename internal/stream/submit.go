package stream

import "github.com/spoq-dev/spoq/internal/cache"

// DecisionKind classifies the outcome of DecideSubmission.
type DecisionKind int

const (
	// DecisionNew starts a brand new (pending) thread. ThreadID is
	// already populated in the cache by the time Decision is
	// returned.
	DecisionNew DecisionKind = iota
	// DecisionContinue appends to an existing thread. ThreadID is the
	// caller's original active id, unchanged; the cache resolves any
	// alias on lookup.
	DecisionContinue
	// DecisionBlocked rejects the submission outright; Message is
	// user-visible and no cache state was changed.
	DecisionBlocked
)

const (
	blockedStillStreaming = "Please wait for the current response to complete before sending another message."
	blockedThreadGone     = "Thread no longer exists."
)

// Decision is the result of running the submission decision tree
// against the current screen and active thread id.
type Decision struct {
	Kind     DecisionKind
	ThreadID string
	Message  string
}

// DecideSubmission runs the deterministic submission decision tree:
// the command deck always starts a new thread; a pending active id
// blocks until it resolves; an existing real id that the cache no
// longer recognizes blocks with a distinct message; anything else
// either continues the active thread or falls back to starting a new
// one.
func DecideSubmission(c *cache.Cache, onCommandDeck bool, activeThreadID, content string, kind cache.ThreadKind) Decision {
	if onCommandDeck {
		return Decision{Kind: DecisionNew, ThreadID: c.CreatePendingThread(content, kind)}
	}

	if activeThreadID != "" && cache.IsPending(activeThreadID) {
		return Decision{Kind: DecisionBlocked, Message: blockedStillStreaming}
	}

	if activeThreadID != "" {
		if c.AddStreamingMessage(activeThreadID, content) {
			return Decision{Kind: DecisionContinue, ThreadID: activeThreadID}
		}
		return Decision{Kind: DecisionBlocked, Message: blockedThreadGone}
	}

	return Decision{Kind: DecisionNew, ThreadID: c.CreatePendingThread(content, kind)}
}

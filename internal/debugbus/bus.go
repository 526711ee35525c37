// Package debugbus fans out structured diagnostic events — stream
// lifecycle phases, processed-event classification, state changes,
// errors — to any number of best-effort subscribers. It satisfies
// internal/stream's DebugSink interface directly, so wiring it in or
// leaving it nil is invisible to the core session/owner code.
package debugbus

import (
	"sync"
	"time"
)

// Event is one diagnostic record, JSON-shaped for the dashboard's
// WebSocket envelope: {timestamp, thread_id?, event: {type, detail}}.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	ThreadID  string    `json:"thread_id,omitempty"`
	Event     EventBody `json:"event"`
}

type EventBody struct {
	Type   string `json:"type"`
	Detail string `json:"detail,omitempty"`
}

const subscriberBuffer = 256

// Bus is a best-effort publish/subscribe fan-out. Emit never blocks:
// a subscriber that falls behind has events dropped rather than
// stalling the session that's emitting them.
type Bus struct {
	mu          sync.RWMutex
	subscribers map[chan Event]struct{}
}

// New returns an empty Bus with no subscribers.
func New() *Bus {
	return &Bus{subscribers: make(map[chan Event]struct{})}
}

// Emit satisfies internal/stream.DebugSink.
func (b *Bus) Emit(threadID, phase, detail string) {
	b.publish(Event{
		Timestamp: time.Now(),
		ThreadID:  threadID,
		Event:     EventBody{Type: phase, Detail: detail},
	})
}

func (b *Bus) publish(e Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for ch := range b.subscribers {
		select {
		case ch <- e:
		default:
			// subscriber is full; drop rather than block the emitter.
		}
	}
}

// Subscribe registers a new listener and returns its event channel
// plus an unsubscribe function. The channel is closed once
// unsubscribe runs.
func (b *Bus) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, subscriberBuffer)

	b.mu.Lock()
	b.subscribers[ch] = struct{}{}
	b.mu.Unlock()

	once := sync.Once{}
	unsubscribe := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subscribers, ch)
			b.mu.Unlock()
			close(ch)
		})
	}
	return ch, unsubscribe
}

// SubscriberCount reports the current listener count, mostly for
// tests and dashboard status display.
func (b *Bus) SubscriberCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subscribers)
}

package cache

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Cache is the single authoritative store for every thread, message,
// tool call, todo list, and pending permission. Exactly one owner
// task mutates it (see internal/owner); the mutex here is a
// belt-and-suspenders guard against peripheral read paths (pickers,
// the debug dashboard) racing that owner rather than a concurrency
// requirement of the core loop itself.
type Cache struct {
	mu sync.Mutex

	threads map[string]*Thread
	alias   map[string]string
	order   []string
}

// New returns an empty Cache ready for use.
func New() *Cache {
	return &Cache{
		threads: make(map[string]*Thread),
		alias:   make(map[string]string),
	}
}

// resolve follows the alias chain for id, returning the real storage
// key. Safe to call with a real id (returns it unchanged).
func (c *Cache) resolve(id string) string {
	seen := map[string]bool{}
	for {
		if seen[id] {
			return id
		}
		seen[id] = true
		real, ok := c.alias[id]
		if !ok {
			return id
		}
		id = real
	}
}

func (c *Cache) touch(id string) {
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	c.order = append([]string{id}, c.order...)
}

// CreatePendingThread inserts a new thread under a fresh pending-
// prefixed id, with one user message and one streaming assistant
// placeholder, and places it at the front of the thread order.
func (c *Cache) CreatePendingThread(preview string, kind ThreadKind) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	id := PendingPrefix + uuid.NewString()
	now := time.Now()
	thread := &Thread{
		ID:          id,
		Preview:     preview,
		CreatedAt:   now,
		UpdatedAt:   now,
		Kind:        kind,
		Tools:       make(map[string]*ToolCall),
		nextLocalID: 1,
	}
	userMsg := &Message{
		ID:        thread.nextLocalID,
		ThreadID:  id,
		Role:      RoleUser,
		Content:   preview,
		CreatedAt: now,
	}
	thread.nextLocalID++
	assistantMsg := &Message{
		ID:                 0,
		ThreadID:           id,
		Role:               RoleAssistant,
		Streaming:          true,
		ReasoningCollapsed: false,
		CreatedAt:          now,
	}
	thread.Messages = append(thread.Messages, userMsg, assistantMsg)

	c.threads[id] = thread
	c.order = append([]string{id}, c.order...)
	return id
}

// AddStreamingMessage appends a new user message and streaming
// assistant placeholder to an existing thread, reporting false if the
// thread (after alias resolution) does not exist.
func (c *Cache) AddStreamingMessage(threadID, userContent string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	real := c.resolve(threadID)
	thread, ok := c.threads[real]
	if !ok {
		return false
	}

	now := time.Now()
	userMsg := &Message{
		ID:        thread.nextLocalID,
		ThreadID:  real,
		Role:      RoleUser,
		Content:   userContent,
		CreatedAt: now,
	}
	thread.nextLocalID++
	assistantMsg := &Message{
		ID:                 0,
		ThreadID:           real,
		Role:               RoleAssistant,
		Streaming:          true,
		ReasoningCollapsed: false,
		CreatedAt:          now,
	}
	thread.Messages = append(thread.Messages, userMsg, assistantMsg)
	thread.Preview = userContent
	thread.UpdatedAt = now
	c.touch(real)
	return true
}

// ReconcileThreadID moves a pending thread's storage to its
// backend-assigned real id and installs an alias so both keys resolve
// identically afterward. Idempotent: a second call against an
// already-aliased pending id only updates the title.
func (c *Cache) ReconcileThreadID(pendingID, realID string, title *string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existingReal, already := c.alias[pendingID]; already {
		if title != nil {
			if thread, ok := c.threads[existingReal]; ok {
				thread.Title = *title
			}
		}
		return
	}

	thread, ok := c.threads[pendingID]
	if !ok {
		return
	}

	for _, msg := range thread.Messages {
		msg.ThreadID = realID
	}
	thread.ID = realID
	if title != nil {
		thread.Title = *title
	}

	delete(c.threads, pendingID)
	c.threads[realID] = thread
	c.alias[pendingID] = realID

	for i, id := range c.order {
		if id == pendingID {
			c.order[i] = realID
			break
		}
	}
}

// AppendToken appends a text chunk to the last streaming message's
// partial content buffer. No-op if the thread is missing or has no
// streaming message.
func (c *Cache) AppendToken(threadID, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	thread, ok := c.threads[c.resolve(threadID)]
	if !ok {
		return
	}
	msg := thread.lastStreamingMessage()
	if msg == nil {
		return
	}
	msg.PartialContent += text
	msg.bumpRenderVersion()
}

// AppendReasoning appends a reasoning chunk to the last streaming
// message's reasoning buffer. No-op if the thread is missing or has
// no streaming message.
func (c *Cache) AppendReasoning(threadID, text string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	thread, ok := c.threads[c.resolve(threadID)]
	if !ok {
		return
	}
	msg := thread.lastStreamingMessage()
	if msg == nil {
		return
	}
	msg.ReasoningContent += text
	msg.bumpRenderVersion()
}

// FinalizeMessage assigns the backend id to the last streaming
// message, moves its partial content into Content, clears streaming,
// and bumps render-version. No-op if there is no streaming message.
func (c *Cache) FinalizeMessage(threadID string, messageID int64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	thread, ok := c.threads[c.resolve(threadID)]
	if !ok {
		return
	}
	msg := thread.lastStreamingMessage()
	if msg == nil {
		return
	}
	msg.ID = messageID
	msg.Content += msg.PartialContent
	msg.PartialContent = ""
	msg.Streaming = false
	msg.bumpRenderVersion()
}

// CancelStreamingMessage clears the last streaming message's
// streaming flag, assigns it id -1 if it had none, and appends a
// cancellation marker to its content.
func (c *Cache) CancelStreamingMessage(threadID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	thread, ok := c.threads[c.resolve(threadID)]
	if !ok {
		return
	}
	msg := thread.lastStreamingMessage()
	if msg == nil {
		return
	}
	msg.Streaming = false
	if msg.ID == 0 {
		msg.ID = -1
	}
	if msg.Content == "" {
		msg.Content = "[Cancelled]"
	} else {
		msg.Content += "\n\n[Cancelled]"
	}
	msg.bumpRenderVersion()
}

// SetMessages is the critical merge: it replaces a thread's message
// set with backendMessages, but preserves any local-only message —
// one that is still streaming, has id 0, or has an id greater than
// every backend id — by appending it after the backend set. This
// keeps an in-flight user/assistant exchange from being discarded
// when thread history loads land after a new submission started.
func (c *Cache) SetMessages(threadID string, backendMessages []*Message) {
	c.mu.Lock()
	defer c.mu.Unlock()

	real := c.resolve(threadID)
	thread, ok := c.threads[real]
	if !ok {
		return
	}

	for _, m := range backendMessages {
		m.ThreadID = real
	}

	if len(thread.Messages) == 0 {
		thread.Messages = backendMessages
		return
	}

	var maxBackendID int64
	for _, m := range backendMessages {
		if m.ID > maxBackendID {
			maxBackendID = m.ID
		}
	}

	var preserved []*Message
	for _, m := range thread.Messages {
		if m.Streaming || m.ID == 0 || m.ID > maxBackendID {
			preserved = append(preserved, m)
		}
	}

	if len(preserved) == 0 {
		thread.Messages = backendMessages
		return
	}

	merged := make([]*Message, 0, len(backendMessages)+len(preserved))
	merged = append(merged, backendMessages...)
	merged = append(merged, preserved...)
	thread.Messages = merged
}

// IsThreadStreaming reports whether any message in the thread has its
// streaming flag set.
func (c *Cache) IsThreadStreaming(threadID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	thread, ok := c.threads[c.resolve(threadID)]
	if !ok {
		return false
	}
	return thread.lastStreamingMessage() != nil
}

// FindLastReasoningMessageIndex returns the index, within the
// thread's Messages slice, of the last message carrying non-empty
// reasoning content, or -1 if none.
func (c *Cache) FindLastReasoningMessageIndex(threadID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	thread, ok := c.threads[c.resolve(threadID)]
	if !ok {
		return -1
	}
	for i := len(thread.Messages) - 1; i >= 0; i-- {
		if thread.Messages[i].ReasoningContent != "" {
			return i
		}
	}
	return -1
}

// ToggleMessageReasoning flips the reasoning-collapsed flag for the
// message at index, only if it carries reasoning content.
func (c *Cache) ToggleMessageReasoning(threadID string, index int) {
	c.mu.Lock()
	defer c.mu.Unlock()

	thread, ok := c.threads[c.resolve(threadID)]
	if !ok {
		return
	}
	if index < 0 || index >= len(thread.Messages) {
		return
	}
	msg := thread.Messages[index]
	if msg.ReasoningContent == "" {
		return
	}
	msg.ReasoningCollapsed = !msg.ReasoningCollapsed
	msg.bumpRenderVersion()
}

// AddError appends a surfaced error entry to the thread's error
// queue.
func (c *Cache) AddError(threadID, kind, message string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	thread, ok := c.threads[c.resolve(threadID)]
	if !ok {
		return
	}
	thread.Errors = append(thread.Errors, CacheError{
		Kind:      kind,
		Message:   message,
		CreatedAt: time.Now(),
	})
}

// DismissFocusedError drops the oldest surfaced error for the thread,
// if any.
func (c *Cache) DismissFocusedError(threadID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	thread, ok := c.threads[c.resolve(threadID)]
	if !ok || len(thread.Errors) == 0 {
		return
	}
	thread.Errors = thread.Errors[1:]
}

// GetMessages returns the thread's messages in arrival order. The
// returned slice is owned by the cache; callers must not mutate it.
func (c *Cache) GetMessages(threadID string) []*Message {
	c.mu.Lock()
	defer c.mu.Unlock()

	thread, ok := c.threads[c.resolve(threadID)]
	if !ok {
		return nil
	}
	return thread.Messages
}

// GetThread returns the thread after alias resolution.
func (c *Cache) GetThread(threadID string) (*Thread, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	thread, ok := c.threads[c.resolve(threadID)]
	return thread, ok
}

// ThreadOrder returns the process-wide thread ordering,
// most-recent-activity first. The returned slice is a copy.
func (c *Cache) ThreadOrder() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

// SetThreadMetadata applies a ThreadUpdated event's optional title and
// description, moving the thread to the front of the order.
func (c *Cache) SetThreadMetadata(threadID string, title, description *string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	real := c.resolve(threadID)
	thread, ok := c.threads[real]
	if !ok {
		return
	}
	if title != nil {
		thread.Title = *title
	}
	if description != nil {
		thread.Preview = *description
	}
	thread.UpdatedAt = time.Now()
	c.touch(real)
}

// SetTodos replaces a thread's current todo list wholesale.
func (c *Cache) SetTodos(threadID string, todos []Todo) {
	c.mu.Lock()
	defer c.mu.Unlock()

	thread, ok := c.threads[c.resolve(threadID)]
	if !ok {
		return
	}
	thread.Todos = todos
}

// SetPermissionRequest installs a pending permission request,
// replacing any request already pending for the thread.
func (c *Cache) SetPermissionRequest(threadID string, req PermissionRequest) {
	c.mu.Lock()
	defer c.mu.Unlock()

	thread, ok := c.threads[c.resolve(threadID)]
	if !ok {
		return
	}
	thread.Permission = &req
}

// ClearPermissionRequest drops the thread's pending permission
// request, if any.
func (c *Cache) ClearPermissionRequest(threadID string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	thread, ok := c.threads[c.resolve(threadID)]
	if !ok {
		return
	}
	thread.Permission = nil
}

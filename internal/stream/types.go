// Package stream runs one conversation turn against the backend's
// stream endpoint and translates its event sequence into bus
// messages for the UI owner to apply to the cache.
package stream

import (
	"encoding/json"

	"github.com/spoq-dev/spoq/internal/cache"
)

// Kind discriminates a BusMessage.
type Kind string

const (
	KindStreamToken          Kind = "stream_token"
	KindStreamComplete       Kind = "stream_complete"
	KindStreamError          Kind = "stream_error"
	KindThreadCreated        Kind = "thread_created"
	KindThreadMetaUpdated    Kind = "thread_metadata_updated"
	KindToolStarted          Kind = "tool_started"
	KindToolArgumentChunk    Kind = "tool_argument_chunk"
	KindToolExecuting        Kind = "tool_executing"
	KindToolCompleted        Kind = "tool_completed"
	KindTodosUpdated         Kind = "todos_updated"
	KindPermissionRequested  Kind = "permission_requested"
	KindReasoningToken       Kind = "reasoning_token"
	KindSkillsInjected       Kind = "skills_injected"
	KindOAuthConsentRequired Kind = "oauth_consent_required"
	KindContextCompacted     Kind = "context_compacted"
)

// BusMessage is one item placed on the owner's message bus. Exactly
// one payload field is populated, matching Kind.
type BusMessage struct {
	Kind     Kind
	ThreadID string

	StreamToken          *StreamTokenMsg
	StreamComplete       *StreamCompleteMsg
	StreamError          *StreamErrorMsg
	ThreadCreated        *ThreadCreatedMsg
	ThreadMetaUpdated    *ThreadMetaUpdatedMsg
	ToolStarted          *ToolStartedMsg
	ToolArgumentChunk    *ToolArgumentChunkMsg
	ToolExecuting        *ToolExecutingMsg
	ToolCompleted        *ToolCompletedMsg
	TodosUpdated         *TodosUpdatedMsg
	PermissionRequested  *PermissionRequestedMsg
	ReasoningToken       *ReasoningTokenMsg
	SkillsInjected       *SkillsInjectedMsg
	OAuthConsentRequired *OAuthConsentRequiredMsg
	ContextCompacted     *ContextCompactedMsg
}

type StreamTokenMsg struct{ Text string }

type StreamCompleteMsg struct{ MessageID int64 }

// StreamErrorMsg carries a surfaced stream failure. Code is the
// backend's optional machine-readable tag; Terminal marks a
// transport-level failure to open the stream versus an in-band
// `error` event. The session stops reading after either.
type StreamErrorMsg struct {
	Message  string
	Code     string
	Terminal bool
}

type ThreadCreatedMsg struct{ RealID string }

type ThreadMetaUpdatedMsg struct {
	Title       *string
	Description *string
}

type ToolStartedMsg struct {
	CallID   string
	ToolName string
}

type ToolArgumentChunkMsg struct {
	CallID string
	Chunk  string
}

type ToolExecutingMsg struct {
	CallID      string
	DisplayName *string
	URL         *string
}

type ToolCompletedMsg struct {
	CallID  string
	Success bool
	Summary string
}

type TodosUpdatedMsg struct{ Todos []cache.Todo }

type PermissionRequestedMsg struct {
	PermissionID string
	ToolName     string
	Description  string
	ToolInput    json.RawMessage
}

type ReasoningTokenMsg struct{ Text string }

type SkillsInjectedMsg struct{ Skills []string }

type OAuthConsentRequiredMsg struct {
	Provider  string
	URL       *string
	SkillName *string
}

type ContextCompactedMsg struct {
	MessagesRemoved int
	TokensFreed     int
}

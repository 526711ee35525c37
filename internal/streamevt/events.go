// Package streamevt decodes the typed event sequence pushed by the
// conversation backend over the stream endpoint, one newline-delimited
// JSON object per line.
package streamevt

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Type discriminates a decoded Event.
type Type string

const (
	TypeContent              Type = "content"
	TypeReasoning             Type = "reasoning"
	TypeToolCallStart         Type = "tool_call_start"
	TypeToolCallArgument      Type = "tool_call_argument"
	TypeToolExecuting         Type = "tool_executing"
	TypeToolResult            Type = "tool_result"
	TypeDone                  Type = "done"
	TypeError                 Type = "error"
	TypeUserMessageSaved      Type = "user_message_saved"
	TypeTodosUpdated          Type = "todos_updated"
	TypeSubagentStarted       Type = "subagent_started"
	TypeSubagentProgress      Type = "subagent_progress"
	TypeSubagentCompleted     Type = "subagent_completed"
	TypePermissionRequest     Type = "permission_request"
	TypeContextCompacted      Type = "context_compacted"
	TypeSkillsInjected        Type = "skills_injected"
	TypeOAuthConsentRequired  Type = "oauth_consent_required"
	TypeThreadUpdated         Type = "thread_updated"
	TypeUsage                 Type = "usage"
	TypeSystemInit            Type = "system_init"
)

// Meta carries optional ordering/diagnostic metadata that rides along
// with every event. Missing fields decode to zero values.
type Meta struct {
	Seq       *int64  `json:"seq,omitempty"`
	SessionID string  `json:"session_id,omitempty"`
	ThreadID  string  `json:"thread_id,omitempty"`
	Timestamp *int64  `json:"timestamp,omitempty"`
}

// Event is the decoded payload for one backend push, with its
// discriminator and optional metadata. Exactly one of the typed
// fields below is populated, matching Type.
type Event struct {
	Type Type
	Meta Meta

	Content             *ContentPayload
	Reasoning           *ReasoningPayload
	ToolCallStart       *ToolCallStartPayload
	ToolCallArgument    *ToolCallArgumentPayload
	ToolExecuting       *ToolExecutingPayload
	ToolResult          *ToolResultPayload
	Done                *DonePayload
	Error               *ErrorPayload
	UserMessageSaved    *UserMessageSavedPayload
	TodosUpdated        *TodosUpdatedPayload
	SubagentStarted     *SubagentStartedPayload
	SubagentProgress    *SubagentProgressPayload
	SubagentCompleted   *SubagentCompletedPayload
	PermissionRequest   *PermissionRequestPayload
	ContextCompacted    *ContextCompactedPayload
	SkillsInjected      *SkillsInjectedPayload
	OAuthConsentRequired *OAuthConsentRequiredPayload
	ThreadUpdated       *ThreadUpdatedPayload
	Usage               *UsagePayload
	SystemInit          *SystemInitPayload
}

// ContentPayload is an assistant text chunk. Empty Text is a
// keep-alive ping and MUST be dropped by consumers, per spec §4.1.
type ContentPayload struct {
	Text string `json:"text"`
}

// ReasoningPayload is a reasoning/thinking chunk. Empty Text MUST be
// dropped, same as ContentPayload.
type ReasoningPayload struct {
	Text string `json:"text"`
}

type ToolCallStartPayload struct {
	ToolName   string `json:"tool_name"`
	ToolCallID string `json:"tool_call_id"`
}

type ToolCallArgumentPayload struct {
	ToolCallID string `json:"tool_call_id"`
	Chunk      string `json:"chunk"`
}

// UnmarshalJSON accepts the legacy "argument_chunk" field name for
// backward compatibility with older backend versions.
func (p *ToolCallArgumentPayload) UnmarshalJSON(data []byte) error {
	var raw struct {
		ToolCallID    string `json:"tool_call_id"`
		Chunk         string `json:"chunk"`
		ArgumentChunk string `json:"argument_chunk"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	p.ToolCallID = raw.ToolCallID
	if raw.Chunk != "" {
		p.Chunk = raw.Chunk
	} else {
		p.Chunk = raw.ArgumentChunk
	}
	return nil
}

type ToolExecutingPayload struct {
	ToolCallID  string  `json:"tool_call_id"`
	DisplayName *string `json:"display_name,omitempty"`
	URL         *string `json:"url,omitempty"`
}

type ToolResultPayload struct {
	ToolCallID string `json:"tool_call_id"`
	Result     string `json:"result"`
}

// DonePayload signals the end of this turn's content generation. It
// does NOT terminate the stream — ThreadUpdated may still arrive.
type DonePayload struct {
	MessageID string `json:"message_id"`
}

// ParsedMessageID parses MessageID as an integer, falling back to 0 if
// the backend ever sends a non-numeric id.
func (p DonePayload) ParsedMessageID() int64 {
	id, err := strconv.ParseInt(strings.TrimSpace(p.MessageID), 10, 64)
	if err != nil {
		return 0
	}
	return id
}

type ErrorPayload struct {
	Message string  `json:"message"`
	Code    *string `json:"code,omitempty"`
}

type UserMessageSavedPayload struct {
	MessageID string `json:"message_id"`
	ThreadID  string `json:"thread_id"`
}

type TodoEntry struct {
	Content    string `json:"content"`
	ActiveForm string `json:"active_form"`
	Status     string `json:"status"`
}

type TodosUpdatedPayload struct {
	Todos []TodoEntry `json:"todos"`
}

type SubagentStartedPayload struct {
	SubagentID string `json:"subagent_id"`
	Name       string `json:"name,omitempty"`
}

type SubagentProgressPayload struct {
	SubagentID string `json:"subagent_id"`
	Text       string `json:"text,omitempty"`
}

type SubagentCompletedPayload struct {
	SubagentID string `json:"subagent_id"`
	Summary    string `json:"summary,omitempty"`
}

type PermissionRequestPayload struct {
	PermissionID string          `json:"permission_id"`
	Description  string          `json:"description"`
	ToolName     string          `json:"tool_name"`
	ToolInput    json.RawMessage `json:"tool_input,omitempty"`
	ToolCallID   *string         `json:"tool_call_id,omitempty"`
}

type ContextCompactedPayload struct {
	MessagesRemoved int    `json:"messages_removed"`
	TokensFreed     int    `json:"tokens_freed"`
	TokensUsed      *int   `json:"tokens_used,omitempty"`
	TokenLimit      *int   `json:"token_limit,omitempty"`
}

type SkillsInjectedPayload struct {
	Skills []string `json:"skills"`
}

type OAuthConsentRequiredPayload struct {
	Provider  string  `json:"provider"`
	URL       *string `json:"url,omitempty"`
	SkillName *string `json:"skill_name,omitempty"`
}

type ThreadUpdatedPayload struct {
	ThreadID    string  `json:"thread_id"`
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
}

type UsagePayload struct {
	ContextWindowUsed  int `json:"context_window_used"`
	ContextWindowLimit int `json:"context_window_limit"`
}

type SystemInitPayload struct {
	SessionID      string   `json:"session_id"`
	PermissionMode string   `json:"permission_mode"`
	Model          string   `json:"model"`
	Tools          []string `json:"tools"`
}

// Decode parses one newline-delimited JSON event from the stream. An
// unrecognized Type is returned with Type set and all payload fields
// nil, so callers can ignore it and stay forward-compatible with
// variants this client doesn't know about yet.
func Decode(line []byte) (Event, error) {
	var head struct {
		Type Type `json:"type"`
		Meta Meta  `json:"meta"`
	}
	if err := json.Unmarshal(line, &head); err != nil {
		return Event{}, fmt.Errorf("decode event envelope: %w", err)
	}

	event := Event{Type: head.Type, Meta: head.Meta}

	var err error
	switch head.Type {
	case TypeContent:
		event.Content, err = decodePayload[ContentPayload](line)
	case TypeReasoning:
		event.Reasoning, err = decodePayload[ReasoningPayload](line)
	case TypeToolCallStart:
		event.ToolCallStart, err = decodePayload[ToolCallStartPayload](line)
	case TypeToolCallArgument:
		event.ToolCallArgument, err = decodePayload[ToolCallArgumentPayload](line)
	case TypeToolExecuting:
		event.ToolExecuting, err = decodePayload[ToolExecutingPayload](line)
	case TypeToolResult:
		event.ToolResult, err = decodePayload[ToolResultPayload](line)
	case TypeDone:
		event.Done, err = decodePayload[DonePayload](line)
	case TypeError:
		event.Error, err = decodePayload[ErrorPayload](line)
	case TypeUserMessageSaved:
		event.UserMessageSaved, err = decodePayload[UserMessageSavedPayload](line)
	case TypeTodosUpdated:
		event.TodosUpdated, err = decodePayload[TodosUpdatedPayload](line)
	case TypeSubagentStarted:
		event.SubagentStarted, err = decodePayload[SubagentStartedPayload](line)
	case TypeSubagentProgress:
		event.SubagentProgress, err = decodePayload[SubagentProgressPayload](line)
	case TypeSubagentCompleted:
		event.SubagentCompleted, err = decodePayload[SubagentCompletedPayload](line)
	case TypePermissionRequest:
		event.PermissionRequest, err = decodePayload[PermissionRequestPayload](line)
	case TypeContextCompacted:
		event.ContextCompacted, err = decodePayload[ContextCompactedPayload](line)
	case TypeSkillsInjected:
		event.SkillsInjected, err = decodePayload[SkillsInjectedPayload](line)
	case TypeOAuthConsentRequired:
		event.OAuthConsentRequired, err = decodePayload[OAuthConsentRequiredPayload](line)
	case TypeThreadUpdated:
		event.ThreadUpdated, err = decodePayload[ThreadUpdatedPayload](line)
	case TypeUsage:
		event.Usage, err = decodePayload[UsagePayload](line)
	case TypeSystemInit:
		event.SystemInit, err = decodePayload[SystemInitPayload](line)
	default:
		// Unknown variant: keep Type, drop no error so callers can skip it.
		return event, nil
	}
	if err != nil {
		return Event{}, fmt.Errorf("decode %s payload: %w", head.Type, err)
	}
	return event, nil
}

func decodePayload[T any](line []byte) (*T, error) {
	var payload T
	if err := json.Unmarshal(line, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// IsEmptyChunk reports whether a Content or Reasoning event carries no
// text and should be dropped as a keep-alive.
func IsEmptyChunk(text string) bool {
	return text == ""
}

// ClassifyToolResult interprets a tool_result's result string as
// success or failure: string-prefix first ("error:"/"Error:"), then a
// JSON object with a non-empty string "error" field. An "error" field
// that is present, a string, and empty defers to "data": only then
// does data == null count as failure; a missing, non-string, or
// explicit JSON null "error" field is always success, regardless of
// "data" — everything else falls back to success.
func ClassifyToolResult(result string) (isError bool, summary string) {
	trimmed := strings.TrimSpace(result)
	lower := strings.ToLower(trimmed)
	if strings.HasPrefix(lower, "error:") {
		return true, summarize(trimmed)
	}

	var decoded map[string]any
	if err := json.Unmarshal([]byte(trimmed), &decoded); err == nil {
		if s, ok := decoded["error"].(string); ok && s != "" {
			return true, summarize(trimmed)
		} else if ok {
			if data, ok := decoded["data"]; ok && data == nil {
				return true, summarize(trimmed)
			}
		}
		return false, summarize(trimmed)
	}

	if trimmed == "" {
		return false, "Complete"
	}
	return false, summarize(trimmed)
}

const summaryMaxLen = 50

func summarize(text string) string {
	runes := []rune(text)
	if len(runes) <= summaryMaxLen {
		return text
	}
	return string(runes[:summaryMaxLen]) + "..."
}

package stream

import (
	"github.com/spoq-dev/spoq/internal/cache"
	"github.com/spoq-dev/spoq/internal/streamevt"
)

// translate converts one decoded event into zero or more bus
// messages. Most variants produce exactly one; empty Content/
// Reasoning chunks and variants the bus has no use for (usage,
// system_init, subagent progress) produce none.
func translate(threadID string, event streamevt.Event) []BusMessage {
	msg := BusMessage{ThreadID: threadID}

	switch event.Type {
	case streamevt.TypeContent:
		if event.Content == nil || streamevt.IsEmptyChunk(event.Content.Text) {
			return nil
		}
		msg.Kind = KindStreamToken
		msg.StreamToken = &StreamTokenMsg{Text: event.Content.Text}

	case streamevt.TypeReasoning:
		if event.Reasoning == nil || streamevt.IsEmptyChunk(event.Reasoning.Text) {
			return nil
		}
		msg.Kind = KindReasoningToken
		msg.ReasoningToken = &ReasoningTokenMsg{Text: event.Reasoning.Text}

	case streamevt.TypeToolCallStart:
		if event.ToolCallStart == nil {
			return nil
		}
		msg.Kind = KindToolStarted
		msg.ToolStarted = &ToolStartedMsg{
			CallID:   event.ToolCallStart.ToolCallID,
			ToolName: event.ToolCallStart.ToolName,
		}

	case streamevt.TypeToolCallArgument:
		if event.ToolCallArgument == nil {
			return nil
		}
		msg.Kind = KindToolArgumentChunk
		msg.ToolArgumentChunk = &ToolArgumentChunkMsg{
			CallID: event.ToolCallArgument.ToolCallID,
			Chunk:  event.ToolCallArgument.Chunk,
		}

	case streamevt.TypeToolExecuting:
		if event.ToolExecuting == nil {
			return nil
		}
		msg.Kind = KindToolExecuting
		msg.ToolExecuting = &ToolExecutingMsg{
			CallID:      event.ToolExecuting.ToolCallID,
			DisplayName: event.ToolExecuting.DisplayName,
			URL:         event.ToolExecuting.URL,
		}

	case streamevt.TypeToolResult:
		if event.ToolResult == nil {
			return nil
		}
		isError, summary := streamevt.ClassifyToolResult(event.ToolResult.Result)
		msg.Kind = KindToolCompleted
		msg.ToolCompleted = &ToolCompletedMsg{
			CallID:  event.ToolResult.ToolCallID,
			Success: !isError,
			Summary: summary,
		}

	case streamevt.TypeDone:
		var messageID int64
		if event.Done != nil {
			messageID = event.Done.ParsedMessageID()
		}
		msg.Kind = KindStreamComplete
		msg.StreamComplete = &StreamCompleteMsg{MessageID: messageID}

	case streamevt.TypeError:
		if event.Error == nil {
			return nil
		}
		code := ""
		if event.Error.Code != nil {
			code = *event.Error.Code
		}
		msg.Kind = KindStreamError
		msg.StreamError = &StreamErrorMsg{Message: event.Error.Message, Code: code}

	case streamevt.TypeUserMessageSaved:
		if event.UserMessageSaved == nil || event.UserMessageSaved.ThreadID == "" {
			return nil
		}
		msg.Kind = KindThreadCreated
		msg.ThreadCreated = &ThreadCreatedMsg{RealID: event.UserMessageSaved.ThreadID}

	case streamevt.TypeTodosUpdated:
		if event.TodosUpdated == nil {
			return nil
		}
		todos := make([]cache.Todo, len(event.TodosUpdated.Todos))
		for i, t := range event.TodosUpdated.Todos {
			todos[i] = cache.Todo{Content: t.Content, ActiveForm: t.ActiveForm, Status: t.Status}
		}
		msg.Kind = KindTodosUpdated
		msg.TodosUpdated = &TodosUpdatedMsg{Todos: todos}

	case streamevt.TypePermissionRequest:
		if event.PermissionRequest == nil {
			return nil
		}
		msg.Kind = KindPermissionRequested
		msg.PermissionRequested = &PermissionRequestedMsg{
			PermissionID: event.PermissionRequest.PermissionID,
			ToolName:     event.PermissionRequest.ToolName,
			Description:  event.PermissionRequest.Description,
			ToolInput:    event.PermissionRequest.ToolInput,
		}

	case streamevt.TypeContextCompacted:
		if event.ContextCompacted == nil {
			return nil
		}
		msg.Kind = KindContextCompacted
		msg.ContextCompacted = &ContextCompactedMsg{
			MessagesRemoved: event.ContextCompacted.MessagesRemoved,
			TokensFreed:     event.ContextCompacted.TokensFreed,
		}

	case streamevt.TypeSkillsInjected:
		if event.SkillsInjected == nil {
			return nil
		}
		msg.Kind = KindSkillsInjected
		msg.SkillsInjected = &SkillsInjectedMsg{Skills: event.SkillsInjected.Skills}

	case streamevt.TypeOAuthConsentRequired:
		if event.OAuthConsentRequired == nil {
			return nil
		}
		msg.Kind = KindOAuthConsentRequired
		msg.OAuthConsentRequired = &OAuthConsentRequiredMsg{
			Provider:  event.OAuthConsentRequired.Provider,
			URL:       event.OAuthConsentRequired.URL,
			SkillName: event.OAuthConsentRequired.SkillName,
		}

	case streamevt.TypeThreadUpdated:
		if event.ThreadUpdated == nil {
			return nil
		}
		msg.Kind = KindThreadMetaUpdated
		msg.ThreadMetaUpdated = &ThreadMetaUpdatedMsg{
			Title:       event.ThreadUpdated.Title,
			Description: event.ThreadUpdated.Description,
		}

	default:
		// usage, system_init, subagent_*, and any unrecognized variant
		// carry nothing the bus consumes.
		return nil
	}

	return []BusMessage{msg}
}

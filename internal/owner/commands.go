package owner

import "github.com/spoq-dev/spoq/internal/cache"

// CommandKind discriminates a Command from the input layer.
type CommandKind int

const (
	CmdSubmit CommandKind = iota
	CmdCancel
	CmdToggleReasoning
	CmdDismissError
	CmdPermissionDecision
)

// Command is one action the input layer enqueues for the owner to
// apply. Exactly one payload field is populated, matching Kind.
type Command struct {
	Kind CommandKind

	Submit             *SubmitCommand
	Cancel             *CancelCommand
	ToggleReasoning    *ToggleReasoningCommand
	DismissError       *DismissErrorCommand
	PermissionDecision *PermissionDecisionCommand
}

// SubmitCommand carries everything the submission decision tree
// needs. OnCommandDeck and ActiveThreadID reflect the input layer's
// current screen state at the moment of submission.
type SubmitCommand struct {
	Content        string
	ThreadKind     cache.ThreadKind
	PlanMode       bool
	OnCommandDeck  bool
	ActiveThreadID string
}

type CancelCommand struct{ ThreadID string }

type ToggleReasoningCommand struct {
	ThreadID string
	Index    int
}

type DismissErrorCommand struct{ ThreadID string }

type PermissionDecisionCommand struct {
	ThreadID     string
	PermissionID string
	Approved     bool
}

// Package permission decides how to respond to a permission_request
// event from the backend: auto-approve, auto-deny, or surface it to
// the user. Tool execution itself happens backend-side; the client
// only gates whether a given tool name needs a human in the loop.
package permission

// Mode mirrors the modes a Programming thread can run under.
type Mode string

const (
	// ModeDefault prompts for risky actions (bash, file edits).
	ModeDefault Mode = "default"
	// ModeAcceptEdits auto-approves edits but still prompts for bash.
	ModeAcceptEdits Mode = "acceptEdits"
	// ModeDontAsk auto-approves every request.
	ModeDontAsk Mode = "dontAsk"
	// ModeBypass auto-approves every request, same as ModeDontAsk but
	// set explicitly rather than as a convenience default.
	ModeBypass Mode = "bypassPermissions"
	// ModePlan auto-denies every request; no tool may execute.
	ModePlan Mode = "plan"
)

// Decision is the outcome of evaluating a permission request against
// a Policy.
type Decision int

const (
	// DecisionPrompt means the request must be surfaced to the user;
	// no automatic response is sent.
	DecisionPrompt Decision = iota
	DecisionAutoApprove
	DecisionAutoDeny
)

// Policy decides how permission requests are handled for a thread.
type Policy struct {
	Mode Mode
}

// riskyTools require a prompt under ModeDefault; every other tool is
// considered safe to auto-run. ModeAcceptEdits prompts only for Bash.
var riskyTools = map[string]bool{
	"Bash": true,
	"Edit": true,
}

// Decide classifies toolName under p.Mode.
func (p Policy) Decide(toolName string) Decision {
	switch p.Mode {
	case ModeBypass, ModeDontAsk:
		return DecisionAutoApprove
	case ModePlan:
		return DecisionAutoDeny
	case ModeAcceptEdits:
		if toolName == "Bash" {
			return DecisionPrompt
		}
		return DecisionAutoApprove
	default:
		if riskyTools[toolName] {
			return DecisionPrompt
		}
		return DecisionAutoApprove
	}
}

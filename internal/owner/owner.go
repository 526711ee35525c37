// Package owner implements the single-consumer task that serializes
// every mutation of the thread cache: stream-derived bus messages,
// input commands, and tick-driven animation state all converge here,
// so the cache itself needs no locking discipline beyond its own
// belt-and-suspenders mutex.
package owner

import (
	"context"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/spoq-dev/spoq/internal/cache"
	"github.com/spoq-dev/spoq/internal/permission"
	"github.com/spoq-dev/spoq/internal/stream"
)

// tickInterval drives time-based animations: tool fade-outs, spinners,
// auto-scroll physics. 60 Hz matches a typical terminal repaint rate.
const tickInterval = 16 * time.Millisecond

// Transport opens a stream session's HTTP response body. Owner never
// touches the network itself; internal/backend supplies the
// implementation actually used at runtime.
type Transport interface {
	Stream(ctx context.Context, req stream.Request) (io.ReadCloser, error)
}

// PermissionNotifier reports a user's permission decision back to the
// backend. A nil notifier means decisions only update local cache
// state, which is sufficient for tests and for the dashboard-only
// build.
type PermissionNotifier interface {
	Notify(ctx context.Context, threadID, permissionID string, approved bool) error
}

// Owner is the single-consumer task holding the cache. Construct with
// New and run it with Run from its own goroutine.
type Owner struct {
	cache     *cache.Cache
	transport Transport
	debug     stream.DebugSink
	notifier  PermissionNotifier
	policy    permission.Policy

	bus      *messageBus
	commands chan Command

	tick atomic.Int64

	mu             sync.Mutex
	sessionCancels map[string]context.CancelFunc
	sessions       errgroup.Group
}

// New constructs an Owner over cache c, submitting sessions through
// transport. debug and notifier may be nil.
func New(c *cache.Cache, transport Transport, debug stream.DebugSink, notifier PermissionNotifier, policy permission.Policy) *Owner {
	return &Owner{
		cache:          c,
		transport:      transport,
		debug:          debug,
		notifier:       notifier,
		policy:         policy,
		bus:            newMessageBus(),
		commands:       make(chan Command, 64),
		sessionCancels: make(map[string]context.CancelFunc),
	}
}

// Commands returns the channel the input layer sends Command values
// on.
func (o *Owner) Commands() chan<- Command { return o.commands }

// CurrentTick returns the owner's tick counter. Safe to call from any
// goroutine (e.g. a render loop polling fade-window state).
func (o *Owner) CurrentTick() int64 { return o.tick.Load() }

// Run drains the message bus and the command channel and advances the
// tick timer until ctx is cancelled. It returns ctx.Err() on exit; the
// caller should then call Shutdown to let in-flight sessions unwind.
func (o *Owner) Run(ctx context.Context) error {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			o.tick.Add(1)
		case msg := <-o.bus.Out():
			o.applyMessage(msg)
		case cmd := <-o.commands:
			o.applyCommand(ctx, cmd)
		}
	}
}

// Shutdown cancels every in-flight session and waits for their
// goroutines to exit.
func (o *Owner) Shutdown() {
	o.mu.Lock()
	for _, cancel := range o.sessionCancels {
		cancel()
	}
	o.mu.Unlock()
	o.sessions.Wait()
}

func (o *Owner) applyCommand(ctx context.Context, cmd Command) {
	switch cmd.Kind {
	case CmdSubmit:
		if cmd.Submit != nil {
			o.handleSubmit(ctx, *cmd.Submit)
		}
	case CmdCancel:
		if cmd.Cancel != nil {
			o.handleCancel(*cmd.Cancel)
		}
	case CmdToggleReasoning:
		if cmd.ToggleReasoning != nil {
			o.cache.ToggleMessageReasoning(cmd.ToggleReasoning.ThreadID, cmd.ToggleReasoning.Index)
		}
	case CmdDismissError:
		if cmd.DismissError != nil {
			o.cache.DismissFocusedError(cmd.DismissError.ThreadID)
		}
	case CmdPermissionDecision:
		if cmd.PermissionDecision != nil {
			o.handlePermissionDecision(ctx, *cmd.PermissionDecision)
		}
	}
}

func (o *Owner) handleSubmit(ctx context.Context, cmd SubmitCommand) {
	decision := stream.DecideSubmission(o.cache, cmd.OnCommandDeck, cmd.ActiveThreadID, cmd.Content, cmd.ThreadKind)
	if decision.Kind == stream.DecisionBlocked {
		o.cache.AddError(cmd.ActiveThreadID, "submission_blocked", decision.Message)
		return
	}
	o.startSession(ctx, decision.ThreadID, cmd.Content, cmd.ThreadKind, cmd.PlanMode, decision.Kind == stream.DecisionNew)
}

func (o *Owner) startSession(ctx context.Context, threadID, content string, kind cache.ThreadKind, planMode bool, isNew bool) {
	requestThreadID := threadID
	if isNew {
		requestThreadID = ""
	}
	req := stream.NewRequest(content, requestThreadID, kind, planMode)

	sessionCtx, cancel := context.WithCancel(ctx)
	o.mu.Lock()
	o.sessionCancels[threadID] = cancel
	o.mu.Unlock()

	o.sessions.Go(func() error {
		defer func() {
			o.mu.Lock()
			delete(o.sessionCancels, threadID)
			o.mu.Unlock()
			cancel()
		}()

		body, err := o.transport.Stream(sessionCtx, req)
		if err != nil {
			o.bus.In() <- stream.BusMessage{
				Kind:        stream.KindStreamError,
				ThreadID:    threadID,
				StreamError: &stream.StreamErrorMsg{Message: err.Error(), Terminal: true},
			}
			return nil
		}
		defer body.Close()

		stream.RunSession(sessionCtx, threadID, body, o.bus.In(), o.debug)
		return nil
	})
}

func (o *Owner) handleCancel(cmd CancelCommand) {
	o.mu.Lock()
	cancel, ok := o.sessionCancels[cmd.ThreadID]
	o.mu.Unlock()
	if ok {
		cancel()
	}
	o.cache.CancelStreamingMessage(cmd.ThreadID)
}

// handlePermissionRequested decides, per policy, whether the request
// needs a human: auto-approved/denied requests are notified
// immediately and never become a pending request in the cache (a
// failed notification is recorded as a thread error); everything else
// is surfaced as a pending permission request for the user to answer.
func (o *Owner) handlePermissionRequested(msg stream.BusMessage) {
	req := msg.PermissionRequested
	switch o.policy.Decide(req.ToolName) {
	case permission.DecisionAutoApprove:
		o.notifyPermission(msg.ThreadID, req.PermissionID, true)
	case permission.DecisionAutoDeny:
		o.notifyPermission(msg.ThreadID, req.PermissionID, false)
	default:
		o.cache.SetPermissionRequest(msg.ThreadID, cache.PermissionRequest{
			PermissionID: req.PermissionID,
			ToolName:     req.ToolName,
			Description:  req.Description,
			ToolInput:    string(req.ToolInput),
			ReceivedAt:   time.Now(),
		})
	}
}

func (o *Owner) notifyPermission(threadID, permissionID string, approved bool) {
	if o.notifier == nil {
		return
	}
	if err := o.notifier.Notify(context.Background(), threadID, permissionID, approved); err != nil {
		o.cache.AddError(threadID, "permission_notify_failed", err.Error())
	}
}

func (o *Owner) handlePermissionDecision(ctx context.Context, cmd PermissionDecisionCommand) {
	o.cache.ClearPermissionRequest(cmd.ThreadID)
	if o.notifier == nil {
		return
	}
	if err := o.notifier.Notify(ctx, cmd.ThreadID, cmd.PermissionID, cmd.Approved); err != nil {
		o.cache.AddError(cmd.ThreadID, "permission_notify_failed", err.Error())
	}
}

func (o *Owner) applyMessage(msg stream.BusMessage) {
	switch msg.Kind {
	case stream.KindStreamToken:
		o.cache.AppendToken(msg.ThreadID, msg.StreamToken.Text)

	case stream.KindReasoningToken:
		o.cache.AppendReasoning(msg.ThreadID, msg.ReasoningToken.Text)

	case stream.KindStreamComplete:
		o.cache.FinalizeMessage(msg.ThreadID, msg.StreamComplete.MessageID)
		o.cache.ClearTools(msg.ThreadID)

	case stream.KindStreamError:
		o.cache.AddError(msg.ThreadID, "stream", msg.StreamError.Message)
		o.cache.CancelStreamingMessage(msg.ThreadID)

	case stream.KindThreadCreated:
		if cache.IsPending(msg.ThreadID) {
			o.cache.ReconcileThreadID(msg.ThreadID, msg.ThreadCreated.RealID, nil)
		}

	case stream.KindThreadMetaUpdated:
		o.cache.SetThreadMetadata(msg.ThreadID, msg.ThreadMetaUpdated.Title, msg.ThreadMetaUpdated.Description)

	case stream.KindToolStarted:
		o.cache.RegisterToolStart(msg.ThreadID, msg.ToolStarted.CallID, msg.ToolStarted.ToolName, o.tick.Load())

	case stream.KindToolArgumentChunk:
		o.cache.AppendToolArgument(msg.ThreadID, msg.ToolArgumentChunk.CallID, msg.ToolArgumentChunk.Chunk)

	case stream.KindToolExecuting:
		o.cache.SetToolExecuting(msg.ThreadID, msg.ToolExecuting.CallID, msg.ToolExecuting.DisplayName, msg.ToolExecuting.URL)

	case stream.KindToolCompleted:
		o.cache.CompleteTool(msg.ThreadID, msg.ToolCompleted.CallID, msg.ToolCompleted.Success, msg.ToolCompleted.Summary, o.tick.Load())

	case stream.KindTodosUpdated:
		o.cache.SetTodos(msg.ThreadID, msg.TodosUpdated.Todos)

	case stream.KindPermissionRequested:
		o.handlePermissionRequested(msg)

	case stream.KindSkillsInjected, stream.KindOAuthConsentRequired, stream.KindContextCompacted:
		o.applyInformational(msg)
	}
}

// applyInformational routes the three advisory event kinds the cache
// has no dedicated storage for through the per-thread error queue, the
// nearest existing surface for a transient message the UI should show
// once and let the user dismiss.
func (o *Owner) applyInformational(msg stream.BusMessage) {
	switch msg.Kind {
	case stream.KindSkillsInjected:
		o.cache.AddError(msg.ThreadID, "skills_injected", skillsSummary(msg.SkillsInjected.Skills))
	case stream.KindOAuthConsentRequired:
		o.cache.AddError(msg.ThreadID, "oauth_consent_required", oauthSummary(msg.OAuthConsentRequired))
	case stream.KindContextCompacted:
		o.cache.AddError(msg.ThreadID, "context_compacted", contextCompactedSummary(msg.ContextCompacted))
	}
}

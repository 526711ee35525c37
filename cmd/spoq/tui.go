package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/spoq-dev/spoq/internal/cache"
	"github.com/spoq-dev/spoq/internal/config"
	"github.com/spoq-dev/spoq/internal/owner"
)

// renderTickInterval matches the owner's own animation tick so tool
// fade-outs repaint smoothly without the TUI polling any faster than
// the state it reads can actually change.
const renderTickInterval = 16 * time.Millisecond

type renderTickMsg struct{}

func renderTickCmd() tea.Cmd {
	return tea.Tick(renderTickInterval, func(time.Time) tea.Msg { return renderTickMsg{} })
}

// tuiTheme holds the handful of colors the command deck and thread
// view borrow from each other.
type tuiTheme struct {
	accent lipgloss.Color
	dim    lipgloss.Color
	error  lipgloss.Color
}

func defaultTUITheme() tuiTheme {
	return tuiTheme{
		accent: lipgloss.Color("6"),
		dim:    lipgloss.Color("8"),
		error:  lipgloss.Color("1"),
	}
}

// tuiModel is the peripheral rendering layer: it owns no conversation
// state of its own, only a reference to the cache it reads and the
// owner it sends commands to. Every repaint re-derives its view from
// cache.ThreadOrder/GetThread, so there is nothing here for the owner
// to synchronize with beyond the commands channel.
type tuiModel struct {
	owner    *owner.Owner
	cache    *cache.Cache
	settings *config.Settings

	defaultKind cache.ThreadKind
	planMode    bool
	verbose     bool

	input    textarea.Model
	body     viewport.Model
	renderer *glamour.TermRenderer
	theme    tuiTheme

	onCommandDeck  bool
	activeThreadID string
	cursorIndex    int

	width, height int
	quitting      bool
	statusText    string
}

func runInteractiveTUI(o *owner.Owner, c *cache.Cache, kind cache.ThreadKind, planMode bool, settings *config.Settings, initialPrompt string, verbose bool) error {
	m := newTUIModel(o, c, kind, planMode, settings, verbose)
	program := tea.NewProgram(m, tea.WithAltScreen())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go o.Run(ctx) //nolint:errcheck // Run returns ctx.Err() on shutdown, nothing to report here

	if initialPrompt != "" {
		o.Commands() <- owner.Command{
			Kind: owner.CmdSubmit,
			Submit: &owner.SubmitCommand{
				Content:       initialPrompt,
				ThreadKind:    kind,
				PlanMode:      planMode,
				OnCommandDeck: true,
			},
		}
	}

	_, err := program.Run()
	cancel()
	o.Shutdown()
	return err
}

func newTUIModel(o *owner.Owner, c *cache.Cache, kind cache.ThreadKind, planMode bool, settings *config.Settings, verbose bool) *tuiModel {
	input := textarea.New()
	input.Focus()
	input.CharLimit = 0
	input.Prompt = "> "
	input.SetHeight(3)
	input.SetWidth(20)

	body := viewport.New(20, 10)

	var renderer *glamour.TermRenderer
	if r, err := glamour.NewTermRenderer(glamour.WithAutoStyle()); err == nil {
		renderer = r
	}

	return &tuiModel{
		owner:         o,
		cache:         c,
		settings:      settings,
		defaultKind:   kind,
		planMode:      planMode,
		verbose:       verbose,
		input:         input,
		body:          body,
		renderer:      renderer,
		theme:         defaultTUITheme(),
		onCommandDeck: true,
	}
}

func (m *tuiModel) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, renderTickCmd())
}

func (m *tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch typed := msg.(type) {
	case tea.WindowSizeMsg:
		m.applyWindowSize(typed)
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(typed)
	case renderTickMsg:
		m.refreshBody()
		return m, renderTickCmd()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *tuiModel) View() string {
	if m.quitting {
		return ""
	}
	if m.width == 0 {
		return "Initializing..."
	}
	m.refreshBody()

	header := m.renderHeader()
	footer := m.renderFooter()
	return lipgloss.JoinVertical(lipgloss.Left, header, m.body.View(), m.input.View(), footer)
}

func (m *tuiModel) applyWindowSize(msg tea.WindowSizeMsg) {
	m.width = msg.Width
	m.height = msg.Height
	m.input.SetWidth(msg.Width - 2)
	m.body.Width = msg.Width
	m.body.Height = msg.Height - m.input.Height() - 4
}

func (m *tuiModel) handleKey(key tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key.Type {
	case tea.KeyCtrlC:
		m.quitting = true
		return m, tea.Quit
	case tea.KeyEsc:
		if !m.onCommandDeck {
			m.cancelActive()
		}
		return m, nil
	case tea.KeyTab:
		m.toggleScreen()
		return m, nil
	}

	if thread, ok := m.activeThread(); ok && thread.Permission != nil {
		switch key.String() {
		case "y", "Y":
			m.decidePermission(true)
			return m, nil
		case "n", "N":
			m.decidePermission(false)
			return m, nil
		}
	}

	if m.onCommandDeck {
		switch key.Type {
		case tea.KeyUp:
			m.moveCursor(-1)
			return m, nil
		case tea.KeyDown:
			m.moveCursor(1)
			return m, nil
		case tea.KeyEnter:
			if order := m.cache.ThreadOrder(); m.cursorIndex >= 0 && m.cursorIndex < len(order) {
				m.activeThreadID = order[m.cursorIndex]
				m.onCommandDeck = false
				return m, nil
			}
		}
	}

	if key.Type == tea.KeyEnter && !key.Alt {
		return m.submit()
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(key)
	return m, cmd
}

func (m *tuiModel) activeThread() (*cache.Thread, bool) {
	if m.activeThreadID == "" {
		return nil, false
	}
	return m.cache.GetThread(m.activeThreadID)
}

func (m *tuiModel) moveCursor(delta int) {
	order := m.cache.ThreadOrder()
	if len(order) == 0 {
		return
	}
	m.cursorIndex += delta
	if m.cursorIndex < 0 {
		m.cursorIndex = 0
	}
	if m.cursorIndex >= len(order) {
		m.cursorIndex = len(order) - 1
	}
}

func (m *tuiModel) toggleScreen() {
	if m.onCommandDeck && m.activeThreadID != "" {
		m.onCommandDeck = false
		return
	}
	m.onCommandDeck = true
}

func (m *tuiModel) submit() (tea.Model, tea.Cmd) {
	content := strings.TrimSpace(m.input.Value())
	if content == "" {
		return m, nil
	}
	m.input.Reset()

	m.owner.Commands() <- owner.Command{
		Kind: owner.CmdSubmit,
		Submit: &owner.SubmitCommand{
			Content:        content,
			ThreadKind:     m.defaultKind,
			PlanMode:       m.planMode,
			OnCommandDeck:  m.onCommandDeck,
			ActiveThreadID: m.activeThreadID,
		},
	}

	if m.onCommandDeck {
		if order := m.cache.ThreadOrder(); len(order) > 0 {
			m.activeThreadID = order[0]
		}
		m.onCommandDeck = false
	}
	return m, nil
}

func (m *tuiModel) cancelActive() {
	if m.activeThreadID == "" {
		return
	}
	m.owner.Commands() <- owner.Command{
		Kind:   owner.CmdCancel,
		Cancel: &owner.CancelCommand{ThreadID: m.activeThreadID},
	}
}

func (m *tuiModel) decidePermission(approved bool) {
	thread, ok := m.activeThread()
	if !ok || thread.Permission == nil {
		return
	}
	m.owner.Commands() <- owner.Command{
		Kind: owner.CmdPermissionDecision,
		PermissionDecision: &owner.PermissionDecisionCommand{
			ThreadID:     m.activeThreadID,
			PermissionID: thread.Permission.PermissionID,
			Approved:     approved,
		},
	}
}

func (m *tuiModel) refreshBody() {
	if m.onCommandDeck {
		m.body.SetContent(m.renderCommandDeck())
		return
	}
	m.body.SetContent(m.renderThread())
	m.body.GotoBottom()
}

func (m *tuiModel) renderCommandDeck() string {
	order := m.cache.ThreadOrder()
	if len(order) == 0 {
		return "No threads yet. Type a message and press Enter to start one."
	}

	var b strings.Builder
	for i, id := range order {
		thread, ok := m.cache.GetThread(id)
		if !ok {
			continue
		}
		marker := "  "
		if i == m.cursorIndex {
			marker = "> "
		}
		title := thread.Title
		if title == "" {
			title = thread.Preview
		}
		fmt.Fprintf(&b, "%s%s\n", marker, title)
	}
	return b.String()
}

func (m *tuiModel) renderThread() string {
	thread, ok := m.activeThread()
	if !ok {
		return "Thread not found."
	}

	var b strings.Builder
	for _, msg := range thread.Messages {
		m.renderMessage(&b, msg)
	}

	tick := m.owner.CurrentTick()
	for _, tool := range m.cache.VisibleTools(thread.ID, tick) {
		fmt.Fprintf(&b, "\n[tool] %s: %s\n", tool.ToolName, toolStatusLabel(tool))
	}

	if len(thread.Todos) > 0 {
		b.WriteString("\ntodos:\n")
		for _, todo := range thread.Todos {
			fmt.Fprintf(&b, "  [%s] %s\n", todo.Status, todo.Content)
		}
	}

	if thread.Permission != nil {
		fmt.Fprintf(&b, "\npermission requested: %s — %s (y/n)\n", thread.Permission.ToolName, thread.Permission.Description)
	}

	for _, e := range thread.Errors {
		fmt.Fprintf(&b, "\n[%s] %s\n", e.Kind, e.Message)
	}

	return b.String()
}

func (m *tuiModel) renderMessage(b *strings.Builder, msg *cache.Message) {
	content := msg.Content
	if msg.Streaming {
		content += msg.PartialContent
	}
	switch msg.Role {
	case cache.RoleUser:
		fmt.Fprintf(b, "you: %s\n", content)
	case cache.RoleSystem:
		fmt.Fprintf(b, "system: %s\n", content)
	default:
		if msg.ReasoningContent != "" && !msg.ReasoningCollapsed {
			fmt.Fprintf(b, "(reasoning) %s\n", msg.ReasoningContent)
		}
		rendered := content
		if m.renderer != nil {
			if out, err := m.renderer.Render(content); err == nil {
				rendered = out
			}
		}
		fmt.Fprintf(b, "assistant: %s\n", rendered)
	}
}

func toolStatusLabel(tc *cache.ToolCall) string {
	switch tc.Display {
	case cache.DisplayStarted:
		return "starting"
	case cache.DisplayExecuting:
		return tc.DisplayName
	default:
		if tc.Success {
			return "done: " + tc.Summary
		}
		return "failed: " + tc.Summary
	}
}

func (m *tuiModel) renderHeader() string {
	style := lipgloss.NewStyle().Foreground(m.theme.accent).Bold(true)
	if m.onCommandDeck {
		return style.Render("spoq — threads")
	}
	thread, ok := m.activeThread()
	title := m.activeThreadID
	if ok && thread.Title != "" {
		title = thread.Title
	}
	return style.Render("spoq — " + title)
}

func (m *tuiModel) renderFooter() string {
	dim := lipgloss.NewStyle().Foreground(m.theme.dim)
	if m.onCommandDeck {
		return dim.Render("tab: switch view   enter: select/submit   ctrl+c: quit")
	}
	return dim.Render("esc: cancel turn   tab: command deck   ctrl+c: quit")
}

// Package tui provides the interactive terminal console for orange. Typed
// text stands in for speech; slash commands drive the session.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/fentz26/orange/internal/controlplane"
	"github.com/fentz26/orange/internal/models"
	"github.com/fentz26/orange/internal/session"
)

var (
	// Colors
	primaryColor   = lipgloss.Color("#F97316")
	secondaryColor = lipgloss.Color("#6366F1")
	successColor   = lipgloss.Color("#10B981")
	warningColor   = lipgloss.Color("#F59E0B")
	errorColor     = lipgloss.Color("#EF4444")
	mutedColor     = lipgloss.Color("#6B7280")
	fgColor        = lipgloss.Color("#F9FAFB")
	cyanColor      = lipgloss.Color("#06B6D4")

	// Styles
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(primaryColor).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("#374151")).
			Foreground(fgColor).
			Padding(0, 1)

	inputBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(primaryColor).
			Padding(0, 1)

	selectedStyle = lipgloss.NewStyle().
			Background(primaryColor).
			Foreground(fgColor).
			Bold(true)

	helpStyle = lipgloss.NewStyle().
			Foreground(mutedColor).
			Italic(true)

	promptBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(warningColor).
			Padding(0, 1)

	onlineStyle  = lipgloss.NewStyle().Foreground(successColor).Bold(true)
	offlineStyle = lipgloss.NewStyle().Foreground(errorColor)
)

const pollInterval = 500 * time.Millisecond

// Backend is the control API as the console uses it.
type Backend interface {
	Health(ctx context.Context) (*controlplane.HealthResponse, error)
	Session(ctx context.Context) (session.Snapshot, error)
	Begin(ctx context.Context) (session.Snapshot, error)
	Stop(ctx context.Context) (session.Snapshot, error)
	Confirm(ctx context.Context) (session.Snapshot, error)
	Cancel(ctx context.Context) (session.Snapshot, error)
	Reset(ctx context.Context) (session.Snapshot, error)
	Command(ctx context.Context, text string) (session.Snapshot, error)
	Decisions(ctx context.Context, sessionID string, limit int) ([]models.SafetyDecisionRecord, error)
	Sessions(ctx context.Context, limit int) ([]models.SessionRecord, error)
}

type mode int

const (
	modeSession mode = iota
	modeDecisions
	modeHistory
)

// App is the main TUI application model.
type App struct {
	backend     Backend
	input       textinput.Model
	viewport    viewport.Model
	suggestions *Suggestions
	width       int
	height      int

	mode      mode
	snap      session.Snapshot
	decisions []models.SafetyDecisionRecord
	history   []models.SessionRecord
	online    bool
	busy      bool
	message   string
}

// New creates a console for the daemon at apiAddr.
func New(apiAddr string) *App {
	return NewWithBackend(controlplane.NewClient(apiAddr))
}

// NewWithBackend creates a console over b.
func NewWithBackend(b Backend) *App {
	ti := textinput.New()
	ti.Placeholder = "Say something (e.g. open Safari) or type / for commands"
	ti.Focus()
	ti.CharLimit = 512
	ti.Width = 80

	return &App{
		backend:     b,
		input:       ti,
		viewport:    viewport.New(80, 8),
		suggestions: NewSuggestions(),
	}
}

// Run starts the TUI application.
func (a *App) Run() error {
	p := tea.NewProgram(a, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// Init implements tea.Model
func (a *App) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		a.checkDaemon(),
		a.fetchSession(),
		a.tickCmd(),
	)
}

// Update implements tea.Model
func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return a, tea.Quit

		case "esc":
			if a.mode != modeSession {
				a.mode = modeSession
				return a, nil
			}
			if a.snap.State == models.StateConfirming {
				return a, a.run("cancel")
			}

		case "up":
			if a.suggestions.IsVisible() {
				a.suggestions.Prev()
				return a, nil
			}

		case "down":
			if a.suggestions.IsVisible() {
				a.suggestions.Next()
				return a, nil
			}

		case "tab":
			if selected := a.suggestions.Selected(); selected != nil {
				a.input.SetValue(selected.Text)
				a.input.CursorEnd()
				a.suggestions.Update("")
			}
			return a, nil

		case "enter":
			if selected := a.suggestions.Selected(); selected != nil && a.input.Value() != selected.Text {
				a.input.SetValue(selected.Text)
				a.input.CursorEnd()
				a.suggestions.Update("")
				return a, nil
			}
			text := strings.TrimSpace(a.input.Value())
			a.input.SetValue("")
			a.suggestions.Update("")
			if text == "" {
				return a, nil
			}
			return a, a.executeCommand(text)
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.input.Width = msg.Width - 6
		a.viewport.Width = msg.Width - 2
		a.viewport.Height = max(msg.Height/4, 4)
		a.refreshLog()

	case snapshotMsg:
		a.online = true
		a.setSnapshot(msg.snap)

	case actionMsg:
		a.busy = false
		if msg.snap.ID != "" {
			a.setSnapshot(msg.snap)
		}
		a.message = actionMessage(msg.name, msg.snap, msg.err)

	case healthMsg:
		a.online = msg.online

	case decisionsMsg:
		a.decisions = msg.decisions
		a.mode = modeDecisions

	case historyMsg:
		a.history = msg.sessions
		a.mode = modeHistory

	case tickMsg:
		return a, tea.Batch(a.fetchSession(), a.tickCmd())

	case errMsg:
		a.online = false
		a.message = "Error: " + msg.err.Error()
	}

	var cmd tea.Cmd
	a.input, cmd = a.input.Update(msg)
	cmds = append(cmds, cmd)
	a.suggestions.Update(a.input.Value())

	a.viewport, cmd = a.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return a, tea.Batch(cmds...)
}

func (a *App) setSnapshot(snap session.Snapshot) {
	a.snap = snap
	a.refreshLog()
}

func (a *App) refreshLog() {
	a.viewport.SetContent(renderEvents(a.snap.PlannerEvents, a.snap.AuditTrail))
	a.viewport.GotoBottom()
}

// View implements tea.Model
func (a *App) View() string {
	var b strings.Builder

	daemon := onlineStyle.Render("● DAEMON")
	if !a.online {
		daemon = offlineStyle.Render("○ DAEMON")
	}
	header := titleStyle.Render("ORANGE") + "  " + daemon + "  " + formatState(a.snap.State)
	if a.busy {
		header += "  " + helpStyle.Render("working...")
	}
	b.WriteString(header + "\n")
	b.WriteString(strings.Repeat("─", max(a.width, 10)) + "\n")

	switch a.mode {
	case modeDecisions:
		b.WriteString(renderDecisions(a.decisions))
	case modeHistory:
		b.WriteString(renderHistory(a.history))
	default:
		b.WriteString(renderSession(a.snap))
		b.WriteString("\n" + lipgloss.NewStyle().Foreground(cyanColor).Render(" Events") + "\n")
		b.WriteString(a.viewport.View())
	}

	if a.message != "" {
		msgStyle := lipgloss.NewStyle().Foreground(successColor)
		if strings.HasPrefix(a.message, "Error") {
			msgStyle = lipgloss.NewStyle().Foreground(errorColor)
		}
		b.WriteString("\n" + msgStyle.Render(a.message))
	} else {
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(inputBoxStyle.Render(a.input.View()))
	if a.suggestions.IsVisible() {
		b.WriteString("\n" + a.suggestions.Render(a.width))
	}
	b.WriteString("\n")

	status := " Enter:command | /:menu | Esc:back | Ctrl+C:quit"
	if a.snap.State == models.StateConfirming {
		status = " /confirm:run plan | Esc:deny | Ctrl+C:quit"
	}
	b.WriteString(statusBarStyle.Width(max(a.width, 10)).Render(status))

	return b.String()
}

func (a *App) executeCommand(input string) tea.Cmd {
	if !strings.HasPrefix(input, "/") {
		a.busy = true
		a.message = ""
		return func() tea.Msg {
			snap, err := a.backend.Command(context.Background(), input)
			return actionMsg{name: "command", snap: snap, err: err}
		}
	}

	switch strings.Fields(input)[0] {
	case "/begin":
		return a.run("begin")
	case "/stop":
		return a.run("stop")
	case "/confirm":
		return a.run("confirm")
	case "/cancel":
		return a.run("cancel")
	case "/reset":
		return a.run("reset")
	case "/decisions":
		id := a.snap.ID
		return func() tea.Msg {
			d, err := a.backend.Decisions(context.Background(), id, 0)
			if err != nil {
				return errMsg{err}
			}
			return decisionsMsg{d}
		}
	case "/history":
		return func() tea.Msg {
			s, err := a.backend.Sessions(context.Background(), 20)
			if err != nil {
				return errMsg{err}
			}
			return historyMsg{s}
		}
	case "/quit", "/q", "/exit":
		return tea.Quit
	default:
		a.message = fmt.Sprintf("Unknown: %s (try /begin, /stop, /confirm, /cancel)", input)
		return nil
	}
}

// run calls one session action on the backend.
func (a *App) run(name string) tea.Cmd {
	calls := map[string]func(context.Context) (session.Snapshot, error){
		"begin":   a.backend.Begin,
		"stop":    a.backend.Stop,
		"confirm": a.backend.Confirm,
		"cancel":  a.backend.Cancel,
		"reset":   a.backend.Reset,
	}
	call := calls[name]
	a.busy = true
	a.message = ""
	a.mode = modeSession
	return func() tea.Msg {
		snap, err := call(context.Background())
		return actionMsg{name: name, snap: snap, err: err}
	}
}

func (a *App) fetchSession() tea.Cmd {
	return func() tea.Msg {
		snap, err := a.backend.Session(context.Background())
		if err != nil {
			return errMsg{err}
		}
		return snapshotMsg{snap}
	}
}

func (a *App) checkDaemon() tea.Cmd {
	return func() tea.Msg {
		h, err := a.backend.Health(context.Background())
		return healthMsg{online: err == nil && h != nil && h.OK}
	}
}

func (a *App) tickCmd() tea.Cmd {
	return tea.Tick(pollInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// actionMessage turns an action reply into the message line.
func actionMessage(name string, snap session.Snapshot, err error) string {
	var apiErr *controlplane.APIError
	switch {
	case err == nil:
	case errors.As(err, &apiErr) && apiErr.Code == controlplane.CodeCredentialRequired:
		return "Error: the planner has no usable API key. Run `orange provider validate` to set one up."
	default:
		return "Error: " + err.Error()
	}

	switch snap.State {
	case models.StateConfirming:
		return fmt.Sprintf("%d confirmation(s) needed. Type /confirm to run or press Esc to deny.", len(snap.Prompts))
	case models.StateDone:
		return "✓ " + snap.StatusText
	case models.StateFailed:
		return "Error: " + snap.Reason
	case models.StateCanceled:
		return "Canceled"
	case models.StateListening:
		return "Listening. Type /stop when done."
	}
	return "✓ " + name
}

type snapshotMsg struct {
	snap session.Snapshot
}

type actionMsg struct {
	name string
	snap session.Snapshot
	err  error
}

type healthMsg struct {
	online bool
}

type decisionsMsg struct {
	decisions []models.SafetyDecisionRecord
}

type historyMsg struct {
	sessions []models.SessionRecord
}

type errMsg struct {
	err error
}

type tickMsg time.Time

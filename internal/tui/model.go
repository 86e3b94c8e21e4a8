// Package tui is the terminal dashboard: permission prompt, pattern picker
// and the live alert log.
package tui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nixlim/buzz/internal/catalog"
	"github.com/nixlim/buzz/internal/config"
	"github.com/nixlim/buzz/internal/logging"
	"github.com/nixlim/buzz/internal/permission"
	"github.com/nixlim/buzz/internal/session"
)

type tickMsg time.Time

type permissionResultMsg struct {
	state permission.State
	err   error
}

type focusMsg struct{}

// SessionProvider is the part of *session.Session the dashboard drives.
type SessionProvider interface {
	Snapshot() session.Snapshot
	RequestPermission(ctx context.Context) (permission.State, error)
	SelectPattern(key string) error
	Focused() <-chan struct{}
}

// DiagProvider exposes the captured warnings and errors of the
// diagnostic log.
type DiagProvider interface {
	Counts() (warn, err int)
	Recent() []logging.Entry
}

type Model struct {
	width    int
	height   int
	keys     KeyMap
	quitting bool
	showHelp bool
	showDiag bool

	cfg config.Config

	session  SessionProvider
	prompter *Prompter
	diag     DiagProvider

	snap    session.Snapshot
	spinner spinner.Model

	prompt     *promptRequest
	requesting bool
	message    string

	patternCursor int
	logScrollPos  int
	focusedAt     time.Time

	refreshRate time.Duration
	now         func() time.Time

	onShutdown func()
}

type ModelOption func(*Model)

func NewModel(cfg config.Config, s SessionProvider, opts ...ModelOption) Model {
	m := Model{
		keys:        DefaultKeyMap(),
		cfg:         cfg,
		session:     s,
		refreshRate: 250 * time.Millisecond,
		now:         time.Now,
		spinner: spinner.New(
			spinner.WithSpinner(spinner.Dot),
			spinner.WithStyle(lipgloss.NewStyle().Foreground(accentColor)),
		),
	}
	for _, opt := range opts {
		opt(&m)
	}

	if s != nil {
		m.snap = s.Snapshot()
	}
	m.patternCursor = patternIndex(m.snap.Pattern.Key)
	return m
}

func WithPrompter(p *Prompter) ModelOption {
	return func(m *Model) { m.prompter = p }
}

func WithDiagProvider(d DiagProvider) ModelOption {
	return func(m *Model) { m.diag = d }
}

func WithOnShutdown(fn func()) ModelOption {
	return func(m *Model) { m.onShutdown = fn }
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{m.tickCmd(), m.spinner.Tick, m.waitForFocus()}
	if m.prompter != nil {
		cmds = append(cmds, m.prompter.waitForPrompt())
	}
	return tea.Batch(cmds...)
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.refreshRate, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Model) waitForFocus() tea.Cmd {
	if m.session == nil {
		return nil
	}
	ch := m.session.Focused()
	return func() tea.Msg {
		<-ch
		return focusMsg{}
	}
}

func (m Model) requestPermission() tea.Cmd {
	s := m.session
	return func() tea.Msg {
		st, err := s.RequestPermission(context.Background())
		return permissionResultMsg{state: st, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tickMsg:
		m.refresh()
		return m, m.tickCmd()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case promptMsg:
		req := msg.req
		m.prompt = &req
		return m, m.prompter.waitForPrompt()

	case permissionResultMsg:
		m.requesting = false
		m.message = permissionMessage(msg.state, msg.err, m.cfg.Alerts.StartDelayMS)
		m.refresh()
		return m, nil

	case focusMsg:
		m.focusedAt = m.now()
		m.message = "Brought to front by a notification click."
		return m, m.waitForFocus()

	case tea.KeyMsg:
		return m.handleKey(msg)
	}

	return m, nil
}

func (m *Model) refresh() {
	if m.session != nil {
		m.snap = m.session.Snapshot()
	}
	if last := len(m.snap.Entries) - 1; m.logScrollPos > last {
		m.logScrollPos = max(last, 0)
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.prompt != nil {
		return m.handlePromptKey(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		if m.prompter != nil {
			m.prompter.Close()
		}
		if m.onShutdown != nil {
			m.onShutdown()
		}
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = !m.showHelp
		m.showDiag = false
		return m, nil

	case key.Matches(msg, m.keys.Diag):
		m.showDiag = !m.showDiag && m.diag != nil
		m.showHelp = false
		return m, nil
	}

	if m.showHelp || m.showDiag {
		if key.Matches(msg, m.keys.Dismiss) {
			m.showHelp = false
			m.showDiag = false
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, m.keys.Request):
		return m.handleRequestKey()

	case key.Matches(msg, m.keys.PatternPrev):
		n := len(catalog.PatternKeys())
		m.patternCursor = (m.patternCursor - 1 + n) % n
		return m, nil

	case key.Matches(msg, m.keys.PatternNext):
		m.patternCursor = (m.patternCursor + 1) % len(catalog.PatternKeys())
		return m, nil

	case key.Matches(msg, m.keys.Select):
		keyName := catalog.PatternKeys()[m.patternCursor]
		if err := m.session.SelectPattern(keyName); err != nil {
			m.message = "Error: " + err.Error()
		} else {
			p, _ := catalog.LookupPattern(keyName)
			m.message = "Vibration pattern: " + p.Label
		}
		m.refresh()
		return m, nil

	case key.Matches(msg, m.keys.Up):
		if m.logScrollPos > 0 {
			m.logScrollPos--
		}
		return m, nil

	case key.Matches(msg, m.keys.Down):
		if m.logScrollPos < len(m.snap.Entries)-1 {
			m.logScrollPos++
		}
		return m, nil

	case key.Matches(msg, m.keys.Top):
		m.logScrollPos = 0
		return m, nil
	}

	return m, nil
}

// handleRequestKey is the only place a permission request starts, so a
// prompt always follows a deliberate key press.
func (m Model) handleRequestKey() (tea.Model, tea.Cmd) {
	switch m.snap.Permission {
	case permission.Granted:
		m.message = "Notifications are already enabled."
		return m, nil
	case permission.Denied:
		m.message = session.RecoveryHint
		return m, nil
	case permission.Unsupported:
		m.message = session.UnsupportedHint
		return m, nil
	}
	if m.requesting || m.session == nil {
		return m, nil
	}
	m.requesting = true
	m.message = ""
	return m, m.requestPermission()
}

func permissionMessage(s permission.State, err error, delayMS int) string {
	if err != nil && s != permission.Unsupported {
		return "Error: " + err.Error()
	}
	switch s {
	case permission.Granted:
		return "Notifications enabled. Alerts start in " + (time.Duration(delayMS) * time.Millisecond).String() + "."
	case permission.Denied:
		return session.RecoveryHint
	case permission.Unsupported:
		return session.UnsupportedHint
	}
	return "Prompt dismissed. Press p to be asked again."
}

func patternIndex(k string) int {
	for i, pk := range catalog.PatternKeys() {
		if pk == k {
			return i
		}
	}
	return 0
}

func (m Model) View() string {
	if m.quitting {
		return "Shutting down...\n"
	}

	output := m.renderDashboard()

	if m.height > 0 {
		lines := strings.Split(output, "\n")
		if len(lines) > m.height {
			lines = lines[:m.height]
			output = strings.Join(lines, "\n")
		}
	}
	return output
}

package tui

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/nixlim/buzz/internal/catalog"
	"github.com/nixlim/buzz/internal/permission"
)

type panelDimensions struct {
	controlsW, controlsH int
	logW, logH           int
	headerH, statusH     int
}

const (
	minWidth  = 40
	minHeight = 10

	headerHeight = 1
	statusHeight = 1
)

func computeDimensions(totalW, totalH int) panelDimensions {
	if totalW < minWidth {
		totalW = minWidth
	}
	if totalH < minHeight {
		totalH = minHeight
	}

	d := panelDimensions{headerH: headerHeight, statusH: statusHeight}

	usableH := totalH - headerHeight - statusHeight
	if usableH < 4 {
		usableH = 4
	}

	d.controlsW = totalW * 38 / 100
	if d.controlsW < 24 {
		d.controlsW = 24
	}
	if d.controlsW > totalW-20 {
		d.controlsW = totalW - 20
	}
	d.controlsH = usableH

	d.logW = totalW - d.controlsW
	d.logH = usableH
	return d
}

var (
	accentColor = lipgloss.Color("69")

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62"))

	panelBorderStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("240"))

	panelTitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(accentColor)

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			Background(lipgloss.Color("62"))

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("240"))

	grantedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("82"))

	pendingStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("226"))

	deniedStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("196"))

	timestampStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	promptDialogStyle = lipgloss.NewStyle().
				Border(lipgloss.DoubleBorder()).
				BorderForeground(lipgloss.Color("63")).
				Padding(1, 3).
				Bold(true)

	helpOverlayStyle = lipgloss.NewStyle().
				Border(lipgloss.RoundedBorder()).
				BorderForeground(accentColor).
				Padding(1, 2)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("245"))

	messageStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))
)

func renderBorderedPanel(content string, w, h int) string {
	contentH := h - 2
	if contentH < 1 {
		contentH = 1
	}

	lines := strings.Split(content, "\n")
	if len(lines) > contentH {
		lines = lines[:contentH]
		content = strings.Join(lines, "\n")
	}

	return panelBorderStyle.
		Width(w - 2).
		Height(contentH).
		Render(content)
}

var ansiRe = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func stripAnsi(s string) string {
	return ansiRe.ReplaceAllString(s, "")
}

func (m Model) renderDashboard() string {
	dims := computeDimensions(m.width, m.height)

	header := m.renderHeader()
	controls := m.renderControlsPanel(dims.controlsW, dims.controlsH)
	logPanel := m.renderLogPanel(dims.logW, dims.logH)
	status := m.renderStatusBar()

	main := lipgloss.JoinHorizontal(lipgloss.Top, controls, logPanel)
	layout := lipgloss.JoinVertical(lipgloss.Left, header, main, status)

	if m.prompt != nil {
		layout = m.overlayPrompt(layout)
	} else if m.showHelp {
		layout = m.overlayHelp(layout)
	} else if m.showDiag {
		layout = m.overlayDiag(layout)
	}
	return layout
}

func (m Model) renderHeader() string {
	title := " buzz"
	state := " " + m.runState()
	indicators := m.headerIndicators()
	help := "p:Enable  ←/→:Pattern  Enter:Use  d:Diag  ?:Help  q:Quit "

	padding := m.width - lipgloss.Width(title) - lipgloss.Width(state) - lipgloss.Width(indicators) - lipgloss.Width(help)
	if padding < 0 {
		padding = 0
	}
	return headerStyle.Width(m.width).Render(title + state + indicators + strings.Repeat(" ", padding) + help)
}

func (m Model) runState() string {
	switch {
	case m.snap.Running:
		return m.spinner.View() + " alerting every " + m.snap.Interval.String()
	case m.snap.Starting:
		return m.spinner.View() + " starting"
	case m.requesting:
		return "waiting for permission"
	default:
		return "idle"
	}
}

func (m Model) headerIndicators() string {
	var parts []string
	if m.diag != nil {
		if warn, errs := m.diag.Counts(); warn+errs > 0 {
			parts = append(parts, fmt.Sprintf("[diag %dw %de]", warn, errs))
		}
	}
	if m.snap.Stats.Skipped > 0 {
		parts = append(parts, fmt.Sprintf("[%d skipped]", m.snap.Stats.Skipped))
	}
	if len(parts) == 0 {
		return ""
	}
	return " " + strings.Join(parts, " ")
}

func permissionBadge(s permission.State) string {
	switch s {
	case permission.Granted:
		return grantedStyle.Render("● granted")
	case permission.Denied:
		return deniedStyle.Render("✕ denied")
	case permission.Unsupported:
		return deniedStyle.Render("✕ unsupported")
	default:
		return pendingStyle.Render("○ not requested")
	}
}

func (m Model) renderControlsPanel(w, h int) string {
	var b strings.Builder

	b.WriteString(panelTitleStyle.Render("Notifications") + "\n")
	b.WriteString("Permission: " + permissionBadge(m.snap.Permission) + "\n")
	switch m.snap.Permission {
	case permission.Unrequested:
		b.WriteString(dimStyle.Render("Press p to enable notifications") + "\n")
	case permission.Denied:
		b.WriteString(dimStyle.Render("Run `buzz reset-permission`, then restart") + "\n")
	case permission.Unsupported:
		b.WriteString(dimStyle.Render("No notification backend found") + "\n")
	default:
		b.WriteString("\n")
	}
	b.WriteString(dimStyle.Render("Backend: ") + m.snap.Backend + "\n")
	agent := string(m.snap.AgentMode)
	if m.snap.AgentState != "" {
		agent += " (" + m.snap.AgentState + ")"
	}
	b.WriteString(dimStyle.Render("Agent:   ") + agent + "\n")
	vib := "off"
	if m.snap.VibrationSupported {
		vib = "terminal bell"
	}
	b.WriteString(dimStyle.Render("Vibrate: ") + vib + "\n\n")

	b.WriteString(panelTitleStyle.Render("Vibration pattern") + "\n")
	for i, p := range catalog.Patterns() {
		marker := "  "
		if p.Key == m.snap.Pattern.Key {
			marker = "● "
		}
		line := fmt.Sprintf("%s%-11s %s", marker, p.Label, dimStyle.Render(p.Duration().String()))
		if i == m.patternCursor {
			line = selectedStyle.Render(stripAnsi(line))
		}
		b.WriteString(line + "\n")
	}

	return renderBorderedPanel(strings.TrimRight(b.String(), "\n"), w, h)
}

func (m Model) renderLogPanel(w, h int) string {
	entries := m.snap.Entries
	title := panelTitleStyle.Render(fmt.Sprintf("Alert log (%d)", len(entries)))

	if len(entries) == 0 {
		return renderBorderedPanel(title+"\n"+dimStyle.Render("No alerts yet."), w, h)
	}

	visible := h - 3
	if visible < 1 {
		visible = 1
	}
	start := m.logScrollPos
	if start > len(entries)-1 {
		start = len(entries) - 1
	}
	end := start + visible
	if end > len(entries) {
		end = len(entries)
	}

	lines := []string{title}
	maxMsg := w - 14
	for _, e := range entries[start:end] {
		msg := e.Message
		if maxMsg > 3 && len(msg) > maxMsg {
			msg = msg[:maxMsg-3] + "..."
		}
		lines = append(lines, timestampStyle.Render(e.Timestamp)+"  "+msg)
	}
	return renderBorderedPanel(strings.Join(lines, "\n"), w, h)
}

func (m Model) renderStatusBar() string {
	s := m.snap.Stats
	parts := []string{
		"cycles " + humanize.Comma(s.Cycles),
		"via agent " + humanize.Comma(s.ViaAgent),
		"direct " + humanize.Comma(s.Direct),
		"failed " + humanize.Comma(s.Failures),
	}
	if len(m.snap.Entries) > 0 {
		parts = append(parts, "last alert "+humanize.RelTime(m.snap.Entries[0].At, m.now(), "ago", "from now"))
	}
	line := " " + strings.Join(parts, " · ")
	if m.message != "" {
		line += "  " + messageStyle.Render(m.message)
	}
	return statusBarStyle.Render(line)
}

func (m Model) overlayPrompt(base string) string {
	dialog := promptDialogStyle.Render(
		"Allow buzz to show notifications?\n\n" +
			"Alerts arrive every " + m.snap.Interval.String() + " until you quit.\n\n" +
			"[A] Allow  [B] Block  [Esc] Not now")
	return placeOverlay(dialog, base)
}

func (m Model) overlayHelp(base string) string {
	k := m.keys
	rows := [][2]string{
		{k.Request.Help().Key, k.Request.Help().Desc},
		{k.PatternPrev.Help().Key + " " + k.PatternNext.Help().Key, "choose pattern"},
		{k.Select.Help().Key, k.Select.Help().Desc},
		{k.Up.Help().Key + " " + k.Down.Help().Key, "scroll log"},
		{k.Top.Help().Key, k.Top.Help().Desc},
		{k.Diag.Help().Key, k.Diag.Help().Desc},
		{k.Quit.Help().Key, k.Quit.Help().Desc},
	}
	var b strings.Builder
	b.WriteString(panelTitleStyle.Render("Keys") + "\n\n")
	for _, r := range rows {
		b.WriteString(fmt.Sprintf("%-10s %s\n", r[0], r[1]))
	}
	b.WriteString("\n" + dimStyle.Render("?/Esc: Close"))
	return placeOverlay(helpOverlayStyle.Render(b.String()), base)
}

// diagOverlayLines caps how many captured entries the overlay lists.
const diagOverlayLines = 10

func (m Model) overlayDiag(base string) string {
	var b strings.Builder
	b.WriteString(panelTitleStyle.Render("Diagnostics") + "\n\n")

	entries := m.diag.Recent()
	if len(entries) == 0 {
		b.WriteString(dimStyle.Render("No warnings or errors.") + "\n")
	}
	maxW := max(m.width-12, 20)
	for i, e := range entries {
		if i == diagOverlayLines {
			b.WriteString(dimStyle.Render(fmt.Sprintf("... %d older", len(entries)-i)) + "\n")
			break
		}
		line := e.String()
		if len(line) > maxW {
			line = line[:maxW-3] + "..."
		}
		b.WriteString(line + "\n")
	}
	b.WriteString("\n" + dimStyle.Render("d/Esc: Close"))
	return placeOverlay(helpOverlayStyle.Render(b.String()), base)
}

func placeOverlay(fg, bg string) string {
	return lipgloss.Place(
		lipgloss.Width(bg),
		lipgloss.Height(bg),
		lipgloss.Center,
		lipgloss.Center,
		fg,
		lipgloss.WithWhitespaceChars(" "),
	)
}

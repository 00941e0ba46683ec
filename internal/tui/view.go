package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/MrWong99/scribe/pkg/transcript"
)

// View implements tea.Model.
func (m Model) View() string {
	if m.quitting {
		return ""
	}
	var b strings.Builder

	b.WriteString(titleStyle.Render("scribe"))
	if m.source != "" {
		b.WriteString(dimStyle.Render("  " + m.source))
	}
	b.WriteString("\n")
	b.WriteString(m.progressLine())
	b.WriteString("\n")

	switch m.mode {
	case modeSuggest:
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
			lipgloss.NewStyle().Width(max(m.width-lipgloss.Width(m.list.View())-2, 20)).Render(m.viewport.View()),
			"  ",
			m.list.View(),
		))
	default:
		b.WriteString(m.viewport.View())
	}
	b.WriteString("\n")

	switch m.mode {
	case modeConfirm:
		b.WriteString(promptStyle.Render("Really restart recognition and discard the transcript? (y/n)"))
		b.WriteString("\n")
	case modeInput:
		b.WriteString(m.input.View())
		b.WriteString("\n")
	}

	if m.partial != "" {
		b.WriteString(dimStyle.Render("… " + m.partial))
		b.WriteString("\n")
	}
	if m.errText != "" && len(m.statuses) > 0 && strings.HasPrefix(m.statuses[len(m.statuses)-1], "Error: ") {
		b.WriteString(errorStyle.Render(m.errText))
		b.WriteString("\n")
	} else {
		b.WriteString(bullets(m.statuses))
	}
	b.WriteString(m.help.View(m.keys))
	return b.String()
}

func (m Model) progressLine() string {
	state := "idle"
	switch {
	case m.running:
		state = m.spinner.View() + " recognising"
	case m.total > 0 && m.position >= m.total:
		state = successStyle.Render("done")
	}
	pct := 0.0
	if m.total > 0 {
		pct = min(float64(m.position)/float64(m.total), 1)
	}
	scroll := "auto-scroll " + onOff(m.autoScroll)
	return fmt.Sprintf("%s %s / %s  %s  %s",
		m.progress.ViewAs(pct),
		transcript.FormatTimestamp(m.position),
		transcript.FormatTimestamp(m.total),
		state,
		dimStyle.Render(scroll),
	)
}

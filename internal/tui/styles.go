package tui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("3"))
	bulletStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).PaddingRight(1)
	textStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	dimStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	spinnerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("3"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	successStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	uncertainStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Underline(true)
	correctedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	selectedStyle  = lipgloss.NewStyle().Reverse(true)
	caretStyle     = lipgloss.NewStyle().Reverse(true).Bold(true)
	promptStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Bold(true)
)

// bullets renders statuses as a tree, the last entry closing it.
func bullets(statuses []string) string {
	var out string
	for i, s := range statuses {
		b := "├"
		if i == len(statuses)-1 {
			b = "└"
		}
		out += bulletStyle.Render(b) + textStyle.Render(s) + "\n"
	}
	return out
}

package tui

import "github.com/charmbracelet/lipgloss"

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).MarginBottom(1)
	cursorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	doneStyle     = lipgloss.NewStyle().Faint(true).Strikethrough(true)
	pageStyle     = lipgloss.NewStyle().Padding(0, 1)
	currentStyle  = lipgloss.NewStyle().Padding(0, 1).Bold(true).Reverse(true)
	disabledStyle = lipgloss.NewStyle().Padding(0, 1).Faint(true)
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	statusStyle   = lipgloss.NewStyle().Faint(true)
)

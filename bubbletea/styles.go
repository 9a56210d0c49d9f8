package bubbletea

import (
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/fwojciec/audit"
)

// Styles maps a Theme to lipgloss styles for TUI rendering.
type Styles struct {
	UserMsg      lipgloss.Style
	StageRunning lipgloss.Style
	StageDone    lipgloss.Style
	Error        lipgloss.Style
	Muted        lipgloss.Style
	Accent       lipgloss.Style
}

// NewStyles creates Styles from a Theme.
func NewStyles(t audit.Theme) Styles {
	return Styles{
		UserMsg:      lipgloss.NewStyle().Foreground(ansiColor(t.UserMsg)).Bold(true),
		StageRunning: lipgloss.NewStyle().Foreground(ansiColor(t.StageRunning)),
		StageDone:    lipgloss.NewStyle().Foreground(ansiColor(t.StageDone)),
		Error:        lipgloss.NewStyle().Foreground(ansiColor(t.Error)),
		Muted:        lipgloss.NewStyle().Foreground(ansiColor(t.Muted)).Faint(true),
		Accent:       lipgloss.NewStyle().Foreground(ansiColor(t.Accent)).Bold(true),
	}
}

func ansiColor(index int) lipgloss.TerminalColor {
	if index < 0 {
		return lipgloss.NoColor{}
	}
	return lipgloss.Color(strconv.Itoa(index))
}

package bubbletea

import "github.com/fwojciec/audit"

// RenderContent exports renderContent for testing.
func RenderContent(m Model) string {
	return m.renderContent()
}

// Session returns the active session of m.
func Session(m Model) *audit.StreamSession {
	return m.session
}

// ListenForEvent exports listenForEvent for testing.
var ListenForEvent = listenForEvent

// StagesCollapsed reports whether the stage lists are collapsed.
func StagesCollapsed(m Model) bool {
	return m.stagesCollapsed
}

// Package bubbletea provides a Bubble Tea TUI for the audit pipeline.
package bubbletea

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/audit"
)

// OpenFunc starts a stream session for req. It must not block on the
// response; events are read from the returned session.
type OpenFunc func(ctx context.Context, req audit.Request) (*audit.StreamSession, error)

// Config holds the request context that is the same for every turn.
type Config struct {
	Scenario   string
	SessionID  string
	References []audit.Document
	Targets    []audit.Document
}

// Run creates and runs the Bubble Tea TUI program. It blocks until the program
// exits. The context is used for graceful shutdown: when cancelled, the
// program quits.
func Run(ctx context.Context, m Model) error {
	p := tea.NewProgram(m, tea.WithAltScreen())
	go func() {
		<-ctx.Done()
		p.Quit()
	}()
	_, err := p.Run()
	return err
}

// StreamEventMsg wraps a session event for delivery to the Bubble Tea model.
type StreamEventMsg struct {
	Session *audit.StreamSession
	Event   audit.Event
}

// SessionDoneMsg carries the terminal event of a session.
type SessionDoneMsg struct {
	Session *audit.StreamSession
	Result  audit.EventState
}

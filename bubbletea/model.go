package bubbletea

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/audit"
	"github.com/mattn/go-runewidth"
)

var _ tea.Model = Model{}

// Model is the Bubble Tea model for the audit TUI. The transcript is an
// immutable audit.Conversation snapshot; every session event replaces it
// with the next snapshot.
type Model struct {
	// Input is the text input component. Exported for test access.
	Input textinput.Model
	// Viewport is the scrollable output area. Exported for test access.
	Viewport viewport.Model
	// Spinner animates running stages. Exported for test access.
	Spinner spinner.Model

	open   OpenFunc
	cfg    Config
	theme  audit.Theme
	styles Styles

	conv    audit.Conversation
	handle  audit.TurnHandle
	session *audit.StreamSession
	// reports caches rendered report blocks by turn index.
	reports map[int]*ReportBlock

	stagesCollapsed bool
	err             error
	ready           bool
}

// New creates a new TUI Model.
func New(open OpenFunc, cfg Config, theme audit.Theme) Model {
	ti := textinput.New()
	ti.Placeholder = "Ask the auditor..."
	ti.Prompt = ""
	ti.Focus()
	ti.CharLimit = 0

	styles := NewStyles(theme)
	sp := spinner.New(spinner.WithSpinner(spinner.MiniDot), spinner.WithStyle(styles.StageRunning))

	return Model{
		Input:   ti,
		Spinner: sp,
		open:    open,
		cfg:     cfg,
		theme:   theme,
		styles:  styles,
		reports: make(map[int]*ReportBlock),
	}
}

// Running returns whether a stream session is active.
func (m Model) Running() bool { return m.session != nil }

// Err returns the error of the last failed session or submit, if any.
func (m Model) Err() error { return m.err }

// Conversation returns the current transcript snapshot.
func (m Model) Conversation() audit.Conversation { return m.conv }

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m = m.handleWindowSize(msg)
		return m, nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case StreamEventMsg:
		if msg.Session != m.session {
			return m, nil
		}
		m.conv = m.conv.Apply(m.handle, msg.Event)
		m = m.refresh()
		return m, listenForEvent(m.session)

	case SessionDoneMsg:
		if msg.Session != m.session {
			return m, nil
		}
		m.conv = m.conv.Apply(m.handle, msg.Result)
		m.session = nil
		if msg.Result.State == audit.SessionFailed {
			m.err = msg.Result.Err
		}
		m = m.refresh()
		cmd := m.Input.Focus()
		return m, cmd

	case spinner.TickMsg:
		if !m.Running() {
			return m, nil
		}
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		m.Viewport.SetContent(m.renderContent())
		return m, cmd
	}

	// Viewport always receives messages for scrolling (keyboard and mouse).
	var cmd tea.Cmd
	m.Viewport, cmd = m.Viewport.Update(msg)
	cmds = append(cmds, cmd)

	if !m.Running() {
		m.Input, cmd = m.Input.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	var b strings.Builder
	b.WriteString(m.Viewport.View())
	b.WriteString("\n")
	b.WriteString(m.statusLine())
	b.WriteString("\n")
	b.WriteString(m.Input.View())
	return b.String()
}

func (m Model) handleWindowSize(msg tea.WindowSizeMsg) Model {
	inputH := 1
	statusHeight := 1
	borderHeight := 2 // newlines between sections
	vpHeight := max(msg.Height-inputH-statusHeight-borderHeight, 1)

	if !m.ready {
		m.Viewport = viewport.New(msg.Width, vpHeight)
		m.ready = true
	} else {
		m.Viewport.Width = msg.Width
		m.Viewport.Height = vpHeight
	}
	m.Viewport.SetContent(m.renderContent())
	m.Viewport.GotoBottom()

	m.Input.Width = msg.Width
	return m
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		if m.Running() {
			return m.cancel(), nil
		}
		return m, tea.Quit

	case tea.KeyEsc:
		if m.Running() {
			return m.cancel(), nil
		}
		return m, nil

	case tea.KeyEnter:
		if m.Running() {
			return m, nil
		}
		text := strings.TrimSpace(m.Input.Value())
		if text == "" {
			return m, nil
		}
		return m.submitInput(text)

	case tea.KeyTab:
		m.stagesCollapsed = !m.stagesCollapsed
		m.Viewport.SetContent(m.renderContent())
		return m, nil
	}

	// When idle, pass keys to both input (for typing) and viewport (for
	// scrolling). Character keys only go to the input.
	if !m.Running() {
		var cmd tea.Cmd
		var cmds []tea.Cmd

		if msg.Type != tea.KeyRunes {
			m.Viewport, cmd = m.Viewport.Update(msg)
			cmds = append(cmds, cmd)
		}

		m.Input, cmd = m.Input.Update(msg)
		cmds = append(cmds, cmd)

		return m, tea.Batch(cmds...)
	}

	m.Viewport, _ = m.Viewport.Update(msg)
	return m, nil
}

// cancel aborts the active session and closes its turn right away, so
// events still in flight cannot change what is shown. The session keeps
// being drained until SessionDoneMsg arrives.
func (m Model) cancel() Model {
	m.session.Cancel()
	m.conv = m.conv.Finalize(m.handle)
	return m.refresh()
}

func (m Model) submitInput(text string) (tea.Model, tea.Cmd) {
	req := audit.Request{
		Message:    text,
		Scenario:   m.cfg.Scenario,
		SessionID:  m.cfg.SessionID,
		References: m.cfg.References,
		Targets:    m.cfg.Targets,
		History:    m.conv.History(),
	}
	session, err := m.open(context.Background(), req)
	if err != nil {
		m.err = err
		return m, nil
	}

	m.Input.SetValue("")
	m.Input.Blur()
	m.err = nil
	m.session = session
	m.conv, m.handle = m.conv.AppendUser(text).BeginAssistant()
	m = m.refresh()

	return m, tea.Batch(listenForEvent(session), m.Spinner.Tick)
}

// refresh re-renders the transcript and scrolls to the bottom.
func (m Model) refresh() Model {
	m.Viewport.SetContent(m.renderContent())
	m.Viewport.GotoBottom()
	return m
}

func (m Model) renderContent() string {
	width := m.Viewport.Width
	var parts []string
	for i, t := range m.conv.Turns {
		switch t.Role {
		case audit.RoleUser:
			parts = append(parts, NewUserMessageBlock(t.Content, m.styles).View(width))
		case audit.RoleAssistant:
			if stages := NewStagesBlock(t.Stages, t.Open, m.stagesCollapsed, m.Spinner.View(), m.styles).View(width); stages != "" {
				parts = append(parts, stages)
			}
			parts = append(parts, m.report(i, t).View(width))
		}
	}
	return strings.Join(parts, "\n\n")
}

func (m Model) report(i int, t audit.Turn) *ReportBlock {
	b, ok := m.reports[i]
	if !ok {
		b = NewReportBlock(m.theme, m.styles)
		m.reports[i] = b
	}
	b.Set(t.Content, t.Open)
	return b
}

func (m Model) statusLine() string {
	width := m.Viewport.Width
	if m.err != nil {
		return m.styles.Error.Render(truncate(fmt.Sprintf("Error: %v", m.err), width))
	}
	if m.Running() {
		return m.Spinner.View() + " " + m.styles.Muted.Render(truncate(m.progress()+" · Esc to cancel", width-2))
	}
	scenario := m.cfg.Scenario
	if scenario == "" {
		scenario = audit.DefaultScenario
	}
	return m.styles.Muted.Render(truncate(scenario+" · Enter to send, Tab stages, Ctrl+C to quit", width))
}

// progress names the most recent stage of the active turn.
func (m Model) progress() string {
	t, ok := m.conv.Turn(m.handle)
	if !ok || len(t.Stages) == 0 {
		return "Sending..."
	}
	return t.Stages[len(t.Stages)-1].Name
}

func truncate(s string, width int) string {
	if width <= 0 {
		return s
	}
	return runewidth.Truncate(s, width, "…")
}

// listenForEvent waits for the next event of s. When the event channel
// closes, it returns SessionDoneMsg with the terminal event.
func listenForEvent(s *audit.StreamSession) tea.Cmd {
	return func() tea.Msg {
		evt, ok := <-s.Events()
		if !ok {
			return SessionDoneMsg{Session: s, Result: s.Result()}
		}
		return StreamEventMsg{Session: s, Event: evt}
	}
}

package bubbletea_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/exp/teatest"
	"github.com/fwojciec/audit"
	bt "github.com/fwojciec/audit/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var reportEvents = []audit.Event{
	audit.EventStage{Stage: audit.StageStrategist, State: audit.StageRunning},
	audit.EventStage{Stage: audit.StageStrategist, State: audit.StageCompleted},
	audit.EventStage{Stage: audit.StageAuditor, State: audit.StageRunning},
	audit.EventFinal{Content: "Report body"},
}

func TestNew(t *testing.T) {
	t.Parallel()

	m := bt.New(eventsOpen(nil), testConfig, audit.DefaultTheme())
	assert.False(t, m.Running())
	assert.NoError(t, m.Err())
	assert.Equal(t, "Initializing...", m.View())
}

func TestModel_WindowSize(t *testing.T) {
	t.Parallel()

	m := initModel(t, eventsOpen(nil))
	assert.Equal(t, 80, m.Viewport.Width)
	assert.Equal(t, 20, m.Viewport.Height) // 24 - input - status - 2 separators

	m = updateModel(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	assert.Equal(t, 120, m.Viewport.Width)
	assert.Equal(t, 36, m.Viewport.Height)
	assert.Contains(t, m.View(), "Enter to send")
}

func TestModel_Submit(t *testing.T) {
	t.Parallel()

	t.Run("blank input does nothing", func(t *testing.T) {
		t.Parallel()
		m := submit(t, initModel(t, eventsOpen(nil)), "   ")
		assert.False(t, m.Running())
		assert.Empty(t, m.Conversation().Turns)
	})

	t.Run("opens a session with the configured context", func(t *testing.T) {
		t.Parallel()

		var got audit.Request
		inner := blockingOpen()
		open := func(ctx context.Context, req audit.Request) (*audit.StreamSession, error) {
			got = req
			return inner(ctx, req)
		}
		m := submit(t, initModel(t, open), "  Is the report compliant?  ")
		t.Cleanup(func() { bt.Session(m).Cancel() })

		assert.True(t, m.Running())
		assert.Empty(t, m.Input.Value())
		assert.Equal(t, audit.Request{
			Message:    "Is the report compliant?",
			Scenario:   "ISO 27001",
			SessionID:  "sess-1",
			References: testConfig.References,
			Targets:    testConfig.Targets,
			History:    []audit.HistoryEntry{},
		}, got)

		turns := m.Conversation().Turns
		require.Len(t, turns, 2)
		assert.Equal(t, audit.Turn{Role: audit.RoleUser, Content: "Is the report compliant?"}, turns[0])
		assert.True(t, turns[1].Open)
		assert.Contains(t, stripANSI(bt.RenderContent(m)), "…")
	})

	t.Run("open error is reported and nothing is appended", func(t *testing.T) {
		t.Parallel()
		open := func(context.Context, audit.Request) (*audit.StreamSession, error) {
			return nil, audit.ErrSessionActive
		}
		m := submit(t, initModel(t, open), "hello")
		assert.False(t, m.Running())
		assert.ErrorIs(t, m.Err(), audit.ErrSessionActive)
		assert.Empty(t, m.Conversation().Turns)
		assert.Equal(t, "hello", m.Input.Value())
	})

	t.Run("enter while running is ignored", func(t *testing.T) {
		t.Parallel()
		m := submit(t, initModel(t, blockingOpen()), "first")
		t.Cleanup(func() { bt.Session(m).Cancel() })
		s := bt.Session(m)

		m.Input.SetValue("second")
		m = updateModel(t, m, tea.KeyMsg{Type: tea.KeyEnter})
		assert.Same(t, s, bt.Session(m))
		assert.Len(t, m.Conversation().Turns, 2)
	})
}

func TestModel_StreamCompleted(t *testing.T) {
	t.Parallel()

	m := submit(t, initModel(t, eventsOpen(nil, reportEvents...)), "audit please")
	m = drain(t, m)

	assert.False(t, m.Running())
	assert.NoError(t, m.Err())

	turn := m.Conversation().Turns[1]
	assert.False(t, turn.Open)
	assert.Equal(t, "Report body", turn.Content)
	assert.Equal(t, []audit.Stage{
		{Name: "Analyzing Strategy & Guidelines", State: audit.StageCompleted},
		{Name: "Cross-Referencing Evidence", State: audit.StageRunning},
	}, turn.Stages)

	content := stripANSI(bt.RenderContent(m))
	assert.Contains(t, content, "> audit please")
	assert.Contains(t, content, "✓ Analyzing Strategy & Guidelines done")
	assert.Contains(t, content, "• Cross-Referencing Evidence processing…")
	assert.Contains(t, content, "Report body")
}

func TestModel_StreamFailed(t *testing.T) {
	t.Parallel()

	upstream := &audit.UpstreamError{Message: "503 overloaded"}
	m := submit(t, initModel(t, eventsOpen(upstream, reportEvents[0])), "audit please")
	m = drain(t, m)

	assert.ErrorIs(t, m.Err(), upstream)
	turn := m.Conversation().Turns[1]
	assert.Equal(t, "⚠️ **System Alert**: "+audit.MessageOverloaded, turn.Content)
	assert.Len(t, turn.Stages, 1)

	content := stripANSI(bt.RenderContent(m))
	assert.Contains(t, content, "System Alert")
	assert.Contains(t, content, "overloaded")
	assert.Contains(t, stripANSI(m.View()), "Error:")
}

func TestModel_Cancel(t *testing.T) {
	t.Parallel()

	for _, key := range []tea.KeyType{tea.KeyEsc, tea.KeyCtrlC} {
		t.Run(tea.Key{Type: key}.String(), func(t *testing.T) {
			t.Parallel()

			m := submit(t, initModel(t, blockingOpen(reportEvents[0])), "audit please")
			m = updateModel(t, m, nextMsg(t, m)) // streaming
			m = updateModel(t, m, nextMsg(t, m)) // strategist running

			updated, cmd := m.Update(tea.KeyMsg{Type: key})
			m = updated.(bt.Model)
			assert.Nil(t, cmd, "cancel must not quit")
			assert.False(t, m.Conversation().Turns[1].Open)

			m = drain(t, m)
			assert.NoError(t, m.Err())
			turn := m.Conversation().Turns[1]
			assert.Empty(t, turn.Content)
			assert.Equal(t, []audit.Stage{{Name: "Analyzing Strategy & Guidelines", State: audit.StageRunning}}, turn.Stages)
			assert.Contains(t, stripANSI(bt.RenderContent(m)), "(no response)")
		})
	}
}

func TestModel_EventsAfterCancelAreIgnored(t *testing.T) {
	t.Parallel()

	m := submit(t, initModel(t, blockingOpen()), "audit please")
	s := bt.Session(m)
	m = updateModel(t, m, tea.KeyMsg{Type: tea.KeyEsc})

	m = updateModel(t, m, bt.StreamEventMsg{Session: s, Event: audit.EventFinal{Content: "late"}})
	assert.Empty(t, m.Conversation().Turns[1].Content)
	drain(t, m)
}

func TestModel_StaleSessionMessagesAreIgnored(t *testing.T) {
	t.Parallel()

	m := submit(t, initModel(t, eventsOpen(nil, audit.EventFinal{Content: "first"})), "one")
	first := bt.Session(m)
	m = drain(t, m)

	m = updateModel(t, m, bt.StreamEventMsg{Session: first, Event: audit.EventFinal{Content: "stale"}})
	m = updateModel(t, m, bt.SessionDoneMsg{Session: first, Result: audit.EventState{State: audit.SessionFailed, Err: errors.New("x")}})
	assert.Equal(t, "first", m.Conversation().Turns[1].Content)
	assert.NoError(t, m.Err())
}

func TestModel_HistoryCarriesClosedTurns(t *testing.T) {
	t.Parallel()

	var requests []audit.Request
	inner := eventsOpen(nil, audit.EventFinal{Content: "answer"})
	open := func(ctx context.Context, req audit.Request) (*audit.StreamSession, error) {
		requests = append(requests, req)
		return inner(ctx, req)
	}

	m := initModel(t, open)
	m = drain(t, submit(t, m, "first question"))
	m = drain(t, submit(t, m, "second question"))

	require.Len(t, requests, 2)
	assert.Equal(t, []audit.HistoryEntry{
		{Role: audit.RoleUser, Content: "first question"},
		{Role: audit.RoleAssistant, Content: "answer"},
	}, requests[1].History)
	assert.Len(t, m.Conversation().Turns, 4)
}

func TestModel_TabTogglesStages(t *testing.T) {
	t.Parallel()

	m := submit(t, initModel(t, eventsOpen(nil, reportEvents...)), "audit please")
	m = drain(t, m)
	assert.False(t, bt.StagesCollapsed(m))

	m = updateModel(t, m, tea.KeyMsg{Type: tea.KeyTab})
	assert.True(t, bt.StagesCollapsed(m))
	content := stripANSI(bt.RenderContent(m))
	assert.Contains(t, content, "▶ 1/2 stages done")
	assert.NotContains(t, content, "Cross-Referencing Evidence")

	m = updateModel(t, m, tea.KeyMsg{Type: tea.KeyTab})
	assert.False(t, bt.StagesCollapsed(m))
}

func TestModel_CtrlCQuitsWhenIdle(t *testing.T) {
	t.Parallel()

	m := initModel(t, eventsOpen(nil))
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestModel_StatusLineTruncates(t *testing.T) {
	t.Parallel()

	m := initModelWithSize(t, eventsOpen(nil), 20, 10)
	lines := strings.Split(stripANSI(m.View()), "\n")
	status := lines[len(lines)-2]
	assert.True(t, strings.HasSuffix(status, "…"), status)
	assert.LessOrEqual(t, len([]rune(status)), 20)
}

func TestModel_Program(t *testing.T) {
	t.Parallel()

	m := bt.New(eventsOpen(nil, reportEvents...), testConfig, audit.DefaultTheme())
	tm := teatest.NewTestModel(t, m, teatest.WithInitialTermSize(80, 24))

	tm.Type("audit please")
	tm.Send(tea.KeyMsg{Type: tea.KeyEnter})

	teatest.WaitFor(t, tm.Output(), func(out []byte) bool {
		return bytes.Contains(out, []byte("Report body")) &&
			bytes.Contains(out, []byte("Enter to send"))
	}, teatest.WithDuration(5*time.Second))

	tm.Send(tea.KeyMsg{Type: tea.KeyCtrlC})

	fm := tm.FinalModel(t, teatest.WithFinalTimeout(5*time.Second))
	final, ok := fm.(bt.Model)
	require.True(t, ok)
	assert.False(t, final.Running())
	assert.NoError(t, final.Err())
	assert.Len(t, final.Conversation().Turns, 2)
}

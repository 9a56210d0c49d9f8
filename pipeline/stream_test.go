package pipeline_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fwojciec/audit"
	"github.com/fwojciec/audit/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// chunkedServer writes each chunk separately and flushes after each one.
func chunkedServer(t *testing.T, chunks ...string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		flusher, _ := w.(http.Flusher)
		for _, c := range chunks {
			io.WriteString(w, c)
			if flusher != nil {
				flusher.Flush()
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func streamFrom(t *testing.T, chunks ...string) audit.Stream {
	t.Helper()
	srv := chunkedServer(t, chunks...)
	stream, err := pipeline.New(srv.URL, pipeline.WithToken("t")).Stream(context.Background(), testRequest())
	require.NoError(t, err)
	t.Cleanup(func() { stream.Close() })
	return stream
}

func collectEvents(t *testing.T, s audit.Stream) ([]audit.Event, error) {
	t.Helper()
	var events []audit.Event
	for {
		evt, err := s.Next()
		if errors.Is(err, io.EOF) {
			return events, nil
		}
		if err != nil {
			return events, err
		}
		events = append(events, evt)
	}
}

// runConversation drives chunks through a Runner into a fresh conversation.
func runConversation(t *testing.T, chunks ...string) (audit.Turn, audit.EventState) {
	t.Helper()
	srv := chunkedServer(t, chunks...)
	runner := audit.NewRunner(pipeline.New(srv.URL, pipeline.WithToken("t")))

	c, h := audit.Conversation{}.AppendUser("q").BeginAssistant()
	s, err := runner.Open(context.Background(), testRequest())
	require.NoError(t, err)
	c, result := audit.Drain(c, h, s, nil)

	turn, ok := c.Turn(h)
	require.True(t, ok)
	return turn, result
}

func TestStream_EndToEndCompleted(t *testing.T) {
	t.Parallel()

	turn, result := runConversation(t,
		"data: {\"step\":\"strategist\",\"status\":\"running\"}\n",
		"data: {\"step\":\"strategist\",\"status\"",
		":\"completed\"}\n",
		"data: {\"step\":\"final\",\"content\":\"Report body\"}\n",
		"data: [DONE]\n",
	)

	assert.Equal(t, audit.SessionCompleted, result.State)
	assert.Equal(t, []audit.Stage{{Name: "Analyzing Strategy & Guidelines", State: audit.StageCompleted}}, turn.Stages)
	assert.Equal(t, "Report body", turn.Content)
	assert.False(t, turn.Open)
}

func TestStream_EndToEndOverloaded(t *testing.T) {
	t.Parallel()

	turn, result := runConversation(t, "data: {\"error\":\"503 overloaded\"}\n")

	assert.Equal(t, audit.SessionFailed, result.State)
	assert.Equal(t, "⚠️ **System Alert**: "+audit.MessageOverloaded, turn.Content)
	assert.Empty(t, turn.Stages)
	assert.False(t, turn.Open)
}

func TestStream_ErrorHaltsProcessing(t *testing.T) {
	t.Parallel()

	turn, result := runConversation(t,
		"data: {\"step\":\"strategist\",\"status\":\"running\"}\n"+
			"data: {\"error\":\"Gemini quota exceeded\"}\n"+
			"data: {\"step\":\"auditor\",\"status\":\"running\"}\n"+
			"data: {\"step\":\"final\",\"content\":\"too late\"}\n",
	)

	assert.Equal(t, audit.SessionFailed, result.State)
	assert.Equal(t, "⚠️ **System Alert**: Gemini quota exceeded", turn.Content)
	assert.Equal(t, []audit.Stage{{Name: "Analyzing Strategy & Guidelines", State: audit.StageRunning}}, turn.Stages)
}

func TestStream_FinalReplacesContent(t *testing.T) {
	t.Parallel()

	turn, _ := runConversation(t,
		"data: {\"step\":\"final\",\"content\":\"Draft\"}\n",
		"data: {\"step\":\"final\",\"content\":\"Final report\"}\n",
		"data: [DONE]\n",
	)
	assert.Equal(t, "Final report", turn.Content)
}

func TestStream_NaturalEndCompletes(t *testing.T) {
	t.Parallel()

	stream := streamFrom(t, "data: {\"step\":\"final\",\"content\":\"no terminator\"}")
	events, err := collectEvents(t, stream)
	require.NoError(t, err)
	assert.Equal(t, []audit.Event{audit.EventFinal{Content: "no terminator"}}, events)
	assert.Equal(t, audit.StreamStateComplete, stream.State())
}

func TestStream_TerminatorStopsReading(t *testing.T) {
	t.Parallel()

	stream := streamFrom(t,
		"data: {\"step\":\"init\",\"status\":\"Initializing Workflow...\"}\n",
		"data: {\"step\":\"auditor\",\"status\":\"running\"}\n\n",
		"data: [DONE]\n",
		"data: {\"step\":\"verifier\",\"status\":\"running\"}\n",
		"data: [DONE]\n",
	)
	events, err := collectEvents(t, stream)
	require.NoError(t, err)
	assert.Equal(t, []audit.Event{
		audit.EventStage{Stage: audit.StageAuditor, State: audit.StageRunning},
	}, events)

	_, err = stream.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestStream_MalformedRecordIsSkipped(t *testing.T) {
	t.Parallel()

	stream := streamFrom(t,
		"data: {not json\n",
		": comment\n",
		"data: {\"step\":\"verifier\",\"status\":\"completed\"}\r\n",
	)
	events, err := collectEvents(t, stream)
	require.NoError(t, err)
	assert.Equal(t, []audit.Event{
		audit.EventStage{Stage: audit.StageVerifier, State: audit.StageCompleted},
	}, events)
}

func TestStream_UpstreamErrorIsTerminal(t *testing.T) {
	t.Parallel()

	stream := streamFrom(t, "data: {\"error\":\"busy\",\"code\":\"overloaded\"}\n")

	_, err := stream.Next()
	var upstream *audit.UpstreamError
	require.ErrorAs(t, err, &upstream)
	assert.True(t, upstream.Overloaded())
	assert.Equal(t, audit.StreamStateError, stream.State())

	_, again := stream.Next()
	assert.Equal(t, err, again)
}

func TestStream_MultiByteSplitAcrossChunks(t *testing.T) {
	t.Parallel()

	line := []byte("data: {\"step\":\"final\",\"content\":\"Prüfbericht ✓\"}\n")
	i := len("data: {\"step\":\"final\",\"content\":\"Pr") + 1 // inside ü
	stream := streamFrom(t, string(line[:i]), string(line[i:]))

	events, err := collectEvents(t, stream)
	require.NoError(t, err)
	assert.Equal(t, []audit.Event{audit.EventFinal{Content: "Prüfbericht ✓"}}, events)
}

func TestStream_CloseBeforeTerminal(t *testing.T) {
	t.Parallel()

	stream := streamFrom(t, "data: {\"step\":\"auditor\",\"status\":\"running\"}\n")
	require.NoError(t, stream.Close())
	assert.Equal(t, audit.StreamStateClosed, stream.State())

	_, err := stream.Next()
	assert.ErrorIs(t, err, audit.ErrStreamClosed)
}

func TestStream_CancelMidStream(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, "data: {\"step\":\"strategist\",\"status\":\"running\"}\n")
		w.(http.Flusher).Flush()
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	runner := audit.NewRunner(pipeline.New(srv.URL, pipeline.WithToken("t")))
	c, h := audit.Conversation{}.AppendUser("q").BeginAssistant()
	s, err := runner.Open(context.Background(), testRequest())
	require.NoError(t, err)

	c = c.Apply(h, <-s.Events()) // streaming
	c = c.Apply(h, <-s.Events()) // strategist running
	s.Cancel()

	c, result := audit.Drain(c, h, s, nil)
	assert.Equal(t, audit.SessionCancelled, result.State)
	turn, _ := c.Turn(h)
	assert.Empty(t, turn.Content)
	assert.Equal(t, []audit.Stage{{Name: "Analyzing Strategy & Guidelines", State: audit.StageRunning}}, turn.Stages)
	assert.False(t, turn.Open)
}

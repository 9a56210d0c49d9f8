package audit

import "context"

// StreamState indicates the current state of a Stream.
type StreamState int

const (
	StreamStateNew       StreamState = iota // Before Next() is ever called.
	StreamStateStreaming                    // Mid-stream, receiving records.
	StreamStateComplete                     // Terminator or natural end seen.
	StreamStateError                        // Next() returned non-EOF error.
	StreamStateClosed                       // Close() called before terminal state.
)

// Stream uses a pull-based iterator pattern. Cancellation flows through the
// context passed to Pipeline.Stream().
//
// Next returns EventStage and EventFinal values in arrival order and
// io.EOF once the terminator record arrives or the body ends. An
// application-level error record is returned as *UpstreamError; the stream
// is terminal afterwards and unread bytes are discarded.
//
// Close releases the underlying response body. It is safe to call more
// than once and after a terminal state.
type Stream interface {
	Next() (Event, error)
	State() StreamState
	Close() error
}

// Pipeline opens a streamed response from the analysis pipeline.
type Pipeline interface {
	Stream(ctx context.Context, req Request) (Stream, error)
}

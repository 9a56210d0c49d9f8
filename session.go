package audit

import (
	"context"
	"sync"
)

// SessionState is the lifecycle state of one request/response cycle.
type SessionState int

const (
	SessionIdle      SessionState = iota // No request issued yet.
	SessionSending                       // Request issued, waiting for a response.
	SessionStreaming                     // Response accepted, reading records.
	SessionCompleted                     // Terminator or natural end of the body.
	SessionFailed                        // Transport, status, auth or upstream error.
	SessionCancelled                     // Cancel called before a terminal state.
)

var sessionStateNames = [...]string{
	SessionIdle:      "idle",
	SessionSending:   "sending",
	SessionStreaming: "streaming",
	SessionCompleted: "completed",
	SessionFailed:    "failed",
	SessionCancelled: "cancelled",
}

func (s SessionState) String() string {
	if s < 0 || int(s) >= len(sessionStateNames) {
		return "unknown"
	}
	return sessionStateNames[s]
}

// Terminal reports whether no further transitions can follow s.
func (s SessionState) Terminal() bool {
	return s == SessionCompleted || s == SessionFailed || s == SessionCancelled
}

// StreamSession is the owned handle for one active stream. Events are
// delivered in arrival order on Events, which is closed when the session
// reaches a terminal state; Result then reports that state. Consumers must
// either drain Events or call Cancel, otherwise the read loop blocks.
type StreamSession struct {
	events chan Event
	done   chan struct{}
	cancel context.CancelFunc

	mu     sync.Mutex
	state  SessionState
	result EventState
}

func newStreamSession(cancel context.CancelFunc) *StreamSession {
	return &StreamSession{
		events: make(chan Event),
		done:   make(chan struct{}),
		cancel: cancel,
		state:  SessionSending,
	}
}

// Events returns the channel of stage, final and non-terminal state events.
func (s *StreamSession) Events() <-chan Event {
	return s.events
}

// Done is closed once the session reached a terminal state and released
// the underlying stream.
func (s *StreamSession) Done() <-chan struct{} {
	return s.done
}

// Cancel aborts the session. It is the single release entry point and is
// safe to call at any time, any number of times.
func (s *StreamSession) Cancel() {
	s.cancel()
}

// Result blocks until the session ends and returns its terminal event.
func (s *StreamSession) Result() EventState {
	<-s.done
	return s.result
}

// State returns the current lifecycle state.
func (s *StreamSession) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *StreamSession) setState(state SessionState) {
	s.mu.Lock()
	s.state = state
	s.mu.Unlock()
}

// emit hands evt to the consumer. It reports false once ctx is cancelled;
// events not yet handed over are then discarded.
func (s *StreamSession) emit(ctx context.Context, evt Event) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case s.events <- evt:
		return true
	case <-ctx.Done():
		return false
	}
}

func (s *StreamSession) finish(result EventState) {
	s.mu.Lock()
	s.state = result.State
	s.result = result
	s.mu.Unlock()
	close(s.events)
	close(s.done)
}

// Drain folds every event of s into c at h, calling onUpdate (if non-nil)
// with each new snapshot, and returns the final snapshot together with the
// terminal event.
func Drain(c Conversation, h TurnHandle, s *StreamSession, onUpdate func(Conversation)) (Conversation, EventState) {
	for evt := range s.Events() {
		c = c.Apply(h, evt)
		if onUpdate != nil {
			onUpdate(c)
		}
	}
	result := s.Result()
	c = c.Apply(h, result)
	if onUpdate != nil {
		onUpdate(c)
	}
	return c, result
}

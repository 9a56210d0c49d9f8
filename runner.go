package audit

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
)

// Runner owns the request lifecycle against a Pipeline. At most one
// session is active at a time.
type Runner struct {
	pipeline Pipeline
	logger   *slog.Logger

	mu     sync.Mutex
	active *StreamSession
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithRunnerLogger sets the logger for session lifecycle messages.
func WithRunnerLogger(l *slog.Logger) RunnerOption {
	return func(r *Runner) { r.logger = l }
}

// NewRunner creates a Runner for the given pipeline.
func NewRunner(p Pipeline, opts ...RunnerOption) *Runner {
	r := &Runner{
		pipeline: p,
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Open validates req, issues it and returns the handle of the new session.
// It fails with ErrSessionActive while a previous session is still running.
// The request is sent and read on a separate goroutine; cancelling ctx or
// calling Cancel on the handle aborts it.
func (r *Runner) Open(ctx context.Context, req Request) (*StreamSession, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	if r.active != nil {
		r.mu.Unlock()
		return nil, ErrSessionActive
	}
	ctx, cancel := context.WithCancel(ctx)
	s := newStreamSession(cancel)
	r.active = s
	r.mu.Unlock()

	r.logger.Info("session opened", "session_id", req.SessionID, "scenario", req.Scenario,
		"references", len(req.References), "targets", len(req.Targets), "history", len(req.History))

	go r.run(ctx, s, req)
	return s, nil
}

// Active reports whether a session is currently running.
func (r *Runner) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active != nil
}

func (r *Runner) run(ctx context.Context, s *StreamSession, req Request) {
	result := r.stream(ctx, s, req)
	s.cancel()

	switch result.State {
	case SessionFailed:
		r.logger.Warn("session failed", "session_id", req.SessionID, "error", result.Err)
	default:
		r.logger.Info("session closed", "session_id", req.SessionID, "state", result.State.String())
	}

	r.mu.Lock()
	r.active = nil
	r.mu.Unlock()
	s.finish(result)
}

// stream drives one session to a terminal state. The stream is closed on
// every exit path.
func (r *Runner) stream(ctx context.Context, s *StreamSession, req Request) EventState {
	stream, err := r.pipeline.Stream(ctx, req)
	if err != nil {
		return terminal(ctx, err)
	}
	defer stream.Close()

	s.setState(SessionStreaming)
	if !s.emit(ctx, EventState{State: SessionStreaming}) {
		return EventState{State: SessionCancelled}
	}

	for {
		if ctx.Err() != nil {
			return EventState{State: SessionCancelled}
		}
		evt, err := stream.Next()
		if errors.Is(err, io.EOF) {
			return EventState{State: SessionCompleted}
		}
		if err != nil {
			return terminal(ctx, err)
		}
		if !s.emit(ctx, evt) {
			return EventState{State: SessionCancelled}
		}
	}
}

// terminal maps err to a terminal event. A cancelled context wins over the
// error it caused: cancellation records no error.
func terminal(ctx context.Context, err error) EventState {
	if ctx.Err() != nil {
		return EventState{State: SessionCancelled}
	}
	return EventState{State: SessionFailed, Err: err}
}

package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"

	"github.com/fwojciec/audit"
)

// stream implements [audit.Stream] by decoding record lines from an HTTP
// response body.
type stream struct {
	body   io.ReadCloser
	ctx    context.Context
	logger *slog.Logger
	next   func() (string, error, bool)
	stop   func()
	state  audit.StreamState
	err    error // terminal error, if any
}

// Interface compliance check.
var _ audit.Stream = (*stream)(nil)

func newStream(ctx context.Context, body io.ReadCloser, logger *slog.Logger) *stream {
	next, stop := iter.Pull2(Lines(ctx, body, readChunkSize))
	return &stream{
		body:   body,
		ctx:    ctx,
		logger: logger,
		next:   next,
		stop:   stop,
		state:  audit.StreamStateNew,
	}
}

// Next returns the next stage or final event. It returns io.EOF once the
// terminator arrives or the body ends, and *[audit.UpstreamError] for an
// error record. Lines already decoded but not yet returned are discarded
// when the stream turns terminal.
func (s *stream) Next() (audit.Event, error) {
	switch s.state {
	case audit.StreamStateComplete:
		return nil, io.EOF
	case audit.StreamStateError:
		return nil, s.err
	case audit.StreamStateClosed:
		return nil, fmt.Errorf("pipeline: %w", audit.ErrStreamClosed)
	}

	for {
		line, err := s.nextLine()
		if errors.Is(err, io.EOF) {
			s.complete()
			return nil, io.EOF
		}
		if err != nil {
			s.terminate(err)
			return nil, s.err
		}
		s.state = audit.StreamStateStreaming

		rec, ok := ParseLine(line)
		if !ok {
			continue
		}
		switch rec.Kind {
		case RecordStage:
			return audit.EventStage{Stage: rec.Stage, State: rec.State}, nil
		case RecordFinal:
			return audit.EventFinal{Content: rec.Content}, nil
		case RecordError:
			s.terminate(&audit.UpstreamError{Message: rec.Message, Code: rec.Code})
			return nil, s.err
		case RecordTerminator:
			s.complete()
			return nil, io.EOF
		default:
			s.logger.Debug("unrecognized record", "payload", rec.Payload)
		}
	}
}

// State returns the current stream state.
func (s *stream) State() audit.StreamState {
	return s.state
}

// Close closes the underlying HTTP response body.
func (s *stream) Close() error {
	if s.state != audit.StreamStateComplete && s.state != audit.StreamStateError {
		s.state = audit.StreamStateClosed
	}
	s.stop()
	return s.body.Close()
}

// nextLine returns the next decoded line, or io.EOF once the body ends.
func (s *stream) nextLine() (string, error) {
	line, err, ok := s.next()
	switch {
	case !ok:
		return "", io.EOF
	case err == nil:
		return line, nil
	case s.ctx.Err() != nil:
		return "", fmt.Errorf("pipeline: %w", s.ctx.Err())
	default:
		return "", fmt.Errorf("pipeline: %w: %w", audit.ErrTransport, err)
	}
}

func (s *stream) complete() {
	s.state = audit.StreamStateComplete
	s.stop()
}

func (s *stream) terminate(err error) {
	s.state = audit.StreamStateError
	s.err = err
	s.stop()
}

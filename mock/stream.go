package mock

import (
	"io"

	"github.com/fwojciec/audit"
)

// Interface compliance check.
var _ audit.Stream = (*Stream)(nil)

// Stream is a test double for audit.Stream.
// NextFn panics when nil to catch missing setup. CloseFn and StateFn are
// nil-safe (no-op and zero value) because callers always defer Close.
type Stream struct {
	NextFn  func() (audit.Event, error)
	StateFn func() audit.StreamState
	CloseFn func() error
}

// Next delegates to NextFn.
func (s *Stream) Next() (audit.Event, error) {
	return s.NextFn()
}

// State delegates to StateFn. Returns StreamStateNew when StateFn is nil.
func (s *Stream) State() audit.StreamState {
	if s.StateFn == nil {
		return audit.StreamStateNew
	}
	return s.StateFn()
}

// Close delegates to CloseFn. Returns nil when CloseFn is not set.
func (s *Stream) Close() error {
	if s.CloseFn == nil {
		return nil
	}
	return s.CloseFn()
}

// Events returns a Stream that yields events in order and then err, or
// io.EOF when err is nil.
func Events(err error, events ...audit.Event) *Stream {
	i := 0
	return &Stream{
		NextFn: func() (audit.Event, error) {
			if i < len(events) {
				i++
				return events[i-1], nil
			}
			if err != nil {
				return nil, err
			}
			return nil, io.EOF
		},
	}
}

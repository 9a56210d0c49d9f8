package audit

// Event is a sealed interface representing one step of a stream session.
// Stage and final events come from the Stream; state events come from the
// Runner. Transport and application errors come from Stream.Next's error
// return and reach consumers only through the terminal EventState.
// The unexported marker method prevents external implementations.
type Event interface {
	event()
}

// EventStage reports a pipeline stage transition.
type EventStage struct {
	Stage StageID
	State StageState
}

func (EventStage) event() {}

// EventFinal carries the complete answer text at this point in time. Each
// final event replaces the previous one; it is never a delta.
type EventFinal struct {
	Content string
}

func (EventFinal) event() {}

// EventState reports a session state transition. Terminal states are
// delivered exactly once per session; Err is set only for SessionFailed.
type EventState struct {
	State SessionState
	Err   error
}

func (EventState) event() {}

// Interface compliance checks.
var (
	_ Event = EventStage{}
	_ Event = EventFinal{}
	_ Event = EventState{}
)

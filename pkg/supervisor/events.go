package supervisor

// StreamType identifies which output stream a line arrived on
type StreamType string

const (
	StreamStdout StreamType = "stdout"
	StreamStderr StreamType = "stderr"
)

// OutputEvent is one line of process output, tagged with its origin
// stream. Diagnostic lines synthesized by the supervisor carry the
// stdout tag.
type OutputEvent struct {
	AppID  string
	Line   string
	Stream StreamType
}

// EventSink receives asynchronous process events. Implementations must
// be prompt: events are emitted from relay and watcher goroutines, and a
// blocking sink stalls the stream it came from.
type EventSink interface {
	Output(event OutputEvent)
	Stopped(appID string)
}

type OutputEventFunc func(event OutputEvent)
type StoppedEventFunc func(appID string)

// EventSinkFuncs adapts plain functions to an EventSink. Nil functions
// drop their events.
type EventSinkFuncs struct {
	Output  OutputEventFunc
	Stopped StoppedEventFunc
}

type funcSink struct {
	funcs EventSinkFuncs
}

func NewEventSink(funcs EventSinkFuncs) EventSink {
	return &funcSink{
		funcs: funcs,
	}
}

func (s *funcSink) Output(event OutputEvent) {
	if s.funcs.Output != nil {
		s.funcs.Output(event)
	}
}

func (s *funcSink) Stopped(appID string) {
	if s.funcs.Stopped != nil {
		s.funcs.Stopped(appID)
	}
}

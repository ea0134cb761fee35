package supervisor

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEventSinkFuncs(t *testing.T) {
	t.Run("delivers_to_functions", func(t *testing.T) {
		var gotOutput OutputEvent
		var gotStopped string

		sink := NewEventSink(EventSinkFuncs{
			Output:  func(event OutputEvent) { gotOutput = event },
			Stopped: func(appID string) { gotStopped = appID },
		})

		sink.Output(OutputEvent{AppID: "app-1", Line: "hello", Stream: StreamStderr})
		sink.Stopped("app-1")

		assert.Equal(t, "app-1", gotOutput.AppID)
		assert.Equal(t, "hello", gotOutput.Line)
		assert.Equal(t, StreamStderr, gotOutput.Stream)
		assert.Equal(t, "app-1", gotStopped)
	})

	t.Run("nil_functions_drop_events", func(t *testing.T) {
		sink := NewEventSink(EventSinkFuncs{})

		assert.NotPanics(t, func() {
			sink.Output(OutputEvent{AppID: "app-1", Line: "hello", Stream: StreamStdout})
			sink.Stopped("app-1")
		})
	})
}

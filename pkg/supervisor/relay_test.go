package supervisor

import (
	"io"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// closeCountingReader wraps a reader and counts Close calls
type closeCountingReader struct {
	io.Reader
	closes int32
}

func (r *closeCountingReader) Close() error {
	atomic.AddInt32(&r.closes, 1)
	return nil
}

func runRelay(t *testing.T, input io.ReadCloser, streamType StreamType) *testSink {
	t.Helper()
	sink := newTestSink()
	s := NewSupervisor(Options{}, sink, createMockLogger())
	s.relay("app-1", input, streamType)
	return sink
}

func TestRelay(t *testing.T) {
	t.Run("delivers_lines_in_order", func(t *testing.T) {
		reader := &closeCountingReader{Reader: strings.NewReader("one\ntwo\nthree\n")}
		sink := runRelay(t, reader, StreamStdout)

		assert.Equal(t, []string{"one", "two", "three"}, sink.streamLines("app-1", StreamStdout))
		assert.Equal(t, int32(1), atomic.LoadInt32(&reader.closes), "the relay owns the read end")
	})

	t.Run("last_line_without_newline_still_delivered", func(t *testing.T) {
		reader := &closeCountingReader{Reader: strings.NewReader("alpha\nomega")}
		sink := runRelay(t, reader, StreamStdout)

		assert.Equal(t, []string{"alpha", "omega"}, sink.streamLines("app-1", StreamStdout))
	})

	t.Run("stderr_events_carry_the_stream_tag", func(t *testing.T) {
		reader := &closeCountingReader{Reader: strings.NewReader("warning\n")}
		sink := runRelay(t, reader, StreamStderr)

		assert.Empty(t, sink.streamLines("app-1", StreamStdout))
		assert.Equal(t, []string{"warning"}, sink.streamLines("app-1", StreamStderr))
	})

	t.Run("non_decodable_lines_are_skipped", func(t *testing.T) {
		input := "good\n\xff\xfe\xfd\nstill good\n"
		reader := &closeCountingReader{Reader: strings.NewReader(input)}
		sink := runRelay(t, reader, StreamStdout)

		assert.Equal(t, []string{"good", "still good"}, sink.streamLines("app-1", StreamStdout),
			"a binary line must not kill the relay or reach the sink")
	})

	t.Run("lines_beyond_the_default_buffer_survive", func(t *testing.T) {
		long := strings.Repeat("x", 100_000)
		reader := &closeCountingReader{Reader: strings.NewReader(long + "\nshort\n")}
		sink := runRelay(t, reader, StreamStdout)

		lines := sink.streamLines("app-1", StreamStdout)
		require.Len(t, lines, 2)
		assert.Len(t, lines[0], 100_000)
		assert.Equal(t, "short", lines[1])
	})

	t.Run("empty_stream_produces_no_events", func(t *testing.T) {
		reader := &closeCountingReader{Reader: strings.NewReader("")}
		sink := runRelay(t, reader, StreamStdout)

		assert.Empty(t, sink.streamLines("app-1", StreamStdout))
		assert.Equal(t, int32(1), atomic.LoadInt32(&reader.closes))
	})
}

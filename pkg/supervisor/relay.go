package supervisor

import (
	"bufio"
	"io"
	"unicode/utf8"
)

// maxOutputLine bounds a single relayed line. The scanner default of
// 64KiB is too small for the JSON blobs and tracebacks real apps dump
// on one line.
const maxOutputLine = 1024 * 1024

// relay drains one output stream and forwards every complete line as a
// tagged event, in arrival order. Non-decodable lines are skipped; the
// relay never aborts on them. The relay ends at EOF, which the pipe
// delivers once the process tree lets go of the write end. Nothing
// cancels a relay externally and it never polls process liveness.
func (s *Supervisor) relay(appID string, stream io.ReadCloser, streamType StreamType) {
	defer stream.Close()

	scanner := bufio.NewScanner(stream)
	scanner.Buffer(make([]byte, 64*1024), maxOutputLine)

	for scanner.Scan() {
		line := scanner.Text()
		if !utf8.ValidString(line) {
			s.logger.Debugf("Skipping non-decodable output line, id: %s, stream: %s", appID, streamType)
			continue
		}
		s.sink.Output(OutputEvent{AppID: appID, Line: line, Stream: streamType})
	}

	if err := scanner.Err(); err != nil {
		s.logger.Warnf("Output stream read failed, id: %s, stream: %s, error: %v", appID, streamType, err)
	}

	s.logger.Debugf("Output relay finished, id: %s, stream: %s", appID, streamType)
}

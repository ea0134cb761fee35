//go:build !linux && !windows

package hostinspect

import (
	"context"
	"runtime"

	"github.com/ctrl-tools/appctrl-go/pkg/errors"
	"github.com/ctrl-tools/appctrl-go/pkg/logging"
)

// stubInspector fails every operation with a typed error. Callers that
// can live without inspection degrade explicitly; nothing pretends an
// empty host.
type stubInspector struct {
	logger logging.Logger
}

func newPlatformInspector(logger logging.Logger) Inspector {
	return &stubInspector{logger: logger}
}

func (s *stubInspector) unsupported(operation string) *errors.DomainError {
	return errors.NewUnsupportedPlatformError("host inspection is not supported on this platform", nil).
		WithContext("operation", operation).
		WithContext("platform", runtime.GOOS)
}

func (s *stubInspector) ListListeningPorts(ctx context.Context) ([]PortRecord, error) {
	return nil, s.unsupported("list_listening_ports")
}

func (s *stubInspector) ListProcesses(ctx context.Context) ([]ProcessRecord, error) {
	return nil, s.unsupported("list_processes")
}

func (s *stubInspector) KillByPID(ctx context.Context, pid int) error {
	return s.unsupported("kill_by_pid")
}

func (s *stubInspector) KillByName(ctx context.Context, name string) (bool, error) {
	return false, s.unsupported("kill_by_name")
}

func (s *stubInspector) IsProcessRunningByName(ctx context.Context, name string) (bool, error) {
	return false, s.unsupported("is_process_running_by_name")
}

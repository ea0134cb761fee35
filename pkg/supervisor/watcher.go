package supervisor

import (
	"fmt"
	"os"
	"time"
)

// watch polls one running process for termination and reports the exit
// at most once. Three rules keep the races out: registry absence means
// someone else already reaped this app and the watcher leaves silently;
// only the goroutine that wins the eviction reports; a degraded handle
// (exit check failed without a final state) is evicted without a
// stopped event.
func (s *Supervisor) watch(appID string, h *handle) {
	ticker := time.NewTicker(s.options.PollInterval)
	defer ticker.Stop()

	for range ticker.C {
		if !s.registry.holds(appID, h) {
			s.logger.Debugf("Exit watcher leaving, app was stopped, id: %s", appID)
			return
		}

		exited, state, err := h.tryWait()
		if !exited {
			continue
		}

		if state == nil {
			if s.registry.evict(appID, h) {
				s.logger.Warnf("Exit check failed, evicting app, id: %s, error: %v", appID, err)
				s.removePIDFile(appID)
			}
			return
		}

		if !s.registry.evict(appID, h) {
			// A concurrent stop won the removal and already reported.
			return
		}

		s.removePIDFile(appID)
		s.emitDiagnostic(appID, exitDiagnostic(state))
		s.sink.Stopped(appID)
		s.logger.Infof("App exited, id: %s, exit code: %d", appID, state.ExitCode())
		return
	}
}

// exitDiagnostic words the exit line: success for code 0, the code
// otherwise. ExitCode is -1 when the process died without one, e.g.
// killed by a signal.
func exitDiagnostic(state *os.ProcessState) string {
	if state.Success() {
		return "✓ Process exited successfully"
	}
	return fmt.Sprintf("⚠ Process exited with code: %d", state.ExitCode())
}

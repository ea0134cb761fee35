package supervisor

import (
	"os"

	"github.com/ctrl-tools/appctrl-go/pkg/process"
)

// handle owns one spawned process for the duration of a logical run. A
// single reaper goroutine calls Wait and publishes the final state;
// everyone else observes it through tryWait without blocking. The
// reaper also prevents zombies when a kill lands before natural exit.
type handle struct {
	appID   string
	spawned *process.Spawned

	done    chan struct{}
	state   *os.ProcessState
	waitErr error
}

func newHandle(appID string, spawned *process.Spawned) *handle {
	h := &handle{
		appID:   appID,
		spawned: spawned,
		done:    make(chan struct{}),
	}
	go h.reap()
	return h
}

func (h *handle) reap() {
	state, err := h.spawned.Wait()
	h.state = state
	h.waitErr = err
	close(h.done)
}

func (h *handle) pid() int {
	return h.spawned.PID()
}

// tryWait is a non-blocking exit probe. exited reports whether the
// process has been reaped; when exited is true but state is nil the
// handle is degraded, meaning Wait failed without producing a final
// state.
func (h *handle) tryWait() (exited bool, state *os.ProcessState, err error) {
	select {
	case <-h.done:
		return true, h.state, h.waitErr
	default:
		return false, nil, nil
	}
}

func (h *handle) kill() error {
	return h.spawned.Process().Kill()
}

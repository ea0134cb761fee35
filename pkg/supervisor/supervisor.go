package supervisor

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/ctrl-tools/appctrl-go/pkg/errors"
	"github.com/ctrl-tools/appctrl-go/pkg/logging"
	"github.com/ctrl-tools/appctrl-go/pkg/process"
	"github.com/ctrl-tools/appctrl-go/pkg/processfile"
	"github.com/ctrl-tools/appctrl-go/pkg/processstate"
)

// DefaultPollInterval is the exit watcher tick. A tunable, not a
// correctness constant: the watcher converges on any interval.
const DefaultPollInterval = 500 * time.Millisecond

type Options struct {
	// Exit watcher tick; DefaultPollInterval when zero
	PollInterval time.Duration
}

// ExternalKiller terminates OS processes by image name, reporting
// whether anything matched. Satisfied by the host inspector; injected
// so the supervisor never imports platform enumeration code.
type ExternalKiller interface {
	KillByName(ctx context.Context, name string) (bool, error)
}

// Supervisor starts, monitors and stops managed applications. Each
// started process gets two output relays and one exit watcher, all
// running concurrently with registry mutation; the registry is the
// single source of truth for which applications are alive.
type Supervisor struct {
	options  Options
	registry *registry
	sink     EventSink
	logger   logging.Logger

	mutex    sync.Mutex
	killer   ExternalKiller
	pidFiles *processfile.ProcessFileManager
}

func NewSupervisor(options Options, sink EventSink, logger logging.Logger) *Supervisor {
	if options.PollInterval <= 0 {
		options.PollInterval = DefaultPollInterval
	}
	if sink == nil {
		sink = NewEventSink(EventSinkFuncs{})
	}
	return &Supervisor{
		options:  options,
		registry: newRegistry(),
		sink:     sink,
		logger:   logger,
	}
}

// SetExternalKiller wires the best-effort kill-by-name fallback that
// Stop uses for processes launched outside this supervisor.
func (s *Supervisor) SetExternalKiller(killer ExternalKiller) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.killer = killer
}

// SetProcessFileManager enables per-app PID files, written on start and
// removed when the app leaves the registry.
func (s *Supervisor) SetProcessFileManager(manager *processfile.ProcessFileManager) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.pidFiles = manager
}

// Start spawns a managed application under appID. It fails with
// AlreadyRunning if the id is live, and with SpawnError if the OS
// refuses the process; in both cases the registry is left untouched.
// On success the output relays and the exit watcher are already running
// when Start returns.
func (s *Supervisor) Start(ctx context.Context, appID string, execution process.ExecutionConfig) error {
	// Validate context
	if ctx == nil {
		return errors.NewValidationError("context cannot be nil", nil)
	}

	// Validate app ID
	if err := ValidateAppID(appID); err != nil {
		return errors.NewValidationError("invalid app ID", err).WithContext("app_id", appID)
	}

	s.logger.Infof("Starting app, id: %s, command: %q", appID, execution.Command)

	execute := process.NewShellExecuteCmd(execution, appID, s.logger)

	// The existence check, the spawn and the insert all happen under the
	// registry lock, so two racing starts for the same id cannot both
	// spawn.
	h, err := s.registry.insert(appID, func() (*handle, error) {
		if execution.WorkingDirectory != "" {
			s.emitDiagnostic(appID, "📁 Working dir: "+execution.WorkingDirectory)
		}

		spawned, spawnErr := execute(ctx)
		if spawnErr != nil {
			s.emitDiagnostic(appID, "❌ Failed to start: "+spawnErr.Error())
			return nil, spawnErr
		}

		s.emitDiagnostic(appID, "✓ Started: "+execution.Command)
		return newHandle(appID, spawned), nil
	})
	if err != nil {
		s.logger.Errorf("Failed to start app, id: %s, error: %v", appID, err)
		return err
	}

	s.writePIDFile(appID, h.pid())

	go s.relay(appID, h.spawned.Stdout, StreamStdout)
	go s.relay(appID, h.spawned.Stderr, StreamStderr)
	go s.watch(appID, h)

	s.logger.Infof("App started successfully, id: %s, pid: %d", appID, h.pid())
	return nil
}

// Stop removes appID from the registry and force-kills its process
// tree. When the id is unknown and an executable hint is given, it
// falls back to killing OS processes by the hint's image name, since
// some managed applications run as copies launched outside this
// supervisor. Fails with NotRunning when neither path finds anything.
func (s *Supervisor) Stop(ctx context.Context, appID string, exeHint string) error {
	// Validate context
	if ctx == nil {
		return errors.NewValidationError("context cannot be nil", nil)
	}

	// Validate app ID
	if err := ValidateAppID(appID); err != nil {
		return errors.NewValidationError("invalid app ID", err).WithContext("app_id", appID)
	}

	s.logger.Infof("Stopping app, id: %s", appID)

	var killErr error
	h := s.registry.removeWith(appID, func(h *handle) {
		killErr = s.terminate(appID, h)
	})
	if h != nil {
		if killErr != nil {
			// The entry is gone either way; the kill outcome does not
			// change what the caller can do next.
			s.logger.Warnf("Kill failed during stop, id: %s, error: %v", appID, killErr)
		}
		s.removePIDFile(appID)
		s.emitDiagnostic(appID, "■ Process stopped by user")
		s.sink.Stopped(appID)
		s.logger.Infof("App stopped, id: %s", appID)
		return nil
	}

	if exeHint != "" {
		return s.stopExternal(ctx, appID, exeHint)
	}

	return errors.NewNotRunningError("app is not running", nil).WithContext("app_id", appID)
}

// stopExternal is the hinted best-effort path: kill whatever OS process
// matches the hint's image name. Zero matches means NotRunning.
func (s *Supervisor) stopExternal(ctx context.Context, appID string, exeHint string) error {
	killer := s.externalKiller()
	if killer == nil {
		return errors.NewNotRunningError("app is not running", nil).WithContext("app_id", appID)
	}

	name := filepath.Base(exeHint)
	s.logger.Infof("App not in registry, trying external kill, id: %s, image: %s", appID, name)

	matched, err := killer.KillByName(ctx, name)
	if err != nil {
		return errors.NewProcessError("failed to kill external process", err).
			WithContext("app_id", appID).WithContext("image", name)
	}
	if !matched {
		return errors.NewNotRunningError("app is not running", nil).WithContext("app_id", appID)
	}

	s.emitDiagnostic(appID, "■ External process "+name+" stopped")
	s.sink.Stopped(appID)
	s.logger.Infof("External process stopped, id: %s, image: %s", appID, name)
	return nil
}

// IsRunning reports registry membership only; it never probes the OS.
func (s *Supervisor) IsRunning(appID string) bool {
	return s.registry.contains(appID)
}

// Running returns a sorted snapshot of live application ids.
func (s *Supervisor) Running() []string {
	return s.registry.ids()
}

// StopAll drains the registry and force-kills every process, collecting
// per-app kill failures. Used on shutdown; each drained app still gets
// its stop diagnostic and stopped event.
func (s *Supervisor) StopAll(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	s.logger.Infof("Stopping all apps...")

	errorCollection := errors.NewErrorCollection()
	var stopped []string
	s.registry.drainWith(func(id string, h *handle) {
		if err := s.terminate(id, h); err != nil {
			s.logger.Errorf("Failed to stop app, id: %s, error: %v", id, err)
			errorCollection.Add(err)
		}
		stopped = append(stopped, id)
	})

	for _, id := range stopped {
		s.removePIDFile(id)
		s.emitDiagnostic(id, "■ Process stopped by user")
		s.sink.Stopped(id)
	}

	s.logger.Infof("All apps stopped, count: %d", len(stopped))
	return errorCollection.ToError()
}

// terminate force-kills the process tree behind h. Called with the
// registry lock held so a racing start for the same id cannot spawn
// until the old process is gone. The tree sweep goes first; the direct
// kill follows regardless, because on Windows children of the shell do
// not die with it and the sweep itself can fail on a stale tree.
func (s *Supervisor) terminate(appID string, h *handle) error {
	pid := h.pid()

	if err := process.TerminateTree(pid); err != nil {
		s.logger.Debugf("Tree kill failed, id: %s, pid: %d, error: %v", appID, pid, err)
	}

	if err := h.kill(); err != nil {
		if running, stateErr := processstate.IsProcessRunning(pid); stateErr == nil && !running {
			return nil // already reaped, nothing left to kill
		}
		return errors.NewProcessError("failed to kill process", err).
			WithContext("app_id", appID).WithContext("pid", pid)
	}
	return nil
}

// emitDiagnostic forwards a supervisor-synthesized line to the sink.
// Diagnostics ride the stdout tag, the same channel the process's own
// lines use.
func (s *Supervisor) emitDiagnostic(appID string, line string) {
	s.sink.Output(OutputEvent{AppID: appID, Line: line, Stream: StreamStdout})
}

func (s *Supervisor) externalKiller() ExternalKiller {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.killer
}

func (s *Supervisor) processFiles() *processfile.ProcessFileManager {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	return s.pidFiles
}

func (s *Supervisor) writePIDFile(appID string, pid int) {
	manager := s.processFiles()
	if manager == nil {
		return
	}
	if err := manager.WritePIDFile(appID, pid); err != nil {
		s.logger.Warnf("Failed to write PID file, id: %s, error: %v", appID, err)
	}
}

func (s *Supervisor) removePIDFile(appID string) {
	manager := s.processFiles()
	if manager == nil {
		return
	}
	if err := manager.RemovePIDFile(appID); err != nil {
		s.logger.Warnf("Failed to remove PID file, id: %s, error: %v", appID, err)
	}
}

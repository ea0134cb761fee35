// Package appshell assembles the process supervisor, the host
// inspector and the settings store behind the call surface a desktop
// GUI binds to. The GUI talks to a Shell and listens to an event sink;
// everything else in this module is plumbing behind those two.
package appshell

import (
	"context"
	"path/filepath"

	"github.com/ctrl-tools/appctrl-go/pkg/configstore"
	"github.com/ctrl-tools/appctrl-go/pkg/errors"
	"github.com/ctrl-tools/appctrl-go/pkg/hostinspect"
	"github.com/ctrl-tools/appctrl-go/pkg/logging"
	"github.com/ctrl-tools/appctrl-go/pkg/process"
	"github.com/ctrl-tools/appctrl-go/pkg/supervisor"
)

// Shell is the fixed boundary the GUI calls. Start/Stop/IsRunning
// manage supervised applications; the inspector passthroughs answer
// for everything else on the host; Load/SaveConfig move the GUI's own
// settings blob.
type Shell struct {
	supervisor *supervisor.Supervisor
	inspector  hostinspect.Inspector
	store      *configstore.Store
	logger     logging.Logger
}

// NewShell wires the boundary. All collaborators are required.
func NewShell(sv *supervisor.Supervisor, inspector hostinspect.Inspector, store *configstore.Store, logger logging.Logger) (*Shell, error) {
	if sv == nil {
		return nil, errors.NewValidationError("supervisor cannot be nil", nil)
	}
	if inspector == nil {
		return nil, errors.NewValidationError("inspector cannot be nil", nil)
	}
	if store == nil {
		return nil, errors.NewValidationError("config store cannot be nil", nil)
	}
	if logger == nil {
		return nil, errors.NewValidationError("logger cannot be nil", nil)
	}

	return &Shell{
		supervisor: sv,
		inspector:  inspector,
		store:      store,
		logger:     logger,
	}, nil
}

// Start launches a managed application from the raw strings the GUI
// sends: a shell command line, an optional working directory and an
// optional KEY=VALUE environment block.
func (s *Shell) Start(ctx context.Context, appID string, commandLine string, workingDir string, envBlock string) error {
	return s.supervisor.Start(ctx, appID, process.ExecutionConfig{
		Command:          commandLine,
		WorkingDirectory: workingDir,
		Environment:      envBlock,
	})
}

// Stop terminates a managed application, falling back to killing by
// the executable hint's image name when the id is not under
// supervision.
func (s *Shell) Stop(ctx context.Context, appID string, exeHint string) error {
	return s.supervisor.Stop(ctx, appID, exeHint)
}

// IsRunning reports whether appID is under supervision
func (s *Shell) IsRunning(appID string) bool {
	return s.supervisor.IsRunning(appID)
}

// Running returns the sorted ids of all supervised applications
func (s *Shell) Running() []string {
	return s.supervisor.Running()
}

// StopAll terminates every supervised application
func (s *Shell) StopAll(ctx context.Context) error {
	return s.supervisor.StopAll(ctx)
}

// CheckExternallyRunning reports whether a process with the
// executable's image name runs on the host, supervised or not. The GUI
// uses it to mark applications started outside the shell.
func (s *Shell) CheckExternallyRunning(ctx context.Context, exePath string) (bool, error) {
	if exePath == "" {
		return false, errors.NewValidationError("executable path cannot be empty", nil)
	}
	return s.inspector.IsProcessRunningByName(ctx, filepath.Base(exePath))
}

// ListListeningPorts returns the host's listening sockets
func (s *Shell) ListListeningPorts(ctx context.Context) ([]hostinspect.PortRecord, error) {
	return s.inspector.ListListeningPorts(ctx)
}

// ListProcesses returns the host's user-visible processes
func (s *Shell) ListProcesses(ctx context.Context) ([]hostinspect.ProcessRecord, error) {
	return s.inspector.ListProcesses(ctx)
}

// KillByPID force-kills an arbitrary host process
func (s *Shell) KillByPID(ctx context.Context, pid int) error {
	s.logger.Infof("Kill by PID requested, pid: %d", pid)
	return s.inspector.KillByPID(ctx, pid)
}

// KillByName force-kills every host process with the given image name.
// A name that matches nothing is success, same as a kill that landed.
func (s *Shell) KillByName(ctx context.Context, name string) error {
	s.logger.Infof("Kill by name requested, name: %s", name)
	_, err := s.inspector.KillByName(ctx, name)
	return err
}

// LoadConfig returns the GUI settings blob
func (s *Shell) LoadConfig() (string, error) {
	return s.store.Load()
}

// SaveConfig persists the GUI settings blob
func (s *Shell) SaveConfig(raw string) error {
	return s.store.Save(raw)
}

// ExtractExecutableIcon would rasterize an executable's icon for the
// GUI. Icon extraction needs platform GUI libraries this module does
// not link; the documented fallback is this typed error, never a
// silent empty string.
func (s *Shell) ExtractExecutableIcon(exePath string) (string, error) {
	return "", errors.NewUnsupportedPlatformError("icon extraction is not supported", nil).
		WithContext("path", exePath)
}

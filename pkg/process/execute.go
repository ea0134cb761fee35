package process

import (
	"context"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/ctrl-tools/appctrl-go/pkg/errors"
	"github.com/ctrl-tools/appctrl-go/pkg/logging"
)

type ExecutionConfig struct {
	Command          string `yaml:"command"`
	WorkingDirectory string `yaml:"working_directory,omitempty"`
	Environment      string `yaml:"environment,omitempty"`
}

// Spawned owns a freshly started process together with its output pipes.
// The pipes are plain os.Pipe ends, so reaping the process never races the
// readers: they simply see EOF once the process tree lets go of the write
// ends.
type Spawned struct {
	cmd    *exec.Cmd
	Stdout io.ReadCloser
	Stderr io.ReadCloser
}

func (s *Spawned) PID() int {
	return s.cmd.Process.Pid
}

func (s *Spawned) Process() *os.Process {
	return s.cmd.Process
}

// Wait reaps the process and returns its final state. Call exactly once;
// the state is non-nil whenever the process actually ran to completion,
// even if err is an exec.ExitError.
func (s *Spawned) Wait() (*os.ProcessState, error) {
	err := s.cmd.Wait()
	return s.cmd.ProcessState, err
}

type ShellExecuteCmd func(ctx context.Context) (*Spawned, error)

// NewShellExecuteCmd creates a spawn function that runs a raw command line
// through the platform shell interpreter (cmd.exe /C on Windows, sh -c
// elsewhere), with stdin on the null device and stdout/stderr piped.
func NewShellExecuteCmd(execution ExecutionConfig, id string, logger logging.Logger) ShellExecuteCmd {
	return func(ctx context.Context) (*Spawned, error) {
		// Validate context
		if ctx == nil {
			logger.Errorf("Context cannot be nil, id: %s", id)
			return nil, errors.NewValidationError("context cannot be nil", nil).WithContext("id", id)
		}

		// No command validation here: an empty or malformed command still
		// reaches the shell, and the shell reports the syntax error the
		// same way a terminal would.
		logger.Infof("Spawning process, id: %s, command: %q", id, execution.Command)

		cmd := shellCommand(execution.Command)
		cmd.Dir = ResolveWorkingDirectory(execution)
		cmd.Env = buildEnvironment(execution.Environment)

		logger.Debugf("Spawning process, id: %s, working directory: %q, user environment: %q",
			id, cmd.Dir, execution.Environment)

		stdoutRead, stdoutWrite, err := os.Pipe()
		if err != nil {
			return nil, errors.NewIOError("failed to create stdout pipe", err).WithContext("id", id)
		}
		stderrRead, stderrWrite, err := os.Pipe()
		if err != nil {
			stdoutRead.Close()
			stdoutWrite.Close()
			return nil, errors.NewIOError("failed to create stderr pipe", err).WithContext("id", id)
		}

		// Stdin stays nil so the child reads from the null device
		cmd.Stdout = stdoutWrite
		cmd.Stderr = stderrWrite

		err = cmd.Start()

		// The parent's copies of the write ends must go regardless of the
		// start outcome, otherwise the read ends never see EOF
		stdoutWrite.Close()
		stderrWrite.Close()

		if err != nil {
			stdoutRead.Close()
			stderrRead.Close()
			return nil, errors.NewSpawnError("failed to start the process", err).WithContext("id", id).WithContext("command", execution.Command)
		}

		logger.Infof("Successfully spawned process, id: %s, PID: %d", id, cmd.Process.Pid)

		return &Spawned{
			cmd:    cmd,
			Stdout: stdoutRead,
			Stderr: stderrRead,
		}, nil
	}
}

// ResolveWorkingDirectory picks the directory the command runs in: the
// explicit one when set, otherwise the parent directory of the command
// path when that parent is a real directory. An empty result means the
// child inherits the supervisor's working directory.
func ResolveWorkingDirectory(execution ExecutionConfig) string {
	if execution.WorkingDirectory != "" {
		return execution.WorkingDirectory
	}
	parent := filepath.Dir(strings.TrimSpace(execution.Command))
	if parent == "." || parent == execution.Command {
		return ""
	}
	if info, err := os.Stat(parent); err == nil && info.IsDir() {
		return parent
	}
	return ""
}

// buildEnvironment merges the inherited environment, the unconditional
// UTF-8 forcing and the user block, in that order. os/exec keeps the last
// duplicate of a key, so user variables win over the UTF-8 defaults.
func buildEnvironment(block string) []string {
	env := os.Environ()
	env = append(env,
		"PYTHONIOENCODING=utf-8",
		"PYTHONUTF8=1",
		"CHCP=65001",
	)
	return append(env, ParseEnvironmentBlock(block)...)
}

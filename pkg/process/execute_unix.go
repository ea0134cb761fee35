//go:build !windows

package process

import (
	"os/exec"
	"syscall"
)

// shellCommand builds the sh invocation for a raw command line.
// The child gets its own process group so that the whole tree can be
// signalled at once on stop.
func shellCommand(command string) *exec.Cmd {
	cmd := exec.Command("sh", "-c", command)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
	}
	return cmd
}

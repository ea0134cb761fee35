//go:build windows

package process

import (
	"os/exec"
	"strconv"
	"syscall"
)

// TerminateTree force-kills pid and all of its descendants via taskkill.
// Children of cmd.exe do not die with their parent on Windows, so the /T
// sweep is the only way to take the real application down together with
// the shell that launched it.
func TerminateTree(pid int) error {
	kill := exec.Command("taskkill", "/F", "/T", "/PID", strconv.Itoa(pid))
	kill.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: createNoWindow,
	}
	return kill.Run()
}

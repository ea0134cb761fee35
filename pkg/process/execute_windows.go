//go:build windows

package process

import (
	"os/exec"
	"syscall"
)

// createNoWindow (CREATE_NO_WINDOW) keeps spawned shells from flashing a
// console window when the supervisor runs in a GUI context.
const createNoWindow = 0x08000000

// shellCommand builds the cmd.exe invocation for a raw command line.
// The command line is passed raw via SysProcAttr: cmd.exe has its own
// quoting rules and Go's default argv escaping would mangle compound
// commands. The code page switch forces the console to UTF-8 before the
// user command runs.
func shellCommand(command string) *exec.Cmd {
	cmd := exec.Command("cmd.exe")
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CmdLine:       "cmd.exe /C chcp 65001 >nul && " + command,
		CreationFlags: createNoWindow,
	}
	return cmd
}

//go:build !windows

package process

import "syscall"

// TerminateTree force-kills the process group rooted at pid. Children
// spawned through shellCommand share the group, so the signal takes the
// shell and everything it started down together.
func TerminateTree(pid int) error {
	return syscall.Kill(-pid, syscall.SIGKILL)
}

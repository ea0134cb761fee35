//go:build linux

package hostinspect

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/ctrl-tools/appctrl-go/pkg/errors"
	"github.com/ctrl-tools/appctrl-go/pkg/logging"

	"github.com/c9s/goprocinfo/linux"
)

// tcpListenState is the LISTEN value of the st column in /proc/net/tcp
const tcpListenState = 10

// commLength is the kernel's comm field limit; process names in
// /proc/<pid>/status are truncated to it
const commLength = 15

// Long-lived daemons and init machinery a user-facing list should hide.
// Kernel threads are filtered separately (they have no address space).
var linuxSystemProcesses = []string{
	"systemd", "init", "systemd-journald", "systemd-udevd", "systemd-logind",
	"systemd-resolved", "systemd-timesyncd", "systemd-networkd", "dbus-daemon", "dbus-broker",
	"polkitd", "agetty", "cron", "crond", "atd",
	"rsyslogd", "auditd", "acpid", "irqbalance", "udisksd",
	"upowerd", "rtkit-daemon", "accounts-daemon", "ModemManager", "NetworkManager",
	"wpa_supplicant", "snapd", "packagekitd", "thermald", "colord",
}

// linuxInspector reads the proc filesystem directly. The proc root is a
// field so tests can point it at a fixture tree.
type linuxInspector struct {
	logger   logging.Logger
	procRoot string
}

func newPlatformInspector(logger logging.Logger) Inspector {
	return &linuxInspector{logger: logger, procRoot: "/proc"}
}

func (l *linuxInspector) ListListeningPorts(ctx context.Context) ([]PortRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewCancelledError("port listing cancelled", err)
	}

	owners, err := l.socketInodeOwners()
	if err != nil {
		return nil, err
	}

	names := make(map[int]string)
	var records []PortRecord
	appendSocket := func(socket linux.NetSocket, protocol string) {
		port, ok := portFromAddress(socket.LocalAddress)
		if !ok {
			return
		}
		pid := owners[socket.Inode]
		records = append(records, PortRecord{
			Port:     port,
			PID:      pid,
			Name:     l.processName(pid, names),
			Protocol: protocol,
		})
	}

	tcp, err := linux.ReadNetTCPSockets(filepath.Join(l.procRoot, "net", "tcp"), linux.NetIPv4Decoder)
	if err != nil {
		return nil, errors.NewIOError("failed to read tcp socket table", err)
	}
	for _, socket := range tcp.Sockets {
		if socket.Status == tcpListenState {
			appendSocket(socket.NetSocket, "TCP")
		}
	}

	udp, err := linux.ReadNetUDPSockets(filepath.Join(l.procRoot, "net", "udp"), linux.NetIPv4Decoder)
	if err != nil {
		return nil, errors.NewIOError("failed to read udp socket table", err)
	}
	for _, socket := range udp.Sockets {
		appendSocket(socket.NetSocket, "UDP")
	}

	// The v6 tables are absent when IPv6 is disabled; that is not an error
	if tcp6, err := linux.ReadNetTCPSockets(filepath.Join(l.procRoot, "net", "tcp6"), linux.NetIPv6Decoder); err == nil {
		for _, socket := range tcp6.Sockets {
			if socket.Status == tcpListenState {
				appendSocket(socket.NetSocket, "TCP")
			}
		}
	} else {
		l.logger.Debugf("No tcp6 socket table: %v", err)
	}
	if udp6, err := linux.ReadNetUDPSockets(filepath.Join(l.procRoot, "net", "udp6"), linux.NetIPv6Decoder); err == nil {
		for _, socket := range udp6.Sockets {
			appendSocket(socket.NetSocket, "UDP")
		}
	} else {
		l.logger.Debugf("No udp6 socket table: %v", err)
	}

	result := normalizePortRecords(records)
	l.logger.Debugf("Listed listening ports, count: %d", len(result))
	return result, nil
}

func (l *linuxInspector) ListProcesses(ctx context.Context) ([]ProcessRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewCancelledError("process listing cancelled", err)
	}

	pids, err := l.listPIDs()
	if err != nil {
		return nil, err
	}

	var records []ProcessRecord
	for _, pid := range pids {
		status, err := linux.ReadProcessStatus(l.statusPath(int(pid)))
		if err != nil {
			// Raced a process exit, or no permission; either way skip
			continue
		}
		// Kernel threads have no address space
		if status.VmSize == 0 {
			continue
		}
		if isDeniedLinuxProcess(status.Name) {
			continue
		}
		records = append(records, ProcessRecord{
			PID:    int(pid),
			Name:   status.Name,
			Memory: formatMemoryKB(status.VmRSS),
		})
	}

	sortProcessRecords(records)
	l.logger.Debugf("Listed processes, count: %d", len(records))
	return records, nil
}

func (l *linuxInspector) KillByPID(ctx context.Context, pid int) error {
	if pid <= 0 {
		return errors.NewValidationError("process id must be positive", nil).WithContext("pid", pid)
	}
	if err := ctx.Err(); err != nil {
		return errors.NewCancelledError("kill cancelled", err)
	}
	return l.kill(pid)
}

func (l *linuxInspector) KillByName(ctx context.Context, name string) (bool, error) {
	pids, err := l.findByName(ctx, name)
	if err != nil {
		return false, err
	}

	collection := errors.NewErrorCollection()
	for _, pid := range pids {
		collection.Add(l.kill(pid))
	}
	if len(pids) > 0 {
		l.logger.Infof("Killed processes by name: %s, count: %d", name, len(pids))
	}
	return len(pids) > 0, collection.ToError()
}

func (l *linuxInspector) IsProcessRunningByName(ctx context.Context, name string) (bool, error) {
	pids, err := l.findByName(ctx, name)
	if err != nil {
		return false, err
	}
	return len(pids) > 0, nil
}

// kill delivers SIGKILL. A process that disappeared first counts as
// killed.
func (l *linuxInspector) kill(pid int) error {
	err := syscall.Kill(pid, syscall.SIGKILL)
	switch {
	case err == nil:
		l.logger.Infof("Killed process, pid: %d", pid)
		return nil
	case err == syscall.ESRCH:
		return nil
	case err == syscall.EPERM:
		return errors.NewPermissionError("not allowed to kill process", err).WithContext("pid", pid)
	default:
		return errors.NewProcessError("failed to kill process", err).WithContext("pid", pid)
	}
}

// findByName scans the process table for status names matching name,
// allowing for the comm-length truncation
func (l *linuxInspector) findByName(ctx context.Context, name string) ([]int, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.NewCancelledError("process scan cancelled", err)
	}

	pids, err := l.listPIDs()
	if err != nil {
		return nil, err
	}

	var matched []int
	for _, pid := range pids {
		status, err := linux.ReadProcessStatus(l.statusPath(int(pid)))
		if err != nil {
			continue
		}
		if matchesProcessName(status.Name, name) {
			matched = append(matched, int(pid))
		}
	}
	return matched, nil
}

func (l *linuxInspector) listPIDs() ([]uint64, error) {
	max, err := linux.ReadMaxPID(filepath.Join(l.procRoot, "sys", "kernel", "pid_max"))
	if err != nil {
		return nil, errors.NewIOError("failed to read pid_max", err)
	}
	pids, err := linux.ListPID(l.procRoot, max)
	if err != nil {
		return nil, errors.NewIOError("failed to list process ids", err)
	}
	return pids, nil
}

// socketInodeOwners maps socket inodes to owning PIDs by reading fd
// symlinks. Without privileges only the caller's own processes are
// readable; unreadable fd directories are skipped, and their sockets
// stay unattributed.
func (l *linuxInspector) socketInodeOwners() (map[uint64]int, error) {
	pids, err := l.listPIDs()
	if err != nil {
		return nil, err
	}

	owners := make(map[uint64]int)
	for _, pid := range pids {
		fdDir := filepath.Join(l.procRoot, strconv.FormatUint(pid, 10), "fd")
		entries, err := os.ReadDir(fdDir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			target, err := os.Readlink(filepath.Join(fdDir, entry.Name()))
			if err != nil {
				continue
			}
			inode, ok := socketInode(target)
			if !ok {
				continue
			}
			if _, taken := owners[inode]; !taken {
				owners[inode] = int(pid)
			}
		}
	}
	return owners, nil
}

// processName resolves a PID to its status name through a per-call
// cache; unattributed or vanished PIDs read as Unknown
func (l *linuxInspector) processName(pid int, cache map[int]string) string {
	if pid <= 0 {
		return "Unknown"
	}
	if name, ok := cache[pid]; ok {
		return name
	}

	name := "Unknown"
	if status, err := linux.ReadProcessStatus(l.statusPath(pid)); err == nil && status.Name != "" {
		name = status.Name
	}
	cache[pid] = name
	return name
}

func (l *linuxInspector) statusPath(pid int) string {
	return filepath.Join(l.procRoot, strconv.Itoa(pid), "status")
}

// socketInode extracts N from an fd symlink target of the form
// "socket:[N]"
func socketInode(target string) (uint64, bool) {
	const prefix = "socket:["
	if !strings.HasPrefix(target, prefix) || !strings.HasSuffix(target, "]") {
		return 0, false
	}
	inode, err := strconv.ParseUint(target[len(prefix):len(target)-1], 10, 64)
	if err != nil {
		return 0, false
	}
	return inode, true
}

func isDeniedLinuxProcess(name string) bool {
	for _, denied := range linuxSystemProcesses {
		if matchesProcessName(name, denied) {
			return true
		}
	}
	return false
}

// matchesProcessName compares a status name against a target
// executable name, tolerating the kernel's comm truncation of the
// status side
func matchesProcessName(procName, target string) bool {
	if strings.EqualFold(procName, target) {
		return true
	}
	if len(target) > commLength {
		return strings.EqualFold(procName, target[:commLength])
	}
	return false
}

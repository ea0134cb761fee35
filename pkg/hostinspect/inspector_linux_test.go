//go:build linux

package hostinspect

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/ctrl-tools/appctrl-go/pkg/errors"
	"github.com/ctrl-tools/appctrl-go/pkg/processstate"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeProc builds a proc filesystem fixture the inspector can be
// pointed at
type fakeProc struct {
	t    *testing.T
	root string
}

func newFakeProc(t *testing.T) *fakeProc {
	t.Helper()
	f := &fakeProc{t: t, root: t.TempDir()}
	f.setMaxPID(4096)
	return f
}

func (f *fakeProc) setMaxPID(max int) {
	f.write(filepath.Join("sys", "kernel", "pid_max"), strconv.Itoa(max)+"\n")
}

func (f *fakeProc) write(rel, content string) {
	f.t.Helper()
	path := filepath.Join(f.root, rel)
	require.NoError(f.t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(f.t, os.WriteFile(path, []byte(content), 0o644))
}

// addProcess creates a status file for a user process
func (f *fakeProc) addProcess(pid int, name string, vmSizeKB, vmRSSKB int) {
	status := fmt.Sprintf("Name:\t%s\nState:\tS (sleeping)\nTgid:\t%d\nPid:\t%d\nPPid:\t1\nThreads:\t1\nVmSize:\t%8d kB\nVmRSS:\t%8d kB\n",
		name, pid, pid, vmSizeKB, vmRSSKB)
	f.write(filepath.Join(strconv.Itoa(pid), "status"), status)
}

// addKernelThread creates a status file without Vm lines, the way the
// kernel presents its own threads
func (f *fakeProc) addKernelThread(pid int, name string) {
	status := fmt.Sprintf("Name:\t%s\nState:\tI (idle)\nTgid:\t%d\nPid:\t%d\nPPid:\t2\nThreads:\t1\n",
		name, pid, pid)
	f.write(filepath.Join(strconv.Itoa(pid), "status"), status)
}

// addSocketFD links a socket inode into a process fd directory
func (f *fakeProc) addSocketFD(pid, fd int, inode uint64) {
	f.t.Helper()
	fdDir := filepath.Join(f.root, strconv.Itoa(pid), "fd")
	require.NoError(f.t, os.MkdirAll(fdDir, 0o755))
	target := fmt.Sprintf("socket:[%d]", inode)
	require.NoError(f.t, os.Symlink(target, filepath.Join(fdDir, strconv.Itoa(fd))))
}

// tcpRow renders one /proc/net/tcp line. localHex is the kernel's
// little-endian "0100007F:1F90" form, state is the hex st column,
// inode is decimal.
func tcpRow(slot int, localHex, stateHex string, inode uint64) string {
	return fmt.Sprintf("%4d: %s 00000000:0000 %s 00000000:00000000 00:00000000 00000000  1000        0 %d 1 0000000000000000 100 0 0 10 0\n",
		slot, localHex, stateHex, inode)
}

func udpRow(slot int, localHex string, inode uint64) string {
	return fmt.Sprintf("%4d: %s 00000000:0000 07 00000000:00000000 00:00000000 00000000  1000        0 %d 2 0000000000000000 0\n",
		slot, localHex, inode)
}

const tcpHeader = "  sl  local_address rem_address   st tx_queue rx_queue tr tm->when retrnsmt   uid  timeout inode\n"
const udpHeader = "  sl  local_address rem_address   st tx_queue rx_queue tr tm->when retrnsmt   uid  timeout inode ref pointer drops\n"

func createFixtureInspector(f *fakeProc) *linuxInspector {
	return &linuxInspector{logger: createMockLogger(), procRoot: f.root}
}

func TestLinuxListListeningPorts(t *testing.T) {
	f := newFakeProc(t)
	f.addProcess(100, "nginx", 10452, 2048)
	f.addSocketFD(100, 4, 3001)
	f.addProcess(200, "dnsmasq", 5000, 1024)
	f.addSocketFD(200, 5, 4001)

	f.write(filepath.Join("net", "tcp"), tcpHeader+
		tcpRow(0, "0100007F:1F90", "0A", 3001)+ // 127.0.0.1:8080 LISTEN, nginx
		tcpRow(1, "0100007F:1F90", "0A", 3001)+ // repeated table row
		tcpRow(2, "0100007F:A1B2", "01", 3002)+ // ESTABLISHED, must be ignored
		tcpRow(3, "00000000:2382", "0A", 9999)) // 0.0.0.0:9090 LISTEN, unattributed
	f.write(filepath.Join("net", "udp"), udpHeader+
		udpRow(0, "00000000:0035", 4001)+ // 0.0.0.0:53, dnsmasq
		udpRow(1, "00000000:0000", 4002)) // unbound, must be ignored

	inspector := createFixtureInspector(f)
	records, err := inspector.ListListeningPorts(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []PortRecord{
		{Port: 53, PID: 200, Name: "dnsmasq", Protocol: "UDP"},
		{Port: 8080, PID: 100, Name: "nginx", Protocol: "TCP"},
		{Port: 9090, PID: 0, Name: "Unknown", Protocol: "TCP"},
	}, records)
}

func TestLinuxListListeningPortsCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	inspector := createFixtureInspector(newFakeProc(t))
	_, err := inspector.ListListeningPorts(ctx)
	require.Error(t, err)
	assert.True(t, errors.IsCancelledError(err))
}

func TestLinuxListProcesses(t *testing.T) {
	f := newFakeProc(t)
	f.addProcess(100, "nginx", 10452, 2048)
	f.addProcess(200, "Zix", 3000, 512)
	f.addProcess(250, "alpha", 3000, 1536)
	f.addProcess(300, "systemd", 12000, 4096)      // denylisted
	f.addKernelThread(400, "ksoftirqd/0")          // no address space
	f.addProcess(500, "systemd-journal", 8000, 64) // journald under comm truncation

	inspector := createFixtureInspector(f)
	records, err := inspector.ListProcesses(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []ProcessRecord{
		{PID: 250, Name: "alpha", Memory: "1,536 K"},
		{PID: 100, Name: "nginx", Memory: "2,048 K"},
		{PID: 200, Name: "Zix", Memory: "512 K"},
	}, records, "system daemons and kernel threads stay out; the rest sorts by name")
}

func TestLinuxKillByPID(t *testing.T) {
	t.Run("rejects_non_positive_pid", func(t *testing.T) {
		inspector := createFixtureInspector(newFakeProc(t))
		for _, pid := range []int{0, -1} {
			err := inspector.KillByPID(context.Background(), pid)
			require.Error(t, err)
			assert.True(t, errors.IsValidationError(err))
		}
	})

	t.Run("kills_a_live_process", func(t *testing.T) {
		child := exec.Command("sleep", "30")
		require.NoError(t, child.Start())

		inspector := createFixtureInspector(newFakeProc(t))
		require.NoError(t, inspector.KillByPID(context.Background(), child.Process.Pid))

		err := child.Wait()
		require.Error(t, err, "the child must have died from the signal")
	})

	t.Run("already_gone_is_success", func(t *testing.T) {
		child := exec.Command("sleep", "30")
		require.NoError(t, child.Start())
		pid := child.Process.Pid
		require.NoError(t, child.Process.Kill())
		_, _ = child.Process.Wait()

		inspector := createFixtureInspector(newFakeProc(t))
		assert.NoError(t, inspector.KillByPID(context.Background(), pid))
	})
}

func TestLinuxKillByName(t *testing.T) {
	t.Run("no_match_reports_false_without_error", func(t *testing.T) {
		f := newFakeProc(t)
		f.addProcess(100, "nginx", 10452, 2048)

		inspector := createFixtureInspector(f)
		matched, err := inspector.KillByName(context.Background(), "no-such-process")
		require.NoError(t, err)
		assert.False(t, matched)
	})

	t.Run("kills_matching_process", func(t *testing.T) {
		child := exec.Command("sleep", "30")
		require.NoError(t, child.Start())
		pid := child.Process.Pid

		f := newFakeProc(t)
		f.setMaxPID(pid + 10)
		f.addProcess(pid, "sleep", 1000, 100)

		inspector := createFixtureInspector(f)
		matched, err := inspector.KillByName(context.Background(), "sleep")
		require.NoError(t, err)
		assert.True(t, matched)

		require.Error(t, child.Wait())
		require.Eventually(t, func() bool {
			running, err := processstate.IsProcessRunning(pid)
			return err == nil && !running
		}, 5*time.Second, 10*time.Millisecond)
	})
}

func TestLinuxIsProcessRunningByName(t *testing.T) {
	f := newFakeProc(t)
	f.addProcess(100, "nginx", 10452, 2048)

	inspector := createFixtureInspector(f)

	running, err := inspector.IsProcessRunningByName(context.Background(), "nginx")
	require.NoError(t, err)
	assert.True(t, running)

	running, err = inspector.IsProcessRunningByName(context.Background(), "NGINX")
	require.NoError(t, err)
	assert.True(t, running, "name matching ignores case")

	running, err = inspector.IsProcessRunningByName(context.Background(), "apache")
	require.NoError(t, err)
	assert.False(t, running)
}

func TestMatchesProcessName(t *testing.T) {
	assert.True(t, matchesProcessName("nginx", "nginx"))
	assert.True(t, matchesProcessName("NGINX", "nginx"))
	assert.True(t, matchesProcessName("systemd-journal", "systemd-journald"),
		"status names truncate at the comm limit")
	assert.False(t, matchesProcessName("nginx", "nginx-ingress-controller"))
	assert.False(t, matchesProcessName("ngin", "nginx"))
}

func TestSocketInode(t *testing.T) {
	inode, ok := socketInode("socket:[12345]")
	assert.True(t, ok)
	assert.Equal(t, uint64(12345), inode)

	for _, target := range []string{"pipe:[999]", "/dev/null", "socket:[]", "socket:[abc]", "socket:12345"} {
		_, ok := socketInode(target)
		assert.False(t, ok, "target %q must not parse", target)
	}
}

func TestLinuxProcessListMissingPIDMax(t *testing.T) {
	inspector := &linuxInspector{logger: createMockLogger(), procRoot: t.TempDir()}

	_, err := inspector.ListProcesses(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsIOError(err))
}

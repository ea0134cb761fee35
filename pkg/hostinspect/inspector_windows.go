//go:build windows

package hostinspect

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"syscall"

	"github.com/ctrl-tools/appctrl-go/pkg/errors"
	"github.com/ctrl-tools/appctrl-go/pkg/logging"
)

// createNoWindow (CREATE_NO_WINDOW) keeps the helper tools from
// flashing console windows when the shell runs in a GUI context
const createNoWindow = 0x08000000

// Well-known OS processes that only add noise to a user-facing list
var windowsSystemProcesses = []string{
	"System Idle Process", "System", "Registry", "smss.exe", "csrss.exe",
	"wininit.exe", "services.exe", "lsass.exe", "svchost.exe", "fontdrvhost.exe",
	"dwm.exe", "winlogon.exe", "spoolsv.exe", "Memory Compression", "taskhostw.exe",
	"RuntimeBroker.exe", "SearchUI.exe", "ShellExperienceHost.exe", "ApplicationFrameHost.exe",
	"ctfmon.exe", "conhost.exe", "dllhost.exe", "sihost.exe", "SearchApp.exe",
	"StartMenuExperienceHost.exe", "TextInputHost.exe", "SecurityHealthService.exe",
	"NisSrv.exe", "MsMpEng.exe", "audiodg.exe",
}

// windowsInspector shells out to netstat, tasklist and taskkill. The
// tools are always present and their output formats have been stable
// for decades, which beats maintaining Win32 API bindings here.
type windowsInspector struct {
	logger logging.Logger
}

func newPlatformInspector(logger logging.Logger) Inspector {
	return &windowsInspector{logger: logger}
}

func (w *windowsInspector) run(ctx context.Context, name string, args ...string) (string, string, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.SysProcAttr = &syscall.SysProcAttr{
		CreationFlags: createNoWindow,
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}

func (w *windowsInspector) ListListeningPorts(ctx context.Context) ([]PortRecord, error) {
	names, err := w.processNames(ctx)
	if err != nil {
		return nil, err
	}

	stdout, _, err := w.run(ctx, "netstat", "-ano")
	if err != nil {
		return nil, errors.NewProcessError("failed to run netstat", err)
	}

	records := normalizePortRecords(parseNetstatPorts(stdout, names))
	w.logger.Debugf("Listed listening ports, count: %d", len(records))
	return records, nil
}

func (w *windowsInspector) ListProcesses(ctx context.Context) ([]ProcessRecord, error) {
	stdout, _, err := w.run(ctx, "tasklist", "/FO", "CSV", "/NH")
	if err != nil {
		return nil, errors.NewProcessError("failed to run tasklist", err)
	}

	records := parseTaskListProcesses(stdout)
	sortProcessRecords(records)
	w.logger.Debugf("Listed processes, count: %d", len(records))
	return records, nil
}

func (w *windowsInspector) KillByPID(ctx context.Context, pid int) error {
	if pid <= 0 {
		return errors.NewValidationError("process id must be positive", nil).WithContext("pid", pid)
	}

	_, stderr, err := w.run(ctx, "taskkill", "/F", "/PID", strconv.Itoa(pid))
	if err == nil {
		w.logger.Infof("Killed process, pid: %d", pid)
		return nil
	}
	if taskkillReportsNotFound(stderr) {
		return nil
	}
	return errors.NewProcessError("taskkill failed", err).
		WithContext("pid", pid).
		WithContext("stderr", strings.TrimSpace(stderr))
}

func (w *windowsInspector) KillByName(ctx context.Context, name string) (bool, error) {
	_, stderr, err := w.run(ctx, "taskkill", "/F", "/IM", name)
	if err == nil {
		w.logger.Infof("Killed processes by name: %s", name)
		return true, nil
	}
	if taskkillReportsNotFound(stderr) {
		return false, nil
	}
	return false, errors.NewProcessError("taskkill failed", err).
		WithContext("name", name).
		WithContext("stderr", strings.TrimSpace(stderr))
}

func (w *windowsInspector) IsProcessRunningByName(ctx context.Context, name string) (bool, error) {
	filter := fmt.Sprintf("IMAGENAME eq %s", name)
	stdout, _, err := w.run(ctx, "tasklist", "/FI", filter, "/NH")
	if err != nil {
		return false, errors.NewProcessError("failed to run tasklist", err).WithContext("name", name)
	}

	// A match lists the image name; otherwise tasklist prints an INFO line
	return strings.Contains(strings.ToLower(stdout), strings.ToLower(name)), nil
}

// processNames maps PIDs to image names via tasklist CSV output
func (w *windowsInspector) processNames(ctx context.Context) (map[int]string, error) {
	stdout, _, err := w.run(ctx, "tasklist", "/FO", "CSV", "/NH")
	if err != nil {
		return nil, errors.NewProcessError("failed to run tasklist", err)
	}

	names := make(map[int]string)
	for _, fields := range parseCSVLines(stdout) {
		if len(fields) < 2 {
			continue
		}
		pid, err := strconv.Atoi(fields[1])
		if err != nil {
			continue
		}
		names[pid] = fields[0]
	}
	return names, nil
}

// taskkillReportsNotFound detects the "process not found" failure,
// which the idempotent kill policy treats as a clean no-match
func taskkillReportsNotFound(stderr string) bool {
	return strings.Contains(strings.ToLower(stderr), "not found")
}

// parseCSVLines parses tasklist CSV output record by record, skipping
// lines that do not parse (tasklist mixes INFO messages into its
// output when a filter matches nothing)
func parseCSVLines(out string) [][]string {
	reader := csv.NewReader(strings.NewReader(out))
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var records [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			continue
		}
		records = append(records, record)
	}
	return records
}

// parseNetstatPorts extracts listening sockets from netstat -ano
// output. TCP rows carry a state column and the PID in column 5; UDP
// rows have no state and the PID in column 4.
func parseNetstatPorts(out string, names map[int]string) []PortRecord {
	var records []PortRecord
	appendRecord := func(localAddress, pidField, protocol string) {
		port, ok := portFromAddress(localAddress)
		if !ok {
			return
		}
		pid, err := strconv.Atoi(pidField)
		if err != nil {
			return
		}
		name, ok := names[pid]
		if !ok {
			name = "Unknown"
		}
		records = append(records, PortRecord{Port: port, PID: pid, Name: name, Protocol: protocol})
	}

	for _, line := range strings.Split(out, "\n") {
		fields := strings.Fields(line)
		switch {
		case len(fields) >= 5 && fields[0] == "TCP" && fields[3] == "LISTENING":
			appendRecord(fields[1], fields[4], "TCP")
		case len(fields) >= 4 && fields[0] == "UDP":
			appendRecord(fields[1], fields[3], "UDP")
		}
	}
	return records
}

// parseTaskListProcesses extracts user-visible processes from tasklist
// CSV output: "Name","PID","Session Name","Session#","Mem Usage". The
// memory column passes through as tasklist renders it.
func parseTaskListProcesses(out string) []ProcessRecord {
	var records []ProcessRecord
	for _, fields := range parseCSVLines(out) {
		if len(fields) < 5 {
			continue
		}
		name := fields[0]
		if isDeniedProcessName(windowsSystemProcesses, name) {
			continue
		}
		pid, err := strconv.Atoi(fields[1])
		if err != nil {
			continue
		}
		records = append(records, ProcessRecord{PID: pid, Name: name, Memory: fields[4]})
	}
	return records
}

// Package hostinspect answers questions about processes the shell does
// not manage itself: who is listening on which port, what is running,
// and how to get rid of an instance that was started outside the shell.
// Everything here is best-effort observation of a moving target; results
// are a snapshot, not a promise.
package hostinspect

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/ctrl-tools/appctrl-go/pkg/logging"
)

// PortRecord describes one listening socket and its owning process.
type PortRecord struct {
	Port     int    `json:"port"`
	PID      int    `json:"pid"`
	Name     string `json:"name"`
	Protocol string `json:"protocol"`
}

// ProcessRecord describes one user-visible process. Memory is a display
// string in tasklist's "12,345 K" form on every platform.
type ProcessRecord struct {
	PID    int    `json:"pid"`
	Name   string `json:"name"`
	Memory string `json:"memory"`
}

// Inspector examines and manipulates host processes outside the
// supervised set. Implementations are platform specific; on platforms
// without one, every operation fails with an unsupported_platform error
// rather than returning empty results.
type Inspector interface {
	// ListListeningPorts returns TCP sockets in the listening state and
	// bound UDP sockets, deduplicated and sorted by port.
	ListListeningPorts(ctx context.Context) ([]PortRecord, error)

	// ListProcesses returns the process table minus well-known OS
	// internals, sorted by name.
	ListProcesses(ctx context.Context) ([]ProcessRecord, error)

	// KillByPID force-kills a single process. A process that is already
	// gone is success.
	KillByPID(ctx context.Context, pid int) error

	// KillByName force-kills every process with the given executable
	// name and reports whether anything matched. Zero matches is not an
	// error.
	KillByName(ctx context.Context, name string) (bool, error)

	// IsProcessRunningByName reports whether any process with the given
	// executable name exists.
	IsProcessRunningByName(ctx context.Context, name string) (bool, error)
}

// NewInspector creates the inspector for the current platform
func NewInspector(logger logging.Logger) Inspector {
	return newPlatformInspector(logger)
}

// normalizePortRecords deduplicates by (port, pid, protocol) and sorts
// by port, then protocol, then pid. Sockets often show up more than
// once (dual-stack binds, repeated table rows), and adjacent-only
// dedup misses duplicates that sort apart, so this works on the full
// set.
func normalizePortRecords(records []PortRecord) []PortRecord {
	type key struct {
		port     int
		pid      int
		protocol string
	}
	seen := make(map[key]bool, len(records))
	unique := make([]PortRecord, 0, len(records))
	for _, record := range records {
		k := key{record.Port, record.PID, record.Protocol}
		if seen[k] {
			continue
		}
		seen[k] = true
		unique = append(unique, record)
	}

	sort.Slice(unique, func(i, j int) bool {
		if unique[i].Port != unique[j].Port {
			return unique[i].Port < unique[j].Port
		}
		if unique[i].Protocol != unique[j].Protocol {
			return unique[i].Protocol < unique[j].Protocol
		}
		return unique[i].PID < unique[j].PID
	})
	return unique
}

// sortProcessRecords orders case-insensitively by name, with PID as the
// tie-breaker so equal names keep a stable order
func sortProcessRecords(records []ProcessRecord) {
	sort.Slice(records, func(i, j int) bool {
		a := strings.ToLower(records[i].Name)
		b := strings.ToLower(records[j].Name)
		if a != b {
			return a < b
		}
		return records[i].PID < records[j].PID
	})
}

// isDeniedProcessName reports whether name matches the denylist,
// ignoring case
func isDeniedProcessName(denylist []string, name string) bool {
	for _, denied := range denylist {
		if strings.EqualFold(denied, name) {
			return true
		}
	}
	return false
}

// formatMemoryKB renders a kilobyte count the way tasklist renders its
// Mem Usage column: thousands-separated digits plus a " K" suffix
func formatMemoryKB(kb uint64) string {
	digits := strconv.FormatUint(kb, 10)
	var b strings.Builder
	for i := 0; i < len(digits); i++ {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteByte(digits[i])
	}
	b.WriteString(" K")
	return b.String()
}

// portFromAddress extracts the decimal port after the last colon of a
// "host:port" string. Works for both IPv4 and IPv6 renderings.
func portFromAddress(address string) (int, bool) {
	idx := strings.LastIndex(address, ":")
	if idx < 0 || idx == len(address)-1 {
		return 0, false
	}
	port, err := strconv.Atoi(address[idx+1:])
	if err != nil || port <= 0 || port > 65535 {
		return 0, false
	}
	return port, true
}

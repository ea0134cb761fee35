package hostinspect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockLogger is a mock implementation of Logger for testing
type MockLogger struct {
	mock.Mock
}

func (m *MockLogger) LogLevelf(level int, format string, args ...interface{}) {
	m.Called(format, args)
}

func (m *MockLogger) Debugf(format string, args ...interface{}) {
	m.Called(format, args)
}

func (m *MockLogger) Infof(format string, args ...interface{}) {
	m.Called(format, args)
}

func (m *MockLogger) Warnf(format string, args ...interface{}) {
	m.Called(format, args)
}

func (m *MockLogger) Errorf(format string, args ...interface{}) {
	m.Called(format, args)
}

func createMockLogger() *MockLogger {
	logger := &MockLogger{}
	logger.On("LogLevelf", mock.Anything, mock.Anything).Maybe()
	logger.On("Debugf", mock.Anything, mock.Anything).Maybe()
	logger.On("Infof", mock.Anything, mock.Anything).Maybe()
	logger.On("Warnf", mock.Anything, mock.Anything).Maybe()
	logger.On("Errorf", mock.Anything, mock.Anything).Maybe()
	return logger
}

func TestNormalizePortRecords(t *testing.T) {
	t.Run("removes_duplicates_that_sort_apart", func(t *testing.T) {
		records := []PortRecord{
			{Port: 8080, PID: 10, Name: "api", Protocol: "TCP"},
			{Port: 53, PID: 5, Name: "dns", Protocol: "UDP"},
			{Port: 8080, PID: 10, Name: "api", Protocol: "TCP"},
			{Port: 8080, PID: 10, Name: "api", Protocol: "UDP"},
			{Port: 53, PID: 5, Name: "dns", Protocol: "UDP"},
		}

		normalized := normalizePortRecords(records)

		assert.Equal(t, []PortRecord{
			{Port: 53, PID: 5, Name: "dns", Protocol: "UDP"},
			{Port: 8080, PID: 10, Name: "api", Protocol: "TCP"},
			{Port: 8080, PID: 10, Name: "api", Protocol: "UDP"},
		}, normalized, "same (port, pid, protocol) must collapse even across sort positions")
	})

	t.Run("orders_by_port_then_protocol_then_pid", func(t *testing.T) {
		records := []PortRecord{
			{Port: 80, PID: 9, Protocol: "UDP"},
			{Port: 80, PID: 9, Protocol: "TCP"},
			{Port: 80, PID: 3, Protocol: "TCP"},
			{Port: 22, PID: 1, Protocol: "TCP"},
		}

		normalized := normalizePortRecords(records)

		assert.Equal(t, []PortRecord{
			{Port: 22, PID: 1, Protocol: "TCP"},
			{Port: 80, PID: 3, Protocol: "TCP"},
			{Port: 80, PID: 9, Protocol: "TCP"},
			{Port: 80, PID: 9, Protocol: "UDP"},
		}, normalized)
	})

	t.Run("empty_input_stays_empty", func(t *testing.T) {
		assert.Empty(t, normalizePortRecords(nil))
	})
}

func TestSortProcessRecords(t *testing.T) {
	records := []ProcessRecord{
		{PID: 30, Name: "zsh"},
		{PID: 20, Name: "Bash"},
		{PID: 10, Name: "bash"},
		{PID: 5, Name: "bash"},
	}

	sortProcessRecords(records)

	assert.Equal(t, []ProcessRecord{
		{PID: 5, Name: "bash"},
		{PID: 10, Name: "bash"},
		{PID: 20, Name: "Bash"},
		{PID: 30, Name: "zsh"},
	}, records, "ordering is case-insensitive by name with PID as tie-breaker")
}

func TestIsDeniedProcessName(t *testing.T) {
	denylist := []string{"svchost.exe", "System"}

	assert.True(t, isDeniedProcessName(denylist, "svchost.exe"))
	assert.True(t, isDeniedProcessName(denylist, "SVCHOST.EXE"), "matching ignores case")
	assert.True(t, isDeniedProcessName(denylist, "system"))
	assert.False(t, isDeniedProcessName(denylist, "svchost"))
	assert.False(t, isDeniedProcessName(denylist, "myapp.exe"))
}

func TestFormatMemoryKB(t *testing.T) {
	assert.Equal(t, "0 K", formatMemoryKB(0))
	assert.Equal(t, "999 K", formatMemoryKB(999))
	assert.Equal(t, "1,000 K", formatMemoryKB(1000))
	assert.Equal(t, "12,345 K", formatMemoryKB(12345))
	assert.Equal(t, "1,234,567 K", formatMemoryKB(1234567))
}

func TestPortFromAddress(t *testing.T) {
	tests := []struct {
		name    string
		address string
		port    int
		ok      bool
	}{
		{"ipv4_with_port", "127.0.0.1:8080", 8080, true},
		{"wildcard_with_port", "0.0.0.0:80", 80, true},
		{"ipv6_with_port", "0:0:0:0:0:0:0:1:443", 443, true},
		{"no_colon", "localhost", 0, false},
		{"trailing_colon", "127.0.0.1:", 0, false},
		{"port_zero_means_unbound", "0.0.0.0:0", 0, false},
		{"port_out_of_range", "127.0.0.1:99999", 0, false},
		{"port_not_numeric", "127.0.0.1:http", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			port, ok := portFromAddress(tt.address)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.port, port)
		})
	}
}

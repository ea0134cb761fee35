package process

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseEnvironmentBlock(t *testing.T) {
	tests := []struct {
		name     string
		block    string
		expected []string
		reason   string
	}{
		{
			name:     "empty_block",
			block:    "",
			expected: nil,
			reason:   "empty input should produce no entries",
		},
		{
			name:     "single_pair",
			block:    "KEY=value",
			expected: []string{"KEY=value"},
			reason:   "single KEY=VALUE line should parse",
		},
		{
			name:     "multiple_pairs",
			block:    "API_URL=http://localhost:8080\nDEBUG=1",
			expected: []string{"API_URL=http://localhost:8080", "DEBUG=1"},
			reason:   "each line should become one entry",
		},
		{
			name:     "skips_blank_lines",
			block:    "\nA=1\n\n\nB=2\n",
			expected: []string{"A=1", "B=2"},
			reason:   "blank lines should be skipped",
		},
		{
			name:     "skips_lines_without_separator",
			block:    "A=1\nnot a pair\nB=2",
			expected: []string{"A=1", "B=2"},
			reason:   "lines without '=' should be skipped, not fail",
		},
		{
			name:     "trims_whitespace",
			block:    "  A = 1  \n\tB=2\t",
			expected: []string{"A=1", "B=2"},
			reason:   "keys and values should be trimmed",
		},
		{
			name:     "keeps_separator_in_value",
			block:    "CONN=host=db;port=5432",
			expected: []string{"CONN=host=db;port=5432"},
			reason:   "only the first '=' splits key from value",
		},
		{
			name:     "skips_empty_key",
			block:    "=value\nA=1",
			expected: []string{"A=1"},
			reason:   "a line with no key is malformed and skipped",
		},
		{
			name:     "windows_line_endings",
			block:    "A=1\r\nB=2",
			expected: []string{"A=1", "B=2"},
			reason:   "carriage returns should be trimmed away",
		},
		{
			name:     "empty_value_allowed",
			block:    "EMPTY=",
			expected: []string{"EMPTY="},
			reason:   "an empty value is a valid assignment",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseEnvironmentBlock(tt.block), tt.reason)
		})
	}
}

package process

import "strings"

// ParseEnvironmentBlock parses a newline-delimited block of KEY=VALUE
// lines into environment entries. Lines are trimmed; empty lines, lines
// without '=' and lines with an empty key are skipped rather than failing
// the spawn.
func ParseEnvironmentBlock(block string) []string {
	var env []string
	for _, line := range strings.Split(block, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if key == "" {
			continue
		}
		env = append(env, key+"="+value)
	}
	return env
}

// Package configstore persists the GUI's settings blob. The blob is
// opaque JSON owned by the GUI layer; the store never imposes a schema
// on it, it only guarantees that whatever was saved can be loaded back.
package configstore

import (
	"os"
	"path/filepath"

	"github.com/ctrl-tools/appctrl-go/pkg/errors"
	"github.com/ctrl-tools/appctrl-go/pkg/logging"

	"github.com/tidwall/gjson"
)

// DefaultFileName is the blob file kept next to the executable
const DefaultFileName = "config.json"

// DefaultPath returns the blob location next to the running
// executable, falling back to the working directory when the
// executable path cannot be resolved
func DefaultPath() string {
	exe, err := os.Executable()
	if err != nil {
		return DefaultFileName
	}
	return filepath.Join(filepath.Dir(exe), DefaultFileName)
}

// Store reads and writes the settings blob wholesale
type Store struct {
	path   string
	logger logging.Logger
}

// NewStore creates a store at the given path; an empty path selects
// the default location
func NewStore(path string, logger logging.Logger) *Store {
	if path == "" {
		path = DefaultPath()
	}
	return &Store{path: path, logger: logger}
}

// Path returns the blob location
func (s *Store) Path() string {
	return s.path
}

// Load returns the stored blob, or an empty JSON object when nothing
// was saved yet
func (s *Store) Load() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "{}", nil
		}
		return "", errors.NewIOError("failed to read config blob", err).WithContext("path", s.path)
	}
	return string(data), nil
}

// Save persists the blob. The payload must be well-formed JSON: a
// blob that would not load back cleanly is refused rather than
// written. The write goes through a temp file and a rename so a crash
// mid-save never leaves a torn blob behind.
func (s *Store) Save(raw string) error {
	if !gjson.Valid(raw) {
		return errors.NewValidationError("config blob is not valid JSON", nil).WithContext("path", s.path)
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.NewIOError("failed to create config directory", err).WithContext("path", s.path)
	}

	tmp, err := os.CreateTemp(dir, "config-*.tmp")
	if err != nil {
		return errors.NewIOError("failed to create temp config file", err).WithContext("path", s.path)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.WriteString(raw); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return errors.NewIOError("failed to write config blob", err).WithContext("path", s.path)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return errors.NewIOError("failed to write config blob", err).WithContext("path", s.path)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return errors.NewIOError("failed to replace config blob", err).WithContext("path", s.path)
	}

	s.logger.Debugf("Saved config blob, path: %s, bytes: %d", s.path, len(raw))
	return nil
}

// Peek reads a single value out of the stored blob by gjson path,
// e.g. "window.closeToTray". The result reports Exists() false for
// paths the blob does not carry.
func (s *Store) Peek(path string) (gjson.Result, error) {
	raw, err := s.Load()
	if err != nil {
		return gjson.Result{}, err
	}
	return gjson.Get(raw, path), nil
}

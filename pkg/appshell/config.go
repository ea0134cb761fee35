package appshell

import (
	"fmt"
	"os"
	"time"

	"github.com/ctrl-tools/appctrl-go/pkg/errors"
	"github.com/ctrl-tools/appctrl-go/pkg/process"
	"github.com/ctrl-tools/appctrl-go/pkg/supervisor"

	"gopkg.in/yaml.v3"
)

// Config represents the top-level configuration file structure
type Config struct {
	Shell ShellOptions `yaml:"shell"`
	Apps  []AppConfig  `yaml:"apps"`
}

// ShellOptions represents shell-level configuration
type ShellOptions struct {
	LogLevel             string        `yaml:"log_level,omitempty"`
	PollInterval         time.Duration `yaml:"poll_interval,omitempty"`
	ForceShutdownTimeout time.Duration `yaml:"force_shutdown_timeout,omitempty"`
	PIDDirectory         string        `yaml:"pid_directory,omitempty"`
	ConfigBlobPath       string        `yaml:"config_blob_path,omitempty"`
}

// AppConfig represents a single managed application
type AppConfig struct {
	ID        string                  `yaml:"id"`
	Execution process.ExecutionConfig `yaml:"execution"`
	AutoStart bool                    `yaml:"auto_start,omitempty"`
}

// LoadConfigFromFile loads shell configuration from a YAML file
func LoadConfigFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, errors.NewIOError("failed to read configuration file", err).WithContext("filename", filename)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, errors.NewValidationError("failed to parse YAML configuration", err).WithContext("filename", filename)
	}

	setConfigDefaults(&config)

	return &config, nil
}

// setConfigDefaults applies default values to configuration
func setConfigDefaults(config *Config) {
	if config.Shell.LogLevel == "" {
		config.Shell.LogLevel = "info"
	}
	if config.Shell.PollInterval == 0 {
		config.Shell.PollInterval = supervisor.DefaultPollInterval
	}
	if config.Shell.ForceShutdownTimeout == 0 {
		config.Shell.ForceShutdownTimeout = 30 * time.Second
	}
}

// ValidateConfig validates the entire configuration structure
func ValidateConfig(config *Config) error {
	if config == nil {
		return errors.NewValidationError("configuration cannot be nil", nil)
	}

	if err := validateShellOptions(&config.Shell); err != nil {
		return errors.NewValidationError("invalid shell configuration", err)
	}

	if err := validateAppsConfig(config.Apps); err != nil {
		return errors.NewValidationError("invalid apps configuration", err)
	}

	return nil
}

func validateShellOptions(options *ShellOptions) error {
	validLogLevels := []string{"debug", "info", "warn", "error"}
	if options.LogLevel != "" {
		valid := false
		for _, level := range validLogLevels {
			if options.LogLevel == level {
				valid = true
				break
			}
		}
		if !valid {
			return errors.NewValidationError(
				fmt.Sprintf("invalid log level: %s", options.LogLevel),
				nil,
			).WithContext("valid_levels", "debug, info, warn, error")
		}
	}

	if options.PollInterval < 0 {
		return errors.NewValidationError(
			fmt.Sprintf("poll interval cannot be negative: %v", options.PollInterval),
			nil,
		)
	}

	if options.ForceShutdownTimeout < 0 {
		return errors.NewValidationError(
			fmt.Sprintf("force shutdown timeout cannot be negative: %v", options.ForceShutdownTimeout),
			nil,
		)
	}

	return nil
}

func validateAppsConfig(apps []AppConfig) error {
	if len(apps) == 0 {
		return nil // Allow empty apps list
	}

	// Check for duplicate app IDs
	seenIDs := make(map[string]int)
	for i, app := range apps {
		if err := supervisor.ValidateAppID(app.ID); err != nil {
			return errors.NewValidationError(
				fmt.Sprintf("invalid app ID at index %d", i),
				err,
			).WithContext("app_id", app.ID)
		}

		if prevIndex, exists := seenIDs[app.ID]; exists {
			return errors.NewValidationError(
				fmt.Sprintf("duplicate app ID '%s' found at indices %d and %d", app.ID, prevIndex, i),
				nil,
			)
		}
		seenIDs[app.ID] = i

		if err := process.ValidateExecutionConfig(app.Execution); err != nil {
			return errors.NewValidationError(
				fmt.Sprintf("invalid execution configuration at index %d", i),
				err,
			).WithContext("app_id", app.ID)
		}
	}

	return nil
}

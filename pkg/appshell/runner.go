package appshell

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"sync"
	"syscall"
	"time"

	"github.com/ctrl-tools/appctrl-go/pkg/configstore"
	"github.com/ctrl-tools/appctrl-go/pkg/errors"
	"github.com/ctrl-tools/appctrl-go/pkg/hostinspect"
	"github.com/ctrl-tools/appctrl-go/pkg/logging"
	"github.com/ctrl-tools/appctrl-go/pkg/processfile"
	"github.com/ctrl-tools/appctrl-go/pkg/supervisor"
)

// NewConsoleSink returns an event sink that prints process output to
// stdout, one line per event, prefixed with the application id. Stderr
// lines carry an extra tag so the two streams stay distinguishable in a
// single terminal. An embedding GUI installs its own sink instead.
func NewConsoleSink() supervisor.EventSink {
	return supervisor.NewEventSink(supervisor.EventSinkFuncs{
		Output: func(event supervisor.OutputEvent) {
			if event.Stream == supervisor.StreamStderr {
				fmt.Printf("[%s] [stderr] %s\n", event.AppID, event.Line)
				return
			}
			fmt.Printf("[%s] %s\n", event.AppID, event.Line)
		},
		Stopped: func(appID string) {
			fmt.Printf("[%s] -- stopped --\n", appID)
		},
	})
}

// Run is the configuration-driven entry point behind the shell server
// binary. It loads and validates the configuration, assembles the shell
// with a console sink, starts every auto-start application, and then
// blocks until a signal arrives or the run duration expires. On the way
// out it force-stops everything that is still supervised.
func Run(runDuration int, configFile string) error {
	// Load configuration
	config, err := LoadConfigFromFile(configFile)
	if err != nil {
		return errors.NewIOError("failed to load configuration", err).WithContext("config_file", configFile)
	}

	// Validate configuration
	if err := ValidateConfig(config); err != nil {
		return errors.NewValidationError("configuration validation failed", err).WithContext("config_file", configFile)
	}

	// The log level lives in the configuration, so the logger can only
	// exist after the load; load failures surface through the returned
	// error instead.
	zapOptions := logging.DefaultZapOptions()
	zapOptions.Level = config.Shell.LogLevel
	zapLogger, err := logging.NewZapLogger(zapOptions)
	if err != nil {
		return errors.NewInternalError("failed to create logger", err)
	}
	defer zapLogger.Sync()

	logger := logging.NewLogger("shell: ", logging.LogFuncs{
		LogLevelf: zapLogger.LogLevelf,
	})

	logger.Infof("Shell runner starting...")

	// Create context with run duration
	ctx := context.Background()
	if runDuration > 0 {
		logger.Infof("Using RUN DURATION of %d seconds", runDuration)
		ctx, _ = context.WithTimeout(ctx, time.Duration(runDuration)*time.Second)
	}

	// Log configuration file
	logger.Infof("Using CONFIGURATION FILE: %s", configFile)

	logger.Infof("Configuration loaded successfully from %s", configFile)
	logger.Infof("Apps: %d, poll interval: %v", len(config.Apps), config.Shell.PollInterval)

	// Create host inspector and settings store
	inspector := hostinspect.NewInspector(logger)
	store := configstore.NewStore(config.Shell.ConfigBlobPath, logger)

	// Create supervisor with the console sink
	sv := supervisor.NewSupervisor(supervisor.Options{
		PollInterval: config.Shell.PollInterval,
	}, NewConsoleSink(), logger)
	sv.SetExternalKiller(inspector)

	if config.Shell.PIDDirectory != "" {
		sv.SetProcessFileManager(processfile.NewProcessFileManager(processfile.ProcessFileConfig{
			BaseDirectory: config.Shell.PIDDirectory,
		}, logger))
	}

	// Assemble the shell boundary
	shell, err := NewShell(sv, inspector, store, logger)
	if err != nil {
		return errors.NewInternalError("failed to create shell", err)
	}

	logger.Infof("Enabling signal handling...")

	// Enable signal handling
	sig := make(chan os.Signal, 1)
	if runtime.GOOS == "windows" {
		signal.Notify(sig) // Unix signals not implemented on Windows
	} else {
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	}

	logger.Infof("Shell is ready, starting apps...")

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()

		// Start all auto-start applications
		for _, app := range config.Apps {
			if !app.AutoStart {
				continue
			}
			err := sv.Start(ctx, app.ID, app.Execution)
			if err != nil {
				logger.Errorf("Failed to start app %s: %v", app.ID, err)
				// Continue with other apps rather than failing completely
				continue
			}
			logger.Infof("Started app: %s", app.ID)
		}

		logger.Infof("All auto-start apps started, shell is fully operational")
	}()

	// Wait for graceful shutdown or timeout
	select {
	case receivedSignal := <-sig:
		logger.Infof("Shell runner received signal: %v", receivedSignal)
		if runtime.GOOS == "windows" {
			if receivedSignal != os.Interrupt {
				logger.Errorf("Wrong signal received: got %q, want %q\n", receivedSignal, os.Interrupt)
				os.Exit(42)
			}
		}
	case <-ctx.Done():
		logger.Infof("Shell runner timed out")
	}

	logger.Infof("Waiting for app starts to finish...")

	// Wait for starting apps to finish
	wg.Wait()

	logger.Infof("Ready to stop apps...")

	// Stop apps with a fresh context to enable shutdown after timeout
	stopCtx, stopCancel := context.WithTimeout(context.Background(), config.Shell.ForceShutdownTimeout)
	defer stopCancel()
	stopErr := shell.StopAll(stopCtx)

	logger.Infof("Shell runner stopped")

	return stopErr
}

// ValidateConfigFile validates a configuration file without running it.
// Useful for configuration testing and CI validation.
func ValidateConfigFile(configFile string) error {
	// Load configuration
	config, err := LoadConfigFromFile(configFile)
	if err != nil {
		return errors.NewIOError("failed to load configuration", err).WithContext("config_file", configFile)
	}

	// Validate configuration
	if err := ValidateConfig(config); err != nil {
		return errors.NewValidationError("configuration validation failed", err).WithContext("config_file", configFile)
	}

	return nil
}

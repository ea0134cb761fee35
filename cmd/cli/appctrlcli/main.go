package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"
	"time"

	"github.com/ctrl-tools/appctrl-go/pkg/hostinspect"
	"github.com/ctrl-tools/appctrl-go/pkg/logging"
	"github.com/ctrl-tools/appctrl-go/pkg/process"
	"github.com/ctrl-tools/appctrl-go/pkg/supervisor"

	flags "github.com/jessevdk/go-flags"
)

type flagOptions struct {
	ID          string   `long:"id" description:"Application id for the supervised command" default:"cli-app"`
	Command     string   `long:"command" description:"Shell command line to run"`
	WorkDir     string   `long:"workdir" description:"Working directory for the command"`
	Env         []string `long:"env" description:"KEY=VALUE environment entry (repeatable)"`
	LogLevel    string   `long:"log-level" description:"Log level: debug, info, warn, error" default:"info"`
	RunDuration int      `long:"run-duration" description:"Duration in seconds to supervise before stopping (debug feature)"`
}

func main() {
	var opts flagOptions
	var argv []string = os.Args[1:]
	var parser = flags.NewParser(&opts, flags.HelpFlag)
	var err error
	_, err = parser.ParseArgs(argv)
	if err != nil {
		fmt.Printf("Command line flags parsing failed: %v\n", err)
		os.Exit(1)
	}

	if opts.Command == "" {
		fmt.Println("Command is required")
		os.Exit(1)
	}

	zapOptions := logging.DefaultZapOptions()
	zapOptions.Level = opts.LogLevel
	zapLogger, err := logging.NewZapLogger(zapOptions)
	if err != nil {
		fmt.Printf("Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer zapLogger.Sync()

	logger := logging.NewLogger("cli: ", logging.LogFuncs{
		LogLevelf: zapLogger.LogLevelf,
	})

	logger.Infof("opts: %+v", opts)

	ctx := context.Background()
	if opts.RunDuration > 0 {
		logger.Infof("Using RUN DURATION of %d seconds", opts.RunDuration)
		ctx, _ = context.WithTimeout(ctx, time.Duration(opts.RunDuration)*time.Second)
	}

	// The supervised process's output goes straight to the terminal;
	// the stopped event releases the wait below on natural exit.
	stopped := make(chan struct{}, 1)
	sink := supervisor.NewEventSink(supervisor.EventSinkFuncs{
		Output: func(event supervisor.OutputEvent) {
			if event.Stream == supervisor.StreamStderr {
				fmt.Printf("[stderr] %s\n", event.Line)
				return
			}
			fmt.Println(event.Line)
		},
		Stopped: func(appID string) {
			select {
			case stopped <- struct{}{}:
			default:
			}
		},
	})

	sv := supervisor.NewSupervisor(supervisor.Options{}, sink, logger)
	sv.SetExternalKiller(hostinspect.NewInspector(logger))

	err = sv.Start(ctx, opts.ID, process.ExecutionConfig{
		Command:          opts.Command,
		WorkingDirectory: opts.WorkDir,
		Environment:      strings.Join(opts.Env, "\n"),
	})
	if err != nil {
		logger.Errorf("Failed to start command: %v", err)
		os.Exit(1)
	}

	// Enable signal handling
	sig := make(chan os.Signal, 1)
	if runtime.GOOS == "windows" {
		signal.Notify(sig) // Unix signals not implemented on Windows
	} else {
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	}

	// Wait for natural exit, a signal or the run duration
	select {
	case receivedSignal := <-sig:
		logger.Infof("Received signal: %v", receivedSignal)
		if runtime.GOOS == "windows" {
			if receivedSignal != os.Interrupt {
				logger.Errorf("Wrong signal received: got %q, want %q\n", receivedSignal, os.Interrupt)
				os.Exit(42)
			}
		}
	case <-ctx.Done():
		logger.Infof("Run duration elapsed")
	case <-stopped:
		logger.Infof("Process exited on its own")
	}

	// No-op when the process already left supervision
	if err := sv.StopAll(context.Background()); err != nil {
		logger.Errorf("Failed to stop: %v", err)
		os.Exit(1)
	}

	logger.Infof("Done")
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	flags "github.com/jessevdk/go-flags"
)

type flagOptions struct {
	Lines       int    `long:"lines" description:"Number of lines to emit before exiting" default:"3"`
	Message     string `long:"message" description:"Text to emit on each line" default:"echoapp line"`
	IntervalMS  int    `long:"interval-ms" description:"Delay between lines in milliseconds"`
	Stderr      bool   `long:"stderr" description:"Emit every other line to stderr"`
	ExitCode    int    `long:"exit-code" description:"Exit code to finish with (debug feature)"`
	RunDuration int    `long:"run-duration" description:"Seconds to stay alive after emitting (debug feature)"`
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

	fmt.Printf("Running Echoapp, opts: %+v...\n", opts)

	for i := 1; i <= opts.Lines; i++ {
		if opts.Stderr && i%2 == 0 {
			fmt.Fprintf(os.Stderr, "%s %d\n", opts.Message, i)
		} else {
			fmt.Printf("%s %d\n", opts.Message, i)
		}
		if opts.IntervalMS > 0 {
			time.Sleep(time.Duration(opts.IntervalMS) * time.Millisecond)
		}
	}

	if opts.RunDuration > 0 {
		fmt.Printf("Using RUN DURATION of %d seconds\n", opts.RunDuration)
		ctx, _ := context.WithTimeout(context.Background(), time.Duration(opts.RunDuration)*time.Second)

		// Enable signal handling
		sig := make(chan os.Signal, 1)
		if runtime.GOOS == "windows" {
			signal.Notify(sig) // Unix signals not implemented on Windows
		} else {
			signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		}

		// Wait for graceful shutdown or timeout
		select {
		case receivedSignal := <-sig:
			fmt.Printf("Echoapp received signal: %v\n", receivedSignal)
			if runtime.GOOS == "windows" {
				if receivedSignal != os.Interrupt {
					fmt.Printf("Wrong signal received: got %q, want %q\n", receivedSignal, os.Interrupt)
					os.Exit(42)
				}
			}
		case <-ctx.Done():
			fmt.Printf("Echoapp timed out\n")
		}
	}

	fmt.Printf("Echoapp stopped\n")

	if opts.ExitCode != 0 {
		os.Exit(opts.ExitCode)
	}
}

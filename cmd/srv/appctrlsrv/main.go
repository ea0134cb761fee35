package main

import (
	"fmt"
	"os"

	"github.com/ctrl-tools/appctrl-go/pkg/appshell"

	flags "github.com/jessevdk/go-flags"
)

type flagOptions struct {
	ConfigFile   string `long:"config" description:"Path to the shell configuration file"`
	RunDuration  int    `long:"run-duration" description:"Duration in seconds to run the shell (debug feature)"`
	ValidateOnly bool   `long:"validate" description:"Validate the configuration file and exit"`
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

	if opts.ConfigFile == "" {
		fmt.Println("Configuration file is required")
		os.Exit(1)
	}

	if opts.ValidateOnly {
		if err := appshell.ValidateConfigFile(opts.ConfigFile); err != nil {
			fmt.Printf("Configuration is invalid: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("Configuration is valid")
		return
	}

	err = appshell.Run(opts.RunDuration, opts.ConfigFile)
	if err != nil {
		fmt.Printf("Shell run failed: %v\n", err)
		os.Exit(1)
	}
}

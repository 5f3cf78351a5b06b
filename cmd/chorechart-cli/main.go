// Package main provides chorechart-cli, the operator tool for the ChoreChart
// assistant service.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/Rorschach3/chore-chart/internal/logging"
)

// Exit codes.
const (
	exitSuccess = 0
	exitFailure = 1
	exitUsage   = 2
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	// Logs go to stderr so command output stays machine-readable.
	opts := logging.OptionsFromEnv(os.Getenv)
	opts.Stdout = os.Stderr
	if opts.Level == "" {
		opts.Level = "warn"
	}
	logCloser := logging.Setup(opts)
	defer func() { _ = logCloser.Close() }()

	root := newRootCmd(os.Getenv)
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		if errors.Is(err, errFaultReply) {
			return exitFailure
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		if errors.Is(err, errUsage) {
			return exitUsage
		}
		return exitFailure
	}
	return exitSuccess
}

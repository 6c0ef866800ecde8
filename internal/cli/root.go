// Package cli is the flow command tree: running, exporting and inspecting
// pipelines from the shell, and serving the editor API.
package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/heimdex/heimdex-flow/internal/export"
	"github.com/heimdex/heimdex-flow/internal/graph"
	"github.com/heimdex/heimdex-flow/internal/pipeline"
	"github.com/heimdex/heimdex-flow/internal/run"
)

// Exit codes.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitInvalid = 2
)

// usageError marks bad invocations; they exit like invalid input.
type usageError struct{ err error }

func (e *usageError) Error() string { return e.err.Error() }
func (e *usageError) Unwrap() error { return e.err }

// globalFlags are shared by every command and override the environment.
type globalFlags struct {
	logLevel    string
	logFormat   string
	dataDir     string
	scriptsDir  string
	stepTimeout time.Duration
}

// NewRootCommand builds the command tree.
func NewRootCommand(version string) *cobra.Command {
	g := &globalFlags{}

	root := &cobra.Command{
		Use:           "flow",
		Short:         "Run node-graph video pipelines",
		Long:          "flow exports node-graph documents to pipeline configurations and runs them step by step.",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.logLevel, "log-level", "", "log level: debug, info, warn or error")
	pf.StringVar(&g.logFormat, "log-format", "", "log format: json or text")
	pf.StringVar(&g.dataDir, "data-dir", "", "directory for the run history database")
	pf.StringVar(&g.scriptsDir, "scripts-dir", "", "directory holding the step scripts")
	pf.DurationVar(&g.stepTimeout, "step-timeout", 0, "time limit per step (0 for none)")

	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err}
	})

	root.AddCommand(
		newRunCommand(g),
		newExportCommand(),
		newValidateCommand(),
		newDotCommand(),
		newStepsCommand(),
		newDoctorCommand(g),
		newHistoryCommand(g),
		newServeCommand(g, version),
	)
	return root
}

// Execute runs the command tree with args and returns the process exit code.
func Execute(version string, args []string, stdout, stderr io.Writer) int {
	root := NewRootCommand(version)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.Execute()
	if err != nil {
		fmt.Fprintln(stderr, color.RedString("Error:"), err)
	}
	return ExitCode(err)
}

// ExitCode maps a command error onto the process exit code: problems found
// before anything runs are ExitInvalid, everything else is ExitFailure.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var usage *usageError
	switch {
	case errors.As(err, &usage),
		errors.Is(err, export.ErrConfiguration),
		errors.Is(err, export.ErrValidation),
		errors.Is(err, graph.ErrInvalidDocument),
		errors.Is(err, pipeline.ErrMalformed),
		errors.Is(err, run.ErrInvalidRequest):
		return ExitInvalid
	}
	return ExitFailure
}

// exactArgs is cobra.ExactArgs reporting a usage error.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return &usageError{err}
		}
		return nil
	}
}

// Main is the process entry point used by cmd/flow.
func Main(version string) {
	os.Exit(Execute(version, os.Args[1:], os.Stdout, os.Stderr))
}

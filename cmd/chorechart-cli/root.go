package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Rorschach3/chore-chart/internal/version"
	"github.com/Rorschach3/chore-chart/providers"
)

var (
	errUsage      = errors.New("usage error")
	errFaultReply = errors.New("assistant returned a fault")
)

// newRootCmd builds the command tree. getenv supplies the environment overlay
// applied to every loaded config.
func newRootCmd(getenv func(string) string) *cobra.Command {
	root := &cobra.Command{
		Use:           "chorechart-cli",
		Short:         "ChoreChart assistant command line tool",
		Long:          "chorechart-cli validates configs, runs prompts through the assistant pipeline and maintains the request log.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newValidateCmd())
	root.AddCommand(newAskCmd(getenv))
	root.AddCommand(newLogsCmd(getenv))
	root.AddCommand(newBackendsCmd())
	root.AddCommand(newVersionCmd())
	return root
}

func newBackendsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List registered upstream backends",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, "Registered backends:")
			for _, name := range providers.Backends() {
				marker := ""
				if name == providers.BackendOpenAI {
					marker = " (default)"
				}
				fmt.Fprintf(out, "  %s%s\n", name, marker)
			}
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version info",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "chorechart-cli %s\n", version.String())
		},
	}
}

// exactArgs is cobra.ExactArgs with errors that map to the usage exit code.
func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return fmt.Errorf("%w: %v", errUsage, err)
		}
		return nil
	}
}

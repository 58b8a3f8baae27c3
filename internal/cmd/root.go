// Package cmd implements scarab-daemon's cobra command tree: run (the
// daemon entrypoint), status, and attach (a debug client), following the
// teacher's internal/cmd command-composition pattern (NewRootCmd +
// newXCmd() constructors, one file per command).
package cmd

import (
	"github.com/spf13/cobra"

	"scarabd/internal/socketdir"
)

// NewRootCmd builds the scarab-daemon root command with every
// subcommand attached.
func NewRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "scarab-daemon",
		Short: "Scarab's session/terminal-emulation daemon",
		Long: `scarab-daemon owns every pane's PTY, VT100/VT220 + sixel/kitty parsing,
and scrollback, publishing the active session's terminal state into a
shared-memory region a GPU-accelerated client reads without a round trip
through the daemon.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			switch cmd.Name() {
			case "version", "help", "completion":
				return nil
			}
			return socketdir.EnsureDir()
		},
	}

	rootCmd.AddCommand(
		newRunCmd(),
		newRunForegroundCmd(),
		newStatusCmd(),
		newAttachCmd(),
		newVersionCmd(),
	)

	return rootCmd
}

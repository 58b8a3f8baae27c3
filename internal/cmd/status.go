package cmd

import (
	"fmt"
	"net"

	"github.com/muesli/termenv"
	"github.com/spf13/cobra"

	"scarabd/internal/socketdir"
)

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report whether scarab-daemon is running",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := termenv.NewOutput(cmd.OutOrStdout())

			conn, err := net.Dial("unix", socketdir.SocketPath())
			if err != nil {
				fmt.Fprintln(out, out.String("not running").Foreground(termenv.ANSIRed))
				return errStatusNotRunning
			}
			conn.Close()
			fmt.Fprintln(out, out.String("running").Foreground(termenv.ANSIGreen))
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
}

// errStatusNotRunning carries no message through cobra's own error
// printing (the colored line already told the user); main.go maps it
// to a plain exit code 1 without a duplicate "Error:" line.
var errStatusNotRunning = &statusError{}

type statusError struct{}

func (*statusError) Error() string { return "" }

// IsStatusNotRunning reports whether err is the sentinel status.go
// returns when no daemon is listening, for main.go's exit-code mapping.
func IsStatusNotRunning(err error) bool {
	_, ok := err.(*statusError)
	return ok
}

// Command scarab-daemon runs the Scarab session/terminal-emulation
// daemon: see internal/cmd for the subcommand implementations.
package main

import (
	"fmt"
	"os"

	"scarabd/internal/cmd"
)

func main() {
	if err := cmd.NewRootCmd().Execute(); err != nil {
		if cmd.IsStatusNotRunning(err) {
			os.Exit(1)
		}
		fmt.Fprintln(os.Stderr, "scarab-daemon:", err)
		os.Exit(1)
	}
}

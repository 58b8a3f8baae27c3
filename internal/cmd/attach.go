package cmd

import (
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"scarabd/internal/ipc"
	"scarabd/internal/shm"
	"scarabd/internal/socketdir"
)

func newAttachCmd() *cobra.Command {
	var sessionName string

	cmd := &cobra.Command{
		Use:   "attach",
		Short: "Attach to the daemon from this terminal (debug client)",
		Long: `attach is a minimal client for exercising the daemon without a GPU
frontend: it puts the local terminal into raw mode, forwards stdin as
Input messages over the IPC socket, and renders whatever the shared
SharedStateFrame region publishes. It is a debugging aid, not the
intended production client.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !isatty.IsTerminal(os.Stdin.Fd()) {
				return fmt.Errorf("attach requires an interactive terminal on stdin")
			}
			return runAttach(sessionName)
		},
	}

	cmd.Flags().StringVar(&sessionName, "session", "", "Session name to bind (default session if omitted)")
	return cmd
}

func runAttach(sessionName string) error {
	conn, err := net.Dial("unix", socketdir.SocketPath())
	if err != nil {
		return fmt.Errorf("attach: connect to daemon: %w", err)
	}
	defer conn.Close()

	region, err := shm.Open(socketdir.ShmPath())
	if err != nil {
		return fmt.Errorf("attach: open shared-memory region: %w", err)
	}
	defer region.Close()
	reader := shm.NewReader(region)

	fd := int(os.Stdin.Fd())
	prevState, err := term.MakeRaw(fd)
	if err != nil {
		return fmt.Errorf("attach: enter raw mode: %w", err)
	}
	defer term.Restore(fd, prevState)

	stop := make(chan struct{})
	go pumpStdin(conn, sessionName, stop)
	go pumpSnapshots(reader, stop)

	<-stop
	return nil
}

// pumpStdin forwards every byte read from stdin as an Input message,
// binding the connection to sessionName on the first message it sends.
func pumpStdin(conn net.Conn, sessionName string, stop chan struct{}) {
	defer close(stop)
	buf := make([]byte, 4096)
	first := true
	for {
		n, err := os.Stdin.Read(buf)
		if n > 0 {
			msg := ipc.ControlMessage{Kind: ipc.KindInput, Data: append([]byte(nil), buf[:n]...)}
			if first {
				msg.SessionName = sessionName
				first = false
			}
			if werr := ipc.WriteMessage(conn, msg); werr != nil {
				return
			}
		}
		if err != nil {
			if err != io.EOF {
				return
			}
			return
		}
	}
}

// pumpSnapshots polls the shared-memory region at a fixed rate and
// redraws the screen, a crude stand-in for the GPU client's render
// loop that is enough to prove the publish side is reachable end to end.
func pumpSnapshots(reader *shm.Reader, stop chan struct{}) {
	ticker := time.NewTicker(16 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			snap, err := reader.Read()
			if err != nil {
				continue
			}
			renderSnapshot(snap)
		}
	}
}

func renderSnapshot(snap shm.Snapshot) {
	var out []byte
	out = append(out, "\x1b[H"...)
	cols := int(snap.Header.Cols)
	rows := int(snap.Header.Rows)
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			cp := snap.Cells[y*shm.MaxCols+x].Codepoint
			if cp == 0 {
				cp = ' '
			}
			out = append(out, []byte(string(rune(cp)))...)
		}
		out = append(out, "\r\n"...)
	}
	out = append(out, fmt.Sprintf("\x1b[%d;%dH", snap.Header.CursorY+1, snap.Header.CursorX+1)...)
	os.Stdout.Write(out)
}

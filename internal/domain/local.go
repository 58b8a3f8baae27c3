package domain

import (
	"fmt"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"

	"github.com/creack/pty"
)

// Local spawns one PTY-wrapped child process per pane, adapted from the
// teacher's VT.StartPTY/Resize shape but without an embedded virtual
// terminal — the VTE parser (internal/vte) owns terminal emulation here.
type Local struct {
	mu      sync.Mutex
	handles []*localHandle
	closed  bool
}

// NewLocal constructs a Local domain. It holds no OS resources itself
// until Spawn is called.
func NewLocal() *Local {
	return &Local{}
}

func (l *Local) Spawn(cfg Config) (Handle, error) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil, ErrClosed
	}
	l.mu.Unlock()

	cmd := exec.Command(cfg.Command, cfg.Args...)
	cmd.Env = append(os.Environ(), cfg.Env...)

	ptm, err := pty.StartWithSize(cmd, &pty.Winsize{
		Rows: uint16(cfg.Rows),
		Cols: uint16(cfg.Cols),
	})
	if err != nil {
		return nil, fmt.Errorf("start local domain command %q: %w", cfg.Command, err)
	}

	h := &localHandle{ptm: ptm, cmd: cmd}
	l.mu.Lock()
	l.handles = append(l.handles, h)
	l.mu.Unlock()
	return h, nil
}

func (l *Local) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.closed = true
	var firstErr error
	for _, h := range l.handles {
		if err := h.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

type localHandle struct {
	ptm    *os.File
	cmd    *exec.Cmd
	closed int32
}

func (h *localHandle) Read(p []byte) (int, error) {
	return h.ptm.Read(p)
}

func (h *localHandle) Write(p []byte) (int, error) {
	if atomic.LoadInt32(&h.closed) != 0 {
		return 0, ErrClosed
	}
	return h.ptm.Write(p)
}

func (h *localHandle) Resize(cols, rows int) error {
	return pty.Setsize(h.ptm, &pty.Winsize{Rows: uint16(rows), Cols: uint16(cols)})
}

func (h *localHandle) Close() error {
	if !atomic.CompareAndSwapInt32(&h.closed, 0, 1) {
		return nil
	}
	h.ptm.Close()
	if h.cmd.Process != nil {
		h.cmd.Process.Kill()
	}
	h.cmd.Wait()
	return nil
}

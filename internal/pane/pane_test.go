package pane

import (
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"scarabd/internal/domain"
)

// fakeHandle is a minimal in-memory domain.Handle for exercising the
// read loop without a real PTY.
type fakeHandle struct {
	mu     sync.Mutex
	toRead [][]byte
	writes [][]byte
	resize [2]int
	closed bool
}

func (h *fakeHandle) Read(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for len(h.toRead) == 0 {
		if h.closed {
			return 0, io.EOF
		}
		h.mu.Unlock()
		time.Sleep(time.Millisecond)
		h.mu.Lock()
	}
	chunk := h.toRead[0]
	h.toRead = h.toRead[1:]
	n := copy(p, chunk)
	return n, nil
}

func (h *fakeHandle) Write(p []byte) (int, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	cp := append([]byte(nil), p...)
	h.writes = append(h.writes, cp)
	return len(p), nil
}

func (h *fakeHandle) Resize(cols, rows int) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.resize = [2]int{cols, rows}
	return nil
}

func (h *fakeHandle) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = true
	return nil
}

func (h *fakeHandle) push(b []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.toRead = append(h.toRead, b)
}

type fakeDomain struct {
	handle *fakeHandle
}

func (d *fakeDomain) Spawn(domain.Config) (domain.Handle, error) {
	return d.handle, nil
}

func (d *fakeDomain) Close() error { return nil }

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func TestReadLoopFeedsParserAndBumpsSequence(t *testing.T) {
	h := &fakeHandle{}
	d := &fakeDomain{handle: h}

	p, err := Spawn(1, d, Config{Cols: 80, Rows: 24, ScrollbackCapacity: 100})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	defer p.Close()

	before := p.State().Sequence()
	h.push([]byte("hello"))

	waitFor(t, func() bool { return p.State().Sequence() > before })

	_, y := p.State().Cursor()
	_ = y
}

func TestWriteRunsInputHooksAndForwards(t *testing.T) {
	h := &fakeHandle{}
	d := &fakeDomain{handle: h}

	hooks := &recordingHooks{}
	p, err := Spawn(2, d, Config{Cols: 80, Rows: 24, ScrollbackCapacity: 100, Hooks: hooks})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	defer p.Close()

	if err := p.Write([]byte("ls\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	waitFor(t, func() bool {
		h.mu.Lock()
		defer h.mu.Unlock()
		return len(h.writes) == 1
	})
	if !hooks.inputCalled {
		t.Fatal("expected RunInput to be called")
	}
}

func TestWriteAfterCloseFails(t *testing.T) {
	h := &fakeHandle{}
	d := &fakeDomain{handle: h}
	p, err := Spawn(3, d, Config{Cols: 80, Rows: 24, ScrollbackCapacity: 100})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := p.Write([]byte("x")); !errors.Is(err, domain.ErrClosed) {
		t.Fatalf("Write after close error = %v, want wrapping ErrClosed", err)
	}
}

type recordingHooks struct {
	inputCalled  bool
	outputCalled bool
}

func (r *recordingHooks) RunOutput(ID, data []byte) []byte {
	r.outputCalled = true
	return data
}

func (r *recordingHooks) RunInput(ID, data []byte) []byte {
	r.inputCalled = true
	return data
}

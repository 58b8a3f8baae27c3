package domain

import (
	"bufio"
	"strings"
	"testing"
	"time"
)

func TestLocalSpawnWriteReadRoundTrip(t *testing.T) {
	l := NewLocal()
	defer l.Close()

	h, err := l.Spawn(Config{Command: "cat", Cols: 80, Rows: 24})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	defer h.Close()

	if _, err := h.Write([]byte("hello\n")); err != nil {
		t.Fatalf("Write: %v", err)
	}

	done := make(chan string, 1)
	go func() {
		r := bufio.NewReader(h)
		line, _ := r.ReadString('\n')
		done <- strings.TrimSpace(line)
	}()

	select {
	case line := <-done:
		if line != "hello" {
			t.Fatalf("read %q, want %q", line, "hello")
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for pty echo")
	}
}

func TestLocalHandleWriteAfterCloseFails(t *testing.T) {
	l := NewLocal()
	defer l.Close()

	h, err := l.Spawn(Config{Command: "cat", Cols: 80, Rows: 24})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	if err := h.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if _, err := h.Write([]byte("x")); err == nil {
		t.Fatal("expected write after close to fail")
	}
}

func TestLocalResize(t *testing.T) {
	l := NewLocal()
	defer l.Close()

	h, err := l.Spawn(Config{Command: "cat", Cols: 80, Rows: 24})
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	defer h.Close()

	if err := h.Resize(100, 40); err != nil {
		t.Fatalf("Resize: %v", err)
	}
}

package shm

import (
	"path/filepath"
	"testing"
	"time"

	"scarabd/internal/term"
)

func TestDriverPublishesOnlyWhenSequenceAdvances(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame")
	region, err := Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer region.Close()

	ts := term.New(80, 24, 100)
	pub := NewPublisher(region, time.Millisecond)

	publishCount := 0
	src := func() (uint64, *term.TerminalState, bool) {
		publishCount++
		return 7, ts, true
	}

	driver := NewDriver(pub, src, time.Millisecond)
	go driver.Run()

	time.Sleep(5 * time.Millisecond)
	driver.Stop()

	// publishCount tracks how many times the source was polled. ts stays
	// at sequence 0 (nothing was written), which equals the driver's
	// initial lastSeq, so the driver must poll without ever publishing.
	if publishCount == 0 {
		t.Fatal("driver never polled its source")
	}
	if got := region.ptr.Header.SequenceNumber; got != 0 {
		t.Fatalf("frame SequenceNumber = %d, want 0 (sequence never advanced, so no publish)", got)
	}
}

func TestDriverStopReturnsPromptly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame")
	region, err := Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer region.Close()

	ts := term.New(80, 24, 100)
	pub := NewPublisher(region, time.Millisecond)
	src := func() (uint64, *term.TerminalState, bool) { return 1, ts, true }

	driver := NewDriver(pub, src, time.Millisecond)
	go driver.Run()
	time.Sleep(2 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		driver.Stop()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Stop did not return promptly")
	}
}

package shm

import (
	"path/filepath"
	"testing"
	"time"

	"scarabd/internal/term"
)

func TestRegionCreateOpenRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame")

	region, err := Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer region.Close()

	ts := term.New(80, 24, 1000)
	ts.WriteRune('A')
	ts.SetTitle("session")

	pub := NewPublisher(region, time.Millisecond)
	if !pub.Publish(42, ts) {
		t.Fatal("Publish returned false on first call")
	}

	client, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer client.Close()

	reader := NewReader(client)
	snap, err := reader.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	if snap.Header.SequenceNumber%2 != 0 {
		t.Fatalf("expected even sequence number after publish, got %d", snap.Header.SequenceNumber)
	}
	if snap.Header.Cols != 80 || snap.Header.Rows != 24 {
		t.Fatalf("expected 80x24, got %dx%d", snap.Header.Cols, snap.Header.Rows)
	}
	if snap.Header.ActiveSessionHash != 42 {
		t.Fatalf("expected session hash 42, got %d", snap.Header.ActiveSessionHash)
	}
	if got := snap.Cells[cellIndex(0, 0)].Codepoint; got != 'A' {
		t.Fatalf("expected cell (0,0) = 'A', got %q", rune(got))
	}
}

func TestPublisherRateLimitsBursts(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame")
	region, err := Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer region.Close()

	ts := term.New(80, 24, 1000)
	pub := NewPublisher(region, time.Hour)

	if !pub.Publish(1, ts) {
		t.Fatal("expected first publish to succeed")
	}
	if pub.Publish(1, ts) {
		t.Fatal("expected second publish within the rate-limit window to be skipped")
	}
}

func TestReaderRejectsTornReadAfterRetries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "frame")
	region, err := Create(path)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	defer region.Close()

	// Leave the sequence number permanently odd, simulating a writer that
	// crashed mid-publish; Read must give up rather than spin forever.
	region.ptr.Header.SequenceNumber = 1

	reader := NewReader(region)
	if _, err := reader.Read(); err == nil {
		t.Fatal("expected Read to fail against a permanently odd sequence number")
	}
}

func TestBlobStoreRoundTripAndWrap(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blobs")
	store, err := CreateBlobStore(path, 16)
	if err != nil {
		t.Fatalf("CreateBlobStore: %v", err)
	}
	defer store.Close()

	off1, size1, err := store.Store([]byte("abcdefgh"), 0, 0)
	if err != nil {
		t.Fatalf("Store 1: %v", err)
	}
	if off1 != 0 || size1 != 8 {
		t.Fatalf("expected offset 0 size 8, got %d %d", off1, size1)
	}

	off2, size2, err := store.Store([]byte("ijklmnop"), 0, 0)
	if err != nil {
		t.Fatalf("Store 2: %v", err)
	}
	if off2 != 8 || size2 != 8 {
		t.Fatalf("expected offset 8 size 8, got %d %d", off2, size2)
	}

	// A third write no longer fits before the region's end and should wrap
	// back to offset 0, overwriting the first blob.
	off3, _, err := store.Store([]byte("XYZ"), 0, 0)
	if err != nil {
		t.Fatalf("Store 3: %v", err)
	}
	if off3 != 0 {
		t.Fatalf("expected wrap-around to offset 0, got %d", off3)
	}
}

func TestBlobStoreRejectsOversizedBlob(t *testing.T) {
	path := filepath.Join(t.TempDir(), "blobs")
	store, err := CreateBlobStore(path, 8)
	if err != nil {
		t.Fatalf("CreateBlobStore: %v", err)
	}
	defer store.Close()

	if _, _, err := store.Store(make([]byte, 16), 0, 0); err == nil {
		t.Fatal("expected an oversized blob to be rejected")
	}
}

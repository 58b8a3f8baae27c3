package shm

import (
	"fmt"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// DefaultBlobRegionSize is the companion image-blob region's default
// size (spec.md §6: "size configurable (default 64 MiB)").
const DefaultBlobRegionSize = 64 * 1024 * 1024

// BlobStore is a bump-allocated, wrap-around ring buffer over a
// memory-mapped file, implementing vte.ImageBlobStore. It never blocks a
// writer on readers; a blob that would wrap past the write cursor simply
// overwrites older data, matching the publisher's "never block on a slow
// reader" contract — image placements referencing overwritten offsets
// age out via scrollback eviction anyway.
type BlobStore struct {
	mu     sync.Mutex
	file   *os.File
	data   []byte
	cursor int64
}

// CreateBlobStore opens (or truncates) the file at path to size bytes
// and maps it read-write.
func CreateBlobStore(path string, size int64) (*BlobStore, error) {
	if size <= 0 {
		size = DefaultBlobRegionSize
	}
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("shm: open blob region %s: %w", path, err)
	}
	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, fmt.Errorf("shm: truncate blob region %s: %w", path, err)
	}
	data, err := unix.Mmap(int(f.Fd()), 0, int(size), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("shm: mmap blob region %s: %w", path, err)
	}
	return &BlobStore{file: f, data: data}, nil
}

// Store writes buf into the ring at the current cursor, wrapping if
// necessary, and returns its offset/size. A single blob larger than the
// region itself is rejected.
func (b *BlobStore) Store(buf []byte, width, height int) (int64, int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	size := int64(len(buf))
	capacity := int64(len(b.data))
	if size > capacity {
		return 0, 0, fmt.Errorf("shm: blob of %d bytes exceeds region capacity %d", size, capacity)
	}

	if b.cursor+size > capacity {
		b.cursor = 0
	}
	offset := b.cursor
	copy(b.data[offset:offset+size], buf)
	b.cursor += size
	return offset, size, nil
}

// Close unmaps and closes the backing file.
func (b *BlobStore) Close() error {
	if err := unix.Munmap(b.data); err != nil {
		b.file.Close()
		return fmt.Errorf("shm: munmap blob region: %w", err)
	}
	return b.file.Close()
}

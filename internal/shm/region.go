package shm

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Region is a memory-mapped SharedStateFrame backed by a file at a
// stable path, so client processes can map the same region by name
// without going through the daemon.
type Region struct {
	file *os.File
	data []byte
	ptr  *Frame
}

// Create opens (or truncates) the file at path, sizes it to hold one
// Frame, and maps it read-write. The daemon is the sole writer.
func Create(path string) (*Region, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o600)
	if err != nil {
		return nil, fmt.Errorf("shm: open %s: %w", path, err)
	}
	if err := f.Truncate(int64(FrameSize)); err != nil {
		f.Close()
		return nil, fmt.Errorf("shm: truncate %s: %w", path, err)
	}
	return mapRegion(f, unix.PROT_READ|unix.PROT_WRITE)
}

// Open maps an existing region read-only, as a client process would.
func Open(path string) (*Region, error) {
	f, err := os.OpenFile(path, os.O_RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("shm: open %s: %w", path, err)
	}
	return mapRegion(f, unix.PROT_READ)
}

func mapRegion(f *os.File, prot int) (*Region, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, int(FrameSize), prot, unix.MAP_SHARED)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("shm: mmap %s: %w", f.Name(), err)
	}
	return &Region{
		file: f,
		data: data,
		ptr:  (*Frame)(unsafe.Pointer(&data[0])),
	}, nil
}

// Close unmaps the region and closes its backing file.
func (r *Region) Close() error {
	if err := unix.Munmap(r.data); err != nil {
		r.file.Close()
		return fmt.Errorf("shm: munmap: %w", err)
	}
	return r.file.Close()
}

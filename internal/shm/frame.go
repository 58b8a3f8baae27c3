// Package shm implements the daemon's shared-memory publisher: a single
// fixed-size SharedStateFrame region updated via a seqlock protocol, plus
// a companion region for image blobs (spec.md §4.5).
package shm

import "unsafe"

// Bounds on the worst-case-sized cell array embedded in the frame.
const (
	MaxCols            = 512
	MaxRows            = 256
	MaxImagePlacements = 256
)

// CellRaw is the shared-memory wire form of cell.Cell: a fixed 16-byte
// layout clients can read without any daemon-side framework.
type CellRaw struct {
	Codepoint uint32
	Fg        uint32
	Bg        uint32
	Attrs     uint32
}

// ImagePlacementRaw is the shared-memory wire form of term.ImagePlacement.
type ImagePlacementRaw struct {
	ID         uint32
	X, Y       int32
	Width      int32
	Height     int32
	BlobOffset int64
	BlobSize   int64
	Format     int32
	_          int32 // padding to keep the struct's size a multiple of 8
}

// Header carries frame metadata. SequenceNumber must stay first among
// the 64-bit fields so atomic access stays naturally aligned on 32-bit
// platforms.
type Header struct {
	SequenceNumber uint64 // seqlock counter; odd = writer-active

	Version           uint32
	Cols              uint32
	Rows              uint32
	CursorX           uint32
	CursorY           uint32
	ActiveSessionHash uint64

	ImagePlacementCount uint32
	ImagePlacementSeq   uint64

	DirtyFlag uint8
	_         [7]byte // padding
}

// FrameVersion is bumped whenever Frame's layout changes incompatibly.
const FrameVersion = 1

// Frame is the full SharedStateFrame layout, mmap'd directly: a header,
// a worst-case-sized cell array, and an image-placement ring.
type Frame struct {
	Header Header
	Cells  [MaxRows * MaxCols]CellRaw
	Images [MaxImagePlacements]ImagePlacementRaw
}

// FrameSize is the byte size of one Frame, used to size the mmap region.
const FrameSize = unsafe.Sizeof(Frame{})

func cellIndex(x, y int) int { return y*MaxCols + x }

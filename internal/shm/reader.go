package shm

import (
	"fmt"
	"sync/atomic"
)

// MaxReadRetries bounds how many times Reader.Read will retry a torn
// read before giving up (spec.md §8, property 5: "< 10 per accepted
// read" in the steady-state scenario; this is a hard ceiling, not the
// expected case).
const MaxReadRetries = 32

// Reader is a read-only view of a Region, for client processes.
type Reader struct {
	region *Region
}

// NewReader wraps an already-mapped region.
func NewReader(region *Region) *Reader {
	return &Reader{region: region}
}

// Snapshot is a consistent, copied-out view of one published frame.
type Snapshot struct {
	Header Header
	Cells  []CellRaw
	Images []ImagePlacementRaw
}

// Read performs the seqlock read protocol: sample the sequence number,
// copy the frame, sample again, and accept only if both samples match
// and are even (no writer was active during the copy).
func (r *Reader) Read() (Snapshot, error) {
	seqPtr := &r.region.ptr.Header.SequenceNumber

	for attempt := 0; attempt < MaxReadRetries; attempt++ {
		before := atomic.LoadUint64(seqPtr)
		if before%2 != 0 {
			continue // writer active; retry immediately
		}

		frame := r.region.ptr
		// Cells are stored with a fixed MaxCols stride regardless of the
		// active grid's actual column count, so the whole fixed-size array
		// is copied out; Header.Cols/Rows tell the caller which prefix of
		// each row is meaningful.
		snap := Snapshot{
			Header: frame.Header,
			Cells:  append([]CellRaw(nil), frame.Cells[:]...),
		}
		n := frame.Header.ImagePlacementCount
		if n > MaxImagePlacements {
			n = MaxImagePlacements
		}
		snap.Images = append([]ImagePlacementRaw(nil), frame.Images[:n]...)

		after := atomic.LoadUint64(seqPtr)
		if after == before {
			return snap, nil
		}
	}
	return Snapshot{}, fmt.Errorf("shm: torn read after %d attempts", MaxReadRetries)
}

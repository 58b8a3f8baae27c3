package shm

import (
	"sync/atomic"
	"time"

	"scarabd/internal/cell"
	"scarabd/internal/grid"
	"scarabd/internal/term"
)

// Publisher drives the seqlock write protocol for one Region, sourcing
// cell/cursor/image data from whichever pane's TerminalState currently
// happens to be the active one.
type Publisher struct {
	region      *Region
	rateLimit   time.Duration
	lastPublish time.Time
}

// DefaultFrameTick matches spec.md §4.5's "default 120 Hz" coalescing
// rate.
const DefaultFrameTick = time.Second / 120

// NewPublisher wraps region with the seqlock protocol, rate-limited to
// at most one publish per tick.
func NewPublisher(region *Region, tick time.Duration) *Publisher {
	if tick <= 0 {
		tick = DefaultFrameTick
	}
	return &Publisher{region: region, rateLimit: tick}
}

// seqPtr returns a pointer to the header's sequence number for atomic ops.
func (p *Publisher) seqPtr() *uint64 {
	return &p.region.ptr.Header.SequenceNumber
}

// Publish copies ts's active grid, cursor, and image placements into the
// region under the seqlock protocol: bump to odd, copy, bump to even.
// Returns false without copying if called before the rate-limit tick has
// elapsed since the last publish (callers should coalesce bursts
// themselves; this is a second line of defense).
func (p *Publisher) Publish(sessionHash uint64, ts *term.TerminalState) bool {
	now := time.Now()
	if !p.lastPublish.IsZero() && now.Sub(p.lastPublish) < p.rateLimit {
		return false
	}
	p.lastPublish = now

	ts.Mu.RLock()
	defer ts.Mu.RUnlock()

	g := ts.Grid()
	cols, rows := ts.Cols(), ts.Rows()
	cursorX, cursorY := ts.Cursor()
	images := ts.Images()

	seq := p.seqPtr()
	atomic.AddUint64(seq, 1) // now odd: writer-active

	frame := p.region.ptr
	frame.Header.Version = FrameVersion
	frame.Header.Cols = uint32(cols)
	frame.Header.Rows = uint32(rows)
	frame.Header.CursorX = uint32(cursorX)
	frame.Header.CursorY = uint32(cursorY)
	frame.Header.ActiveSessionHash = sessionHash

	copyCells(frame, g, cols, rows)
	copyImages(frame, images)

	atomic.AddUint64(seq, 1) // now even: publish complete
	frame.Header.DirtyFlag = 1
	return true
}

func copyCells(frame *Frame, g *grid.Grid, cols, rows int) {
	if cols > MaxCols {
		cols = MaxCols
	}
	if rows > MaxRows {
		rows = MaxRows
	}
	for y := 0; y < rows; y++ {
		for x := 0; x < cols; x++ {
			c := g.Get(x, y)
			frame.Cells[cellIndex(x, y)] = toRawCell(c)
		}
	}
}

func toRawCell(c cell.Cell) CellRaw {
	return CellRaw{
		Codepoint: uint32(c.Codepoint),
		Fg:        uint32(c.Fg),
		Bg:        uint32(c.Bg),
		Attrs:     uint32(c.Attrs),
	}
}

func copyImages(frame *Frame, images []term.ImagePlacement) {
	n := len(images)
	if n > MaxImagePlacements {
		n = MaxImagePlacements
	}
	for i := 0; i < n; i++ {
		img := images[i]
		frame.Images[i] = ImagePlacementRaw{
			ID:         img.ID,
			X:          int32(img.X),
			Y:          int32(img.Y),
			Width:      int32(img.Width),
			Height:     int32(img.Height),
			BlobOffset: img.BlobOffset,
			BlobSize:   img.BlobSize,
			Format:     int32(img.Format),
		}
	}
	frame.Header.ImagePlacementCount = uint32(n)
	frame.Header.ImagePlacementSeq++
}

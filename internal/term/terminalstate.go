// Package term holds the per-pane terminal model: the live grid, its
// scrollback, cursor and SGR state, and the bookkeeping (sequence counter,
// prompt markers, image placements) that the shared-memory publisher and
// IPC layer observe. The VTE parser (internal/vte) is the only writer;
// everything else borrows.
package term

import (
	"sync"

	"scarabd/internal/cell"
	"scarabd/internal/grid"
	"scarabd/internal/scrollback"
)

// SGR is the current graphic-rendition state the parser applies to newly
// written cells.
type SGR struct {
	Fg    cell.Color
	Bg    cell.Color
	Attrs cell.Attr
}

// Default returns the reset SGR state.
func Default() SGR { return SGR{} }

// CursorPos is a saved/active cursor position plus the SGR state it was
// captured with (DECSC/DECRC save both).
type CursorPos struct {
	X, Y int
	SGR  SGR
}

// TerminalState aggregates one pane's grid, scrollback, and cursor/SGR
// state, plus the sequence counter other subsystems poll or block on.
type TerminalState struct {
	Mu sync.RWMutex

	cols, rows int

	primary *grid.Grid
	alt     *grid.Grid
	altMode bool

	scrollback *scrollback.Buffer

	cursorX, cursorY int
	savedCursor      CursorPos
	sgr              SGR

	scrollTop, scrollBottom int // inclusive, 0-based

	cursorVisible   bool
	bracketedPaste  bool
	mouseMode       int // 0 = off, else 1000/1002/1003/1006
	title           string

	hyperlinkActive bool
	hyperlinkURL    string

	sequence uint64

	markers []PromptMarker
	images  []ImagePlacement
	nextImageID uint32
}

// New creates a TerminalState sized cols x rows with the given scrollback
// capacity.
func New(cols, rows, scrollbackCapacity int) *TerminalState {
	ts := &TerminalState{
		cols:          cols,
		rows:          rows,
		primary:       grid.New(cols, rows),
		alt:           grid.New(cols, rows),
		scrollback:    scrollback.New(scrollbackCapacity),
		scrollTop:     0,
		scrollBottom:  rows - 1,
		cursorVisible: true,
	}
	return ts
}

func (ts *TerminalState) active() *grid.Grid {
	if ts.altMode {
		return ts.alt
	}
	return ts.primary
}

func (ts *TerminalState) Grid() *grid.Grid               { return ts.active() }
func (ts *TerminalState) Scrollback() *scrollback.Buffer  { return ts.scrollback }
func (ts *TerminalState) Cols() int                       { return ts.cols }
func (ts *TerminalState) Rows() int                        { return ts.rows }
func (ts *TerminalState) Cursor() (x, y int)                { return ts.cursorX, ts.cursorY }
func (ts *TerminalState) Sequence() uint64                  { return ts.sequence }
func (ts *TerminalState) AltScreen() bool                   { return ts.altMode }
func (ts *TerminalState) Title() string                     { return ts.title }
func (ts *TerminalState) CursorVisible() bool                { return ts.cursorVisible }
func (ts *TerminalState) BracketedPaste() bool               { return ts.bracketedPaste }
func (ts *TerminalState) MouseMode() int                     { return ts.mouseMode }
func (ts *TerminalState) ScrollRegion() (top, bottom int)    { return ts.scrollTop, ts.scrollBottom }

// bump increments the observable mutation sequence. Every method below that
// mutates visible state calls this exactly once.
func (ts *TerminalState) bump() { ts.sequence++ }

// SetTitle sets the OSC 0/2 title.
func (ts *TerminalState) SetTitle(title string) {
	ts.title = title
	ts.bump()
}

// CurrentSGR returns the current graphic-rendition state.
func (ts *TerminalState) CurrentSGR() SGR { return ts.sgr }

// SetSGR replaces the current graphic-rendition state (used by the SGR CSI
// dispatcher after folding in one or more parameters).
func (ts *TerminalState) SetSGR(s SGR) { ts.sgr = s }

// StartHyperlink/EndHyperlink bracket OSC 8 by recording the active URL on
// the terminal state. Cells written while a link is active do not carry
// the URL; Cell has no hyperlink field.
func (ts *TerminalState) StartHyperlink(url string) {
	ts.hyperlinkActive = true
	ts.hyperlinkURL = url
}
func (ts *TerminalState) EndHyperlink() {
	ts.hyperlinkActive = false
	ts.hyperlinkURL = ""
}

// WriteRune writes r at the cursor with the current SGR, advancing the
// cursor and wrapping at the right margin. Wide handling is left to the
// caller (the parser treats every scalar as one cell, matching spec.md's
// Cell model — no combining-character merge).
func (ts *TerminalState) WriteRune(r rune) {
	if ts.cursorX >= ts.cols {
		ts.lineWrap()
	}
	g := ts.active()
	g.Put(ts.cursorX, ts.cursorY, cell.Cell{
		Codepoint: r,
		Fg:        ts.sgr.Fg,
		Bg:        ts.sgr.Bg,
		Attrs:     ts.sgr.Attrs,
	})
	ts.cursorX++
	ts.bump()
}

func (ts *TerminalState) lineWrap() {
	ts.cursorX = 0
	ts.lineFeedNoBump()
}

// LineFeed performs \n: within the scroll region it scrolls; elsewhere it
// just moves the cursor down within bounds, per spec.md §4.1.
func (ts *TerminalState) LineFeed() {
	ts.lineFeedNoBump()
	ts.bump()
}

func (ts *TerminalState) lineFeedNoBump() {
	if ts.cursorY == ts.scrollBottom {
		ts.scrollUpOne()
		return
	}
	if ts.cursorY < ts.rows-1 {
		ts.cursorY++
	}
}

// scrollUpOne evicts the top line of the scroll region into scrollback
// (only when the region spans the full viewport top, i.e. there's no
// history above it in a split scroll region) and shifts the region up.
func (ts *TerminalState) scrollUpOne() {
	g := ts.active()
	if !ts.altMode && ts.scrollTop == 0 {
		wrapped := false
		g.ScrollUpInRegion(ts.scrollTop, ts.scrollBottom, 1, func(cells []cell.Cell) {
			ts.scrollback.PushLine(cells, wrapped)
		})
		ts.pruneEvictedImages()
		return
	}
	g.ScrollUpInRegion(ts.scrollTop, ts.scrollBottom, 1, nil)
}

// CarriageReturn performs \r: column 0.
func (ts *TerminalState) CarriageReturn() {
	ts.cursorX = 0
	ts.bump()
}

// Backspace moves the cursor left one column, not past column 0.
func (ts *TerminalState) Backspace() {
	if ts.cursorX > 0 {
		ts.cursorX--
	}
	ts.bump()
}

// Tab advances the cursor to the next multiple of 8, clamped to the right
// margin.
func (ts *TerminalState) Tab() {
	next := (ts.cursorX/8 + 1) * 8
	if next >= ts.cols {
		next = ts.cols - 1
	}
	ts.cursorX = next
	ts.bump()
}

// MoveCursor sets the cursor to an absolute position, clamped to bounds.
func (ts *TerminalState) MoveCursor(x, y int) {
	ts.cursorX = clamp(x, 0, ts.cols-1)
	ts.cursorY = clamp(y, 0, ts.rows-1)
	ts.bump()
}

// MoveCursorRelative moves the cursor by (dx, dy), clamped to bounds.
func (ts *TerminalState) MoveCursorRelative(dx, dy int) {
	ts.MoveCursor(ts.cursorX+dx, ts.cursorY+dy)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// SaveCursor implements CSI s / ESC 7: snapshot position and SGR.
func (ts *TerminalState) SaveCursor() {
	ts.savedCursor = CursorPos{X: ts.cursorX, Y: ts.cursorY, SGR: ts.sgr}
}

// RestoreCursor implements CSI u / ESC 8.
func (ts *TerminalState) RestoreCursor() {
	ts.cursorX = ts.savedCursor.X
	ts.cursorY = ts.savedCursor.Y
	ts.sgr = ts.savedCursor.SGR
	ts.bump()
}

// EraseMode mirrors ED/EL mode parameters.
type EraseMode int

const (
	EraseToEnd EraseMode = iota
	EraseToStart
	EraseAll
)

// EraseInDisplay implements ED.
func (ts *TerminalState) EraseInDisplay(mode EraseMode) {
	g := ts.active()
	switch mode {
	case EraseToEnd:
		g.ClearRegion(ts.cursorX, ts.cursorY, ts.cols, ts.cursorY+1)
		g.ClearRegion(0, ts.cursorY+1, ts.cols, ts.rows)
	case EraseToStart:
		g.ClearRegion(0, 0, ts.cols, ts.cursorY)
		g.ClearRegion(0, ts.cursorY, ts.cursorX+1, ts.cursorY+1)
	case EraseAll:
		g.ClearRegion(0, 0, ts.cols, ts.rows)
	}
	ts.bump()
}

// EraseInLine implements EL.
func (ts *TerminalState) EraseInLine(mode EraseMode) {
	g := ts.active()
	switch mode {
	case EraseToEnd:
		g.ClearRegion(ts.cursorX, ts.cursorY, ts.cols, ts.cursorY+1)
	case EraseToStart:
		g.ClearRegion(0, ts.cursorY, ts.cursorX+1, ts.cursorY+1)
	case EraseAll:
		g.ClearRegion(0, ts.cursorY, ts.cols, ts.cursorY+1)
	}
	ts.bump()
}

// ScrollUp implements CSI SU.
func (ts *TerminalState) ScrollUp(n int) {
	ts.active().ScrollUpInRegion(ts.scrollTop, ts.scrollBottom, n, nil)
	ts.bump()
}

// ScrollDown implements CSI SD.
func (ts *TerminalState) ScrollDown(n int) {
	ts.active().ScrollDownInRegion(ts.scrollTop, ts.scrollBottom, n)
	ts.bump()
}

// SetScrollRegion implements DECSTBM. top/bottom are 1-based inclusive as
// received from the wire; 0 means "use the default" for either end.
func (ts *TerminalState) SetScrollRegion(top, bottom int) {
	if top <= 0 {
		top = 1
	}
	if bottom <= 0 || bottom > ts.rows {
		bottom = ts.rows
	}
	if top >= bottom {
		top, bottom = 1, ts.rows
	}
	ts.scrollTop = top - 1
	ts.scrollBottom = bottom - 1
	ts.MoveCursor(0, 0)
}

// InsertLines/DeleteLines/InsertChars/DeleteChars delegate straight to the
// active grid, within the current scroll region.
func (ts *TerminalState) InsertLines(n int) {
	ts.active().InsertLines(ts.cursorY, ts.scrollTop, ts.scrollBottom, n)
	ts.bump()
}
func (ts *TerminalState) DeleteLines(n int) {
	ts.active().DeleteLines(ts.cursorY, ts.scrollTop, ts.scrollBottom, n)
	ts.bump()
}
func (ts *TerminalState) InsertChars(n int) {
	ts.active().InsertChars(ts.cursorX, ts.cursorY, n)
	ts.bump()
}
func (ts *TerminalState) DeleteChars(n int) {
	ts.active().DeleteChars(ts.cursorX, ts.cursorY, n)
	ts.bump()
}

// SetAltScreen toggles the alternate screen buffer (DECSET 1047/1049).
// clearOnEnter clears the alt buffer when entering, as 1049 specifies.
func (ts *TerminalState) SetAltScreen(enabled, clearOnEnter bool) {
	if enabled == ts.altMode {
		return
	}
	ts.altMode = enabled
	if enabled && clearOnEnter {
		ts.alt.ClearRegion(0, 0, ts.cols, ts.rows)
	}
	ts.bump()
}

func (ts *TerminalState) SetCursorVisible(v bool)  { ts.cursorVisible = v; ts.bump() }
func (ts *TerminalState) SetBracketedPaste(v bool) { ts.bracketedPaste = v }
func (ts *TerminalState) SetMouseMode(mode int)    { ts.mouseMode = mode }

// Resize changes dimensions of both buffers (spec.md §4.1: truncate right,
// pad bottom, no reflow) and clamps the cursor and scroll region.
func (ts *TerminalState) Resize(cols, rows int) {
	ts.primary.Resize(cols, rows)
	ts.alt.Resize(cols, rows)
	ts.cols, ts.rows = cols, rows
	ts.cursorX = clamp(ts.cursorX, 0, cols-1)
	ts.cursorY = clamp(ts.cursorY, 0, rows-1)
	if ts.scrollBottom >= rows {
		ts.scrollBottom = rows - 1
	}
	if ts.scrollTop > ts.scrollBottom {
		ts.scrollTop = 0
	}
	ts.bump()
}

// AppendMarker records a prompt marker at the current line and bumps the
// sequence so PromptMarkersUpdate pushes fire (internal/ipc).
func (ts *TerminalState) AppendMarker(m PromptMarker) {
	ts.markers = append(ts.markers, m)
	ts.bump()
}

// Markers returns a copy of the prompt marker list.
func (ts *TerminalState) Markers() []PromptMarker {
	out := make([]PromptMarker, len(ts.markers))
	copy(out, ts.markers)
	return out
}

// CurrentAbsoluteLine returns the absolute line number of the cursor's row,
// for attaching to PromptMarker/ImagePlacement.
func (ts *TerminalState) CurrentAbsoluteLine() int64 {
	return ts.scrollback.NextAbsoluteLine() + int64(ts.cursorY)
}

// AddImagePlacement registers a decoded image at the cursor position and
// returns its assigned ID.
func (ts *TerminalState) AddImagePlacement(p ImagePlacement) uint32 {
	ts.nextImageID++
	p.ID = ts.nextImageID
	p.AbsoluteLine = ts.CurrentAbsoluteLine()
	ts.images = append(ts.images, p)
	ts.bump()
	return p.ID
}

// RemoveImagePlacement deletes an image by ID (Kitty `a=d`).
func (ts *TerminalState) RemoveImagePlacement(id uint32) {
	for i, p := range ts.images {
		if p.ID == id {
			ts.images = append(ts.images[:i], ts.images[i+1:]...)
			ts.bump()
			return
		}
	}
}

// Images returns a copy of the current image-placement list.
func (ts *TerminalState) Images() []ImagePlacement {
	out := make([]ImagePlacement, len(ts.images))
	copy(out, ts.images)
	return out
}

// pruneEvictedImages removes placements anchored to scrollback lines that
// have since fallen off the bounded FIFO.
func (ts *TerminalState) pruneEvictedImages() {
	oldestRetained := ts.scrollback.NextAbsoluteLine() - int64(ts.scrollback.Len())
	kept := ts.images[:0]
	for _, p := range ts.images {
		if p.AbsoluteLine >= oldestRetained {
			kept = append(kept, p)
		}
	}
	ts.images = kept
}

// Package grid implements the daemon's authoritative rows x cols cell
// array, addressed (x, y) with origin top-left. Line.wrapped bits and
// scrollback push are handled by the caller (internal/vte) — Grid itself
// only knows about the live viewport.
package grid

import "scarabd/internal/cell"

// Grid is an ordered 2D array of cells. It is not safe for concurrent
// use; callers (internal/pane) guard it with a reader-writer lock.
type Grid struct {
	cols, rows int
	cells      []cell.Cell
}

// New allocates a cols x rows grid, all cells blank.
func New(cols, rows int) *Grid {
	g := &Grid{cols: cols, rows: rows}
	g.cells = make([]cell.Cell, cols*rows)
	g.clearAll()
	return g
}

func (g *Grid) Cols() int { return g.cols }
func (g *Grid) Rows() int { return g.rows }

func (g *Grid) index(x, y int) (int, bool) {
	if x < 0 || y < 0 || x >= g.cols || y >= g.rows {
		return 0, false
	}
	return y*g.cols + x, true
}

// Get returns the cell at (x, y). Out-of-bounds reads return a blank cell.
func (g *Grid) Get(x, y int) cell.Cell {
	i, ok := g.index(x, y)
	if !ok {
		return cell.Blank
	}
	return g.cells[i]
}

// Put writes c at (x, y). Out-of-bounds writes are silently ignored, since
// the VTE parser clamps cursor positions but still exercises edge
// sequences that could otherwise target an out-of-range column.
func (g *Grid) Put(x, y int, c cell.Cell) {
	if i, ok := g.index(x, y); ok {
		g.cells[i] = c
	}
}

// Row returns a slice view of one row's cells. Callers must not retain it
// across a Resize.
func (g *Grid) Row(y int) []cell.Cell {
	if y < 0 || y >= g.rows {
		return nil
	}
	start := y * g.cols
	return g.cells[start : start+g.cols]
}

func (g *Grid) clearAll() {
	for i := range g.cells {
		g.cells[i] = cell.Blank
	}
}

// ClearRegion blanks cells in [x0,x1) x [y0,y1), clamped to the grid.
func (g *Grid) ClearRegion(x0, y0, x1, y1 int) {
	if x0 < 0 {
		x0 = 0
	}
	if y0 < 0 {
		y0 = 0
	}
	if x1 > g.cols {
		x1 = g.cols
	}
	if y1 > g.rows {
		y1 = g.rows
	}
	for y := y0; y < y1; y++ {
		row := g.Row(y)
		for x := x0; x < x1; x++ {
			row[x] = cell.Blank
		}
	}
}

// LineSink receives lines evicted by ScrollUpInRegion, in top-to-bottom
// order, so the caller can push them into scrollback before they're
// overwritten.
type LineSink func(cells []cell.Cell)

// ScrollUpInRegion moves lines [top,bottom] up by n, evicting the top n
// lines to sink (if non-nil) before they're overwritten, and clears the
// bottom n lines of the region. top/bottom are inclusive row indices.
func (g *Grid) ScrollUpInRegion(top, bottom, n int, sink LineSink) {
	if n <= 0 || top > bottom || top < 0 || bottom >= g.rows {
		return
	}
	regionHeight := bottom - top + 1
	if n > regionHeight {
		n = regionHeight
	}
	if sink != nil {
		for i := 0; i < n; i++ {
			line := make([]cell.Cell, g.cols)
			copy(line, g.Row(top+i))
			sink(line)
		}
	}
	for y := top; y+n <= bottom; y++ {
		copy(g.Row(y), g.Row(y+n))
	}
	g.ClearRegion(0, bottom-n+1, g.cols, bottom+1)
}

// ScrollDownInRegion moves lines [top,bottom] down by n, discarding the
// bottom n lines and clearing the top n.
func (g *Grid) ScrollDownInRegion(top, bottom, n int) {
	if n <= 0 || top > bottom || top < 0 || bottom >= g.rows {
		return
	}
	regionHeight := bottom - top + 1
	if n > regionHeight {
		n = regionHeight
	}
	for y := bottom; y-n >= top; y-- {
		copy(g.Row(y), g.Row(y-n))
	}
	g.ClearRegion(0, top, g.cols, top+n)
}

// Resize changes grid dimensions. Content reflow policy: truncate on the
// right when shrinking columns, pad blank columns when growing; discard
// rows from the bottom when shrinking rows, pad blank rows at the bottom
// when growing. No within-line reflow is performed.
func (g *Grid) Resize(cols, rows int) {
	if cols == g.cols && rows == g.rows {
		return
	}
	next := make([]cell.Cell, cols*rows)
	for i := range next {
		next[i] = cell.Blank
	}
	copyRows := rows
	if g.rows < copyRows {
		copyRows = g.rows
	}
	copyCols := cols
	if g.cols < copyCols {
		copyCols = g.cols
	}
	for y := 0; y < copyRows; y++ {
		srcStart := y * g.cols
		dstStart := y * cols
		copy(next[dstStart:dstStart+copyCols], g.cells[srcStart:srcStart+copyCols])
	}
	g.cols, g.rows = cols, rows
	g.cells = next
}

// InsertLines inserts n blank lines at y within [top,bottom], shifting
// lines below y down and discarding lines pushed past bottom.
func (g *Grid) InsertLines(y, top, bottom, n int) {
	if y < top || y > bottom {
		return
	}
	g.ScrollDownInRegion(y, bottom, n)
}

// DeleteLines removes n lines at y within [top,bottom], shifting lines
// below y up and clearing the exposed bottom lines.
func (g *Grid) DeleteLines(y, top, bottom, n int) {
	if y < top || y > bottom {
		return
	}
	g.ScrollUpInRegion(y, bottom, n, nil)
}

// InsertChars shifts cells at and after x on row y right by n, within the
// row, discarding cells pushed past the right margin.
func (g *Grid) InsertChars(x, y, n int) {
	row := g.Row(y)
	if row == nil || x < 0 || x >= len(row) {
		return
	}
	if n > len(row)-x {
		n = len(row) - x
	}
	copy(row[x+n:], row[x:len(row)-n])
	for i := x; i < x+n; i++ {
		row[i] = cell.Blank
	}
}

// DeleteChars shifts cells after x+n on row y left by n, clearing the
// exposed tail.
func (g *Grid) DeleteChars(x, y, n int) {
	row := g.Row(y)
	if row == nil || x < 0 || x >= len(row) {
		return
	}
	if n > len(row)-x {
		n = len(row) - x
	}
	copy(row[x:], row[x+n:])
	for i := len(row) - n; i < len(row); i++ {
		row[i] = cell.Blank
	}
}

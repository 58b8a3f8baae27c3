// Package scrollback implements the bounded FIFO of evicted grid lines,
// plus the search-over-history state that the client queries to jump
// between matches.
package scrollback

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"scarabd/internal/cell"
)

// DefaultCapacity matches spec.md's default scrollback size.
const DefaultCapacity = 10000

// Line is one retained scrollback line.
type Line struct {
	Cells     []cell.Cell
	Timestamp time.Time
	Wrapped   bool // true if this line continues the previous one
}

// Text renders the line's codepoints as a string, trimming trailing blanks,
// for search matching and best-effort prompt-marker command-text capture.
func (l Line) Text() string {
	var sb strings.Builder
	sb.Grow(len(l.Cells))
	for _, c := range l.Cells {
		sb.WriteRune(c.Codepoint)
	}
	return strings.TrimRight(sb.String(), " ")
}

// SearchState is a snapshot of the active search, returned to clients.
type SearchState struct {
	Query         string
	CurrentIndex  int // index into Results, -1 if no results
	TotalResults  int
	CaseSensitive bool
	UseRegex      bool
}

// Buffer is a bounded FIFO of scrollback lines with an attached search
// cursor. It is not safe for concurrent use; the owning Pane's
// TerminalState lock guards it.
type Buffer struct {
	capacity int
	lines    []Line // ring in insertion order, oldest first
	// evicted counts how many lines have ever been pushed past capacity;
	// used to compute absolute line numbers for PromptMarker.Line.
	evicted int64

	scrollOffset int // 0 = live tail

	query         string
	caseSensitive bool
	useRegex      bool
	results       []int // strictly increasing line indices into lines
	cursor        int   // index into results, -1 if none
	re            *regexp.Regexp
}

// New creates a Buffer with the given capacity. A non-positive capacity
// falls back to DefaultCapacity.
func New(capacity int) *Buffer {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Buffer{capacity: capacity, cursor: -1}
}

func (b *Buffer) Capacity() int { return b.capacity }
func (b *Buffer) Len() int      { return len(b.lines) }

// GetLine returns the line at index i (0 = oldest retained line).
func (b *Buffer) GetLine(i int) (Line, bool) {
	if i < 0 || i >= len(b.lines) {
		return Line{}, false
	}
	return b.lines[i], true
}

// AbsoluteLine returns the absolute line number (including evicted lines)
// for the line currently at index i, used by PromptMarker.Line.
func (b *Buffer) AbsoluteLine(i int) int64 {
	return b.evicted + int64(i)
}

// NextAbsoluteLine returns the absolute line number that would be assigned
// to a line pushed right now (used while still in the live grid, before
// it's evicted to scrollback).
func (b *Buffer) NextAbsoluteLine() int64 {
	return b.evicted + int64(len(b.lines))
}

// PushLine appends a line, evicting the oldest on overflow. Eviction keeps
// scroll_offset pointing at the same visual content: if the user has
// scrolled up (offset > 0), decrement it by exactly one.
func (b *Buffer) PushLine(cells []cell.Cell, wrapped bool) {
	cp := make([]cell.Cell, len(cells))
	copy(cp, cells)
	line := Line{Cells: cp, Timestamp: time.Now(), Wrapped: wrapped}

	if len(b.lines) >= b.capacity {
		b.lines = append(b.lines[1:], line)
		b.evicted++
		if b.scrollOffset > 0 {
			b.scrollOffset--
		}
		b.shiftResultsAfterEvict()
	} else {
		b.lines = append(b.lines, line)
	}

	if b.query != "" {
		b.rerunSearch()
	}
}

func (b *Buffer) shiftResultsAfterEvict() {
	if len(b.results) == 0 {
		return
	}
	out := b.results[:0]
	for _, idx := range b.results {
		idx--
		if idx >= 0 {
			out = append(out, idx)
		}
	}
	b.results = out
	if b.cursor >= len(b.results) {
		b.cursor = len(b.results) - 1
	}
}

// ScrollOffset returns the current scroll offset (0 = live tail).
func (b *Buffer) ScrollOffset() int { return b.scrollOffset }

// IsAtBottom reports whether scroll_offset == 0.
func (b *Buffer) IsAtBottom() bool { return b.scrollOffset == 0 }

// ScrollUp increases scroll_offset by n, saturating at Len().
func (b *Buffer) ScrollUp(n int) {
	b.scrollOffset += n
	if b.scrollOffset > len(b.lines) {
		b.scrollOffset = len(b.lines)
	}
}

// ScrollDown decreases scroll_offset by n, saturating at 0.
func (b *Buffer) ScrollDown(n int) {
	b.scrollOffset -= n
	if b.scrollOffset < 0 {
		b.scrollOffset = 0
	}
}

func (b *Buffer) ScrollToTop()    { b.scrollOffset = len(b.lines) }
func (b *Buffer) ScrollToBottom() { b.scrollOffset = 0 }

// Search rebuilds the match list for query and positions the cursor at the
// first match. On regex compilation failure, the buffer's prior search
// state is left unchanged and an error is returned.
func (b *Buffer) Search(query string, caseSensitive, useRegex bool) error {
	var re *regexp.Regexp
	if useRegex {
		pattern := query
		if !caseSensitive {
			pattern = "(?i)" + pattern
		}
		compiled, err := regexp.Compile(pattern)
		if err != nil {
			return fmt.Errorf("compile search regex %q: %w", query, err)
		}
		re = compiled
	}

	b.query = query
	b.caseSensitive = caseSensitive
	b.useRegex = useRegex
	b.re = re
	b.rerunSearch()
	return nil
}

func (b *Buffer) matches(line Line) bool {
	if b.query == "" {
		return false
	}
	if b.useRegex {
		return b.re.MatchString(line.Text())
	}
	text, q := line.Text(), b.query
	if !b.caseSensitive {
		text = strings.ToLower(text)
		q = strings.ToLower(q)
	}
	return strings.Contains(text, q)
}

func (b *Buffer) rerunSearch() {
	b.results = b.results[:0]
	for i, line := range b.lines {
		if b.matches(line) {
			b.results = append(b.results, i)
		}
	}
	if len(b.results) == 0 {
		b.cursor = -1
	} else {
		b.cursor = 0
	}
}

// NextMatch advances the match cursor, wrapping to the first result.
// Returns the matched line index, or false if there are no results.
func (b *Buffer) NextMatch() (int, bool) {
	if len(b.results) == 0 {
		return 0, false
	}
	b.cursor = (b.cursor + 1) % len(b.results)
	return b.results[b.cursor], true
}

// PrevMatch retreats the match cursor, wrapping to the last result.
func (b *Buffer) PrevMatch() (int, bool) {
	if len(b.results) == 0 {
		return 0, false
	}
	b.cursor = (b.cursor - 1 + len(b.results)) % len(b.results)
	return b.results[b.cursor], true
}

// SearchState returns a snapshot of the active search.
func (b *Buffer) SearchState() SearchState {
	return SearchState{
		Query:         b.query,
		CurrentIndex:  b.cursor,
		TotalResults:  len(b.results),
		CaseSensitive: b.caseSensitive,
		UseRegex:      b.useRegex,
	}
}

// ClearSearch resets search state without touching scrollback content.
func (b *Buffer) ClearSearch() {
	b.query = ""
	b.re = nil
	b.results = nil
	b.cursor = -1
}

package vte

import (
	"testing"

	"scarabd/internal/cell"
	"scarabd/internal/term"
)

func TestSGRAndTruecolor(t *testing.T) {
	ts := term.New(10, 2, 10)
	p := New(ts)

	p.Process([]byte("\x1b[1;31mA\x1b[38;2;0;128;255mB\x1b[0mC\r"))

	a := ts.Grid().Get(0, 0)
	if a.Codepoint != 'A' {
		t.Fatalf("cell 0 = %q, want A", a.Codepoint)
	}
	if !a.Attrs.Has(cell.AttrBold) {
		t.Fatal("cell A should carry AttrBold from SGR 1")
	}
	if a.Fg != standardColor(1) {
		t.Fatalf("cell A fg = %#x, want ANSI red %#x", a.Fg, standardColor(1))
	}

	b := ts.Grid().Get(1, 0)
	if b.Codepoint != 'B' {
		t.Fatalf("cell 1 = %q, want B", b.Codepoint)
	}
	if !b.Attrs.Has(cell.AttrBold) {
		t.Fatal("cell B should still carry AttrBold — SGR 38 doesn't reset attributes")
	}
	if want := cell.RGB(0, 128, 255); b.Fg != want {
		t.Fatalf("cell B fg = %#x, want truecolor %#x", b.Fg, want)
	}

	c := ts.Grid().Get(2, 0)
	if c.Codepoint != 'C' {
		t.Fatalf("cell 2 = %q, want C", c.Codepoint)
	}
	if c.Attrs != 0 || c.Fg != cell.DefaultFg {
		t.Fatalf("cell C should be fully reset by SGR 0, got %+v", c)
	}
}

func TestLineFeedsScrollIntoScrollback(t *testing.T) {
	// A 4x2 grid can only show 2 lines at once, so writing "L1\r\nL2\r\nL3\r\n"
	// pushes L1 then L2 into scrollback, one eviction per linefeed that
	// lands on the bottom scroll-region row.
	ts := term.New(4, 2, 10)
	p := New(ts)

	p.Process([]byte("L1\r\nL2\r\nL3\r\n"))

	if got := ts.Scrollback().Len(); got != 2 {
		t.Fatalf("scrollback length = %d, want 2", got)
	}
	first, ok := ts.Scrollback().GetLine(0)
	if !ok || first.Text() != "L1" {
		t.Fatalf("scrollback line 0 = %+v, want L1", first)
	}
	second, ok := ts.Scrollback().GetLine(1)
	if !ok || second.Text() != "L2" {
		t.Fatalf("scrollback line 1 = %+v, want L2", second)
	}

	row0 := rowText(ts, 0)
	row1 := rowText(ts, 1)
	if row0 != "L3" {
		t.Fatalf("row 0 = %q, want L3", row0)
	}
	if row1 != "" {
		t.Fatalf("row 1 = %q, want blank", row1)
	}
}

func TestOSC133PromptMarkers(t *testing.T) {
	ts := term.New(20, 5, 10)
	p := New(ts)

	p.Process([]byte("\x1b]133;A\x07"))
	p.Process([]byte("\x1b]133;B\x07"))
	p.Process([]byte("echo hi"))
	p.Process([]byte("\x1b]133;C\x07"))
	p.Process([]byte("hi\r\n"))
	p.Process([]byte("\x1b]133;D;0\x07"))

	markers := ts.Markers()
	if len(markers) != 4 {
		t.Fatalf("marker count = %d, want 4: %+v", len(markers), markers)
	}
	wantTypes := []term.MarkerType{term.PromptStart, term.CommandStart, term.OutputStart, term.CommandFinished}
	for i, want := range wantTypes {
		if markers[i].Type != want {
			t.Fatalf("marker %d type = %v, want %v", i, markers[i].Type, want)
		}
	}
	last := markers[3]
	if last.ExitCode == nil || *last.ExitCode != 0 {
		t.Fatalf("CommandFinished exit code = %v, want 0", last.ExitCode)
	}
}

func TestOSCTerminatedByST(t *testing.T) {
	ts := term.New(20, 2, 10)
	p := New(ts)

	p.Process([]byte("\x1b]0;my title\x1b\\"))
	if got := ts.Title(); got != "my title" {
		t.Fatalf("title = %q, want %q", got, "my title")
	}
}

func TestCursorMovementAndErase(t *testing.T) {
	ts := term.New(10, 3, 10)
	p := New(ts)

	p.Process([]byte("ABCDE"))
	p.Process([]byte("\x1b[3D")) // cursor back 3
	x, y := ts.Cursor()
	if x != 2 || y != 0 {
		t.Fatalf("cursor after CUB 3 = (%d,%d), want (2,0)", x, y)
	}

	p.Process([]byte("\x1b[K")) // erase to end of line
	if !ts.Grid().Get(2, 0).IsBlank() || !ts.Grid().Get(4, 0).IsBlank() {
		t.Fatal("EL 0 should blank from cursor to end of line")
	}
	if got := ts.Grid().Get(0, 0).Codepoint; got != 'A' {
		t.Fatalf("col 0 = %q, want A (untouched by EL)", got)
	}
}

func TestMalformedSequenceIsSkippedNotFatal(t *testing.T) {
	ts := term.New(10, 2, 10)
	p := New(ts)

	// Unknown escape introducer 'Z' consumes just the introducer and
	// resumes Ground; an incomplete CSI aborted by a non-final control
	// byte (BEL) is dropped without dispatching or panicking.
	p.Process([]byte("\x1bZ"))
	p.Process([]byte("\x1b[9\x07"))
	p.Process([]byte("X\r"))

	if got := ts.Grid().Get(0, 0).Codepoint; got != 'X' {
		t.Fatalf("cell 0 = %q, want X after malformed sequences were skipped", got)
	}
}

func TestInvalidUTF8ReplacedWithReplacementChar(t *testing.T) {
	ts := term.New(10, 2, 10)
	p := New(ts)

	p.Process([]byte{0xFF, 'A', '\r'})

	if got := ts.Grid().Get(0, 0).Codepoint; got != '�' {
		t.Fatalf("cell 0 = %q, want U+FFFD", got)
	}
	if got := ts.Grid().Get(1, 0).Codepoint; got != 'A' {
		t.Fatalf("cell 1 = %q, want A", got)
	}
}

func rowText(ts *term.TerminalState, y int) string {
	g := ts.Grid()
	out := make([]rune, 0, g.Cols())
	for x := 0; x < g.Cols(); x++ {
		out = append(out, g.Get(x, y).Codepoint)
	}
	s := string(out)
	for len(s) > 0 && s[len(s)-1] == ' ' {
		s = s[:len(s)-1]
	}
	return s
}

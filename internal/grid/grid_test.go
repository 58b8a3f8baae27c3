package grid

import (
	"testing"

	"scarabd/internal/cell"
)

func TestGetPutRoundTrip(t *testing.T) {
	g := New(10, 5)
	g.Put(3, 2, cell.Cell{Codepoint: 'X'})
	if got := g.Get(3, 2).Codepoint; got != 'X' {
		t.Fatalf("Get(3,2) = %q, want X", got)
	}
	// last-writer-wins for overlaps
	g.Put(3, 2, cell.Cell{Codepoint: 'Y'})
	if got := g.Get(3, 2).Codepoint; got != 'Y' {
		t.Fatalf("Get(3,2) = %q, want Y", got)
	}
}

func TestGetOutOfBoundsIsBlank(t *testing.T) {
	g := New(4, 4)
	if !g.Get(100, 100).IsBlank() {
		t.Fatal("out-of-bounds Get should return a blank cell")
	}
}

func TestClearRegionDefaults(t *testing.T) {
	g := New(4, 4)
	g.Put(1, 1, cell.Cell{Codepoint: 'Z', Attrs: cell.AttrBold})
	g.ClearRegion(0, 0, 4, 4)
	if !g.Get(1, 1).IsBlank() {
		t.Fatal("expected cell to be cleared to default")
	}
}

func TestScrollUpInRegionEvicts(t *testing.T) {
	g := New(4, 3)
	g.Put(0, 0, cell.Cell{Codepoint: 'A'})
	g.Put(0, 1, cell.Cell{Codepoint: 'B'})
	g.Put(0, 2, cell.Cell{Codepoint: 'C'})

	var evicted [][]cell.Cell
	g.ScrollUpInRegion(0, 2, 1, func(line []cell.Cell) {
		cp := make([]cell.Cell, len(line))
		copy(cp, line)
		evicted = append(evicted, cp)
	})

	if len(evicted) != 1 || evicted[0][0].Codepoint != 'A' {
		t.Fatalf("expected evicted line to be 'A...', got %+v", evicted)
	}
	if g.Get(0, 0).Codepoint != 'B' {
		t.Fatalf("row 0 after scroll = %q, want B", g.Get(0, 0).Codepoint)
	}
	if g.Get(0, 1).Codepoint != 'C' {
		t.Fatalf("row 1 after scroll = %q, want C", g.Get(0, 1).Codepoint)
	}
	if !g.Get(0, 2).IsBlank() {
		t.Fatal("bottom row should be cleared after scroll")
	}
}

func TestResizeTruncatesAndPads(t *testing.T) {
	g := New(4, 2)
	g.Put(3, 1, cell.Cell{Codepoint: 'Q'})
	g.Resize(2, 3)
	if g.Cols() != 2 || g.Rows() != 3 {
		t.Fatalf("dims after resize = %d,%d", g.Cols(), g.Rows())
	}
	// column 3 was truncated away
	if !g.Get(0, 1).IsBlank() {
		t.Fatal("expected row 1 col 0 to remain blank")
	}
	// new row 2 is padding, must be blank
	if !g.Get(0, 2).IsBlank() {
		t.Fatal("expected padded row to be blank")
	}
}

func TestInsertDeleteChars(t *testing.T) {
	g := New(5, 1)
	for i, r := range "ABCDE" {
		g.Put(i, 0, cell.Cell{Codepoint: r})
	}
	g.InsertChars(1, 0, 2)
	want := "A  BC"
	for i, r := range want {
		got := g.Get(i, 0).Codepoint
		if r == ' ' {
			if !g.Get(i, 0).IsBlank() {
				t.Fatalf("col %d = %q, want blank", i, got)
			}
			continue
		}
		if got != r {
			t.Fatalf("col %d = %q, want %q", i, got, r)
		}
	}

	g2 := New(5, 1)
	for i, r := range "ABCDE" {
		g2.Put(i, 0, cell.Cell{Codepoint: r})
	}
	g2.DeleteChars(1, 0, 2)
	want2 := "ADE  "
	for i, r := range want2 {
		got := g2.Get(i, 0).Codepoint
		if r == ' ' {
			if !g2.Get(i, 0).IsBlank() {
				t.Fatalf("col %d = %q, want blank", i, got)
			}
			continue
		}
		if got != r {
			t.Fatalf("col %d = %q, want %q", i, got, r)
		}
	}
}

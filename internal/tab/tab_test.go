package tab

import (
	"testing"

	"scarabd/internal/domain"
	"scarabd/internal/pane"
)

type fakeHandle struct{ closed bool }

func (h *fakeHandle) Read(p []byte) (int, error)  { return 0, nil }
func (h *fakeHandle) Write(p []byte) (int, error) { return len(p), nil }
func (h *fakeHandle) Resize(int, int) error        { return nil }
func (h *fakeHandle) Close() error                 { h.closed = true; return nil }

type fakeDomain struct{}

func (fakeDomain) Spawn(domain.Config) (domain.Handle, error) { return &fakeHandle{}, nil }
func (fakeDomain) Close() error                                { return nil }

func defaultCfg() pane.Config {
	return pane.Config{Cols: 80, Rows: 24, ScrollbackCapacity: 100}
}

func newTestTab(t *testing.T) *Tab {
	t.Helper()
	tb, err := New(1, "test", fakeDomain{}, defaultCfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return tb
}

func TestNewTabHasOnePane(t *testing.T) {
	tb := newTestTab(t)
	ids := tb.PaneIDs()
	if len(ids) != 1 {
		t.Fatalf("len(PaneIDs()) = %d, want 1", len(ids))
	}
	if tb.ActiveID() != ids[0] {
		t.Fatalf("ActiveID() = %d, want %d", tb.ActiveID(), ids[0])
	}
}

func TestSplitActiveAddsPaneAndFocusesIt(t *testing.T) {
	tb := newTestTab(t)
	newID, err := tb.SplitActive(Horizontal)
	if err != nil {
		t.Fatalf("SplitActive: %v", err)
	}
	if tb.ActiveID() != newID {
		t.Fatalf("ActiveID() = %d, want new pane %d", tb.ActiveID(), newID)
	}
	if len(tb.PaneIDs()) != 2 {
		t.Fatalf("len(PaneIDs()) = %d, want 2", len(tb.PaneIDs()))
	}
}

func TestClosePanePromotesSibling(t *testing.T) {
	tb := newTestTab(t)
	original := tb.ActiveID()
	newID, err := tb.SplitActive(Vertical)
	if err != nil {
		t.Fatalf("SplitActive: %v", err)
	}

	if err := tb.ClosePane(newID); err != nil {
		t.Fatalf("ClosePane: %v", err)
	}
	if len(tb.PaneIDs()) != 1 {
		t.Fatalf("len(PaneIDs()) = %d, want 1", len(tb.PaneIDs()))
	}
	if tb.ActiveID() != original {
		t.Fatalf("ActiveID() = %d, want promoted sibling %d", tb.ActiveID(), original)
	}
}

func TestClosePaneRejectsLastPane(t *testing.T) {
	tb := newTestTab(t)
	only := tb.ActiveID()
	if err := tb.ClosePane(only); err == nil {
		t.Fatal("expected error closing the tab's only pane")
	}
}

func TestFocusRequiresExistingPane(t *testing.T) {
	tb := newTestTab(t)
	if err := tb.Focus(pane.ID(9999)); err == nil {
		t.Fatal("expected error focusing a nonexistent pane")
	}
}

func TestResizeRecursesSplitTree(t *testing.T) {
	tb := newTestTab(t)
	if _, err := tb.SplitActive(Horizontal); err != nil {
		t.Fatalf("SplitActive: %v", err)
	}
	if err := tb.Resize(100, 40); err != nil {
		t.Fatalf("Resize: %v", err)
	}
}

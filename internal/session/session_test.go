package session

import (
	"testing"

	"scarabd/internal/domain"
	"scarabd/internal/pane"
)

type fakeHandle struct{}

func (h *fakeHandle) Read(p []byte) (int, error)  { return 0, nil }
func (h *fakeHandle) Write(p []byte) (int, error) { return len(p), nil }
func (h *fakeHandle) Resize(int, int) error        { return nil }
func (h *fakeHandle) Close() error                 { return nil }

type fakeDomain struct{}

func (fakeDomain) Spawn(domain.Config) (domain.Handle, error) { return &fakeHandle{}, nil }
func (fakeDomain) Close() error                                { return nil }

func defaultCfg() pane.Config {
	return pane.Config{Cols: 80, Rows: 24, ScrollbackCapacity: 100}
}

func newTestSession(t *testing.T) *Session {
	t.Helper()
	s, err := New(NewID(), "test", fakeDomain{}, defaultCfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestNewSessionHasOneTab(t *testing.T) {
	s := newTestSession(t)
	if len(s.TabIDs()) != 1 {
		t.Fatalf("len(TabIDs()) = %d, want 1", len(s.TabIDs()))
	}
}

func TestCreateTabIncrementsID(t *testing.T) {
	s := newTestSession(t)
	id, err := s.CreateTab("second")
	if err != nil {
		t.Fatalf("CreateTab: %v", err)
	}
	if id != 2 {
		t.Fatalf("CreateTab id = %d, want 2 (strictly increasing)", id)
	}
}

func TestCloseTabRejectsLastTab(t *testing.T) {
	s := newTestSession(t)
	ids := s.TabIDs()
	if err := s.CloseTab(ids[0]); err == nil {
		t.Fatal("expected error closing the session's only tab")
	}
}

func TestCloseTabSwitchesActiveIfClosed(t *testing.T) {
	s := newTestSession(t)
	first := s.TabIDs()[0]
	second, err := s.CreateTab("second")
	if err != nil {
		t.Fatalf("CreateTab: %v", err)
	}
	if err := s.CloseTab(second); err != nil {
		t.Fatalf("CloseTab: %v", err)
	}
	active, err := s.ActiveTab()
	if err != nil {
		t.Fatalf("ActiveTab: %v", err)
	}
	if active.ID != first {
		t.Fatalf("ActiveTab().ID = %d, want %d", active.ID, first)
	}
}

func TestSwitchTabRequiresExistence(t *testing.T) {
	s := newTestSession(t)
	if err := s.SwitchTab(9999); err == nil {
		t.Fatal("expected error switching to a nonexistent tab")
	}
}

func TestAttachDetachTracksClientCount(t *testing.T) {
	s := newTestSession(t)
	s.Attach("client-a")
	s.Attach("client-b")
	if s.ClientCount() != 2 {
		t.Fatalf("ClientCount() = %d, want 2", s.ClientCount())
	}
	s.Detach("client-a")
	if s.ClientCount() != 1 {
		t.Fatalf("ClientCount() = %d, want 1", s.ClientCount())
	}
	if s.LastAttachedAt().IsZero() {
		t.Fatal("LastAttachedAt() is zero after attach/detach")
	}
}

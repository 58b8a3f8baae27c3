package sessionstore

import (
	"testing"
	"time"
)

func TestOpenCreateUpsertAndAll(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	rec := Record{
		ID:        "sess-1",
		Name:      "main",
		Shell:     "/bin/bash",
		Cols:      80,
		Rows:      24,
		CreatedAt: time.Unix(1000, 0),
	}
	if err := s.Upsert(rec); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	all, err := s.All()
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 1 || all[0].ID != "sess-1" {
		t.Fatalf("All() = %+v, want one record with id sess-1", all)
	}
}

func TestTouchLastAttached(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	rec := Record{ID: "sess-2", Name: "x", Shell: "/bin/sh", Cols: 80, Rows: 24, CreatedAt: time.Now()}
	if err := s.Upsert(rec); err != nil {
		t.Fatalf("Upsert: %v", err)
	}

	when := time.Unix(5000, 0)
	if err := s.TouchLastAttached("sess-2", when); err != nil {
		t.Fatalf("TouchLastAttached: %v", err)
	}

	all, err := s.All()
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if !all[0].LastAttachedAt.Equal(when) {
		t.Fatalf("LastAttachedAt = %v, want %v", all[0].LastAttachedAt, when)
	}
}

func TestDeleteRemovesRecord(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	rec := Record{ID: "sess-3", Name: "y", Shell: "/bin/sh", Cols: 80, Rows: 24, CreatedAt: time.Now()}
	if err := s.Upsert(rec); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	if err := s.Delete("sess-3"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	all, err := s.All()
	if err != nil {
		t.Fatalf("All: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("All() after delete = %+v, want empty", all)
	}
}

func TestOpenTwiceFailsOnLock(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if _, err := Open(dir); err == nil {
		t.Fatal("expected second Open of the same dir to fail on the advisory lock")
	}
}

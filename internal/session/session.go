// Package session implements the per-session tab registry: tab
// creation/switching/closing and the attached-client bookkeeping used
// to decide when a session is eligible for cleanup (spec.md §4.4).
package session

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"scarabd/internal/domain"
	"scarabd/internal/pane"
	"scarabd/internal/tab"
)

// ID uniquely identifies a session. Clients refer to sessions by this
// opaque value, never by pointer (spec.md §4.8, "Cyclic & shared
// ownership").
type ID string

// NewID generates a fresh session identifier.
func NewID() ID { return ID(uuid.New().String()) }

// Session owns a set of tabs, tracks which one is active, and tracks
// which clients are currently attached.
type Session struct {
	ID        ID
	Name      string
	CreatedAt time.Time

	mu             sync.RWMutex
	tabs           map[uint64]*tab.Tab
	activeTabID    uint64
	nextTabID      uint64
	clients        map[string]struct{}
	lastAttachedAt time.Time

	dom        domain.Domain
	defaultCfg func() pane.Config
}

// New creates a Session with one initial tab, as required by
// create_tab's invariant that a session is never tab-less.
func New(id ID, name string, dom domain.Domain, defaultCfg func() pane.Config) (*Session, error) {
	now := time.Now()
	s := &Session{
		ID:             id,
		Name:           name,
		CreatedAt:      now,
		tabs:           make(map[uint64]*tab.Tab),
		clients:        make(map[string]struct{}),
		lastAttachedAt: now,
		dom:            dom,
		defaultCfg:     defaultCfg,
	}
	if _, err := s.CreateTab(""); err != nil {
		return nil, fmt.Errorf("create session %s: %w", id, err)
	}
	return s, nil
}

// CreateTab allocates next_tab_id and creates a tab with one initial
// pane via the default domain.
func (s *Session) CreateTab(title string) (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextTabID++
	id := s.nextTabID
	if title == "" {
		title = fmt.Sprintf("tab %d", id)
	}

	t, err := tab.New(id, title, s.dom, s.defaultCfg)
	if err != nil {
		s.nextTabID--
		return 0, fmt.Errorf("session %s: create_tab: %w", s.ID, err)
	}
	s.tabs[id] = t
	s.activeTabID = id
	return id, nil
}

// CloseTab destroys the tab's panes and removes it. Rejects closing the
// session's last remaining tab.
func (s *Session) CloseTab(id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.tabs) <= 1 {
		return fmt.Errorf("session %s: cannot close the only tab", s.ID)
	}
	t, ok := s.tabs[id]
	if !ok {
		return fmt.Errorf("session %s: tab %d not found", s.ID, id)
	}
	for _, paneID := range t.PaneIDs() {
		p, err := t.Pane(paneID)
		if err == nil {
			p.Close()
		}
	}
	delete(s.tabs, id)

	if s.activeTabID == id {
		for otherID := range s.tabs {
			s.activeTabID = otherID
			break
		}
	}
	return nil
}

// SwitchTab makes id the active tab; it must already exist.
func (s *Session) SwitchTab(id uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tabs[id]; !ok {
		return fmt.Errorf("session %s: switch_tab: tab %d not found", s.ID, id)
	}
	s.activeTabID = id
	return nil
}

// ActiveTab returns the currently active tab.
func (s *Session) ActiveTab() (*tab.Tab, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tabs[s.activeTabID]
	if !ok {
		return nil, fmt.Errorf("session %s: no active tab", s.ID)
	}
	return t, nil
}

// Tab looks up a tab by id.
func (s *Session) Tab(id uint64) (*tab.Tab, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tabs[id]
	if !ok {
		return nil, fmt.Errorf("session %s: tab %d not found", s.ID, id)
	}
	return t, nil
}

// ActivePane returns the active tab's active pane.
func (s *Session) ActivePane() (*pane.Pane, error) {
	t, err := s.ActiveTab()
	if err != nil {
		return nil, err
	}
	return t.ActivePane()
}

// TabIDs lists every tab currently owned by the session.
func (s *Session) TabIDs() []uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]uint64, 0, len(s.tabs))
	for id := range s.tabs {
		ids = append(ids, id)
	}
	return ids
}

// Attach records clientID as attached and bumps last_attached_at.
func (s *Session) Attach(clientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[clientID] = struct{}{}
	s.lastAttachedAt = time.Now()
}

// Detach removes clientID from the attached set and bumps
// last_attached_at (so cleanup_detached_sessions measures age from the
// most recent detach, not session creation).
func (s *Session) Detach(clientID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, clientID)
	s.lastAttachedAt = time.Now()
}

// ClientCount reports how many clients are currently attached.
func (s *Session) ClientCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.clients)
}

// LastAttachedAt reports the last time a client attached to or detached
// from this session.
func (s *Session) LastAttachedAt() time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastAttachedAt
}

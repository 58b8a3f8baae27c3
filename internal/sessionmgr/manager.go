// Package sessionmgr is the daemon-wide, reader-writer-locked registry
// of live sessions (spec.md §4.4, "SessionManager").
package sessionmgr

import (
	"fmt"
	"sync"
	"time"

	"scarabd/internal/domain"
	"scarabd/internal/pane"
	"scarabd/internal/session"
	"scarabd/internal/sessionstore"
	"scarabd/internal/vte"
)

// DefaultConfig is how a session decides the shell/dimensions and shared
// infrastructure (plugin hooks, image blob storage) for a fresh pane,
// both on create_session and on restore.
type DefaultConfig struct {
	Shell              string
	Cols               int
	Rows               int
	ScrollbackCapacity int
	Hooks              pane.HookChain
	BlobStore          vte.ImageBlobStore
}

func (c DefaultConfig) paneConfig() pane.Config {
	scrollback := c.ScrollbackCapacity
	if scrollback <= 0 {
		scrollback = 10000
	}
	return pane.Config{
		Domain:             domain.Config{Command: c.Shell, Cols: c.Cols, Rows: c.Rows},
		Cols:               c.Cols,
		Rows:               c.Rows,
		ScrollbackCapacity: scrollback,
		Hooks:              c.Hooks,
		BlobStore:          c.BlobStore,
	}
}

// Manager is the thread-safe registry of sessions. It persists only
// metadata through Store; grid content is never restored.
type Manager struct {
	mu       sync.RWMutex
	sessions map[session.ID]*session.Session
	dom      domain.Domain
	store    *sessionstore.Store
}

// New creates an empty Manager backed by dom for pane spawning and store
// for metadata persistence.
func New(dom domain.Domain, store *sessionstore.Store) *Manager {
	return &Manager{
		sessions: make(map[session.ID]*session.Session),
		dom:      dom,
		store:    store,
	}
}

// CreateSession allocates a new session with one initial tab/pane and
// persists its metadata.
func (m *Manager) CreateSession(name string, cfg DefaultConfig) (*session.Session, error) {
	id := session.NewID()
	s, err := session.New(id, name, m.dom, func() pane.Config { return cfg.paneConfig() })
	if err != nil {
		return nil, fmt.Errorf("sessionmgr: create session: %w", err)
	}

	m.mu.Lock()
	m.sessions[id] = s
	m.mu.Unlock()

	if m.store != nil {
		rec := sessionstore.Record{
			ID:        string(id),
			Name:      name,
			Shell:     cfg.Shell,
			Cols:      cfg.Cols,
			Rows:      cfg.Rows,
			CreatedAt: s.CreatedAt,
		}
		if err := m.store.Upsert(rec); err != nil {
			return nil, fmt.Errorf("sessionmgr: persist session %s: %w", id, err)
		}
	}
	return s, nil
}

// Get looks up a session by id.
func (m *Manager) Get(id session.ID) (*session.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, fmt.Errorf("sessionmgr: session %s not found", id)
	}
	return s, nil
}

// GetOrCreateByName looks up a session by its display name, creating one
// with cfg if no session by that name exists yet. Names are not unique
// identifiers in the data model, so this takes the first match; callers
// binding IPC clients to a session by name (the "default" session, or an
// explicitly named one) are the only intended caller.
func (m *Manager) GetOrCreateByName(name string, cfg DefaultConfig) (*session.Session, error) {
	m.mu.RLock()
	for _, s := range m.sessions {
		if s.Name == name {
			m.mu.RUnlock()
			return s, nil
		}
	}
	m.mu.RUnlock()
	return m.CreateSession(name, cfg)
}

// Delete removes a session from the registry and metadata store. It
// does not close the session's tabs/panes — callers that want a clean
// shutdown should do that before calling Delete.
func (m *Manager) Delete(id session.ID) error {
	m.mu.Lock()
	delete(m.sessions, id)
	m.mu.Unlock()

	if m.store != nil {
		if err := m.store.Delete(string(id)); err != nil {
			return fmt.Errorf("sessionmgr: delete session %s: %w", id, err)
		}
	}
	return nil
}

// IDs lists every currently registered session id.
func (m *Manager) IDs() []session.ID {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]session.ID, 0, len(m.sessions))
	for id := range m.sessions {
		ids = append(ids, id)
	}
	return ids
}

// RestoreSessions rehydrates every persisted session record with a fresh
// shell at the given dimensions; prior grid content is intentionally
// not restored (spec.md §4.4).
func (m *Manager) RestoreSessions(shell string, cols, rows int) error {
	if m.store == nil {
		return nil
	}
	records, err := m.store.All()
	if err != nil {
		return fmt.Errorf("sessionmgr: restore sessions: %w", err)
	}

	for _, rec := range records {
		cfg := DefaultConfig{Shell: shell, Cols: cols, Rows: rows}
		s, err := session.New(session.ID(rec.ID), rec.Name, m.dom, func() pane.Config { return cfg.paneConfig() })
		if err != nil {
			return fmt.Errorf("sessionmgr: restore session %s: %w", rec.ID, err)
		}
		m.mu.Lock()
		m.sessions[session.ID(rec.ID)] = s
		m.mu.Unlock()
	}
	return nil
}

// CleanupDetachedSessions deletes sessions with no attached clients
// whose last_attached_at exceeds maxAge.
func (m *Manager) CleanupDetachedSessions(maxAge time.Duration) (int, error) {
	now := time.Now()

	m.mu.RLock()
	var stale []session.ID
	for id, s := range m.sessions {
		if s.ClientCount() == 0 && now.Sub(s.LastAttachedAt()) > maxAge {
			stale = append(stale, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range stale {
		if err := m.Delete(id); err != nil {
			return 0, err
		}
	}
	return len(stale), nil
}

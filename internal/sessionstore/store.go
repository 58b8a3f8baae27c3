// Package sessionstore persists session metadata — never grid content —
// across daemon restarts, so SessionManager.RestoreSessions can
// rehydrate sessions with a fresh shell (spec.md §4.4, SessionManager).
package sessionstore

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"
)

// DBFileName is the metadata database's file name under the daemon's
// state directory.
const DBFileName = "sessions.db"

// Record is the persisted metadata for one session. Grid/scrollback
// content is intentionally absent — spec.md is explicit that restore
// rehydrates a fresh shell, not prior screen contents.
type Record struct {
	ID             string
	Name           string
	Shell          string
	Cols           int
	Rows           int
	CreatedAt      time.Time
	LastAttachedAt time.Time
}

// Store wraps a SQLite database holding session metadata, guarded by an
// on-disk advisory lock so a second daemon instance against the same
// state directory fails fast instead of corrupting the file.
type Store struct {
	db   *sql.DB
	lock *flock.Flock
}

// Open creates (or reuses) the metadata database under stateDir,
// acquiring an exclusive advisory lock for the daemon process's
// lifetime.
func Open(stateDir string) (*Store, error) {
	if err := os.MkdirAll(stateDir, 0o700); err != nil {
		return nil, fmt.Errorf("create session store dir: %w", err)
	}

	lock := flock.New(filepath.Join(stateDir, DBFileName+".lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock session store: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("session store at %s is already locked by another daemon", stateDir)
	}

	dbPath := filepath.Join(stateDir, DBFileName)
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		lock.Unlock()
		return nil, fmt.Errorf("open session store: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		lock.Unlock()
		return nil, fmt.Errorf("enable WAL mode: %w", err)
	}

	s := &Store{db: db, lock: lock}
	if err := s.initSchema(); err != nil {
		s.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) initSchema() error {
	const schema = `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		shell TEXT NOT NULL,
		cols INTEGER NOT NULL,
		rows INTEGER NOT NULL,
		created_at INTEGER NOT NULL,
		last_attached_at INTEGER
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_last_attached ON sessions(last_attached_at);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("init session store schema: %w", err)
	}
	return nil
}

// Close releases the database handle and advisory lock.
func (s *Store) Close() error {
	dbErr := s.db.Close()
	lockErr := s.lock.Unlock()
	if dbErr != nil {
		return fmt.Errorf("close session store db: %w", dbErr)
	}
	if lockErr != nil {
		return fmt.Errorf("release session store lock: %w", lockErr)
	}
	return nil
}

// Upsert inserts or replaces a session's metadata row.
func (s *Store) Upsert(r Record) error {
	_, err := s.db.Exec(`
		INSERT INTO sessions (id, name, shell, cols, rows, created_at, last_attached_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			shell = excluded.shell,
			cols = excluded.cols,
			rows = excluded.rows,
			last_attached_at = excluded.last_attached_at`,
		r.ID, r.Name, r.Shell, r.Cols, r.Rows, r.CreatedAt.Unix(), nullableUnix(r.LastAttachedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert session %s: %w", r.ID, err)
	}
	return nil
}

// Delete removes a session's metadata row.
func (s *Store) Delete(id string) error {
	if _, err := s.db.Exec(`DELETE FROM sessions WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

// TouchLastAttached updates only the last_attached_at column, for the
// common attach/detach bookkeeping path.
func (s *Store) TouchLastAttached(id string, when time.Time) error {
	if _, err := s.db.Exec(`UPDATE sessions SET last_attached_at = ? WHERE id = ?`, when.Unix(), id); err != nil {
		return fmt.Errorf("touch session %s: %w", id, err)
	}
	return nil
}

// All lists every persisted session record.
func (s *Store) All() ([]Record, error) {
	rows, err := s.db.Query(`SELECT id, name, shell, cols, rows, created_at, last_attached_at FROM sessions`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var r Record
		var created int64
		var lastAttached sql.NullInt64
		if err := rows.Scan(&r.ID, &r.Name, &r.Shell, &r.Cols, &r.Rows, &created, &lastAttached); err != nil {
			return nil, fmt.Errorf("scan session row: %w", err)
		}
		r.CreatedAt = time.Unix(created, 0)
		if lastAttached.Valid {
			r.LastAttachedAt = time.Unix(lastAttached.Int64, 0)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func nullableUnix(t time.Time) interface{} {
	if t.IsZero() {
		return nil
	}
	return t.Unix()
}

// Package store provides the durable key-value persistence layer shared by
// the alert queue, the failed-dispatch collection, and the agent memory.
// Values are whole JSON documents written with read-modify-write semantics;
// there is no revision token, so the last writer wins. Sentinel runs
// single-process, which makes that acceptable, but embedders must not point
// two processes at the same store file.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"
)

// Keys of the persisted collections.
const (
	KeyAlerts         = "system_alerts"
	KeyFailedDispatch = "failedAlerts"
	KeyAgentMemory    = "agent_memory"
)

// ErrQuotaExceeded is returned by Write when the store's total byte budget
// would be exceeded. Callers are expected to prune and retry.
var ErrQuotaExceeded = errors.New("store: quota exceeded")

type Store struct {
	db    *sql.DB
	mu    sync.Mutex
	quota int64
}

// Open creates or opens the store at path with the given total byte quota
// across all keys. quotaBytes <= 0 disables quota enforcement.
func Open(path string, quotaBytes int64) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	s := &Store{db: db, quota: quotaBytes}
	if err := s.configure(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) configure() error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := s.db.Exec(p); err != nil {
			return fmt.Errorf("sqlite pragma %q: %w", p, err)
		}
	}
	return nil
}

func (s *Store) initSchema() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		updated_at TEXT NOT NULL DEFAULT (datetime('now'))
	)`)
	if err != nil {
		return fmt.Errorf("init schema: %w", err)
	}
	return nil
}

func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Read returns the value stored under key. An absent key is reported via
// ok=false, not an error.
func (s *Store) Read(key string) (value []byte, ok bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	row := s.db.QueryRow(`SELECT value FROM kv WHERE key = ?`, key)
	if err := row.Scan(&value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("read %s: %w", key, err)
	}
	return value, true, nil
}

// Write stores value under key, replacing any previous value. It returns
// ErrQuotaExceeded when the write would push the total stored bytes past
// the quota; the previous value for the same key does not count against
// the new write.
func (s *Store) Write(key string, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.quota > 0 {
		var others int64
		row := s.db.QueryRow(`SELECT COALESCE(SUM(LENGTH(value)), 0) FROM kv WHERE key != ?`, key)
		if err := row.Scan(&others); err != nil {
			return fmt.Errorf("quota check %s: %w", key, err)
		}
		if others+int64(len(value)) > s.quota {
			return ErrQuotaExceeded
		}
	}

	_, err := s.db.Exec(`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, datetime('now'))
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`, key, value)
	if err != nil {
		return fmt.Errorf("write %s: %w", key, err)
	}
	return nil
}

// Delete removes key. Deleting an absent key is a no-op.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec(`DELETE FROM kv WHERE key = ?`, key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// UsedBytes reports the total size of all stored values.
func (s *Store) UsedBytes() (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var used int64
	row := s.db.QueryRow(`SELECT COALESCE(SUM(LENGTH(value)), 0) FROM kv`)
	if err := row.Scan(&used); err != nil {
		return 0, fmt.Errorf("used bytes: %w", err)
	}
	return used, nil
}

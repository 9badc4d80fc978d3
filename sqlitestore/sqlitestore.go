// Package sqlitestore provides a pure Go SQLite session storage
// implementation built on modernc.org/sqlite.
//
// SQLiteStore keeps serialized session records keyed by name in a
// "sessions" table, each with an optional expiration time stored as Unix
// nanoseconds, and supports periodic cleanup of expired records.
package sqlitestore

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	_ "modernc.org/sqlite"
)

type SQLiteStore struct {
	db     *sql.DB
	now    func() time.Time
	logger *slog.Logger
}

type config func(*SQLiteStore)

// WithClock replaces time.Now when deciding expiry. (default time.Now.)
func WithClock(now func() time.Time) config {
	return config(func(s *SQLiteStore) {
		s.now = now
	})
}

// WithLogger sets the logger used by the cleanup loop. (default discards.)
func WithLogger(logger *slog.Logger) config {
	return config(func(s *SQLiteStore) {
		s.logger = logger
	})
}

// Open opens (creating if needed) the database file at path with a single
// writer connection and WAL journaling, and returns a store over it.
func Open(path string, cfgs ...config) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	s, err := New(db, cfgs...)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New creates and returns a new SQLiteStore over an open database.
// If the sessions table doesn't exist it is created.
func New(db *sql.DB, cfgs ...config) (*SQLiteStore, error) {
	s := &SQLiteStore{
		db:     db,
		now:    time.Now,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, cfg := range cfgs {
		cfg(s)
	}
	return s, createTable(db)
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Get retrieves the data stored under key. Returns the data, a boolean
// indicating whether the key was found and not expired, and an error.
func (s *SQLiteStore) Get(key string) ([]byte, bool, error) {
	stmt := "SELECT data FROM sessions WHERE session_key = ? AND (expires_at IS NULL OR expires_at > ?)"
	row := s.db.QueryRow(stmt, key, s.now().UnixNano())

	var data []byte
	if err := row.Scan(&data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

// Set stores the data under key with an expiration time. If a record with
// the same key already exists, it is overwritten. A zero expiresAt never
// expires.
func (s *SQLiteStore) Set(key string, data []byte, expiresAt time.Time) error {
	var expires sql.NullInt64
	if !expiresAt.IsZero() {
		expires = sql.NullInt64{Int64: expiresAt.UnixNano(), Valid: true}
	}

	stmt := `INSERT INTO sessions(session_key, data, expires_at) VALUES (?, ?, ?)
		ON CONFLICT(session_key) DO UPDATE SET data = excluded.data, expires_at = excluded.expires_at`
	_, err := s.db.Exec(stmt, key, data, expires)
	return err
}

// Delete removes the data stored under key.
func (s *SQLiteStore) Delete(key string) error {
	_, err := s.db.Exec("DELETE FROM sessions WHERE session_key = ?", key)
	return err
}

// Count returns the number of rows held, expired or not.
func (s *SQLiteStore) Count() (int, error) {
	var n int
	err := s.db.QueryRow("SELECT COUNT(*) FROM sessions").Scan(&n)
	return n, err
}

// PeriodicCleanUp runs a loop that periodically deletes expired records.
// The cleanup runs every interval duration until a value is received on
// the stop channel, at which point the loop returns.
func (s *SQLiteStore) PeriodicCleanUp(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.deleteExpired()
		case <-stop:
			return
		}
	}
}

func (s *SQLiteStore) deleteExpired() {
	stmt := "DELETE FROM sessions WHERE expires_at IS NOT NULL AND expires_at <= ?"
	if _, err := s.db.Exec(stmt, s.now().UnixNano()); err != nil {
		s.logger.Warn("session cleanup failed", slog.Any("error", err))
	}
}

func createTable(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS sessions (
			session_key TEXT PRIMARY KEY,
			data BLOB NOT NULL,
			expires_at INTEGER
		)`)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	_, err = db.Exec(`CREATE INDEX IF NOT EXISTS sessions_expires_at_idx ON sessions (expires_at)`)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	return nil
}

// Package mysqlstore provides a MySQL/MariaDB session storage
// implementation.
//
// MySQLStore keeps serialized session records keyed by name in a
// "sessions" table, each with an optional expiration time, and supports
// periodic cleanup of expired records. The *sql.DB must be opened with
// parseTime=true.
package mysqlstore

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

type MySQLStore struct {
	db     *sql.DB
	now    func() time.Time
	logger *slog.Logger
}

type config func(*MySQLStore)

// WithClock replaces time.Now when deciding expiry. (default time.Now.)
func WithClock(now func() time.Time) config {
	return config(func(s *MySQLStore) {
		s.now = now
	})
}

// WithLogger sets the logger used by the cleanup loop. (default discards.)
func WithLogger(logger *slog.Logger) config {
	return config(func(s *MySQLStore) {
		s.logger = logger
	})
}

// New creates and returns a new MySQLStore instance.
// If the sessions table doesn't exist it is created.
func New(db *sql.DB, cfgs ...config) (*MySQLStore, error) {
	s := &MySQLStore{
		db:     db,
		now:    time.Now,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, cfg := range cfgs {
		cfg(s)
	}
	return s, createTable(db)
}

// Get retrieves the data stored under key. Returns the data, a boolean
// indicating whether the key was found and not expired, and an error.
func (s *MySQLStore) Get(key string) ([]byte, bool, error) {
	stmt := "SELECT data FROM sessions WHERE session_key = ? AND (expires_at IS NULL OR expires_at > ?)"
	row := s.db.QueryRow(stmt, key, s.now().UTC())

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
func (s *MySQLStore) Set(key string, data []byte, expiresAt time.Time) error {
	stmt := "INSERT INTO sessions(session_key, data, expires_at) VALUES (?, ?, ?) ON DUPLICATE KEY UPDATE data = VALUES(data), expires_at = VALUES(expires_at)"
	_, err := s.db.Exec(stmt, key, data, nullTime(expiresAt))
	return err
}

// Delete removes the data stored under key.
func (s *MySQLStore) Delete(key string) error {
	stmt := "DELETE FROM sessions WHERE session_key = ?"
	_, err := s.db.Exec(stmt, key)
	return err
}

// PeriodicCleanUp runs a loop that periodically deletes expired records.
// The cleanup runs every interval duration until a value is received on
// the stop channel, at which point the loop returns.
//
// Example usage:
//
//	stop := make(chan struct{})
//	go store.PeriodicCleanUp(time.Minute, stop)
//	...
//	close(stop) // stop the cleanup
func (s *MySQLStore) PeriodicCleanUp(interval time.Duration, stop <-chan struct{}) {
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

func (s *MySQLStore) deleteExpired() {
	stmt := "DELETE FROM sessions WHERE expires_at IS NOT NULL AND expires_at <= ?"
	if _, err := s.db.Exec(stmt, s.now().UTC()); err != nil {
		s.logger.Warn("session cleanup failed", slog.Any("error", err))
	}
}

func nullTime(t time.Time) sql.NullTime {
	if t.IsZero() {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

func createTable(db *sql.DB) error {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS sessions (
			session_key VARCHAR(255) CHARACTER SET utf8mb4 COLLATE utf8mb4_bin PRIMARY KEY,
			data MEDIUMBLOB NOT NULL,
			expires_at DATETIME(6) NULL,
			INDEX sessions_expires_at_idx (expires_at)
		)`)
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}
	return nil
}

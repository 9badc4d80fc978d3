// Package pgstore provides a PostgreSQL session storage implementation
// over a pgx connection pool.
//
// PGStore keeps serialized session records keyed by name, each with an
// optional expiration time, and supports periodic cleanup of expired
// records. The pool is owned by the caller; the store never closes it.
package pgstore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultTable = "sessions"

type PGStore struct {
	pool    *pgxpool.Pool
	table   string
	timeout time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

type config func(*PGStore)

// WithTable sets the table name, optionally schema qualified as
// "schema.table". (default "sessions".)
func WithTable(name string) config {
	return config(func(s *PGStore) {
		if name != "" {
			s.table = name
		}
	})
}

// WithTimeout bounds every query. (default 5s.)
func WithTimeout(timeout time.Duration) config {
	return config(func(s *PGStore) {
		s.timeout = timeout
	})
}

// WithClock replaces time.Now when deciding expiry. (default time.Now.)
func WithClock(now func() time.Time) config {
	return config(func(s *PGStore) {
		s.now = now
	})
}

// WithLogger sets the logger used by the cleanup loop. (default discards.)
func WithLogger(logger *slog.Logger) config {
	return config(func(s *PGStore) {
		s.logger = logger
	})
}

// New creates and returns a new PGStore instance.
// If the sessions table doesn't exist it is created.
func New(pool *pgxpool.Pool, cfgs ...config) (*PGStore, error) {
	if pool == nil {
		return nil, errors.New("pgstore: nil pool")
	}
	s := &PGStore{
		pool:    pool,
		table:   defaultTable,
		timeout: 5 * time.Second,
		now:     time.Now,
		logger:  slog.New(slog.DiscardHandler),
	}
	for _, cfg := range cfgs {
		cfg(s)
	}
	return s, s.createTable()
}

func (s *PGStore) ctx() (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(context.Background(), s.timeout)
	}
	return context.Background(), func() {}
}

func (s *PGStore) ident() string {
	return pgx.Identifier(splitQualified(s.table)).Sanitize()
}

// Get retrieves the data stored under key. Returns the data, a boolean
// indicating whether the key was found and not expired, and an error.
func (s *PGStore) Get(key string) ([]byte, bool, error) {
	ctx, cancel := s.ctx()
	defer cancel()

	stmt := fmt.Sprintf("SELECT data FROM %s WHERE session_key = $1 AND (expires_at IS NULL OR expires_at > $2)", s.ident())

	var data []byte
	err := s.pool.QueryRow(ctx, stmt, key, s.now()).Scan(&data)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return data, true, nil
}

// Set stores the data under key with an expiration time. If a record with
// the same key already exists, it is overwritten. A zero expiresAt never
// expires.
func (s *PGStore) Set(key string, data []byte, expiresAt time.Time) error {
	ctx, cancel := s.ctx()
	defer cancel()

	var expires *time.Time
	if !expiresAt.IsZero() {
		expires = &expiresAt
	}

	stmt := fmt.Sprintf(`INSERT INTO %s (session_key, data, expires_at) VALUES ($1, $2, $3)
		ON CONFLICT (session_key) DO UPDATE SET data = EXCLUDED.data, expires_at = EXCLUDED.expires_at`, s.ident())
	_, err := s.pool.Exec(ctx, stmt, key, data, expires)
	return err
}

// Delete removes the data stored under key.
func (s *PGStore) Delete(key string) error {
	ctx, cancel := s.ctx()
	defer cancel()

	_, err := s.pool.Exec(ctx, fmt.Sprintf("DELETE FROM %s WHERE session_key = $1", s.ident()), key)
	return err
}

// PeriodicCleanUp runs a loop that periodically deletes expired records.
// The cleanup runs every interval duration until a value is received on
// the stop channel, at which point the loop returns.
func (s *PGStore) PeriodicCleanUp(interval time.Duration, stop <-chan struct{}) {
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

func (s *PGStore) deleteExpired() {
	ctx, cancel := s.ctx()
	defer cancel()

	stmt := fmt.Sprintf("DELETE FROM %s WHERE expires_at IS NOT NULL AND expires_at <= $1", s.ident())
	if _, err := s.pool.Exec(ctx, stmt, s.now()); err != nil {
		s.logger.Warn("session cleanup failed", slog.Any("error", err))
	}
}

func (s *PGStore) createTable() error {
	ctx, cancel := s.ctx()
	defer cancel()

	table := s.ident()
	_, err := s.pool.Exec(ctx, fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			session_key TEXT PRIMARY KEY,
			data BYTEA NOT NULL,
			expires_at TIMESTAMPTZ NULL
		)`, table))
	if err != nil {
		return fmt.Errorf("failed to create table: %w", err)
	}

	index := pgx.Identifier{indexName(s.table)}.Sanitize()
	_, err = s.pool.Exec(ctx, fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s ON %s (expires_at)", index, table))
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	return nil
}

func splitQualified(name string) []string {
	if schema, table, ok := strings.Cut(name, "."); ok {
		return []string{schema, table}
	}
	return []string{name}
}

func indexName(table string) string {
	parts := splitQualified(table)
	return parts[len(parts)-1] + "_expires_at_idx"
}

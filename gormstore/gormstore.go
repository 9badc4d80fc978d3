// Package gormstore provides a gorm session storage implementation.
//
// GORMStore keeps serialized session records keyed by name in a
// "sessions" table, each with an optional expiration time, and supports
// periodic cleanup of expired records.
package gormstore

import (
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GORMStore is a gorm backed storage for session records.
type GORMStore struct {
	db     *gorm.DB
	now    func() time.Time
	logger *slog.Logger
}

// session is a single stored record. A NULL expiry never expires.
type session struct {
	Key       string     `gorm:"primaryKey;column:session_key;size:255"`
	Data      []byte     `gorm:"not null"`
	ExpiresAt *time.Time `gorm:"index"`
}

func (session) TableName() string { return "sessions" }

type config func(*GORMStore)

// WithClock replaces time.Now when deciding expiry. (default time.Now.)
func WithClock(now func() time.Time) config {
	return config(func(s *GORMStore) {
		s.now = now
	})
}

// WithLogger sets the logger used by the cleanup loop. (default discards.)
func WithLogger(logger *slog.Logger) config {
	return config(func(s *GORMStore) {
		s.logger = logger
	})
}

// New creates and returns a new GORMStore instance.
// If the sessions table doesn't exist it is created.
func New(db *gorm.DB, cfgs ...config) (*GORMStore, error) {
	s := &GORMStore{
		db:     db,
		now:    time.Now,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, cfg := range cfgs {
		cfg(s)
	}
	return s, db.AutoMigrate(&session{})
}

// Get retrieves the data stored under key. Returns the data, a boolean
// indicating whether the key was found and not expired, and an error.
func (s *GORMStore) Get(key string) ([]byte, bool, error) {
	rec := &session{}
	tx := s.db.
		Where("session_key = ? AND (expires_at IS NULL OR expires_at > ?)", key, s.now().UTC()).
		Limit(1).
		Find(rec)
	if tx.Error != nil || tx.RowsAffected == 0 {
		return nil, false, tx.Error
	}

	return rec.Data, true, nil
}

// Set stores the data under key with an expiration time. If a record with
// the same key already exists, it is overwritten. A zero expiresAt never
// expires.
func (s *GORMStore) Set(key string, data []byte, expiresAt time.Time) error {
	var expires *time.Time
	if !expiresAt.IsZero() {
		utc := expiresAt.UTC()
		expires = &utc
	}

	rec := &session{Key: key, Data: data, ExpiresAt: expires}
	tx := s.db.
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "session_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"data", "expires_at"}),
		}).
		Create(rec)
	return tx.Error
}

// Delete removes the data stored under key.
func (s *GORMStore) Delete(key string) error {
	tx := s.db.Delete(&session{}, "session_key = ?", key)
	return tx.Error
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
func (s *GORMStore) PeriodicCleanUp(interval time.Duration, stop <-chan struct{}) {
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

func (s *GORMStore) deleteExpired() {
	tx := s.db.Delete(&session{}, "expires_at IS NOT NULL AND expires_at <= ?", s.now().UTC())
	if tx.Error != nil {
		s.logger.Warn("session cleanup failed", slog.Any("error", tx.Error))
		return
	}
	if tx.RowsAffected > 0 {
		s.logger.Debug("session cleanup", slog.Int64("deleted", tx.RowsAffected))
	}
}

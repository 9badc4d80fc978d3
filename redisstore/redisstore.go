// Package redisstore provides a redis session storage implementation.
//
// RedisStore keeps serialized session records keyed by name and lets redis
// evict them at their expiration time, so no cleanup loop is needed.
package redisstore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is a redis backed storage for session records.
type RedisStore struct {
	rdb     redis.UniversalClient
	timeout time.Duration
	now     func() time.Time
}

type config func(*RedisStore)

// WithTimeout bounds every redis round trip. (default no timeout.)
func WithTimeout(timeout time.Duration) config {
	return config(func(s *RedisStore) {
		s.timeout = timeout
	})
}

// WithClock replaces time.Now when turning expiration times into TTLs.
func WithClock(now func() time.Time) config {
	return config(func(s *RedisStore) {
		s.now = now
	})
}

// New creates and returns a new RedisStore instance over rdb, which may be
// a single node, sentinel or cluster client.
func New(rdb redis.UniversalClient, cfgs ...config) *RedisStore {
	s := &RedisStore{rdb: rdb, now: time.Now}
	for _, cfg := range cfgs {
		cfg(s)
	}
	return s
}

func (s *RedisStore) ctx() (context.Context, context.CancelFunc) {
	if s.timeout > 0 {
		return context.WithTimeout(context.Background(), s.timeout)
	}
	return context.Background(), func() {}
}

// Get retrieves the data stored under key. Returns the data, a boolean
// indicating whether the key was found, and an error.
func (s *RedisStore) Get(key string) ([]byte, bool, error) {
	ctx, cancel := s.ctx()
	defer cancel()

	data, err := s.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, false, nil
		}
		return nil, false, err
	}

	return data, true, nil
}

// Set stores the data under key with a TTL derived from expiresAt. If a
// record with the same key already exists, it is overwritten. An
// expiresAt already in the past deletes the key; a zero expiresAt stores
// it without TTL.
func (s *RedisStore) Set(key string, data []byte, expiresAt time.Time) error {
	var ttl time.Duration
	if !expiresAt.IsZero() {
		ttl = expiresAt.Sub(s.now())
		if ttl <= 0 {
			return s.Delete(key)
		}
	}

	ctx, cancel := s.ctx()
	defer cancel()
	return s.rdb.Set(ctx, key, data, ttl).Err()
}

// Delete removes the data stored under key. If the key does not exist,
// this is a no-op.
func (s *RedisStore) Delete(key string) error {
	ctx, cancel := s.ctx()
	defer cancel()
	return s.rdb.Del(ctx, key).Err()
}

package xsession

import (
	"io"
	"log/slog"
	"time"
)

const (
	// DefaultName is the store key a container reads and writes.
	DefaultName = "USR"
	// DefaultExpirationIncrement is how far each renewal pushes expiry.
	DefaultExpirationIncrement = 20 * time.Minute
)

// Option configures a Container.
type Option func(*settings)

type settings struct {
	name      string
	increment time.Duration
	grace     time.Duration
	codec     any
	ids       IDGenerator
	now       func() time.Time
	logger    *slog.Logger
	recorder  Recorder
	excludeID bool
}

func defaultSettings() settings {
	return settings{
		name:      DefaultName,
		increment: DefaultExpirationIncrement,
		grace:     -1,
		now:       time.Now,
		logger:    slog.New(slog.DiscardHandler),
		recorder:  nopRecorder{},
	}
}

// WithName sets the store key. (default "USR".)
func WithName(name string) Option {
	return func(s *settings) {
		if name != "" {
			s.name = name
		}
	}
}

// WithExpirationIncrement sets the sliding expiration window. Non-positive
// durations are ignored. (default 20m.)
func WithExpirationIncrement(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.increment = d
		}
	}
}

// WithEvictionGrace sets how long past ExpiresAt the store keeps a record,
// so a Load in that window reports the session expired instead of missing.
// Zero evicts at ExpiresAt. Negative durations are ignored. (default one
// expiration increment.)
func WithEvictionGrace(d time.Duration) Option {
	return func(s *settings) {
		if d >= 0 {
			s.grace = d
		}
	}
}

// WithPayloadCodec sets the payload serializer. Its type parameter must
// match the container's, New panics otherwise. (default GobCodec.)
func WithPayloadCodec[T any](codec PayloadCodec[T]) Option {
	return func(s *settings) {
		s.codec = codec
	}
}

// WithIDGenerator shares g across containers. (default crypto/rand.)
func WithIDGenerator(g IDGenerator) Option {
	return func(s *settings) {
		if g != nil {
			s.ids = g
		}
	}
}

// WithRandom reads session identifiers from r.
func WithRandom(r io.Reader) Option {
	return func(s *settings) {
		s.ids = NewRandomGenerator(r)
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets the logger for lifecycle events. (default discards.)
func WithLogger(logger *slog.Logger) Option {
	return func(s *settings) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithRecorder sets the hook notified of loads, saves and kills.
func WithRecorder(r Recorder) Option {
	return func(s *settings) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithoutIDInDigest leaves the identifier out of the integrity digest, as
// earlier versions of this format did. A record can then be replayed under
// a different identifier without being flagged corrupt.
func WithoutIDInDigest() Option {
	return func(s *settings) {
		s.excludeID = true
	}
}

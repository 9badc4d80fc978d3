package xsession

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Container holds one session record bound to a Store key. It is meant for
// a single access scope (one request, one job) and is not safe for
// concurrent use. Operations never return errors: store failures are
// logged, reported to the Recorder and kept for Err.
type Container[T any] struct {
	name      string
	increment time.Duration
	grace     time.Duration
	store     Store
	codec     PayloadCodec[T]
	ids       IDGenerator
	now       func() time.Time
	logger    *slog.Logger
	recorder  Recorder
	hasher    hasher

	record  *Record[T]
	corrupt bool
	closed  bool
	err     error
}

// New creates a container over store, which may be nil to keep the session
// in memory only. It panics with an error wrapping ErrNotSerializable when
// the zero value of T cannot be round-tripped by the payload codec.
func New[T any](store Store, opts ...Option) *Container[T] {
	s := defaultSettings()
	for _, opt := range opts {
		opt(&s)
	}

	var codec PayloadCodec[T] = GobCodec[T]{}
	if s.codec != nil {
		c, ok := s.codec.(PayloadCodec[T])
		if !ok {
			var zero T
			panic(fmt.Errorf("%w: codec %T cannot encode %T", ErrNotSerializable, s.codec, zero))
		}
		codec = c
	}
	if err := checkSerializable(codec); err != nil {
		panic(err)
	}

	if s.ids == nil {
		s.ids = NewRandomGenerator(nil)
	}

	return &Container[T]{
		name:      s.name,
		increment: s.increment,
		grace:     s.grace,
		store:     store,
		codec:     codec,
		ids:       s.ids,
		now:       s.now,
		logger:    s.logger.With(slog.String("session", s.name)),
		recorder:  s.recorder,
		hasher:    hasher{excludeID: s.excludeID},
		record:    &Record[T]{},
	}
}

// NewFromConfig is New with cfg applied before opts.
func NewFromConfig[T any](cfg Config, store Store, opts ...Option) *Container[T] {
	return New[T](store, append(cfg.Options(), opts...)...)
}

// Initialize discards any held record and starts a new session with a
// fresh identifier and the zero payload, then saves it. If no identifier
// can be generated the container stays uninitialized.
func (c *Container[T]) Initialize() {
	if c.closed {
		return
	}

	id, err := c.ids.NewID()
	if err != nil {
		c.err = err
		c.logger.Warn("session initialize failed", logError(err))
		return
	}

	c.record = &Record[T]{
		ID:        id,
		StartTime: c.now(),
	}
	c.corrupt = false
	c.IncrementExpiration()
	c.record.Initialized = true
	c.logger.Debug("session initialized", slog.String("id", id.String()))
	c.Save()
}

// Load reads the record stored under the container's name and verifies its
// digest. A missing record, or a store failure, initializes a new session
// when autoInitialize is set. A record that fails verification or decoding
// marks the container corrupt and is never written back. A valid record
// that has not expired is renewed and saved; an expired one is left as is.
func (c *Container[T]) Load(autoInitialize bool) {
	if c.closed {
		return
	}
	c.corrupt = false
	defer func() { c.recorder.ObserveLoad(c.State()) }()

	data, found, err := c.get()
	if err != nil {
		c.err = err
		c.logger.Warn("session load failed", logError(err))
	}
	if err != nil || !found {
		c.logger.Debug("session not found", slog.Bool("auto_initialize", autoInitialize))
		if autoInitialize {
			c.Initialize()
		}
		return
	}

	var env envelope
	if err := env.UnmarshalBinary(data); err != nil {
		c.corrupt = true
		c.record = &Record[T]{}
		c.logger.Debug("session corrupt", logError(err))
		return
	}

	if !c.hasher.verify(&env) {
		c.corrupt = true
		// kept for inspection only
		c.record, _ = openRecord(&env, c.codec)
		c.logger.Debug("session corrupt", logError(ErrDigestMismatch))
		return
	}

	record, err := openRecord(&env, c.codec)
	c.record = record
	if err != nil {
		c.corrupt = true
		c.logger.Debug("session corrupt", logError(err))
		return
	}

	if record.expired(c.now()) {
		c.logger.Debug("session expired", slog.Time("expires_at", record.ExpiresAt))
		return
	}

	c.IncrementExpiration()
	c.Save()
	c.logger.Debug("session renewed", slog.Time("expires_at", c.record.ExpiresAt))
}

func (c *Container[T]) get() ([]byte, bool, error) {
	if c.store == nil {
		return nil, false, nil
	}
	return c.store.Get(c.name)
}

// IncrementExpiration slides the expiry to now plus the expiration
// increment. It does not persist.
func (c *Container[T]) IncrementExpiration() {
	if c.closed {
		return
	}
	now := c.now()
	c.record.ExpirationIncrement = c.increment
	c.record.CurrentTime = now
	c.record.ExpiresAt = now.Add(c.increment)
}

// Save recomputes the digest and writes the record to the store. It is a
// no-op without a store, after Close, and while the container is corrupt.
func (c *Container[T]) Save() {
	if c.closed || c.store == nil {
		return
	}
	if c.corrupt {
		c.logger.Warn("session save skipped", logError(ErrDigestMismatch))
		return
	}

	err := c.save()
	c.recorder.ObserveSave(err)
	if err != nil {
		c.err = err
		c.logger.Warn("session save failed", logError(err))
	}
}

func (c *Container[T]) save() error {
	env, err := sealRecord(c.record, c.codec)
	if err != nil {
		return err
	}
	env.digest = c.hasher.sum(env)
	c.record.Digest = env.digest

	data, err := env.MarshalBinary()
	if err != nil {
		return err
	}
	return c.store.Set(c.name, data, c.evictAt())
}

// evictAt is when the store may drop the record. It trails ExpiresAt by the
// eviction grace so a later Load can still see the record and report it
// expired.
func (c *Container[T]) evictAt() time.Time {
	if c.record.ExpiresAt.IsZero() {
		return time.Time{}
	}
	grace := c.grace
	if grace < 0 {
		grace = c.record.ExpirationIncrement
	}
	return c.record.ExpiresAt.Add(grace)
}

// Kill deletes the stored record, ignoring failures, then closes the
// container. Calling it again does nothing.
func (c *Container[T]) Kill() {
	if c.closed {
		return
	}
	if c.store != nil {
		err := c.store.Delete(c.name)
		c.recorder.ObserveKill(err)
		if err != nil {
			c.err = err
			c.logger.Warn("session kill failed", logError(err))
		}
	}
	c.logger.Debug("session killed")
	_ = c.Close()
}

// Close releases the record and the store binding. Afterwards every
// operation is a no-op and accessors return zero values. It always
// returns nil.
func (c *Container[T]) Close() error {
	c.record = &Record[T]{}
	c.store = nil
	c.corrupt = false
	c.closed = true
	return nil
}

// Reset throws away the held session and starts a new one, keeping the
// configured expiration increment.
func (c *Container[T]) Reset() {
	if c.closed {
		return
	}
	c.record = &Record[T]{}
	c.corrupt = false
	c.err = nil
	c.Initialize()
}

// ComputeHash returns the digest the current record would be saved with.
// It returns nil if the payload cannot be encoded.
func (c *Container[T]) ComputeHash() []byte {
	env, err := sealRecord(c.record, c.codec)
	if err != nil {
		c.logger.Warn("session hash failed", logError(err))
		return nil
	}
	return c.hasher.sum(env)
}

func (c *Container[T]) ID() ID { return c.record.ID }

// IDHex renders the identifier as grouped uppercase hexadecimal.
func (c *Container[T]) IDHex() string { return c.record.ID.String() }

// Digest returns a copy of the digest stored with the record.
func (c *Container[T]) Digest() []byte { return bytes.Clone(c.record.Digest) }

func (c *Container[T]) DigestHex() string { return Hex(c.record.Digest) }

func (c *Container[T]) Payload() T { return c.record.Payload }

// PayloadPtr gives in-place access to the payload. The pointer is
// invalidated by Initialize, Load, Reset, Kill and Close.
func (c *Container[T]) PayloadPtr() *T { return &c.record.Payload }

// SetPayload replaces the payload. Call Save to persist it.
func (c *Container[T]) SetPayload(v T) {
	if c.closed {
		return
	}
	c.record.Payload = v
}

func (c *Container[T]) StartTime() time.Time   { return c.record.StartTime }
func (c *Container[T]) CurrentTime() time.Time { return c.record.CurrentTime }
func (c *Container[T]) ExpiresAt() time.Time   { return c.record.ExpiresAt }

// ExpirationIncrement returns the configured sliding window.
func (c *Container[T]) ExpirationIncrement() time.Duration { return c.increment }

// SetExpirationIncrement changes the window used by the next increment.
// Non-positive durations are ignored.
func (c *Container[T]) SetExpirationIncrement(d time.Duration) {
	if d > 0 {
		c.increment = d
	}
}

func (c *Container[T]) Name() string { return c.name }

// Record returns a copy of the held record.
func (c *Container[T]) Record() Record[T] {
	r := *c.record
	r.Digest = bytes.Clone(r.Digest)
	return r
}

// Err returns the last store or identifier failure, joined with ErrClosed
// once the container is closed.
func (c *Container[T]) Err() error {
	if c.closed {
		return errors.Join(ErrClosed, c.err)
	}
	return c.err
}

func (c *Container[T]) IsInitialized() bool { return c.record.Initialized }

// IsExpired reports whether now is past ExpiresAt. A record without an
// expiry is never expired.
func (c *Container[T]) IsExpired() bool { return c.record.expired(c.now()) }

// IsCorrupt reports whether the last Load found a record that failed
// verification or decoding.
func (c *Container[T]) IsCorrupt() bool { return c.corrupt }

// IsError reports whether the session is expired or corrupt.
func (c *Container[T]) IsError() bool { return c.IsExpired() || c.IsCorrupt() }

// State summarizes the flags, corrupt taking precedence.
func (c *Container[T]) State() State {
	switch {
	case c.corrupt:
		return StateCorrupt
	case !c.record.Initialized:
		return StateUninitialized
	case c.IsExpired():
		return StateExpired
	default:
		return StateValid
	}
}

// logError returns an empty attribute for a nil error.
func logError(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.Any("error", err)
}

// Package memstore provides an in-memory session storage implementation.
//
// Memstore keeps serialized session records keyed by name, each with an
// expiration time, and supports periodic cleanup of expired records.
//
// This package is suitable for single-process applications or testing
// scenarios. It is not persistent and does not share state across
// processes.
package memstore

import (
	"bytes"
	"sync"
	"time"
)

// Memstore is an in-memory storage for session records.
// It is safe for concurrent use by multiple goroutines.
type Memstore struct {
	records sync.Map
	now     func() time.Time
}

type entry struct {
	expiresAt time.Time
	data      []byte
}

func (e *entry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && now.After(e.expiresAt)
}

type config func(*Memstore)

// WithClock replaces time.Now when deciding expiry. (default time.Now.)
func WithClock(now func() time.Time) config {
	return config(func(m *Memstore) {
		m.now = now
	})
}

// New creates and returns a new Memstore instance.
func New(cfgs ...config) *Memstore {
	m := &Memstore{now: time.Now}
	for _, cfg := range cfgs {
		cfg(m)
	}
	return m
}

// Get returns a copy of the data stored under key and whether it was found
// and not expired. Expired records are deleted on access.
func (m *Memstore) Get(key string) ([]byte, bool, error) {
	v, ok := m.records.Load(key)
	if !ok {
		return nil, false, nil
	}

	e := v.(*entry)
	if e.expired(m.now()) {
		m.records.CompareAndDelete(key, v)
		return nil, false, nil
	}

	return bytes.Clone(e.data), true, nil
}

// Set stores a copy of data under key until expiresAt, overwriting any
// existing record. A zero expiresAt never expires.
func (m *Memstore) Set(key string, data []byte, expiresAt time.Time) error {
	m.records.Store(key, &entry{expiresAt: expiresAt, data: bytes.Clone(data)})
	return nil
}

// Delete removes the record stored under key. If the key does not exist,
// this is a no-op.
func (m *Memstore) Delete(key string) error {
	m.records.Delete(key)
	return nil
}

// Count returns the number of records held, expired or not.
func (m *Memstore) Count() int {
	n := 0
	m.records.Range(func(_, _ any) bool {
		n++
		return true
	})
	return n
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
func (m *Memstore) PeriodicCleanUp(interval time.Duration, stop <-chan struct{}) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.deleteExpired()
		case <-stop:
			return
		}
	}
}

func (m *Memstore) deleteExpired() {
	now := m.now()
	m.records.Range(func(key, value any) bool {
		if value.(*entry).expired(now) {
			m.records.CompareAndDelete(key, value)
		}
		return true
	})
}

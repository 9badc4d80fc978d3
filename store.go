package xsession

import "time"

// Store defines the interface for session storage backends.
// A Store persists opaque session bytes under a string key. Implementations
// may keep them in memory, databases, caches, or any other durable storage
// system, and must be safe for concurrent use since many containers share
// one store.
type Store interface {
	// Get retrieves the data associated with the given key. It returns
	// the raw data, a boolean indicating whether the key was found (and
	// not expired), and an error if the lookup failed.
	Get(key string) (data []byte, found bool, err error)

	// Set stores the data for the given key until the specified
	// expiration time. An existing value under the same key is
	// overwritten.
	Set(key string, data []byte, expiresAt time.Time) error

	// Delete removes the data associated with the given key. It should
	// not return an error if the key does not exist.
	Delete(key string) error
}

// Prefixed returns a Store that prepends prefix to every key before
// delegating to store. It lets many sessions share one backend while each
// container keeps addressing its single key name.
func Prefixed(store Store, prefix string) Store {
	return &prefixedStore{store: store, prefix: prefix}
}

type prefixedStore struct {
	store  Store
	prefix string
}

func (s *prefixedStore) Get(key string) ([]byte, bool, error) {
	return s.store.Get(s.prefix + key)
}

func (s *prefixedStore) Set(key string, data []byte, expiresAt time.Time) error {
	return s.store.Set(s.prefix+key, data, expiresAt)
}

func (s *prefixedStore) Delete(key string) error {
	return s.store.Delete(s.prefix + key)
}

// Package store defines the storage abstraction backing a watcher's
// resource cache.
//
// Implementations MUST be byte-for-byte transparent: Get must return exactly
// the same []byte previously passed to Set for a key (no prepended/appended
// metadata, no re-encoding, no mutation). Values carry the watcher's own
// entry framing; foreign writes may be treated as corruption and deleted.
//
// Unlike a general-purpose cache, a mirror backend must be enumerable:
// Range visits every live entry so the watcher can serve full snapshots.
package store

// Store is a minimal concurrent-safe byte store with enumeration.
// A single writer (the watcher's delivery loop) mutates it while arbitrary
// readers call Get/Range/Len concurrently.
type Store interface {
	// Get returns (value, true, nil) on hit; (nil, false, nil) on miss.
	// If an IO error happens, return (nil, false, err).
	Get(key string) ([]byte, bool, error)

	// Set stores or replaces value under key.
	Set(key string, value []byte) error

	// Delete removes a key. Deleting a missing key is not an error.
	Delete(key string) error

	// Range visits entries until fn returns false. fn must not call back
	// into the store. Visit order is unspecified.
	Range(fn func(key string, value []byte) bool) error

	// Len reports the number of live entries.
	Len() int

	// Clear drops every entry.
	Clear() error

	// Close releases resources.
	Close() error
}

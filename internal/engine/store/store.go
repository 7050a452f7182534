// Package store provides the flat key-value stores behind the transcript cache.
//
// Values are opaque bytes; entries never expire on their own and live until
// Delete or DeletePrefix removes them.
package store

import "context"

// Error is a string-const error type so sentinels can be declared as constants.
type Error string

func (e Error) Error() string { return string(e) }

const (
	// ErrNotFound is returned by Get when the key is absent.
	ErrNotFound = Error("store: key not found")
	// ErrUnsupportedScheme is returned by Open for unknown cache URLs.
	ErrUnsupportedScheme = Error("store: unsupported cache URL scheme")
)

// Store is a persistent key-value store.
type Store interface {
	// Get returns the value for key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores value under key, replacing any previous value.
	Set(ctx context.Context, key string, value []byte) error
	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// DeletePrefix removes every key starting with prefix and reports how many.
	DeletePrefix(ctx context.Context, prefix string) (int, error)
	// Close releases the backend connection.
	Close() error
}

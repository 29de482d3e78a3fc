// Package store and its subpackages provide the key-value backends used by
// SessionStore to hold serialized session records.
package store

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound indicates that the provided key does not map to any stored
	// value.
	ErrNotFound = errors.New("key not found")
	// ErrUnavailable indicates that the backend could not be reached (e.g.,
	// connection refused, closed client, network timeout). Callers treat this
	// as a transient condition.
	ErrUnavailable = errors.New("backend unavailable")
	// ErrInvalidData indicates that a stored value could not be decoded into a
	// session record.
	ErrInvalidData = errors.New("invalid stored data")
)

// Backend represents an abstract key-value store holding opaque session
// blobs. See the redis and memory subpackages for concrete implementations
// thereof. Implementations must be safe for concurrent use.
type Backend interface {
	// Get returns the value stored at key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)
	// Set stores val at key. A zero ttl stores the value without expiry;
	// otherwise the value expires after ttl.
	Set(ctx context.Context, key string, val []byte, ttl time.Duration) error
	// Del deletes the value stored at key. Deleting a missing key is not an
	// error.
	Del(ctx context.Context, key string) error
}

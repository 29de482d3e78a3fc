package session

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"

	"github.com/swfrench/redis-session-store/store"
)

// Record is a session payload: a mapping from string keys to JSON-encoded
// values. Values are kept in encoded form so that a stored record round-trips
// byte-for-byte regardless of the Go types used to produce it.
type Record map[string]json.RawMessage

// Get decodes the value stored under key into dst, reporting whether the key
// was present.
func (r Record) Get(key string, dst any) (bool, error) {
	raw, ok := r[key]
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return true, fmt.Errorf("failed to decode session value %q: %w", key, err)
	}
	return true, nil
}

// Set encodes v and stores it under key.
func (r Record) Set(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode session value %q: %w", key, err)
	}
	r[key] = raw
	return nil
}

// Keys returns the keys of the record in sorted order.
func (r Record) Keys() []string {
	return slices.Sorted(maps.Keys(r))
}

// encodeRecord serializes r to the blob stored in the backend. Map keys are
// emitted in sorted order, so equal records always encode identically.
func encodeRecord(r Record) ([]byte, error) {
	if r == nil {
		r = Record{}
	}
	val, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session record (error: %v): %w", err, store.ErrInvalidData)
	}
	return val, nil
}

func decodeRecord(val []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(val, &r); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session record (error: %v): %w", err, store.ErrInvalidData)
	}
	if r == nil {
		r = Record{}
	}
	return r, nil
}

// Package memory provides an in-memory store.Backend.
package memory

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/swfrench/redis-session-store/store"
)

type item struct {
	val     []byte
	expires time.Time // zero if the item never expires
}

// Store is a simple in-memory key-value store, for use in tests or
// single-process deployments where an external store is not available.
//
// Values are copied on the way in and out, so callers cannot mutate stored
// data through a retained slice.
//
// Eviction: Expired items are garbage collected on entry to any Store method.
type Store struct {
	// Clock can be overridden in tests (e.g., to test eviction logic).
	Clock     func() time.Time
	mu        sync.Mutex
	items     map[string]*item
	evictions *evictionQueue
}

// New returns a new Store instance.
func New() *Store {
	return &Store{
		Clock:     func() time.Time { return time.Now() },
		items:     make(map[string]*item),
		evictions: newEvictionQueue(),
	}
}

func (ms *Store) evict(t time.Time) {
	for ms.evictions.Len() > 0 && !ms.evictions.Peek().expires.After(t) {
		e := ms.evictions.Pop()
		// The key may have been overwritten with a later (or no) expiry since
		// this entry was queued.
		if it, ok := ms.items[e.key]; ok && it.expires.Equal(e.expires) {
			delete(ms.items, e.key)
		}
	}
}

// Get returns the value stored at key, or store.ErrNotFound if none exists.
func (ms *Store) Get(ctx context.Context, key string) ([]byte, error) {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.evict(ms.Clock())
	it, ok := ms.items[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return bytes.Clone(it.val), nil
}

// Set stores val at key, replacing any existing value. A zero ttl stores the
// value without expiry.
func (ms *Store) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	t := ms.Clock()
	ms.evict(t)
	it := &item{val: bytes.Clone(val)}
	if ttl > 0 {
		it.expires = t.Add(ttl)
		ms.evictions.Push(key, it.expires)
	}
	ms.items[key] = it
	return nil
}

// Del deletes the value stored at key, if any.
func (ms *Store) Del(ctx context.Context, key string) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.evict(ms.Clock())
	// Note: We let the evictions entry get cleaned up lazily.
	delete(ms.items, key)
	return nil
}

// Len returns the number of live items in the store.
func (ms *Store) Len() int {
	ms.mu.Lock()
	defer ms.mu.Unlock()
	ms.evict(ms.Clock())
	return len(ms.items)
}

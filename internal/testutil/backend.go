// Package testutil provides shared helpers for tests.
package testutil

import (
	"bytes"
	"context"
	"sync"
	"time"

	"github.com/swfrench/redis-session-store/store"
)

// Call records a single invocation of a FakeBackend method.
type Call struct {
	Op  string
	Key string
	TTL time.Duration
}

// FakeBackend is a store.Backend holding values in a map, with injectable
// errors and a record of every call made against it.
type FakeBackend struct {
	mu     sync.Mutex
	values map[string][]byte
	calls  []Call
	// GetErr, SetErr and DelErr, when non-nil, are consulted before each
	// respective operation. A non-nil result is returned as-is.
	GetErr func() error
	SetErr func() error
	DelErr func() error
}

// NewFakeBackend returns an empty FakeBackend.
func NewFakeBackend() *FakeBackend {
	return &FakeBackend{values: make(map[string][]byte)}
}

// Unavailable returns an error func reporting store.ErrUnavailable, suitable
// for assignment to GetErr, SetErr or DelErr.
func Unavailable() func() error {
	return func() error { return store.ErrUnavailable }
}

func (fb *FakeBackend) record(op, key string, ttl time.Duration) {
	fb.calls = append(fb.calls, Call{Op: op, Key: key, TTL: ttl})
}

// Get implements store.Backend.
func (fb *FakeBackend) Get(ctx context.Context, key string) ([]byte, error) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.record("get", key, 0)
	if fb.GetErr != nil {
		if err := fb.GetErr(); err != nil {
			return nil, err
		}
	}
	v, ok := fb.values[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	return bytes.Clone(v), nil
}

// Set implements store.Backend. Calls with a non-zero ttl are recorded as
// "setex", mirroring the Redis command used.
func (fb *FakeBackend) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	op := "set"
	if ttl > 0 {
		op = "setex"
	}
	fb.record(op, key, ttl)
	if fb.SetErr != nil {
		if err := fb.SetErr(); err != nil {
			return err
		}
	}
	fb.values[key] = bytes.Clone(val)
	return nil
}

// Del implements store.Backend.
func (fb *FakeBackend) Del(ctx context.Context, key string) error {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.record("del", key, 0)
	if fb.DelErr != nil {
		if err := fb.DelErr(); err != nil {
			return err
		}
	}
	delete(fb.values, key)
	return nil
}

// Put stores val at key directly, without recording a call.
func (fb *FakeBackend) Put(key string, val []byte) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.values[key] = bytes.Clone(val)
}

// Value returns the value stored at key, if any.
func (fb *FakeBackend) Value(key string) ([]byte, bool) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	v, ok := fb.values[key]
	return bytes.Clone(v), ok
}

// Calls returns a copy of the calls recorded so far.
func (fb *FakeBackend) Calls() []Call {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return append([]Call(nil), fb.calls...)
}

// CallsOf returns the recorded calls with the provided op.
func (fb *FakeBackend) CallsOf(op string) []Call {
	var out []Call
	for _, c := range fb.Calls() {
		if c.Op == op {
			out = append(out, c)
		}
	}
	return out
}

// Writes returns the recorded set and setex calls.
func (fb *FakeBackend) Writes() []Call {
	return append(fb.CallsOf("set"), fb.CallsOf("setex")...)
}

// Reset clears recorded calls, leaving stored values intact.
func (fb *FakeBackend) Reset() {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.calls = nil
}

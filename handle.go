package session

import (
	"context"
	"sync"
	"time"
)

type state int

const (
	unloaded state = iota
	loaded
)

// SessionOptions are the per-request session settings, seeded from Options.
// Handlers may adjust them (via Handle.Options) before returning, e.g. to
// shorten the expiry of an anonymous session.
type SessionOptions struct {
	// ExpireAfter is the backend TTL and cookie lifetime; zero means none.
	ExpireAfter time.Duration
	// Secure restricts the commit to secure requests and marks the cookie
	// Secure.
	Secure bool
	// Domain and Path, when non-empty, are set on the cookie.
	Domain string
	Path   string
}

// Handle is the request-scoped view of a session. It starts out unloaded:
// the record is fetched from the backend on first access (or an explicit
// Load). All methods are safe for concurrent use, though a Handle is only
// meaningful until its request completes.
type Handle struct {
	mu  sync.Mutex
	ss  *SessionStore
	ctx context.Context

	state       state
	incoming    string // verified ID from the request cookie
	incomingRaw string // raw request cookie value
	id          string
	rec         Record
	opts        SessionOptions
	renewedFrom string
	destroyed   bool
	committed   bool
}

func (h *Handle) loadLocked(ctx context.Context) {
	if h.state == loaded {
		return
	}
	h.id, h.rec = h.ss.Load(ctx, h.incoming)
	h.state = loaded
}

// Load forces the session to be fetched from the backend, if it has not been
// already.
func (h *Handle) Load() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.loadLocked(h.ctx)
}

// Loaded reports whether the session has been fetched.
func (h *Handle) Loaded() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state == loaded
}

// ID returns the session ID, loading the session if needed. The ID is empty
// after Destroy until a new session is written.
func (h *Handle) ID() string {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.loadLocked(h.ctx)
	return h.id
}

// Options returns a copy of the per-request options. Calling it does not load
// the session.
func (h *Handle) Options() SessionOptions {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.opts
}

// UpdateOptions applies fn to the per-request options. Changes made after the
// session has been committed have no effect.
func (h *Handle) UpdateOptions(fn func(*SessionOptions)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	fn(&h.opts)
}

// Get decodes the value stored under key into dst, reporting whether the key
// was present.
func (h *Handle) Get(key string, dst any) (bool, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.loadLocked(h.ctx)
	return h.rec.Get(key, dst)
}

// Has reports whether key is present in the session.
func (h *Handle) Has(key string) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.loadLocked(h.ctx)
	_, ok := h.rec[key]
	return ok
}

// Set stores v (which must marshal to JSON) under key.
func (h *Handle) Set(key string, v any) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.loadLocked(h.ctx)
	return h.rec.Set(key, v)
}

// Delete removes key from the session.
func (h *Handle) Delete(key string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.loadLocked(h.ctx)
	delete(h.rec, key)
}

// Keys returns the session keys in sorted order.
func (h *Handle) Keys() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.loadLocked(h.ctx)
	return h.rec.Keys()
}

// Clear removes every key from the session, keeping its ID.
func (h *Handle) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.loadLocked(h.ctx)
	h.rec = Record{}
}

// Renew moves the session to a freshly generated ID, e.g. on login to defeat
// session fixation. On commit the record is written under the new ID and the
// one presented by the client is deleted.
func (h *Handle) Renew() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.loadLocked(h.ctx)
	if h.renewedFrom == "" && h.id != "" && h.id == h.incoming {
		h.renewedFrom = h.id
	}
	h.id = h.ss.ids.New()
}

// Destroy deletes the session presented by the client from the backend and
// leaves the Handle empty. If nothing is stored in it afterwards, the commit
// expires the client's cookie; otherwise a new session is started.
func (h *Handle) Destroy() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.incoming != "" {
		h.ss.destroy(h.ctx, h.incoming)
	}
	h.state = loaded
	h.id = ""
	h.rec = Record{}
	h.renewedFrom = ""
	h.destroyed = true
}

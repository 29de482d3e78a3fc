// Package session provides server-side HTTP sessions persisted to a
// key-value backend (typically Redis).
//
// At a high level, SessionStore mediates between HTTP handlers and a
// store.Backend. The Manage middleware attaches a lazy Handle to each request;
// the session record is only fetched from the backend once the handler
// touches it. After the handler returns, a loaded session is written back
// (with an optional TTL) and the session ID cookie is set when the client does
// not already hold it, or when its expiry must be refreshed.
//
// Backend failures never fail a request: an unreachable backend yields an
// empty session on load, a skipped cookie on write, and an abandoned delete
// on destroy. Each such event is logged and reported to the configured
// Observer.
package session

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/swfrench/redis-session-store/internal/sid"
	"github.com/swfrench/redis-session-store/store"
	"golang.org/x/exp/slog"
)

const (
	// DefaultNamespace is placed between KeyPrefix and the session ID in
	// backend keys unless overridden.
	DefaultNamespace         = "session:"
	defaultSessionCookieName = "_session_id"
	defaultCookiePath        = "/"
)

// contextKey is the type used to represent keys identifying values stored in
// the request Context.
type contextKey string

const contextKeyHandle = contextKey("session-handle")

// Options represents tunable knobs that control the behavior of SessionStore.
type Options struct {
	// Key is the name of the cookie carrying the session ID.
	// Default if unspecified: "_session_id"
	Key string
	// Secret, if set, is used to authenticate session IDs with HMAC-SHA256
	// (keyed by HKDF over the secret). Cookies failing verification are
	// ignored. Session payloads are never encrypted.
	Secret string
	// KeyPrefix is prepended to every backend key (e.g., "myapp-").
	KeyPrefix string
	// Namespace follows KeyPrefix in every backend key, separating session
	// data from unrelated use of the same backend.
	// Default if unspecified: DefaultNamespace
	Namespace string
	// ExpireAfter, if non-zero, is both the backend TTL of a written session
	// and the lifetime of the issued cookie. It is rounded up to whole
	// seconds. If zero, sessions are stored without expiry and the cookie
	// lasts for the browser session.
	ExpireAfter time.Duration
	// EagerRefresh, together with ExpireAfter, refreshes the TTL and cookie
	// of sessions presented by the client even on requests whose handler
	// never touches the session. Requests without a session cookie remain
	// lazy.
	EagerRefresh bool
	// Secure restricts session writes and cookies to secure requests, and
	// marks the cookie Secure.
	Secure bool
	// Domain and Path are set on the issued cookie.
	// Default Path if unspecified: "/"
	Domain string
	Path   string
	// IDLen is the number of random bytes in a session ID.
	// Default if unspecified: 32
	IDLen int
	// TrustForwardedProto treats requests carrying "X-Forwarded-Proto: https"
	// as secure. Only enable this behind a proxy that sets the header.
	TrustForwardedProto bool
	// CreateCookie is a user-supplied factory for creating session ID cookies
	// with the provided name, value, and expiration (zero for a browser
	// session cookie). Domain, Path and Secure are applied on top of the
	// returned cookie from the request's SessionOptions.
	// Default if unspecified: DefaultCookie
	CreateCookie func(name, value string, expires time.Time) *http.Cookie
	// Logger receives warnings on backend failures.
	// Default if unspecified: slog.Default()
	Logger *slog.Logger
	// Observer is notified of loads, writes, cookies and deletes.
	Observer Observer
}

// DefaultCookie returns an http.Cookie with the provided name, value, and
// expiration, marked HttpOnly and SameSite Lax with Path "/".
func DefaultCookie(name, value string, expires time.Time) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Expires:  expires,
		Path:     defaultCookiePath,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

// roundTTL rounds d up to whole seconds, the resolution of backend expiry.
func roundTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	if r := d.Truncate(time.Second); r != d {
		return r + time.Second
	}
	return d
}

// SessionStore manages sessions persisted to a store.Backend. It is safe for
// concurrent use; the backend client is shared by all requests.
type SessionStore struct {
	// Clock can be used to override measurement of time in tests.
	Clock   func() time.Time
	backend store.Backend
	opts    Options
	ids     *sid.Generator
	log     *slog.Logger
	obs     Observer
}

// New returns a new SessionStore persisting sessions to the provided backend
// and respecting the provided options (which may be nil). No backend call is
// made here; connectivity problems surface per operation.
func New(backend store.Backend, opts *Options) *SessionStore {
	var o Options
	if opts != nil {
		o = *opts
	}
	if o.Key == "" {
		o.Key = defaultSessionCookieName
	}
	if o.Namespace == "" {
		o.Namespace = DefaultNamespace
	}
	if o.Path == "" {
		o.Path = defaultCookiePath
	}
	if o.CreateCookie == nil {
		o.CreateCookie = DefaultCookie
	}
	o.ExpireAfter = roundTTL(o.ExpireAfter)
	ss := &SessionStore{
		Clock:   func() time.Time { return time.Now() },
		backend: backend,
		opts:    o,
		ids:     sid.NewGenerator(o.Secret, o.IDLen),
		log:     o.Logger,
		obs:     o.Observer,
	}
	if ss.log == nil {
		ss.log = slog.Default()
	}
	if ss.obs == nil {
		ss.obs = nopObserver{}
	}
	return ss
}

// Key returns the backend key for the provided session ID.
func (ss *SessionStore) Key(id string) string {
	return ss.opts.KeyPrefix + ss.opts.Namespace + id
}

// Load returns the session record stored for id. If id is empty a new ID is
// generated. A missing, undecodable or unreachable record yields an empty
// one; Load never fails.
func (ss *SessionStore) Load(ctx context.Context, id string) (string, Record) {
	if id == "" {
		id = ss.ids.New()
	}
	key := ss.Key(id)
	val, err := ss.backend.Get(ctx, key)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			ss.obs.SessionLoaded(LoadMiss)
		} else {
			ss.log.Warn("Session store unavailable, starting empty session", "op", "load", "key", key, "error", err)
			ss.obs.SessionLoaded(LoadUnavailable)
		}
		return id, Record{}
	}
	rec, err := decodeRecord(val)
	if err != nil {
		ss.log.Warn("Discarding undecodable session data", "key", key, "error", err)
		ss.obs.SessionLoaded(LoadCorrupt)
		return id, Record{}
	}
	ss.obs.SessionLoaded(LoadHit)
	return id, rec
}

// Persist writes rec under id, with the configured ExpireAfter as TTL. It
// reports whether the write succeeded.
func (ss *SessionStore) Persist(ctx context.Context, id string, rec Record) bool {
	return ss.persist(ctx, id, rec, ss.opts.ExpireAfter)
}

func (ss *SessionStore) persist(ctx context.Context, id string, rec Record, ttl time.Duration) bool {
	key := ss.Key(id)
	val, err := encodeRecord(rec)
	if err != nil {
		ss.log.Error("Failed to encode session", "key", key, "error", err)
		ss.obs.SessionPersisted(false)
		return false
	}
	if err := ss.backend.Set(ctx, key, val, roundTTL(ttl)); err != nil {
		ss.log.Warn("Session store unavailable, session not saved", "op", "persist", "key", key, "error", err)
		ss.obs.SessionPersisted(false)
		return false
	}
	ss.obs.SessionPersisted(true)
	return true
}

// Destroy deletes the stored session whose ID is carried by the request's
// session cookie, if any. Deletion is best-effort: backend failures are
// logged and otherwise ignored.
func (ss *SessionStore) Destroy(ctx context.Context, r *http.Request) {
	if id, _ := ss.incomingID(r); id != "" {
		ss.destroy(ctx, id)
	}
}

func (ss *SessionStore) destroy(ctx context.Context, id string) {
	key := ss.Key(id)
	if err := ss.backend.Del(ctx, key); err != nil {
		ss.log.Warn("Session store unavailable, abandoning delete", "op", "destroy", "key", key, "error", err)
		ss.obs.SessionDestroyed(false)
		return
	}
	ss.obs.SessionDestroyed(true)
}

// incomingID returns the verified session ID and the raw value of the
// request's session cookie. The ID is empty if the cookie is missing or fails
// verification.
func (ss *SessionStore) incomingID(r *http.Request) (id, raw string) {
	c, err := r.Cookie(ss.opts.Key)
	if err != nil {
		return "", ""
	}
	if err := ss.ids.Verify(c.Value); err != nil {
		ss.log.Debug("Ignoring invalid session cookie", "error", err)
		return "", c.Value
	}
	return c.Value, c.Value
}

func (ss *SessionStore) isSecure(r *http.Request) bool {
	if r.TLS != nil {
		return true
	}
	return ss.opts.TrustForwardedProto && strings.EqualFold(r.Header.Get("X-Forwarded-Proto"), "https")
}

// Prepare attaches an unloaded session Handle to the request, returning the
// derived request and the Handle. The backend is not contacted.
func (ss *SessionStore) Prepare(r *http.Request) (*http.Request, *Handle) {
	id, raw := ss.incomingID(r)
	h := &Handle{
		ss:          ss,
		ctx:         r.Context(),
		incoming:    id,
		incomingRaw: raw,
		opts: SessionOptions{
			ExpireAfter: ss.opts.ExpireAfter,
			Secure:      ss.opts.Secure,
			Domain:      ss.opts.Domain,
			Path:        ss.opts.Path,
		},
	}
	return r.WithContext(context.WithValue(r.Context(), contextKeyHandle, h)), h
}

// GetHandle returns the session Handle from the provided Context - i.e.,
// previously stored there via Prepare or the Manage middleware.
func (ss *SessionStore) GetHandle(ctx context.Context) *Handle {
	return FromContext(ctx)
}

// FromContext returns the session Handle stored in ctx, or nil.
func FromContext(ctx context.Context) *Handle {
	h, _ := ctx.Value(contextKeyHandle).(*Handle)
	return h
}

// Manage is a chi-compatible middleware that attaches a lazy session Handle
// to each request (see FromContext) and commits it once next returns. The
// response is buffered until then, so that the session cookie can be set.
func (ss *SessionStore) Manage(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r, h := ss.Prepare(r)
		bw := newBufferedWriter(w)
		next.ServeHTTP(bw, r)
		ss.Commit(w, r, h)
		if err := bw.flush(); err != nil {
			ss.log.Debug("Failed to write response", "error", err)
		}
	})
}

// Commit persists the session held by h and sets the session cookie on w as
// needed. It must be called before the response headers are written. Manage
// calls it automatically.
//
// Nothing is written for sessions the handler never loaded (unless
// EagerRefresh applies), nor for sessions requiring a secure request that
// arrived over an insecure one. The cookie is only set once the record has
// been written, and then only if the client does not already hold the ID or
// the expiry must be refreshed.
func (ss *SessionStore) Commit(w http.ResponseWriter, r *http.Request, h *Handle) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.committed {
		return
	}
	h.committed = true
	// The write should complete even if the client has gone away.
	ctx := context.WithoutCancel(r.Context())
	opts := h.opts
	ttl := roundTTL(opts.ExpireAfter)
	if h.state == unloaded {
		if !ss.opts.EagerRefresh || ttl == 0 || h.incoming == "" {
			return
		}
	}
	if opts.Secure && !ss.isSecure(r) {
		ss.log.Debug("Skipping session commit on insecure request", "path", r.URL.Path)
		return
	}
	h.loadLocked(ctx)
	if h.destroyed && len(h.rec) == 0 {
		if h.incomingRaw != "" {
			c := ss.cookie("", time.Time{}, opts)
			c.MaxAge = -1
			http.SetCookie(w, c)
		}
		return
	}
	if h.id == "" {
		h.id = ss.ids.New()
	}
	if !ss.persist(ctx, h.id, h.rec, ttl) {
		return
	}
	if h.renewedFrom != "" {
		ss.destroy(ctx, h.renewedFrom)
		h.renewedFrom = ""
	}
	if h.incomingRaw != h.id || ttl > 0 {
		var expires time.Time
		if ttl > 0 {
			expires = ss.Clock().Add(ttl)
		}
		http.SetCookie(w, ss.cookie(h.id, expires, opts))
		ss.obs.CookieIssued()
	}
}

func (ss *SessionStore) cookie(id string, expires time.Time, opts SessionOptions) *http.Cookie {
	c := ss.opts.CreateCookie(ss.opts.Key, id, expires)
	if opts.Secure {
		c.Secure = true
	}
	if opts.Domain != "" {
		c.Domain = opts.Domain
	}
	if opts.Path != "" {
		c.Path = opts.Path
	}
	return c
}

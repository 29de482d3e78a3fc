package session

// Load outcomes reported to Observer.SessionLoaded.
const (
	LoadHit         = "hit"
	LoadMiss        = "miss"
	LoadUnavailable = "unavailable"
	LoadCorrupt     = "corrupt"
)

// Observer receives notifications of session store activity, e.g. for
// metrics. Implementations must be safe for concurrent use. See the metrics
// package for a Prometheus implementation.
type Observer interface {
	// SessionLoaded is called after every backend lookup with one of the
	// Load* outcomes.
	SessionLoaded(outcome string)
	// SessionPersisted is called after every attempted write.
	SessionPersisted(ok bool)
	// CookieIssued is called whenever a session cookie is set on a response.
	CookieIssued()
	// SessionDestroyed is called after every attempted delete.
	SessionDestroyed(ok bool)
}

type nopObserver struct{}

func (nopObserver) SessionLoaded(string)  {}
func (nopObserver) SessionPersisted(bool) {}
func (nopObserver) CookieIssued()         {}
func (nopObserver) SessionDestroyed(bool) {}

// Package metrics provides Prometheus instrumentation for SessionStore. It
// exposes counters for backend lookups by outcome, writes and deletes by
// result, and issued cookies.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// Collector implements session.Observer by updating Prometheus counters.
type Collector struct {
	loads    *prometheus.CounterVec
	persists *prometheus.CounterVec
	destroys *prometheus.CounterVec
	cookies  prometheus.Counter
}

// New returns a Collector whose metrics are registered with reg, using
// namespace as the metric name prefix (e.g. "myapp").
func New(reg prometheus.Registerer, namespace string) *Collector {
	c := &Collector{
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "loads_total",
			Help:      "Session backend lookups, by outcome",
		}, []string{"outcome"}), // outcome = "hit", "miss", "unavailable", "corrupt"
		persists: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "writes_total",
			Help:      "Session backend writes, by success",
		}, []string{"ok"}),
		destroys: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "deletes_total",
			Help:      "Session backend deletes, by success",
		}, []string{"ok"}),
		cookies: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "cookies_issued_total",
			Help:      "Session cookies set on responses",
		}),
	}
	reg.MustRegister(c.loads, c.persists, c.destroys, c.cookies)
	return c
}

// SessionLoaded implements session.Observer.
func (c *Collector) SessionLoaded(outcome string) {
	c.loads.WithLabelValues(outcome).Inc()
}

// SessionPersisted implements session.Observer.
func (c *Collector) SessionPersisted(ok bool) {
	c.persists.WithLabelValues(strconv.FormatBool(ok)).Inc()
}

// CookieIssued implements session.Observer.
func (c *Collector) CookieIssued() {
	c.cookies.Inc()
}

// SessionDestroyed implements session.Observer.
func (c *Collector) SessionDestroyed(ok bool) {
	c.destroys.WithLabelValues(strconv.FormatBool(ok)).Inc()
}

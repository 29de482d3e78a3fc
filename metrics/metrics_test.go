package metrics_test

import (
	"context"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	session "github.com/swfrench/redis-session-store"
	itestutil "github.com/swfrench/redis-session-store/internal/testutil"
	"github.com/swfrench/redis-session-store/metrics"
)

var _ session.Observer = (*metrics.Collector)(nil)

func TestCollectorCountsStoreActivity(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	c := metrics.New(reg, "test")
	fb := itestutil.NewFakeBackend()
	ss := session.New(fb, &session.Options{Observer: c})
	ctx := context.Background()

	id, rec := ss.Load(ctx, "") // miss
	if err := rec.Set("user_id", 42); err != nil {
		t.Fatalf("Set() returned unexpected error: %v", err)
	}
	if !ss.Persist(ctx, id, rec) {
		t.Fatal("Persist() unexpectedly failed")
	}
	ss.Load(ctx, id) // hit
	fb.Put(ss.Key("corrupt"), []byte("not json"))
	ss.Load(ctx, "corrupt")

	fb.GetErr = itestutil.Unavailable()
	fb.SetErr = itestutil.Unavailable()
	ss.Load(ctx, id)
	ss.Persist(ctx, id, rec)

	expected := `
# HELP test_session_loads_total Session backend lookups, by outcome
# TYPE test_session_loads_total counter
test_session_loads_total{outcome="corrupt"} 1
test_session_loads_total{outcome="hit"} 1
test_session_loads_total{outcome="miss"} 1
test_session_loads_total{outcome="unavailable"} 1
# HELP test_session_writes_total Session backend writes, by success
# TYPE test_session_writes_total counter
test_session_writes_total{ok="false"} 1
test_session_writes_total{ok="true"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "test_session_loads_total", "test_session_writes_total"); err != nil {
		t.Errorf("Unexpected metrics:\n%v", err)
	}
}

func TestCollectorCookiesAndDeletes(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := metrics.New(reg, "test")
	c.CookieIssued()
	c.CookieIssued()
	c.SessionDestroyed(true)
	c.SessionDestroyed(false)
	c.SessionDestroyed(false)

	expected := `
# HELP test_session_cookies_issued_total Session cookies set on responses
# TYPE test_session_cookies_issued_total counter
test_session_cookies_issued_total 2
# HELP test_session_deletes_total Session backend deletes, by success
# TYPE test_session_deletes_total counter
test_session_deletes_total{ok="false"} 2
test_session_deletes_total{ok="true"} 1
`
	if err := testutil.GatherAndCompare(reg, strings.NewReader(expected), "test_session_cookies_issued_total", "test_session_deletes_total"); err != nil {
		t.Errorf("Unexpected metrics:\n%v", err)
	}
}

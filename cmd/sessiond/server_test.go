package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	session "github.com/swfrench/redis-session-store"
	"github.com/swfrench/redis-session-store/store/memory"
	"golang.org/x/exp/slog"
)

type testClient struct {
	t      *testing.T
	srv    *httptest.Server
	client *http.Client
}

func newTestClient(t *testing.T, health func(context.Context) error) *testClient {
	s := &server{
		ss:     session.New(memory.New(), nil),
		health: health,
		log:    slog.Default(),
	}
	srv := httptest.NewServer(s.routes())
	t.Cleanup(srv.Close)
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookiejar.New() returned unexpected error: %v", err)
	}
	return &testClient{t: t, srv: srv, client: &http.Client{Jar: jar}}
}

func (tc *testClient) do(method, path string, form url.Values, dst any) int {
	tc.t.Helper()
	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}
	req, err := http.NewRequest(method, tc.srv.URL+path, body)
	if err != nil {
		tc.t.Fatalf("NewRequest() returned unexpected error: %v", err)
	}
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	resp, err := tc.client.Do(req)
	if err != nil {
		tc.t.Fatalf("Client.Do() returned unexpected error: %v", err)
	}
	defer resp.Body.Close()
	if dst != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(dst); err != nil {
			tc.t.Fatalf("Decode() returned unexpected error: %v", err)
		}
	}
	return resp.StatusCode
}

func (tc *testClient) sessionCookie() string {
	u, _ := url.Parse(tc.srv.URL)
	for _, c := range tc.client.Jar.Cookies(u) {
		if c.Name == "_session_id" {
			return c.Value
		}
	}
	return ""
}

func TestVisitCounting(t *testing.T) {
	tc := newTestClient(t, nil)

	var first, second visitResponse
	tc.do("GET", "/", nil, &first)
	tc.do("GET", "/", nil, &second)

	if first.Visitor == "" {
		t.Fatal("First visit was not assigned a visitor ID")
	}
	want := visitResponse{Visits: 2, Visitor: first.Visitor}
	if diff := cmp.Diff(want, second); diff != "" {
		t.Errorf("Second visit returned unexpected response (+got, -want):\n%s", diff)
	}
}

func TestLoginLogout(t *testing.T) {
	tc := newTestClient(t, nil)

	var visit visitResponse
	tc.do("GET", "/", nil, &visit)
	anon := tc.sessionCookie()

	if got, want := tc.do("POST", "/login", url.Values{}, nil), http.StatusBadRequest; got != want {
		t.Errorf("Login without user returned status %d, want %d", got, want)
	}
	if got, want := tc.do("POST", "/login", url.Values{"user": {"alice"}}, nil), http.StatusOK; got != want {
		t.Fatalf("Login returned status %d, want %d", got, want)
	}
	if got := tc.sessionCookie(); got == anon || got == "" {
		t.Errorf("Session ID not renewed on login: %q", got)
	}

	var who map[string]string
	tc.do("GET", "/whoami", nil, &who)
	if diff := cmp.Diff(map[string]string{"user": "alice"}, who); diff != "" {
		t.Errorf("Unexpected whoami response (+got, -want):\n%s", diff)
	}
	var after visitResponse
	tc.do("GET", "/", nil, &after)
	if diff := cmp.Diff(visitResponse{Visits: 2, Visitor: visit.Visitor, User: "alice"}, after); diff != "" {
		t.Errorf("Session state lost across login (+got, -want):\n%s", diff)
	}

	if got, want := tc.do("POST", "/logout", nil, nil), http.StatusNoContent; got != want {
		t.Errorf("Logout returned status %d, want %d", got, want)
	}
	if got := tc.sessionCookie(); got != "" {
		t.Errorf("Session cookie retained after logout: %q", got)
	}
	if got, want := tc.do("GET", "/whoami", nil, nil), http.StatusUnauthorized; got != want {
		t.Errorf("Whoami after logout returned status %d, want %d", got, want)
	}
}

func TestHealth(t *testing.T) {
	testCases := []struct {
		name   string
		health func(context.Context) error
		want   int
	}{
		{name: "healthy", health: func(context.Context) error { return nil }, want: http.StatusOK},
		{name: "unhealthy", health: func(context.Context) error { return errors.New("connection refused") }, want: http.StatusServiceUnavailable},
	}
	for _, c := range testCases {
		t.Run(c.name, func(t *testing.T) {
			tc := newTestClient(t, c.health)
			if got := tc.do("GET", "/healthz", nil, nil); got != c.want {
				t.Errorf("Health check returned status %d, want %d", got, c.want)
			}
		})
	}
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("SESSION_BACKEND", "memory")
	t.Setenv("SESSION_EXPIRE_AFTER", "30m")
	t.Setenv("SESSION_KEY_PREFIX", "myapp-")
	t.Setenv("REDIS_PORT", "6380")

	cfg, err := loadConfig()
	if err != nil {
		t.Fatalf("loadConfig() returned unexpected error: %v", err)
	}
	opts := cfg.Session.options(nil, nil)
	want := &session.Options{
		Key:         "_session_id",
		KeyPrefix:   "myapp-",
		Namespace:   "session:",
		ExpireAfter: 30 * time.Minute,
		Path:        "/",
	}
	if diff := cmp.Diff(want, opts, cmpopts.IgnoreFields(session.Options{}, "CreateCookie", "Logger", "Observer")); diff != "" {
		t.Errorf("Unexpected session options (+got, -want):\n%s", diff)
	}
	if got, want := cfg.Redis.Addr(), "localhost:6380"; got != want {
		t.Errorf("Redis address = %q, want %q", got, want)
	}

	t.Setenv("SESSION_BACKEND", "etcd")
	if _, err := loadConfig(); !errors.Is(err, errUnknownBackend) {
		t.Errorf("loadConfig() returned unexpected error - got: %v, want: %v", err, errUnknownBackend)
	}
}

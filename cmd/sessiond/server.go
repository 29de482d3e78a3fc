package main

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	session "github.com/swfrench/redis-session-store"
	"golang.org/x/exp/slog"
)

type visitResponse struct {
	Visits  int    `json:"visits"`
	Visitor string `json:"visitor"`
	User    string `json:"user,omitempty"`
}

type server struct {
	ss      *session.SessionStore
	health  func(context.Context) error
	metrics http.Handler
	log     *slog.Logger
}

func (s *server) routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealth)
	if s.metrics != nil {
		r.Handle("/metrics", s.metrics)
	}
	r.Group(func(r chi.Router) {
		r.Use(s.ss.Manage)
		r.Get("/", s.handleVisit)
		r.Get("/whoami", s.handleWhoAmI)
		r.Post("/login", s.handleLogin)
		r.Post("/logout", s.handleLogout)
	})
	return r
}

func (s *server) writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Debug("Failed to encode response", "error", err)
	}
}

func (s *server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.health(r.Context()); err != nil {
		s.log.Warn("Health check failed", "error", err)
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// handleVisit counts visits and stamps each new session with a visitor ID.
func (s *server) handleVisit(w http.ResponseWriter, r *http.Request) {
	h := session.FromContext(r.Context())
	var resp visitResponse
	if _, err := h.Get("visits", &resp.Visits); err != nil {
		s.log.Warn("Resetting unreadable visit count", "error", err)
	}
	resp.Visits++
	if ok, _ := h.Get("visitor", &resp.Visitor); !ok || resp.Visitor == "" {
		resp.Visitor = uuid.NewString()
		if err := h.Set("visitor", resp.Visitor); err != nil {
			s.log.Error("Failed to set visitor", "error", err)
		}
	}
	if err := h.Set("visits", resp.Visits); err != nil {
		s.log.Error("Failed to set visits", "error", err)
	}
	if _, err := h.Get("user", &resp.User); err != nil {
		s.log.Error("Failed to get user", "error", err)
	}
	s.writeJSON(w, http.StatusOK, resp)
}

func (s *server) handleWhoAmI(w http.ResponseWriter, r *http.Request) {
	var user string
	if ok, _ := session.FromContext(r.Context()).Get("user", &user); !ok {
		http.Error(w, "not logged in", http.StatusUnauthorized)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"user": user})
}

func (s *server) handleLogin(w http.ResponseWriter, r *http.Request) {
	user := r.FormValue("user")
	if user == "" {
		http.Error(w, "missing user", http.StatusBadRequest)
		return
	}
	h := session.FromContext(r.Context())
	h.Renew()
	if err := h.Set("user", user); err != nil {
		s.log.Error("Failed to set user", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"user": user})
}

func (s *server) handleLogout(w http.ResponseWriter, r *http.Request) {
	session.FromContext(r.Context()).Destroy()
	w.WriteHeader(http.StatusNoContent)
}

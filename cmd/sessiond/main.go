// Command sessiond serves a small demo application whose per-visitor state
// lives in a Redis-backed (or in-memory) session store.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	session "github.com/swfrench/redis-session-store"
	"github.com/swfrench/redis-session-store/internal/retry"
	"github.com/swfrench/redis-session-store/metrics"
	"github.com/swfrench/redis-session-store/store"
	"github.com/swfrench/redis-session-store/store/memory"
	"github.com/swfrench/redis-session-store/store/redis"
	"golang.org/x/exp/slog"
)

func main() {
	cfg, err := loadConfig()
	if err != nil {
		slog.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.logLevel()}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var (
		backend store.Backend
		health  = func(context.Context) error { return nil }
	)
	switch cfg.Backend {
	case backendRedis:
		rc := redis.NewClient(cfg.Redis)
		defer rc.Close()
		rs := redis.New(rc)
		policy := retry.Backoff{Base: 200 * time.Millisecond, Growth: 2.0, Jitter: 0.2, Max: 5 * time.Second}
		if err := rs.WaitReady(ctx, policy, cfg.ReadyAttempts); err != nil {
			// Sessions degrade to empty until Redis comes up.
			logger.Warn("Redis not ready, continuing without it", "addr", cfg.Redis.Addr(), "error", err)
		}
		backend, health = rs, rs.Ping
	case backendMemory:
		backend = memory.New()
	}

	obs := metrics.New(prometheus.DefaultRegisterer, cfg.MetricsNamespace)
	srv := &server{
		ss:      session.New(backend, cfg.Session.options(logger, obs)),
		health:  health,
		metrics: promhttp.Handler(),
		log:     logger,
	}
	hs := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           srv.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := hs.Shutdown(sctx); err != nil {
			logger.Error("Shutdown failed", "error", err)
		}
	}()

	logger.Info("Listening", "addr", cfg.ListenAddr, "backend", cfg.Backend)
	if err := hs.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server failed", "error", err)
		os.Exit(1)
	}
}

package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	session "github.com/swfrench/redis-session-store"
	"github.com/swfrench/redis-session-store/store/redis"
	"golang.org/x/exp/slog"
)

const (
	backendRedis  = "redis"
	backendMemory = "memory"
)

// SessionConfig holds the session settings of the daemon.
type SessionConfig struct {
	Key                 string        `env:"SESSION_KEY" envDefault:"_session_id"`
	Secret              string        `env:"SESSION_SECRET"`
	KeyPrefix           string        `env:"SESSION_KEY_PREFIX"`
	Namespace           string        `env:"SESSION_NAMESPACE" envDefault:"session:"`
	ExpireAfter         time.Duration `env:"SESSION_EXPIRE_AFTER"`
	EagerRefresh        bool          `env:"SESSION_EAGER_REFRESH"`
	Secure              bool          `env:"SESSION_SECURE"`
	Domain              string        `env:"SESSION_COOKIE_DOMAIN"`
	Path                string        `env:"SESSION_COOKIE_PATH" envDefault:"/"`
	TrustForwardedProto bool          `env:"SESSION_TRUST_FORWARDED_PROTO"`
}

// Config is the daemon configuration, read from the environment (and a .env
// file, if present).
type Config struct {
	ListenAddr       string        `env:"LISTEN_ADDR" envDefault:":8080"`
	Backend          string        `env:"SESSION_BACKEND" envDefault:"redis"`
	LogLevel         string        `env:"LOG_LEVEL" envDefault:"info"`
	MetricsNamespace string        `env:"METRICS_NAMESPACE" envDefault:"sessiond"`
	ReadyAttempts    int           `env:"REDIS_READY_ATTEMPTS" envDefault:"5"`
	ShutdownTimeout  time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`
	Session          SessionConfig
	Redis            redis.Config
}

var errUnknownBackend = errors.New("unknown session backend")

func loadConfig() (Config, error) {
	// The .env file is optional.
	_ = godotenv.Load()
	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}
	if cfg.Backend != backendRedis && cfg.Backend != backendMemory {
		return Config{}, fmt.Errorf("%w: %q", errUnknownBackend, cfg.Backend)
	}
	return cfg, nil
}

func (c Config) logLevel() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func (c SessionConfig) options(logger *slog.Logger, obs session.Observer) *session.Options {
	return &session.Options{
		Key:                 c.Key,
		Secret:              c.Secret,
		KeyPrefix:           c.KeyPrefix,
		Namespace:           c.Namespace,
		ExpireAfter:         c.ExpireAfter,
		EagerRefresh:        c.EagerRefresh,
		Secure:              c.Secure,
		Domain:              c.Domain,
		Path:                c.Path,
		TrustForwardedProto: c.TrustForwardedProto,
		Logger:              logger,
		Observer:            obs,
	}
}

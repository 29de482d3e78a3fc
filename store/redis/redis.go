// Package redis provides a Redis-backed store.Backend.
package redis

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/swfrench/redis-session-store/internal/retry"
	"github.com/swfrench/redis-session-store/store"
)

// Config holds the connection parameters of the backing Redis server.
type Config struct {
	Host         string        `env:"REDIS_HOST" envDefault:"localhost"`
	Port         int           `env:"REDIS_PORT" envDefault:"6379"`
	DB           int           `env:"REDIS_DB" envDefault:"0"`
	Password     string        `env:"REDIS_PASSWORD"`
	DialTimeout  time.Duration `env:"REDIS_DIAL_TIMEOUT" envDefault:"5s"`
	ReadTimeout  time.Duration `env:"REDIS_READ_TIMEOUT" envDefault:"3s"`
	WriteTimeout time.Duration `env:"REDIS_WRITE_TIMEOUT" envDefault:"3s"`
}

// Addr returns the host:port address described by the Config.
func (c Config) Addr() string {
	host := c.Host
	if host == "" {
		host = "localhost"
	}
	port := c.Port
	if port == 0 {
		port = 6379
	}
	return net.JoinHostPort(host, strconv.Itoa(port))
}

// NewClient returns a Redis client for the provided Config. Connections are
// established lazily, so this never fails even when the server is down.
func NewClient(cfg Config) *goredis.Client {
	return goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  cfg.DialTimeout,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	})
}

// Store is a Redis-based store.Backend. Any client error other than a missing
// key is reported as store.ErrUnavailable.
type Store struct {
	rc goredis.UniversalClient
}

// New returns a new Store using the provided Redis client. The client is
// shared, and may also be a cluster or failover client.
func New(rc goredis.UniversalClient) *Store {
	return &Store{rc: rc}
}

func unavailable(op, key string, err error) error {
	return fmt.Errorf("redis %s %q failed (error: %v): %w", op, key, err, store.ErrUnavailable)
}

// Get returns the value stored at key, or store.ErrNotFound.
func (rs *Store) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := rs.rc.Get(ctx, key).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, store.ErrNotFound
	}
	if err != nil {
		return nil, unavailable("GET", key, err)
	}
	return val, nil
}

// Set stores val at key, using SETEX when ttl is non-zero and SET otherwise.
func (rs *Store) Set(ctx context.Context, key string, val []byte, ttl time.Duration) error {
	var err error
	if ttl > 0 {
		err = rs.rc.SetEx(ctx, key, val, ttl).Err()
	} else {
		err = rs.rc.Set(ctx, key, val, 0).Err()
	}
	if err != nil {
		op := "SET"
		if ttl > 0 {
			op = "SETEX"
		}
		return unavailable(op, key, err)
	}
	return nil
}

// Del deletes the value stored at key.
func (rs *Store) Del(ctx context.Context, key string) error {
	if err := rs.rc.Del(ctx, key).Err(); err != nil {
		return unavailable("DEL", key, err)
	}
	return nil
}

// Ping checks that the Redis server is reachable.
func (rs *Store) Ping(ctx context.Context) error {
	if err := rs.rc.Ping(ctx).Err(); err != nil {
		return unavailable("PING", "", err)
	}
	return nil
}

// WaitReady pings the Redis server until it responds, using the provided
// retry policy with an attempt budget of n. The returned error wraps
// store.ErrUnavailable if the server never became reachable.
func (rs *Store) WaitReady(ctx context.Context, p retry.Policy, n int) error {
	var last error
	err := p.Do(ctx, func(rc *retry.RetryContext) {
		if last = rs.Ping(ctx); last == nil {
			rc.Done()
		}
	}, n)
	if err != nil {
		if last != nil {
			return fmt.Errorf("redis not ready: %w: %w", err, last)
		}
		return fmt.Errorf("redis not ready: %w", err)
	}
	return nil
}

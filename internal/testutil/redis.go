package testutil

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// RedisBundle bundles together a miniredis instance and an associated Redis
// client.
type RedisBundle struct {
	mr *miniredis.Miniredis
	rc *redis.Client
}

// MustCreateRedisBundle returns a new RedisBundle.
func MustCreateRedisBundle(t *testing.T) *RedisBundle {
	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
		// Fail fast once miniredis is stopped.
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	return &RedisBundle{mr: mr, rc: rc}
}

// Client returns the Redis client.
func (rb *RedisBundle) Client() *redis.Client {
	return rb.rc
}

// Server returns the miniredis instance, e.g. for direct inspection of keys.
func (rb *RedisBundle) Server() *miniredis.Miniredis {
	return rb.mr
}

// FastForward advances miniredis' TTL clock by d.
func (rb *RedisBundle) FastForward(d time.Duration) {
	rb.mr.FastForward(d)
}

// StopServer shuts down miniredis, leaving the client open. Subsequent
// commands fail with a connection error.
func (rb *RedisBundle) StopServer() {
	rb.mr.Close()
}

// Flush flushes all keys from miniredis.
func (rb *RedisBundle) Flush() {
	rb.mr.FlushAll()
}

// Close shuts down the Redis client and miniredis instance.
func (rb *RedisBundle) Close() {
	rb.rc.Close()
	rb.mr.Close()
}

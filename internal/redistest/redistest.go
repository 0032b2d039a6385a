// Package redistest provides the shared Redis test harnesses used across
// the module: a fast in-process miniredis backend for unit tests, and a
// real-Redis testcontainers harness (behind the "integration" build tag)
// for tests that need genuine Redis Streams/consumer-group semantics
// miniredis does not emulate exactly.
package redistest

import (
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

// NewMiniredis starts an in-process miniredis server and returns a
// go-redis client connected to it. Both are closed automatically via
// t.Cleanup.
func NewMiniredis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("redistest: start miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return client, mr
}

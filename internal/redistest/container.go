//go:build integration

package redistest

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
	tcredis "github.com/testcontainers/testcontainers-go/modules/redis"
)

// NewContainer starts a real Redis container via testcontainers-go and
// returns a connected go-redis client. Both the client and the container
// are torn down via t.Cleanup. Only built under the "integration" tag:
// these tests need Docker and exercise XAUTOCLAIM/consumer-group edge
// cases miniredis does not model precisely.
func NewContainer(t *testing.T) *redis.Client {
	t.Helper()
	ctx := context.Background()

	container, err := tcredis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("redistest: start redis container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(ctx) })

	addr, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("redistest: connection string: %v", err)
	}

	client := redis.NewClient(&redis.Options{Addr: trimRedisScheme(addr)})
	t.Cleanup(func() { _ = client.Close() })

	if err := client.Ping(ctx).Err(); err != nil {
		t.Fatalf("redistest: ping container: %v", err)
	}

	return client
}

// trimRedisScheme strips the "redis://" scheme testcontainers' connection
// string includes, which go-redis's Options.Addr does not expect.
func trimRedisScheme(addr string) string {
	const scheme = "redis://"
	if len(addr) > len(scheme) && addr[:len(scheme)] == scheme {
		return addr[len(scheme):]
	}
	return addr
}

package leanmq

import (
	"strconv"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"

	"github.com/leanmq-go/leanmq/internal/redistest"
)

// newTestService wires a QueueService to an in-process miniredis instance,
// the fast backend used by every non-integration test in this package.
// Gateway dials its own *redis.Client from a host/port pair, so the client
// redistest.NewMiniredis returns isn't used directly here; the shared
// harness still saves every test from hand-rolling miniredis bootstrap.
func newTestService(t *testing.T) (*QueueService, *miniredis.Miniredis) {
	t.Helper()

	_, mr := redistest.NewMiniredis(t)

	port, err := strconv.Atoi(mr.Port())
	if err != nil {
		t.Fatalf("parse miniredis port: %v", err)
	}

	cfg := DefaultConfig()
	cfg.Host = mr.Host()
	cfg.Port = port
	cfg.MaxRetries = 0
	cfg.Prefix = "test:"
	cfg.ReclaimIdle = 10 * time.Millisecond

	log := zerolog.Nop()
	svc := NewQueueService(cfg, log)
	t.Cleanup(func() { _ = svc.Close() })

	return svc, mr
}

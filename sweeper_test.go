package leanmq

import (
	"context"
	"testing"
	"time"
)

func TestSweeper_OnlyRemovesExpiredAcrossMultipleQueues(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	a, _, err := svc.CreateQueuePair(ctx, "a")
	if err != nil {
		t.Fatalf("CreateQueuePair a: %v", err)
	}
	b, _, err := svc.CreateQueuePair(ctx, "b")
	if err != nil {
		t.Fatalf("CreateQueuePair b: %v", err)
	}

	ttl := time.Millisecond
	if _, err := a.Publish(ctx, map[string]any{"n": 1}, &ttl); err != nil {
		t.Fatalf("Publish expiring a: %v", err)
	}
	if _, err := a.Publish(ctx, map[string]any{"n": 2}, nil); err != nil {
		t.Fatalf("Publish durable a: %v", err)
	}
	if _, err := b.Publish(ctx, map[string]any{"n": 3}, nil); err != nil {
		t.Fatalf("Publish durable b: %v", err)
	}

	time.Sleep(5 * time.Millisecond)

	removed, err := svc.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected exactly 1 expired message removed, got %d", removed)
	}

	infoA, err := a.Info(ctx)
	if err != nil {
		t.Fatalf("Info a: %v", err)
	}
	if infoA.MsgCount != 1 {
		t.Errorf("expected 1 surviving message in a, got %d", infoA.MsgCount)
	}

	infoB, err := b.Info(ctx)
	if err != nil {
		t.Fatalf("Info b: %v", err)
	}
	if infoB.MsgCount != 1 {
		t.Errorf("expected b untouched with 1 message, got %d", infoB.MsgCount)
	}
}

func TestSweeper_PaginatesBeyondOneBatch(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	q, _, err := svc.CreateQueuePair(ctx, "paged")
	if err != nil {
		t.Fatalf("CreateQueuePair: %v", err)
	}

	ttl := time.Millisecond
	total := sweepBatchSize + 10
	for i := 0; i < total; i++ {
		if _, err := q.Publish(ctx, map[string]any{"i": i}, &ttl); err != nil {
			t.Fatalf("Publish %d: %v", i, err)
		}
	}
	time.Sleep(5 * time.Millisecond)

	removed, err := svc.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if removed != total {
		t.Fatalf("expected %d removed across pages, got %d", total, removed)
	}

	info, err := q.Info(ctx)
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if info.MsgCount != 0 {
		t.Errorf("expected empty queue after paginated sweep, got %d", info.MsgCount)
	}
}

package leanmq

import (
	"context"
	"testing"
	"time"
)

func TestQueue_PublishClaimAcknowledge(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	main, _, err := svc.CreateQueuePair(ctx, "orders")
	if err != nil {
		t.Fatalf("CreateQueuePair: %v", err)
	}

	id, err := main.Publish(ctx, map[string]any{"order_id": "42"}, nil)
	if err != nil {
		t.Fatalf("Publish: %v", err)
	}
	if id == "" {
		t.Fatal("expected a non-empty entry id")
	}

	msgs, err := main.Claim(ctx, 10, 0, "worker-1")
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 claimed message, got %d", len(msgs))
	}
	if msgs[0].Body["order_id"] != "42" {
		t.Errorf("expected order_id 42, got %v", msgs[0].Body["order_id"])
	}
	if msgs[0].DeliveryCount != 1 {
		t.Errorf("expected delivery count 1 on first claim, got %d", msgs[0].DeliveryCount)
	}

	n, err := main.Acknowledge(ctx, []string{msgs[0].ID})
	if err != nil {
		t.Fatalf("Acknowledge: %v", err)
	}
	if n != 1 {
		t.Errorf("expected 1 acknowledged, got %d", n)
	}

	info, err := main.Info(ctx)
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if info.PendingCount != 0 {
		t.Errorf("expected 0 pending after ack, got %d", info.PendingCount)
	}
}

func TestQueue_ClaimIsNonDestructive(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	main, _, err := svc.CreateQueuePair(ctx, "invoices")
	if err != nil {
		t.Fatalf("CreateQueuePair: %v", err)
	}
	if _, err := main.Publish(ctx, map[string]any{"n": 1}, nil); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	if _, err := main.Claim(ctx, 10, 0, "c1"); err != nil {
		t.Fatalf("Claim: %v", err)
	}

	info, err := main.Info(ctx)
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if info.MsgCount != 1 {
		t.Errorf("expected the message to remain in the stream after claim, got count %d", info.MsgCount)
	}
	if info.PendingCount != 1 {
		t.Errorf("expected 1 pending entry after claim without ack, got %d", info.PendingCount)
	}
}

func TestQueue_ReclaimStaleAfterIdleTimeout(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	main, _, err := svc.CreateQueuePair(ctx, "slow")
	if err != nil {
		t.Fatalf("CreateQueuePair: %v", err)
	}
	if _, err := main.Publish(ctx, map[string]any{"n": 1}, nil); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	first, err := main.Claim(ctx, 10, 0, "dead-consumer")
	if err != nil {
		t.Fatalf("first Claim: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("expected 1 message on first claim, got %d", len(first))
	}

	time.Sleep(20 * time.Millisecond) // exceed the 10ms reclaimIdle set by newTestService

	reclaimed, err := main.Claim(ctx, 10, 0, "alive-consumer")
	if err != nil {
		t.Fatalf("reclaim Claim: %v", err)
	}
	if len(reclaimed) != 1 {
		t.Fatalf("expected the stale entry to be reclaimed, got %d messages", len(reclaimed))
	}
	if reclaimed[0].DeliveryCount != 2 {
		t.Errorf("expected delivery count 2 after reclaim, got %d", reclaimed[0].DeliveryCount)
	}
}

func TestQueue_MoveToDLQAndRequeue(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	main, dlq, err := svc.CreateQueuePair(ctx, "payments")
	if err != nil {
		t.Fatalf("CreateQueuePair: %v", err)
	}
	if _, err := main.Publish(ctx, map[string]any{"amount": 100}, nil); err != nil {
		t.Fatalf("Publish: %v", err)
	}

	msgs, err := main.Claim(ctx, 10, 0, "worker")
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}

	moved, err := main.MoveToDLQ(ctx, []string{msgs[0].ID}, "processing failed", dlq)
	if err != nil {
		t.Fatalf("MoveToDLQ: %v", err)
	}
	if moved != 1 {
		t.Fatalf("expected 1 moved, got %d", moved)
	}

	mainInfo, err := main.Info(ctx)
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if mainInfo.MsgCount != 0 {
		t.Errorf("expected the main queue to be empty after move, got %d", mainInfo.MsgCount)
	}

	dlqMsgs, err := dlq.Claim(ctx, 10, 0, "")
	if err != nil {
		t.Fatalf("Claim on dlq: %v", err)
	}
	if len(dlqMsgs) != 1 {
		t.Fatalf("expected 1 message in dlq, got %d", len(dlqMsgs))
	}
	if dlqMsgs[0].Error != "processing failed" {
		t.Errorf("expected dlq message to carry the error reason, got %q", dlqMsgs[0].Error)
	}
	if dlqMsgs[0].SourceQueue != "payments" {
		t.Errorf("expected dlq message source_queue=payments, got %q", dlqMsgs[0].SourceQueue)
	}

	requeued, err := dlq.Requeue(ctx, []string{dlqMsgs[0].ID}, main)
	if err != nil {
		t.Fatalf("Requeue: %v", err)
	}
	if requeued != 1 {
		t.Fatalf("expected 1 requeued, got %d", requeued)
	}

	backInMain, err := main.Claim(ctx, 10, 0, "worker2")
	if err != nil {
		t.Fatalf("Claim after requeue: %v", err)
	}
	if len(backInMain) != 1 {
		t.Fatalf("expected requeued message back in main queue, got %d", len(backInMain))
	}
	if backInMain[0].Error != "" || backInMain[0].SourceQueue != "" {
		t.Errorf("expected requeue to strip dlq headers, got error=%q source=%q", backInMain[0].Error, backInMain[0].SourceQueue)
	}
}

func TestQueue_MoveToDLQAndRequeueDefaultToPairedQueues(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	main, dlq, err := svc.CreateQueuePair(ctx, "refunds")
	if err != nil {
		t.Fatalf("CreateQueuePair: %v", err)
	}
	if _, err := main.Publish(ctx, map[string]any{"amount": 5}, nil); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	msgs, err := main.Claim(ctx, 10, 0, "worker")
	if err != nil {
		t.Fatalf("Claim: %v", err)
	}

	moved, err := main.MoveToDLQ(ctx, []string{msgs[0].ID}, "bad", nil)
	if err != nil {
		t.Fatalf("MoveToDLQ with nil target: %v", err)
	}
	if moved != 1 {
		t.Fatalf("expected 1 moved to the paired dlq, got %d", moved)
	}

	dlqMsgs, err := dlq.Claim(ctx, 10, 0, "")
	if err != nil {
		t.Fatalf("Claim dlq: %v", err)
	}
	if len(dlqMsgs) != 1 {
		t.Fatalf("expected the message in the paired dlq, got %d", len(dlqMsgs))
	}

	requeued, err := dlq.Requeue(ctx, []string{dlqMsgs[0].ID}, nil)
	if err != nil {
		t.Fatalf("Requeue with nil dest: %v", err)
	}
	if requeued != 1 {
		t.Fatalf("expected 1 requeued to the paired main queue, got %d", requeued)
	}

	back, err := main.Claim(ctx, 10, 0, "worker2")
	if err != nil {
		t.Fatalf("Claim after requeue: %v", err)
	}
	if len(back) != 1 {
		t.Errorf("expected the message back in the paired main queue, got %d", len(back))
	}
}

func TestQueue_MoveToDLQRejectedOnDLQHandle(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, dlq, err := svc.CreateQueuePair(ctx, "nested")
	if err != nil {
		t.Fatalf("CreateQueuePair: %v", err)
	}

	if _, err := dlq.MoveToDLQ(ctx, []string{"1-1"}, "nope", nil); err == nil {
		t.Fatal("expected an error moving from a dlq handle; dlqs never have their own dlq")
	}
}

func TestQueue_RequeueOnlyValidOnDLQ(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	main, _, err := svc.CreateQueuePair(ctx, "strict")
	if err != nil {
		t.Fatalf("CreateQueuePair: %v", err)
	}

	_, err = main.Requeue(ctx, []string{"1-1"}, main)
	if err == nil {
		t.Fatal("expected an error requeuing from a non-DLQ handle")
	}
}

func TestQueue_Purge(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	main, _, err := svc.CreateQueuePair(ctx, "purgeable")
	if err != nil {
		t.Fatalf("CreateQueuePair: %v", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := main.Publish(ctx, map[string]any{"i": i}, nil); err != nil {
			t.Fatalf("Publish: %v", err)
		}
	}

	n, err := main.Purge(ctx)
	if err != nil {
		t.Fatalf("Purge: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 purged, got %d", n)
	}

	info, err := main.Info(ctx)
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if info.MsgCount != 0 {
		t.Errorf("expected empty queue after purge, got %d", info.MsgCount)
	}
}

func TestQueue_PublishWithTTLExpires(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	main, _, err := svc.CreateQueuePair(ctx, "ephemeral")
	if err != nil {
		t.Fatalf("CreateQueuePair: %v", err)
	}

	ttl := 1 * time.Millisecond
	if _, err := main.Publish(ctx, map[string]any{"n": 1}, &ttl); err != nil {
		t.Fatalf("Publish: %v", err)
	}
	time.Sleep(5 * time.Millisecond)

	removed, err := svc.SweepExpired(ctx)
	if err != nil {
		t.Fatalf("SweepExpired: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 expired message swept, got %d", removed)
	}

	info, err := main.Info(ctx)
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if info.MsgCount != 0 {
		t.Errorf("expected the expired message to be gone, got count %d", info.MsgCount)
	}
}

func TestQueue_DeleteIgnoresUnknownIDs(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	main, _, err := svc.CreateQueuePair(ctx, "del")
	if err != nil {
		t.Fatalf("CreateQueuePair: %v", err)
	}

	n, err := main.Delete(ctx, []string{"9999999999999-0"})
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if n != 0 {
		t.Errorf("expected 0 deleted for an unknown id, got %d", n)
	}
}

package leanmq

import (
	"context"
	"errors"
	"testing"
)

func TestTransaction_CommitPublishesAllAtomically(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	q1, _, err := svc.CreateQueuePair(ctx, "a")
	if err != nil {
		t.Fatalf("CreateQueuePair a: %v", err)
	}
	q2, _, err := svc.CreateQueuePair(ctx, "b")
	if err != nil {
		t.Fatalf("CreateQueuePair b: %v", err)
	}

	tx := svc.Transaction()
	tx.Send(q1, map[string]any{"x": 1}, nil)
	tx.Send(q2, map[string]any{"x": 2}, nil)

	ids, err := tx.Commit(ctx)
	if err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 ids, got %d", len(ids))
	}
	for i, id := range ids {
		if id == "" {
			t.Errorf("expected intent %d to have a non-empty id", i)
		}
	}

	info1, err := q1.Info(ctx)
	if err != nil {
		t.Fatalf("Info a: %v", err)
	}
	if info1.MsgCount != 1 {
		t.Errorf("expected 1 message in queue a, got %d", info1.MsgCount)
	}

	info2, err := q2.Info(ctx)
	if err != nil {
		t.Fatalf("Info b: %v", err)
	}
	if info2.MsgCount != 1 {
		t.Errorf("expected 1 message in queue b, got %d", info2.MsgCount)
	}
}

func TestTransaction_FailedCommitPublishesNothing(t *testing.T) {
	svc, mr := newTestService(t)
	ctx := context.Background()

	q, _, err := svc.CreateQueuePair(ctx, "doomed")
	if err != nil {
		t.Fatalf("CreateQueuePair: %v", err)
	}

	tx := svc.Transaction()
	tx.Send(q, map[string]any{"x": 1}, nil)

	mr.SetError("backend down")
	_, err = tx.Commit(ctx)
	mr.SetError("")
	if !errors.Is(err, ErrTransactionFailure) {
		t.Fatalf("expected ErrTransactionFailure, got %v", err)
	}

	info, err := q.Info(ctx)
	if err != nil {
		t.Fatalf("Info: %v", err)
	}
	if info.MsgCount != 0 {
		t.Errorf("expected no message visible after a failed commit, got %d", info.MsgCount)
	}
}

func TestTransaction_EmptyCommitIsNoop(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	tx := svc.Transaction()
	ids, err := tx.Commit(ctx)
	if err != nil {
		t.Fatalf("Commit on empty transaction: %v", err)
	}
	if ids != nil {
		t.Errorf("expected nil ids for an empty transaction, got %v", ids)
	}
}

package leanmq

import (
	"context"
	"testing"
)

func TestRegistry_CreatePairSetsConsumerGroupAndPairedDLQName(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	mainMeta, dlqMeta, err := svc.registry.CreatePair(ctx, "widgets")
	if err != nil {
		t.Fatalf("CreatePair: %v", err)
	}
	if mainMeta.IsDLQ {
		t.Error("expected main meta IsDLQ=false")
	}
	if mainMeta.ConsumerGroup != groupName("widgets") {
		t.Errorf("expected consumer group %q, got %q", groupName("widgets"), mainMeta.ConsumerGroup)
	}
	if mainMeta.PairedDLQName != "widgets:dlq" {
		t.Errorf("expected paired dlq name widgets:dlq, got %q", mainMeta.PairedDLQName)
	}
	if !dlqMeta.IsDLQ {
		t.Error("expected dlq meta IsDLQ=true")
	}
	if dlqMeta.ConsumerGroup != "" {
		t.Errorf("expected dlq meta to carry no consumer group, got %q", dlqMeta.ConsumerGroup)
	}
}

func TestRegistry_CreatePairIsIdempotentAcrossCalls(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	m1, _, err := svc.registry.CreatePair(ctx, "again")
	if err != nil {
		t.Fatalf("first CreatePair: %v", err)
	}
	m2, _, err := svc.registry.CreatePair(ctx, "again")
	if err != nil {
		t.Fatalf("second CreatePair: %v", err)
	}
	if m1.CreatedAt != m2.CreatedAt {
		t.Errorf("expected CreatedAt to be stable across idempotent recreation, got %v then %v", m1.CreatedAt, m2.CreatedAt)
	}
}

func TestRegistry_GetUnknownQueue(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	_, err := svc.registry.Get(ctx, "ghost")
	if err == nil {
		t.Fatal("expected an error for an unregistered queue name")
	}
}

func TestIsDLQName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"orders", false},
		{"orders:dlq", true},
		{"dlq", false},
		{":dlq", true},
	}
	for _, tt := range tests {
		if got := isDLQName(tt.name); got != tt.want {
			t.Errorf("isDLQName(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

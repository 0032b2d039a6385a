package leanmq

import (
	"context"

	"github.com/rs/zerolog"
)

// QueueService is the library's top-level entry point. It owns the
// Backend Gateway, the Queue Registry, and the Expiration Sweeper, and
// hands out Queue handles and Transactions built on top of them.
type QueueService struct {
	gw       *Gateway
	registry *Registry
	sweeper  *Sweeper
	cfg      Config
	log      zerolog.Logger
}

// NewQueueService dials the backend per cfg and returns a ready
// QueueService. Construction does not verify connectivity; call Ping (via
// the Gateway) or perform any operation to surface a ConnectionFailure.
func NewQueueService(cfg Config, log zerolog.Logger) *QueueService {
	gw := NewGateway(cfg, log)
	registry := newRegistry(gw, cfg.Prefix)
	return &QueueService{
		gw:       gw,
		registry: registry,
		sweeper:  newSweeper(gw, registry, cfg.Prefix, log),
		cfg:      cfg,
		log:      log,
	}
}

// Ping verifies the backend is reachable.
func (s *QueueService) Ping(ctx context.Context) error {
	return s.gw.Ping(ctx)
}

// Close releases the Gateway's pool resources. Idempotent; operations
// attempted after Close fail with ErrAlreadyClosed.
func (s *QueueService) Close() error {
	return s.gw.Close()
}

// CreateQueuePair creates (or idempotently reuses) a queue and its paired
// DLQ, returning handles to both.
func (s *QueueService) CreateQueuePair(ctx context.Context, name string) (main, dlq *Queue, err error) {
	mainMeta, dlqMeta, err := s.registry.CreatePair(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	return s.handleFor(mainMeta), s.handleFor(dlqMeta), nil
}

// GetQueue returns a handle to the named queue, or ErrQueueNotFound if it
// has no registry entry.
func (s *QueueService) GetQueue(ctx context.Context, name string) (*Queue, error) {
	meta, err := s.registry.Get(ctx, name)
	if err != nil {
		return nil, err
	}
	return s.handleFor(meta), nil
}

// GetDeadLetterQueue returns a handle to name's paired DLQ, or
// ErrDLQNotFound if absent.
func (s *QueueService) GetDeadLetterQueue(ctx context.Context, name string) (*Queue, error) {
	meta, err := s.registry.GetDLQ(ctx, name)
	if err != nil {
		return nil, err
	}
	return s.handleFor(meta), nil
}

// ListQueues returns a snapshot of every registered queue's metadata.
func (s *QueueService) ListQueues(ctx context.Context) ([]*QueueMeta, error) {
	return s.registry.List(ctx)
}

// DeleteQueue unregisters name (and, if alsoDLQ, its paired DLQ) and
// removes the underlying stream(s).
func (s *QueueService) DeleteQueue(ctx context.Context, name string, alsoDLQ bool) error {
	return s.registry.Delete(ctx, name, alsoDLQ)
}

// SweepExpired removes every message across every registered queue whose
// TTL has elapsed, returning the total count removed.
func (s *QueueService) SweepExpired(ctx context.Context) (int, error) {
	return s.sweeper.SweepExpired(ctx)
}

// Transaction returns a new, empty Transaction builder. Send() intents
// accumulated on it become visible together, or not at all, on Commit.
func (s *QueueService) Transaction() *Transaction {
	return newTransaction(s.gw)
}

func (s *QueueService) handleFor(meta *QueueMeta) *Queue {
	return newQueueHandle(s.gw, s.cfg.Prefix, meta.Name, meta.IsDLQ, s.cfg.ReclaimIdle, s.log)
}

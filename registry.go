package leanmq

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// QueueMeta is the registry's view of a queue, independent of its live
// message/pending counts.
type QueueMeta struct {
	Name          string
	IsDLQ         bool
	ConsumerGroup string
	CreatedAt     time.Time
	PairedDLQName string
}

// Registry tracks known queue names and their metadata in a backend-side
// set, keyed `{prefix}__queues`, alongside a per-queue metadata hash.
type Registry struct {
	gw     *Gateway
	prefix string
}

func newRegistry(gw *Gateway, prefix string) *Registry {
	return &Registry{gw: gw, prefix: prefix}
}

// CreatePair creates (or idempotently reuses) a queue and its paired DLQ,
// anchoring the main queue's consumer group at the stream's beginning so
// group creation after a restart never skips pre-existing messages.
func (r *Registry) CreatePair(ctx context.Context, name string) (main, dlq *QueueMeta, err error) {
	if name == "" {
		return nil, nil, fmt.Errorf("%w: queue name must not be empty", ErrQueueFailure)
	}
	dlqN := dlqName(name)

	err = r.gw.do(ctx, func(ctx context.Context, c *redis.Client) error {
		pipe := c.TxPipeline()
		pipe.SAdd(ctx, queuesSetKey(r.prefix), name, dlqN)
		pipe.XGroupCreateMkStream(ctx, streamKey(r.prefix, name), groupName(name), "0")
		if _, err := pipe.Exec(ctx); err != nil && !isBusyGroup(err) {
			return fmt.Errorf("create queue pair %s: %w", name, err)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	now := time.Now()
	if err = r.ensureMeta(ctx, name, false, now); err != nil {
		return nil, nil, err
	}
	if err = r.ensureMeta(ctx, dlqN, true, now); err != nil {
		return nil, nil, err
	}

	main, err = r.Get(ctx, name)
	if err != nil {
		return nil, nil, err
	}
	dlq, err = r.Get(ctx, dlqN)
	if err != nil {
		return nil, nil, err
	}
	return main, dlq, nil
}

// ensureMeta writes the metadata hash for a queue only if it is absent,
// so CreatePair stays idempotent across restarts.
func (r *Registry) ensureMeta(ctx context.Context, name string, isDLQ bool, createdAt time.Time) error {
	return r.gw.do(ctx, func(ctx context.Context, c *redis.Client) error {
		_, err := c.HSetNX(ctx, metaKey(r.prefix, name), "created_at", createdAt.UnixMilli()).Result()
		if err != nil {
			return fmt.Errorf("record metadata for %s: %w", name, err)
		}
		return c.HSet(ctx, metaKey(r.prefix, name), "is_dlq", isDLQ).Err()
	})
}

// Get returns the registry entry for name, or ErrQueueNotFound if it is not
// a member of the registry set.
func (r *Registry) Get(ctx context.Context, name string) (*QueueMeta, error) {
	isMember, err := doValue(ctx, r.gw, func(ctx context.Context, c *redis.Client) (bool, error) {
		return c.SIsMember(ctx, queuesSetKey(r.prefix), name).Result()
	})
	if err != nil {
		return nil, err
	}
	if !isMember {
		return nil, fmt.Errorf("%w: %s", ErrQueueNotFound, name)
	}

	meta, err := doValue(ctx, r.gw, func(ctx context.Context, c *redis.Client) (map[string]string, error) {
		return c.HGetAll(ctx, metaKey(r.prefix, name)).Result()
	})
	if err != nil {
		return nil, err
	}

	isDLQ := isDLQName(name)
	qm := &QueueMeta{Name: name, IsDLQ: isDLQ, CreatedAt: time.Now()}
	if !isDLQ {
		qm.ConsumerGroup = groupName(name)
		qm.PairedDLQName = dlqName(name)
	}
	if v, ok := meta["created_at"]; ok {
		var ms int64
		if _, scanErr := fmt.Sscanf(v, "%d", &ms); scanErr == nil {
			qm.CreatedAt = time.UnixMilli(ms)
		}
	}
	return qm, nil
}

// GetDLQ returns the registry entry for name's paired DLQ, or
// ErrDLQNotFound if absent (the main queue itself may still exist).
func (r *Registry) GetDLQ(ctx context.Context, name string) (*QueueMeta, error) {
	meta, err := r.Get(ctx, dlqName(name))
	if err != nil {
		if errors.Is(err, ErrQueueNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrDLQNotFound, name)
		}
		return nil, err
	}
	return meta, nil
}

// List returns a snapshot of every registered queue's metadata.
func (r *Registry) List(ctx context.Context) ([]*QueueMeta, error) {
	names, err := doValue(ctx, r.gw, func(ctx context.Context, c *redis.Client) ([]string, error) {
		return c.SMembers(ctx, queuesSetKey(r.prefix)).Result()
	})
	if err != nil {
		return nil, err
	}
	out := make([]*QueueMeta, 0, len(names))
	for _, n := range names {
		meta, err := r.Get(ctx, n)
		if err != nil {
			if errors.Is(err, ErrQueueNotFound) {
				continue
			}
			return nil, err
		}
		out = append(out, meta)
	}
	return out, nil
}

// Delete unregisters name (and, if alsoDLQ, its paired DLQ) and removes the
// underlying stream(s), consumer group, metadata, and delivery-count hash.
func (r *Registry) Delete(ctx context.Context, name string, alsoDLQ bool) error {
	names := []string{name}
	if alsoDLQ && !isDLQName(name) {
		names = append(names, dlqName(name))
	}

	return r.gw.do(ctx, func(ctx context.Context, c *redis.Client) error {
		pipe := c.TxPipeline()
		for _, n := range names {
			// The group must be destroyed while its stream still exists:
			// XGROUP DESTROY on a missing key is an error reply.
			if !isDLQName(n) {
				pipe.XGroupDestroy(ctx, streamKey(r.prefix, n), groupName(n))
			}
			pipe.SRem(ctx, queuesSetKey(r.prefix), n)
			pipe.Del(ctx, streamKey(r.prefix, n))
			pipe.Del(ctx, metaKey(r.prefix, n))
			pipe.Del(ctx, deliveriesKey(r.prefix, n))
		}
		if _, err := pipe.Exec(ctx); err != nil && !isBusyGroup(err) {
			return fmt.Errorf("delete queue %s: %w", name, err)
		}
		return nil
	})
}

func isDLQName(name string) bool {
	const suffix = ":dlq"
	return len(name) >= len(suffix) && name[len(name)-len(suffix):] == suffix
}

func isBusyGroup(err error) bool {
	return err != nil && len(err.Error()) >= 9 && err.Error()[:9] == "BUSYGROUP"
}

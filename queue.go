package leanmq

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/leanmq-go/leanmq/metrics"
)

// Queue is a handle on a single stream. Non-DLQ handles carry a
// consumer group and support Claim's group semantics; DLQ handles are
// read with XRANGE and have no claim/pending bookkeeping.
type Queue struct {
	gw          *Gateway
	prefix      string
	name        string
	isDLQ       bool
	reclaimIdle time.Duration
	log         zerolog.Logger
}

func newQueueHandle(gw *Gateway, prefix, name string, isDLQ bool, reclaimIdle time.Duration, log zerolog.Logger) *Queue {
	return &Queue{
		gw:          gw,
		prefix:      prefix,
		name:        name,
		isDLQ:       isDLQ,
		reclaimIdle: reclaimIdle,
		log:         log.With().Str("queue", name).Logger(),
	}
}

// Name returns the queue's registered name.
func (q *Queue) Name() string { return q.name }

// IsDLQ reports whether this handle is a dead-letter queue.
func (q *Queue) IsDLQ() bool { return q.isDLQ }

func (q *Queue) key() string   { return streamKey(q.prefix, q.name) }
func (q *Queue) group() string { return groupName(q.name) }

// Publish appends body to the stream, optionally expiring after
// ttl. It returns the backend-assigned, monotonically-ordered entry id.
func (q *Queue) Publish(ctx context.Context, body map[string]any, ttl *time.Duration) (string, error) {
	data, err := encodeWireMessage(body, ttl)
	if err != nil {
		return "", err
	}

	id, err := doValue(ctx, q.gw, func(ctx context.Context, c *redis.Client) (string, error) {
		return c.XAdd(ctx, &redis.XAddArgs{
			Stream: q.key(),
			Values: xAddValues(data),
		}).Result()
	})
	if err != nil {
		return "", fmt.Errorf("%w: publish to %s: %v", ErrQueueFailure, q.name, err)
	}
	metrics.MessagesPublishedTotal.WithLabelValues(q.name).Inc()
	return id, nil
}

// Claim returns up to count messages. On a queue with a consumer
// group, this reads new (">") entries for consumerID, blocking up to
// blockFor if the stream is currently empty (blockFor == 0 means
// non-blocking). On a DLQ handle (no group), it reads from the stream head
// in insertion order without claim semantics.
//
// Before returning new group entries, Claim first checks for pending
// entries idle longer than reclaimIdle and reclaims them via XAUTOCLAIM so a
// crashed consumer's work is picked up by whoever claims next.
func (q *Queue) Claim(ctx context.Context, count int64, blockFor time.Duration, consumerID string) ([]Message, error) {
	if consumerID == "" {
		consumerID = "consumer1"
	}
	if q.isDLQ {
		return q.claimDLQ(ctx, count)
	}

	reclaimed, err := q.reclaimStale(ctx, count, consumerID)
	if err != nil {
		return nil, err
	}
	if int64(len(reclaimed)) >= count {
		return reclaimed[:count], nil
	}

	remaining := count - int64(len(reclaimed))

	// go-redis sends BLOCK 0 (wait forever) for a zero Block; a negative
	// value is what makes the read non-blocking.
	block := blockFor
	if block <= 0 {
		block = -1
	}

	// A blocking XREADGROUP is issued directly against the raw client
	// rather than through doValue: the retry wrapper would reissue the
	// whole Block duration on a transient error, doubling the caller's
	// wait for what is already an intentionally long call.
	c, err := q.gw.raw()
	if err != nil {
		return nil, err
	}
	entries, err := c.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    q.group(),
		Consumer: consumerID,
		Streams:  []string{q.key(), ">"},
		Count:    remaining,
		Block:    block,
	}).Result()
	if err != nil {
		if err == redis.Nil {
			return reclaimed, nil
		}
		return nil, fmt.Errorf("%w: claim from %s: %v", ErrQueueFailure, q.name, err)
	}

	out := reclaimed
	for _, stream := range entries {
		for _, xm := range stream.Messages {
			dc, bumpErr := q.bumpDeliveryCount(ctx, xm.ID)
			if bumpErr != nil {
				return nil, bumpErr
			}
			msg, decErr := decodeWireMessage(xm, dc)
			if decErr != nil {
				q.log.Warn().Err(decErr).Str("id", xm.ID).Msg("dropping undecodable entry")
				continue
			}
			out = append(out, msg)
		}
	}
	if len(out) > 0 {
		metrics.MessagesClaimedTotal.WithLabelValues(q.name).Add(float64(len(out)))
	}
	return out, nil
}

// reclaimStale claims pending entries that have sat idle longer than
// reclaimIdle, as any consumer (not just the original claimant).
func (q *Queue) reclaimStale(ctx context.Context, count int64, consumerID string) ([]Message, error) {
	idle := q.reclaimIdle
	if idle <= 0 {
		idle = 30 * time.Second
	}

	var claimed []redis.XMessage
	err := q.gw.do(ctx, func(ctx context.Context, c *redis.Client) error {
		msgs, _, claimErr := c.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   q.key(),
			Group:    q.group(),
			MinIdle:  idle,
			Start:    "0-0",
			Consumer: consumerID,
			Count:    count,
		}).Result()
		if claimErr != nil {
			return claimErr
		}
		claimed = msgs
		return nil
	})
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: reclaim stale entries in %s: %v", ErrQueueFailure, q.name, err)
	}

	out := make([]Message, 0, len(claimed))
	for _, xm := range claimed {
		dc, bumpErr := q.bumpDeliveryCount(ctx, xm.ID)
		if bumpErr != nil {
			return nil, bumpErr
		}
		msg, decErr := decodeWireMessage(xm, dc)
		if decErr != nil {
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

// claimDLQ reads from the DLQ stream head in insertion order; DLQs have no
// consumer group, so there is no claim/pending bookkeeping.
func (q *Queue) claimDLQ(ctx context.Context, count int64) ([]Message, error) {
	entries, err := doValue(ctx, q.gw, func(ctx context.Context, c *redis.Client) ([]redis.XMessage, error) {
		return c.XRangeN(ctx, q.key(), "-", "+", count).Result()
	})
	if err != nil {
		return nil, fmt.Errorf("%w: read dlq %s: %v", ErrQueueFailure, q.name, err)
	}
	out := make([]Message, 0, len(entries))
	for _, xm := range entries {
		msg, decErr := decodeWireMessage(xm, 0)
		if decErr != nil {
			continue
		}
		out = append(out, msg)
	}
	return out, nil
}

// bumpDeliveryCount increments and returns the live delivery count for a
// main-queue entry, tracked in the sidecar deliveries hash since stream
// entries are immutable.
func (q *Queue) bumpDeliveryCount(ctx context.Context, entryID string) (int, error) {
	n, err := doValue(ctx, q.gw, func(ctx context.Context, c *redis.Client) (int64, error) {
		return c.HIncrBy(ctx, deliveriesKey(q.prefix, q.name), entryID, 1).Result()
	})
	if err != nil {
		return 0, fmt.Errorf("%w: bump delivery count for %s: %v", ErrQueueFailure, entryID, err)
	}
	return int(n), nil
}

// Acknowledge marks ids delivered-and-processed in the consumer group.
// It returns the count actually acknowledged; ids outside the
// pending set are ignored rather than erroring.
func (q *Queue) Acknowledge(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 || q.isDLQ {
		return 0, nil
	}
	n, err := doValue(ctx, q.gw, func(ctx context.Context, c *redis.Client) (int64, error) {
		return c.XAck(ctx, q.key(), q.group(), ids...).Result()
	})
	if err != nil {
		return 0, fmt.Errorf("%w: acknowledge on %s: %v", ErrQueueFailure, q.name, err)
	}
	metrics.MessagesAcknowledgedTotal.WithLabelValues(q.name).Add(float64(n))
	return int(n), nil
}

// Delete removes ids from the stream entirely. It does not
// acknowledge group pending state; callers who want clean pending
// accounting must Acknowledge first.
func (q *Queue) Delete(ctx context.Context, ids []string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	n, err := doValue(ctx, q.gw, func(ctx context.Context, c *redis.Client) (int64, error) {
		return c.XDel(ctx, q.key(), ids...).Result()
	})
	if err != nil {
		return 0, fmt.Errorf("%w: delete from %s: %v", ErrQueueFailure, q.name, err)
	}
	if !q.isDLQ {
		_ = q.gw.do(ctx, func(ctx context.Context, c *redis.Client) error {
			return c.HDel(ctx, deliveriesKey(q.prefix, q.name), ids...).Err()
		})
	}
	return int(n), nil
}

// MoveToDLQ relocates ids to target (the paired DLQ if target is nil),
// annotating each surviving body with _error, _source_queue and _moved_at
// before acknowledging and deleting them from this queue. An id
// whose body can no longer be read is skipped silently; the rest of the
// batch still commits. Returns the count successfully relocated.
func (q *Queue) MoveToDLQ(ctx context.Context, ids []string, reason string, target *Queue) (int, error) {
	if q.isDLQ {
		return 0, fmt.Errorf("%w: %s is already a dead-letter queue", ErrQueueFailure, q.name)
	}
	if target == nil {
		target = q.pairedDLQ()
	}
	if len(ids) == 0 {
		return 0, nil
	}
	bodies, err := q.readBodies(ctx, ids)
	if err != nil {
		return 0, err
	}
	if len(bodies) == 0 {
		return 0, nil
	}

	now := time.Now()
	nowMS := now.UnixMilli()
	moved := make([]string, 0, len(bodies))

	err = q.gw.do(ctx, func(ctx context.Context, c *redis.Client) error {
		pipe := c.TxPipeline()
		for _, b := range bodies {
			wm := b.wm
			wm.Error = reason
			wm.SourceQueue = q.name
			wm.MovedAt = &nowMS
			wm.DeliveryCount++
			data, encErr := marshalWireMessage(wm)
			if encErr != nil {
				continue
			}
			pipe.XAdd(ctx, &redis.XAddArgs{Stream: target.key(), Values: xAddValues(data)})
			moved = append(moved, b.id)
		}
		if len(moved) > 0 {
			pipe.XAck(ctx, q.key(), q.group(), moved...)
			pipe.XDel(ctx, q.key(), moved...)
			pipe.HDel(ctx, deliveriesKey(q.prefix, q.name), moved...)
		}
		_, execErr := pipe.Exec(ctx)
		return execErr
	})
	if err != nil {
		return 0, fmt.Errorf("%w: move %s to dlq: %v", ErrQueueFailure, q.name, err)
	}
	metrics.MessagesMovedToDLQTotal.WithLabelValues(q.name).Add(float64(len(moved)))
	return len(moved), nil
}

// Requeue moves ids from this DLQ to dest (the paired main queue if dest
// is nil), stripping _error/_source_queue/_moved_at. It is only
// defined on a DLQ handle.
func (q *Queue) Requeue(ctx context.Context, ids []string, dest *Queue) (int, error) {
	if !q.isDLQ {
		return 0, fmt.Errorf("%w: requeue is only defined on a dead-letter queue", ErrQueueFailure)
	}
	if dest == nil {
		dest = q.pairedMain()
	}
	if len(ids) == 0 {
		return 0, nil
	}
	bodies, err := q.readBodies(ctx, ids)
	if err != nil {
		return 0, err
	}
	if len(bodies) == 0 {
		return 0, nil
	}

	moved := make([]string, 0, len(bodies))
	err = q.gw.do(ctx, func(ctx context.Context, c *redis.Client) error {
		pipe := c.TxPipeline()
		for _, b := range bodies {
			wm := b.wm
			wm.Error = ""
			wm.SourceQueue = ""
			wm.MovedAt = nil
			data, encErr := marshalWireMessage(wm)
			if encErr != nil {
				continue
			}
			pipe.XAdd(ctx, &redis.XAddArgs{Stream: dest.key(), Values: xAddValues(data)})
			moved = append(moved, b.id)
		}
		if len(moved) > 0 {
			pipe.XDel(ctx, q.key(), moved...)
		}
		_, execErr := pipe.Exec(ctx)
		return execErr
	})
	if err != nil {
		return 0, fmt.Errorf("%w: requeue from %s: %v", ErrQueueFailure, q.name, err)
	}
	metrics.MessagesRequeuedTotal.WithLabelValues(dest.name).Add(float64(len(moved)))
	return len(moved), nil
}

// RequeueMany is an alias for Requeue kept for callers that reprocess an
// arbitrary DLQ id list in bulk (the admin surface's reprocess endpoint).
func (q *Queue) RequeueMany(ctx context.Context, ids []string, dest *Queue) (int, error) {
	return q.Requeue(ctx, ids, dest)
}

// pairedDLQ returns a handle on this queue's sibling dead-letter queue.
func (q *Queue) pairedDLQ() *Queue {
	return newQueueHandle(q.gw, q.prefix, dlqName(q.name), true, q.reclaimIdle, q.log)
}

// pairedMain returns a handle on the main queue this DLQ is paired with.
func (q *Queue) pairedMain() *Queue {
	return newQueueHandle(q.gw, q.prefix, strings.TrimSuffix(q.name, ":dlq"), false, q.reclaimIdle, q.log)
}

type bodyEntry struct {
	id string
	wm wireMessage
}

// readBodies reads the current bodies for ids from this queue's stream,
// skipping ids that are already gone rather than failing the whole batch.
func (q *Queue) readBodies(ctx context.Context, ids []string) ([]bodyEntry, error) {
	out := make([]bodyEntry, 0, len(ids))
	for _, id := range ids {
		entries, err := doValue(ctx, q.gw, func(ctx context.Context, c *redis.Client) ([]redis.XMessage, error) {
			return c.XRange(ctx, q.key(), id, id).Result()
		})
		if err != nil {
			return nil, fmt.Errorf("%w: read %s from %s: %v", ErrQueueFailure, id, q.name, err)
		}
		if len(entries) == 0 {
			continue
		}
		raw, ok := entries[0].Values["data"].(string)
		if !ok {
			continue
		}
		wm, err := unmarshalWireMessage([]byte(raw))
		if err != nil {
			continue
		}
		out = append(out, bodyEntry{id: id, wm: wm})
	}
	return out, nil
}

// Purge removes every message from the stream and clears pending state.
// The queue and its consumer group survive.
func (q *Queue) Purge(ctx context.Context) (int, error) {
	count, err := doValue(ctx, q.gw, func(ctx context.Context, c *redis.Client) (int64, error) {
		return c.XLen(ctx, q.key()).Result()
	})
	if err != nil {
		return 0, fmt.Errorf("%w: purge %s: %v", ErrQueueFailure, q.name, err)
	}

	err = q.gw.do(ctx, func(ctx context.Context, c *redis.Client) error {
		pipe := c.TxPipeline()
		if !q.isDLQ {
			// XTRIM leaves pending-entry references in the group, so the
			// group is recreated empty to clear them.
			pipe.XGroupDestroy(ctx, q.key(), q.group())
			pipe.XGroupCreateMkStream(ctx, q.key(), q.group(), "0")
		}
		pipe.XTrimMaxLen(ctx, q.key(), 0)
		if !q.isDLQ {
			pipe.Del(ctx, deliveriesKey(q.prefix, q.name))
		}
		_, err := pipe.Exec(ctx)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("%w: purge %s: %v", ErrQueueFailure, q.name, err)
	}
	return int(count), nil
}

// Info returns a read-only, possibly-stale snapshot of the queue.
func (q *Queue) Info(ctx context.Context) (QueueInfo, error) {
	msgCount, err := doValue(ctx, q.gw, func(ctx context.Context, c *redis.Client) (int64, error) {
		return c.XLen(ctx, q.key()).Result()
	})
	if err != nil {
		return QueueInfo{}, fmt.Errorf("%w: info for %s: %v", ErrQueueFailure, q.name, err)
	}

	info := QueueInfo{
		Name:     q.name,
		IsDLQ:    q.isDLQ,
		MsgCount: int(msgCount),
	}
	created, metaErr := doValue(ctx, q.gw, func(ctx context.Context, c *redis.Client) (string, error) {
		return c.HGet(ctx, metaKey(q.prefix, q.name), "created_at").Result()
	})
	if metaErr == nil {
		if ms, parseErr := strconv.ParseInt(created, 10, 64); parseErr == nil {
			info.CreatedAt = time.UnixMilli(ms)
		}
	}
	if !q.isDLQ {
		info.ConsumerGroup = q.group()
		pending, pendErr := doValue(ctx, q.gw, func(ctx context.Context, c *redis.Client) (*redis.XPending, error) {
			return c.XPending(ctx, q.key(), q.group()).Result()
		})
		if pendErr != nil && pendErr != redis.Nil {
			return QueueInfo{}, fmt.Errorf("%w: pending info for %s: %v", ErrQueueFailure, q.name, pendErr)
		}
		if pending != nil {
			info.PendingCount = int(pending.Count)
		}
		metrics.QueuePendingGauge.WithLabelValues(q.name).Set(float64(info.PendingCount))
	}
	return info, nil
}

// QueueInfo is the read-only introspection snapshot returned by Info.
type QueueInfo struct {
	Name          string
	IsDLQ         bool
	MsgCount      int
	ConsumerGroup string
	PendingCount  int
	CreatedAt     time.Time
}

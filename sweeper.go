package leanmq

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/leanmq-go/leanmq/metrics"
)

// sweepBatchSize is how many stream entries the Sweeper reads per XRANGE
// call while scanning a queue.
const sweepBatchSize = 100

// Sweeper scans every registered queue for messages whose TTL has elapsed
// and removes them. It runs out-of-band at whatever cadence the
// embedding application chooses; the core does not schedule it.
type Sweeper struct {
	gw       *Gateway
	registry *Registry
	prefix   string
	log      zerolog.Logger
}

func newSweeper(gw *Gateway, registry *Registry, prefix string, log zerolog.Logger) *Sweeper {
	return &Sweeper{gw: gw, registry: registry, prefix: prefix, log: log.With().Str("component", "sweeper").Logger()}
}

// SweepExpired enumerates the registry and removes every message whose
// expires_at has elapsed, across every registered queue (main and DLQ).
// It returns the total count removed. Safe to run concurrently with
// producers and consumers; deleting an already-deleted id is a no-op.
func (s *Sweeper) SweepExpired(ctx context.Context) (int, error) {
	metas, err := s.registry.List(ctx)
	if err != nil {
		return 0, err
	}

	total := 0
	now := time.Now()
	for _, meta := range metas {
		n, err := s.sweepQueue(ctx, meta, now)
		if err != nil {
			s.log.Error().Err(err).Str("queue", meta.Name).Msg("sweep failed for queue")
			continue
		}
		total += n
	}
	return total, nil
}

func (s *Sweeper) sweepQueue(ctx context.Context, meta *QueueMeta, now time.Time) (int, error) {
	key := streamKey(s.prefix, meta.Name)
	removed := 0
	cursor := "-"

	for {
		entries, err := doValue(ctx, s.gw, func(ctx context.Context, c *redis.Client) ([]redis.XMessage, error) {
			return c.XRangeN(ctx, key, cursor, "+", sweepBatchSize).Result()
		})
		if err != nil {
			return removed, fmt.Errorf("%w: scan %s: %v", ErrQueueFailure, meta.Name, err)
		}
		page := entries
		if len(page) == 0 {
			return removed, nil
		}

		var expired []string
		for _, xm := range page {
			raw, ok := xm.Values["data"].(string)
			if !ok {
				continue
			}
			wm, decErr := unmarshalWireMessage([]byte(raw))
			if decErr != nil {
				continue
			}
			if wm.ExpiresAt != nil && *wm.ExpiresAt <= now.UnixMilli() {
				expired = append(expired, xm.ID)
			}
		}

		if len(expired) > 0 {
			err = s.gw.do(ctx, func(ctx context.Context, c *redis.Client) error {
				pipe := c.TxPipeline()
				if !meta.IsDLQ {
					pipe.XAck(ctx, key, groupName(meta.Name), expired...)
					pipe.HDel(ctx, deliveriesKey(s.prefix, meta.Name), expired...)
				}
				pipe.XDel(ctx, key, expired...)
				_, execErr := pipe.Exec(ctx)
				return execErr
			})
			if err != nil {
				return removed, fmt.Errorf("%w: expire entries in %s: %v", ErrQueueFailure, meta.Name, err)
			}
			metrics.MessagesExpiredTotal.WithLabelValues(meta.Name).Add(float64(len(expired)))
			removed += len(expired)
		}

		if len(page) < sweepBatchSize {
			return removed, nil
		}
		cursor = "(" + page[len(page)-1].ID
	}
}

package leanmq

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// sendIntent is one queued publish inside a Transaction, held in memory
// until Commit submits the whole batch to the backend in one round-trip.
type sendIntent struct {
	queue *Queue
	body  map[string]any
	ttl   *time.Duration
}

// Transaction batches multiple Queue.Publish calls into a single,
// backend-atomic pipeline. Calling Send only appends an in-memory
// intent; nothing is visible to consumers until Commit succeeds, and if
// Commit is never called (or the caller abandons the builder) nothing is
// published.
//
// Limitations inherent to the design: read operations cannot participate,
// queue creation cannot be rolled back and must happen before the
// transaction, and durability of the atomic batch is backend-scoped (no
// cross-backend two-phase commit).
type Transaction struct {
	gw      *Gateway
	intents []sendIntent
}

func newTransaction(gw *Gateway) *Transaction {
	return &Transaction{gw: gw}
}

// Send appends a publish intent for queue. It does not touch the backend.
func (tx *Transaction) Send(queue *Queue, body map[string]any, ttl *time.Duration) {
	tx.intents = append(tx.intents, sendIntent{queue: queue, body: body, ttl: ttl})
}

// Commit submits every queued intent to the backend as a single pipelined
// batch that the backend executes atomically: either every publish in the
// transaction becomes visible together, or none does. On failure, no
// publish is externally visible and ErrTransactionFailure is returned.
func (tx *Transaction) Commit(ctx context.Context) ([]string, error) {
	if len(tx.intents) == 0 {
		return nil, nil
	}

	encoded := make([][]byte, len(tx.intents))
	for i, intent := range tx.intents {
		data, err := encodeWireMessage(intent.body, intent.ttl)
		if err != nil {
			return nil, err
		}
		encoded[i] = data
	}

	cmds := make([]*redis.StringCmd, len(tx.intents))
	err := tx.gw.do(ctx, func(ctx context.Context, c *redis.Client) error {
		pipe := c.TxPipeline()
		for i, intent := range tx.intents {
			cmds[i] = pipe.XAdd(ctx, &redis.XAddArgs{
				Stream: intent.queue.key(),
				Values: xAddValues(encoded[i]),
			})
		}
		_, execErr := pipe.Exec(ctx)
		return execErr
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransactionFailure, err)
	}

	ids := make([]string, len(cmds))
	for i, cmd := range cmds {
		ids[i] = cmd.Val()
	}
	return ids, nil
}

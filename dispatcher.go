package leanmq

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/leanmq-go/leanmq/metrics"
)

// Dispatcher pulls from every queue the Router knows about, invokes the
// bound handler, acknowledges on success, and relocates to the route's DLQ
// on failure. It never propagates a handler error to its own caller;
// that is the whole point of webhook-shaped delivery.
type Dispatcher struct {
	svc         *QueueService
	router      *Router
	batchSize   int64
	blockFor    time.Duration
	consumerTag string
	log         zerolog.Logger
}

func newDispatcher(svc *QueueService, router *Router, batchSize int64, blockFor time.Duration, consumerTag string) *Dispatcher {
	return &Dispatcher{
		svc:         svc,
		router:      router,
		batchSize:   batchSize,
		blockFor:    blockFor,
		consumerTag: consumerTag,
		log:         svc.log.With().Str("component", "dispatcher").Logger(),
	}
}

// RunOnce performs one dispatcher iteration: for every registered
// route, in insertion order, it claims up to batchSize messages (the
// first route blocks up to blockFor if empty, every subsequent route in
// the same iteration claims non-blocking), invokes the handler for each,
// and acknowledges or DLQs. It returns the total number of messages
// processed this iteration. Errors reading a particular route are logged
// and swallowed so other routes still get a turn.
func (d *Dispatcher) RunOnce(ctx context.Context) (int, error) {
	start := time.Now()
	defer func() { metrics.DispatcherIterationDuration.Observe(time.Since(start).Seconds()) }()

	processed := 0
	for i, path := range d.router.routes() {
		handler, ok := d.router.HandlerForPath(path)
		if !ok {
			continue
		}
		queueName, ok := d.router.QueueForPath(path)
		if !ok {
			continue
		}

		q, err := d.svc.GetQueue(ctx, queueName)
		if err != nil {
			d.log.Error().Err(err).Str("path", path).Msg("dispatcher: route's queue is unavailable")
			continue
		}
		dlq, err := d.svc.GetDeadLetterQueue(ctx, queueName)
		if err != nil {
			d.log.Error().Err(err).Str("path", path).Msg("dispatcher: route's dlq is unavailable")
			continue
		}

		blockFor := time.Duration(0)
		if i == 0 {
			blockFor = d.blockFor
		}

		msgs, err := q.Claim(ctx, d.batchSize, blockFor, d.consumerTag)
		if err != nil {
			d.log.Error().Err(err).Str("path", path).Msg("dispatcher: claim failed")
			continue
		}

		for _, msg := range msgs {
			d.dispatchOne(ctx, path, q, dlq, handler, msg)
			processed++
		}
	}
	return processed, nil
}

func (d *Dispatcher) dispatchOne(ctx context.Context, path string, q, dlq *Queue, handler Handler, msg Message) {
	err := d.invoke(ctx, handler, msg.Body)
	if err == nil {
		if _, ackErr := q.Acknowledge(ctx, []string{msg.ID}); ackErr != nil {
			d.log.Error().Err(ackErr).Str("path", path).Str("id", msg.ID).Msg("dispatcher: acknowledge failed")
		}
		return
	}

	d.log.Warn().Err(err).Str("path", path).Str("id", msg.ID).Msg("dispatcher: handler failed, moving to dlq")
	if _, dlqErr := q.MoveToDLQ(ctx, []string{msg.ID}, err.Error(), dlq); dlqErr != nil {
		d.log.Error().Err(dlqErr).Str("path", path).Str("id", msg.ID).Msg("dispatcher: move to dlq failed")
	}
}

// invoke recovers a handler panic and converts it to an error so a single
// misbehaving handler can never take down the dispatcher loop, mirroring
// the unconditional "handler exceptions never propagate" rule.
func (d *Dispatcher) invoke(ctx context.Context, handler Handler, body map[string]any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(ctx, body)
}

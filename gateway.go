package leanmq

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"

	"github.com/leanmq-go/leanmq/metrics"
)

// Gateway is the single connection abstraction over the stream backend.
// It owns the Redis client pool, retries transient connection
// failures with exponential backoff, and trips a circuit breaker so a
// wedged backend fails fast instead of piling up retries.
type Gateway struct {
	client  *redis.Client
	cfg     Config
	log     zerolog.Logger
	breaker *gobreaker.CircuitBreaker[any]
	closed  atomic.Bool
}

// NewGateway dials the backend with the given Config. The connection is
// lazy at the go-redis level; Ping verifies liveness.
func NewGateway(cfg Config, log zerolog.Logger) *Gateway {
	client := redis.NewClient(&redis.Options{
		Addr:        fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: cfg.ConnectionTimeout,
	})

	settings := gobreaker.Settings{
		Name:        "leanmq-gateway",
		MaxRequests: 1,
		Interval:    0,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("gateway circuit breaker state change")
		},
	}

	return &Gateway{
		client:  client,
		cfg:     cfg,
		log:     log,
		breaker: gobreaker.NewCircuitBreaker[any](settings),
	}
}

// Ping verifies the backend is reachable, going through the same
// retry/breaker path as every other Gateway call.
func (g *Gateway) Ping(ctx context.Context) error {
	_, err := doValue(ctx, g, func(ctx context.Context, c *redis.Client) (string, error) {
		return c.Ping(ctx).Result()
	})
	return err
}

// Close releases the pool. Idempotent; further calls through the Gateway
// after Close fail with ErrAlreadyClosed.
func (g *Gateway) Close() error {
	if !g.closed.CompareAndSwap(false, true) {
		return nil
	}
	return g.client.Close()
}

// raw exposes the underlying client for direct use outside the retry
// wrapper (blocking claims, where retrying after a timed-out block would
// double the caller's wait).
func (g *Gateway) raw() (*redis.Client, error) {
	if g.closed.Load() {
		return nil, ErrAlreadyClosed
	}
	return g.client, nil
}

// doValue runs fn against the Gateway's client, retrying transient
// connection failures with exponential backoff bounded by cfg.MaxRetries,
// and through the circuit breaker so a consistently failing backend fails
// fast. Logic failures (e.g. a Redis error reply) are never retried.
func doValue[T any](ctx context.Context, g *Gateway, fn func(context.Context, *redis.Client) (T, error)) (T, error) {
	var zero T
	if g.closed.Load() {
		return zero, ErrAlreadyClosed
	}

	out, err := g.breaker.Execute(func() (any, error) {
		return backoffRetry(ctx, g.cfg, func(ctx context.Context) (T, error) {
			return fn(ctx, g.client)
		})
	})
	if err != nil {
		return zero, classifyGatewayErr(err)
	}
	v, _ := out.(T)
	return v, nil
}

// do is doValue for calls with no meaningful result.
func (g *Gateway) do(ctx context.Context, fn func(context.Context, *redis.Client) error) error {
	_, err := doValue(ctx, g, func(ctx context.Context, c *redis.Client) (struct{}, error) {
		return struct{}{}, fn(ctx, c)
	})
	return err
}

func backoffRetry[T any](ctx context.Context, cfg Config, fn func(context.Context) (T, error)) (T, error) {
	var zero, result T

	bo := backoff.WithContext(
		backoff.WithMaxRetries(
			newExponentialBackoff(cfg.RetryInterval),
			uint64(maxInt(cfg.MaxRetries, 0)),
		),
		ctx,
	)

	err := backoff.Retry(func() error {
		v, err := fn(ctx)
		if err == nil || errors.Is(err, redis.Nil) {
			result = v
			return nil
		}
		if !isTransientRedisErr(err) {
			return backoff.Permanent(err)
		}
		metrics.GatewayRetriesTotal.Inc()
		return err
	}, bo)
	if err != nil {
		var perr *backoff.PermanentError
		if errors.As(err, &perr) {
			return zero, perr.Err
		}
		return zero, err
	}
	return result, nil
}

func newExponentialBackoff(interval time.Duration) backoff.BackOff {
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = interval
	bo.MaxElapsedTime = 0 // the retry count, not elapsed time, bounds the loop
	bo.Reset()
	return bo
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// classifyGatewayErr maps a failure from the retry/breaker pipeline onto
// the library's error taxonomy: connection-shaped failures become
// ErrConnectionFailure, everything else (including redis.Nil, which callers
// treat as "no data" rather than an error) passes through unchanged.
func classifyGatewayErr(err error) error {
	if errors.Is(err, redis.Nil) {
		return err
	}
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) || isTransientRedisErr(err) {
		return fmt.Errorf("%w: %v", ErrConnectionFailure, err)
	}
	return err
}

// isTransientRedisErr reports whether err looks like a connectivity problem
// (as opposed to a logic error such as a malformed command or BUSYGROUP)
// and is therefore eligible for retry.
func isTransientRedisErr(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	msg := err.Error()
	for _, s := range []string{
		"connection refused", "i/o timeout", "broken pipe", "connection reset",
		"EOF", "dial tcp", "use of closed network connection", "LOADING",
	} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// Command leanmq-worker runs the Dispatcher/Service Supervisor loop
// (leanmq.Webhook.RunService) that polls every registered path's queue and
// invokes its handler, exactly as a webhook receiver would have been
// invoked, but with at-least-once Redis Streams delivery underneath.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/leanmq-go/leanmq"
	"github.com/leanmq-go/leanmq/internal/logger"
)

func main() {
	cfg, err := leanmq.LoadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	svcCfg, err := leanmq.LoadServiceConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load service config: %v\n", err)
		os.Exit(1)
	}
	svcCfg.InstallSignals = false // main owns signal handling below

	log := logger.New("info")
	log.Info().Msg("starting leanmq worker")

	svc := leanmq.NewQueueService(cfg, log)
	defer svc.Close()

	pingCtx, cancelPing := context.WithTimeout(context.Background(), cfg.ConnectionTimeout)
	defer cancelPing()
	if err := svc.Ping(pingCtx); err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	log.Info().Msg("backend connection established")

	wh := leanmq.NewWebhook(svc, svcCfg)

	ctx := context.Background()
	if err := wh.Register(ctx, "/events/order-created", handleOrderCreated(log)); err != nil {
		log.Fatal().Err(err).Msg("failed to register /events/order-created")
	}

	service := wh.RunService(ctx)
	log.Info().Msg("leanmq worker running; waiting for shutdown signal")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("shutting down leanmq worker")

	service.Stop()
	log.Info().Msg("leanmq worker stopped")
}

// handleOrderCreated is a placeholder handler demonstrating the
// webhook-shaped developer experience: the same function signature a
// direct HTTP webhook receiver for this path would have had.
func handleOrderCreated(log zerolog.Logger) leanmq.Handler {
	return func(ctx context.Context, body map[string]any) error {
		log.Info().Interface("body", body).Msg("order-created event processed")
		return nil
	}
}

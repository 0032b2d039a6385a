// Command leanmq-admin runs the chi-based HTTP introspection surface
// (leanmqadmin) in front of a QueueService: health/readiness, queue
// listing and per-queue info, and bulk DLQ reprocessing.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/leanmq-go/leanmq"
	"github.com/leanmq-go/leanmq/internal/logger"
	"github.com/leanmq-go/leanmq/leanmqadmin"
)

func main() {
	cfg, err := leanmq.LoadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("info")
	log.Info().Msg("starting leanmq admin server")

	svc := leanmq.NewQueueService(cfg, log)
	defer svc.Close()

	ctx, cancelPing := context.WithTimeout(context.Background(), cfg.ConnectionTimeout)
	defer cancelPing()
	if err := svc.Ping(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Redis")
	}
	log.Info().Msg("backend connection established")

	router := leanmqadmin.NewRouter(svc, log)

	addr := fmt.Sprintf("%s:%s", envOr("LEANMQ_ADMIN_HOST", "0.0.0.0"), envOr("LEANMQ_ADMIN_PORT", "8080"))
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", addr).Msg("admin server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	log.Info().Str("signal", sig.String()).Msg("shutting down admin server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("admin server stopped")
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

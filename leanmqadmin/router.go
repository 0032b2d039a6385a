// Package leanmqadmin is an optional chi-based HTTP introspection surface
// for a QueueService: health/readiness, queue listing and per-queue info,
// and bulk DLQ reprocessing. It is not the path Router of the core
// (leanmq.Router/leanmq.Webhook), which is an in-process dispatch table,
// not an HTTP server.
package leanmqadmin

import (
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/leanmq-go/leanmq"
)

// NewRouter creates a chi.Mux exposing svc's health, queue introspection,
// and DLQ reprocess endpoints.
func NewRouter(svc *leanmq.QueueService, log zerolog.Logger) *chi.Mux {
	r := chi.NewRouter()

	r.Use(CorrelationIDMiddleware)
	r.Use(LoggingMiddleware(log))
	r.Use(RecoverMiddleware(log))

	r.Get("/healthz", HealthzHandler())
	r.Get("/readyz", ReadyzHandler(svc))

	r.Get("/queues", ListQueuesHandler(svc))
	r.Get("/queues/{name}", QueueInfoHandler(svc))
	r.Post("/dlq/{queue}/reprocess", DLQReprocessHandler(svc))

	return r
}

package leanmq

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Webhook is the path-routed dispatcher façade: it maps
// HTTP-like paths to queues the way the system it replaces mapped paths to
// webhook endpoints, but delivers at-least-once through a durable queue
// instead of a synchronous HTTP call.
type Webhook struct {
	svc    *QueueService
	router *Router
	cfg    ServiceConfig

	mu      sync.Mutex
	service *Service
}

// NewWebhook returns a Webhook bound to svc. With cfg.AutoStart the
// supervised dispatcher loop begins immediately; otherwise the caller
// drives dispatch explicitly with ProcessOnce or starts a managed Service
// with RunService.
func NewWebhook(svc *QueueService, cfg ServiceConfig) *Webhook {
	w := &Webhook{svc: svc, router: NewRouter(), cfg: cfg}
	if cfg.AutoStart {
		w.RunService(context.Background())
	}
	return w
}

// Register binds path to handler, creating path's queue pair if it
// does not already exist. Registering the same path twice replaces the
// handler; the queue name is unaffected.
func (w *Webhook) Register(ctx context.Context, path string, handler Handler) error {
	name, err := w.router.Register(path, handler)
	if err != nil {
		return err
	}
	_, _, err = w.svc.CreateQueuePair(ctx, name)
	return err
}

// Publish publishes body to the queue bound to path, creating the pair
// first if necessary.
func (w *Webhook) Publish(ctx context.Context, path string, body map[string]any, ttl *time.Duration) (string, error) {
	name, ok := w.router.QueueForPath(path)
	if !ok {
		var err error
		name, err = QueueNameForPath(path)
		if err != nil {
			return "", err
		}
	}
	q, _, err := w.svc.CreateQueuePair(ctx, name)
	if err != nil {
		return "", err
	}
	return q.Publish(ctx, body, ttl)
}

// ProcessOnce runs exactly one Dispatcher iteration over every registered
// route and returns the number of messages processed.
func (w *Webhook) ProcessOnce(ctx context.Context, batchSize int64, blockFor time.Duration) (int, error) {
	if batchSize <= 0 {
		batchSize = w.cfg.BatchSize
	}
	d := newDispatcher(w.svc, w.router, batchSize, blockFor, "consumer-"+uuid.NewString()[:8])
	return d.RunOnce(ctx)
}

// RunService builds a Dispatcher over the Router (routes registered later
// are picked up on the next iteration, since the Dispatcher re-reads the
// route table each pass) and starts a Service supervising it, returning
// the Service so the caller can Stop it for graceful shutdown. A
// second call while the Service is alive returns the same Service.
func (w *Webhook) RunService(ctx context.Context) *Service {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.service != nil && w.service.IsAlive() {
		return w.service
	}
	d := newDispatcher(w.svc, w.router, w.cfg.BatchSize, w.cfg.BlockFor, "dispatcher-"+uuid.NewString()[:8])
	w.service = newService(d, w.cfg, w.svc.log)
	w.service.Start(ctx)
	return w.service
}

// Router exposes the underlying Router for introspection (path <-> queue
// name lookups); handler registration should go through Register.
func (w *Webhook) Router() *Router { return w.router }

package leanmq

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// Handler processes one message's deserialized body. A Handler that
// returns an error sends the message to its route's DLQ instead of
// propagating the failure to the Dispatcher's caller.
type Handler func(ctx context.Context, body map[string]any) error

// Router is a bidirectional map between handler path and queue name, plus
// the handler table itself. It is read-mostly: registration
// is expected during startup, before the Dispatcher is running.
type Router struct {
	mu       sync.RWMutex
	queueOf  map[string]string  // path -> queue name
	pathOf   map[string]string  // queue name -> path
	handlers map[string]Handler // path -> handler
	order    []string           // registration order, for deterministic dispatch
}

// NewRouter returns an empty Router.
func NewRouter() *Router {
	return &Router{
		queueOf:  make(map[string]string),
		pathOf:   make(map[string]string),
		handlers: make(map[string]Handler),
	}
}

// QueueNameForPath derives the deterministic, stable queue name for a
// route path: it must start with "/"; internal "/" separators become "_",
// leading/trailing separators are stripped, and the result must be
// non-empty.
func QueueNameForPath(path string) (string, error) {
	if !strings.HasPrefix(path, "/") {
		return "", fmt.Errorf("%w: route path %q must start with /", ErrMessageFailure, path)
	}
	trimmed := strings.Trim(path, "/")
	name := strings.ReplaceAll(trimmed, "/", "_")
	if name == "" {
		return "", fmt.Errorf("%w: route path %q has no queue name component", ErrMessageFailure, path)
	}
	return name, nil
}

// Register binds path to handler, replacing any prior handler for the
// same path. The queue name is derived deterministically
// from path; registering the same path twice keeps the same queue name.
func (r *Router) Register(path string, handler Handler) (queueName string, err error) {
	name, err := QueueNameForPath(path)
	if err != nil {
		return "", err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.handlers[path]; !exists {
		r.order = append(r.order, path)
	}
	r.queueOf[path] = name
	r.pathOf[name] = path
	r.handlers[path] = handler
	return name, nil
}

// QueueForPath returns the queue name bound to path, if any.
func (r *Router) QueueForPath(path string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	name, ok := r.queueOf[path]
	return name, ok
}

// PathForQueue returns the path bound to a queue name, if any.
func (r *Router) PathForQueue(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	path, ok := r.pathOf[name]
	return path, ok
}

// HandlerForPath returns the handler bound to path, if any.
func (r *Router) HandlerForPath(path string) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[path]
	return h, ok
}

// routes returns every registered path in registration order, the
// Dispatcher's iteration order.
func (r *Router) routes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

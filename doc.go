// Package leanmq implements a reliable, at-least-once message queue on top
// of Redis Streams. Every queue is paired with a dead-letter queue, delivery
// is tracked through consumer groups, and a path-routed dispatcher gives
// callers a webhook-shaped way to register handlers without running an HTTP
// server.
package leanmq

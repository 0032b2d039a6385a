package leanmq

import (
	"errors"
	"fmt"
)

// Sentinel errors for the taxonomy. Components wrap the underlying cause
// with fmt.Errorf("...: %w", ErrX) so callers can test with errors.Is.
var (
	// ErrConnectionFailure indicates the Gateway could not reach Redis, or a
	// retried call exhausted its backoff envelope without success.
	ErrConnectionFailure = errors.New("leanmq: connection failure")

	// ErrQueueFailure is the general-purpose failure for a queue or registry
	// operation (publish, claim, delete, purge, ...).
	ErrQueueFailure = errors.New("leanmq: queue operation failed")

	// ErrQueueNotFound indicates the named queue has no registry entry. It
	// wraps ErrQueueFailure.
	ErrQueueNotFound = fmt.Errorf("%w: queue not found", ErrQueueFailure)

	// ErrDLQNotFound indicates the named queue's dead-letter queue has no
	// registry entry (the main queue may still exist). It wraps
	// ErrQueueFailure.
	ErrDLQNotFound = fmt.Errorf("%w: dead-letter queue not found", ErrQueueFailure)

	// ErrMessageFailure indicates a message could not be encoded, decoded,
	// or otherwise processed independent of backend connectivity.
	ErrMessageFailure = errors.New("leanmq: message failure")

	// ErrTransactionFailure indicates a Transaction's Commit did not publish
	// every pending message atomically.
	ErrTransactionFailure = errors.New("leanmq: transaction failed")

	// ErrAlreadyClosed is returned by any operation attempted after the
	// owning Gateway has been closed.
	ErrAlreadyClosed = errors.New("leanmq: gateway already closed")
)

// Package metrics exposes Prometheus hooks for the queue runtime: counters,
// gauges, and histograms only. The core prescribes no scrape server or
// alerting integration; embedders wire these into whatever /metrics
// endpoint and alerting stack they already run.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Published counters, gauges, and histograms for queue operations.
var (
	MessagesPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leanmq_messages_published_total",
			Help: "Total number of messages published, per queue.",
		},
		[]string{"queue"},
	)

	MessagesClaimedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leanmq_messages_claimed_total",
			Help: "Total number of messages claimed by a consumer, per queue.",
		},
		[]string{"queue"},
	)

	MessagesAcknowledgedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leanmq_messages_acknowledged_total",
			Help: "Total number of messages acknowledged, per queue.",
		},
		[]string{"queue"},
	)

	MessagesMovedToDLQTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leanmq_messages_dlq_total",
			Help: "Total number of messages relocated to a dead-letter queue, per source queue.",
		},
		[]string{"queue"},
	)

	MessagesRequeuedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leanmq_messages_requeued_total",
			Help: "Total number of messages requeued from a dead-letter queue, per destination queue.",
		},
		[]string{"queue"},
	)

	MessagesExpiredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leanmq_messages_expired_total",
			Help: "Total number of messages removed by the expiration sweeper, per queue.",
		},
		[]string{"queue"},
	)

	QueuePendingGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "leanmq_queue_pending",
			Help: "Last-observed pending (claimed, unacknowledged) count, per queue.",
		},
		[]string{"queue"},
	)

	DispatcherIterationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "leanmq_dispatcher_iteration_duration_seconds",
			Help:    "Duration of a single dispatcher loop iteration across all routes.",
			Buckets: prometheus.DefBuckets,
		},
	)

	GatewayRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leanmq_gateway_retries_total",
			Help: "Total number of backend calls retried after a transient connection failure.",
		},
	)
)

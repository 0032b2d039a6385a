package leanmq

// streamKey returns the Redis stream key for a queue name.
func streamKey(prefix, name string) string {
	return prefix + name
}

// dlqName returns the paired dead-letter queue's logical name for a queue.
func dlqName(name string) string {
	return name + ":dlq"
}

// groupName returns the consumer group name for a queue's stream. Only main
// queues carry a consumer group; dead-letter queues are read by XRANGE.
func groupName(name string) string {
	return name + "__group"
}

// queuesSetKey is the Redis set holding every registered queue name
// (main and dead-letter) for a given prefix.
func queuesSetKey(prefix string) string {
	return prefix + "__queues"
}

// metaKey is the Redis hash holding a queue's registry metadata.
func metaKey(prefix, name string) string {
	return prefix + name + "__meta"
}

// deliveriesKey is the Redis hash tracking live delivery counts for pending
// entries on a main queue, keyed by stream entry ID. It exists because
// Streams entries are immutable: delivery_count can't be rewritten in place,
// so the count a claim/reclaim bumps is tracked alongside the stream instead.
func deliveriesKey(prefix, name string) string {
	return prefix + name + "__deliveries"
}

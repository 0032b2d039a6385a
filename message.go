package leanmq

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Message is a delivered queue entry. Body carries the caller's structured
// payload; the remaining fields are delivery metadata maintained by the
// queue itself.
type Message struct {
	ID            string
	Body          map[string]any
	CreatedAt     time.Time
	ExpiresAt     *time.Time
	DeliveryCount int

	// DLQ-only headers, set by MoveToDLQ and cleared by Requeue.
	Error       string
	SourceQueue string
	MovedAt     *time.Time
}

// wireMessage is the JSON shape stored in a stream entry's "data" field:
// one serialized blob per entry rather than one Redis field per Message
// field.
type wireMessage struct {
	Body          map[string]any `json:"body"`
	CreatedAt     int64          `json:"created_at"`
	ExpiresAt     *int64         `json:"expires_at,omitempty"`
	DeliveryCount int            `json:"delivery_count"`
	Error         string         `json:"_error,omitempty"`
	SourceQueue   string         `json:"_source_queue,omitempty"`
	MovedAt       *int64         `json:"_moved_at,omitempty"`
}

func encodeWireMessage(body map[string]any, ttl *time.Duration) ([]byte, error) {
	now := time.Now()
	wm := wireMessage{Body: body, CreatedAt: now.UnixMilli()}
	if ttl != nil {
		exp := now.Add(*ttl).UnixMilli()
		wm.ExpiresAt = &exp
	}
	data, err := json.Marshal(wm)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal body: %v", ErrMessageFailure, err)
	}
	return data, nil
}

func xAddValues(data []byte) map[string]interface{} {
	return map[string]interface{}{"data": string(data)}
}

func marshalWireMessage(wm wireMessage) ([]byte, error) {
	data, err := json.Marshal(wm)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal wire message: %v", ErrMessageFailure, err)
	}
	return data, nil
}

func unmarshalWireMessage(raw []byte) (wireMessage, error) {
	var wm wireMessage
	if err := json.Unmarshal(raw, &wm); err != nil {
		return wireMessage{}, fmt.Errorf("%w: unmarshal wire message: %v", ErrMessageFailure, err)
	}
	return wm, nil
}

// decodeWireMessage turns a raw stream entry into a Message. deliveryCount
// overrides the embedded value, since for main queues the live count is
// tracked in the deliveries hash, not in the immutable stream entry.
func decodeWireMessage(entry redis.XMessage, deliveryCount int) (Message, error) {
	raw, ok := entry.Values["data"].(string)
	if !ok {
		return Message{}, fmt.Errorf("%w: entry %s has no data field", ErrMessageFailure, entry.ID)
	}
	var wm wireMessage
	if err := json.Unmarshal([]byte(raw), &wm); err != nil {
		return Message{}, fmt.Errorf("%w: entry %s: %v", ErrMessageFailure, entry.ID, err)
	}
	m := Message{
		ID:            entry.ID,
		Body:          wm.Body,
		CreatedAt:     time.UnixMilli(wm.CreatedAt),
		DeliveryCount: wm.DeliveryCount,
		Error:         wm.Error,
		SourceQueue:   wm.SourceQueue,
	}
	if deliveryCount > 0 {
		m.DeliveryCount = deliveryCount
	}
	if wm.ExpiresAt != nil {
		t := time.UnixMilli(*wm.ExpiresAt)
		m.ExpiresAt = &t
	}
	if wm.MovedAt != nil {
		t := time.UnixMilli(*wm.MovedAt)
		m.MovedAt = &t
	}
	return m, nil
}

func (m *Message) expired(asOf time.Time) bool {
	return m.ExpiresAt != nil && !m.ExpiresAt.After(asOf)
}

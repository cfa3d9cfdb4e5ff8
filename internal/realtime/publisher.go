// Package realtime implements the best-effort broadcast channel: a
// pluggable Publisher capability with Publish(topic, event) — no return, no
// delivery guarantee. It is never the system of record; clients reconnect
// and reconcile with the event log's ReadEvents after any gap.
package realtime

import (
	"context"
	"encoding/json"
	"log"

	"github.com/go-redis/redis/v8"
)

// Publisher broadcasts an event to a topic. Failure to publish is logged
// and swallowed — the caller's atomic unit has already committed by the
// time Publish runs, so a publish failure must never roll anything back.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any)
}

// RedisPublisher publishes over Redis Pub/Sub, one channel per aggregate type.
type RedisPublisher struct {
	client *redis.Client
}

// NewRedisPublisher constructs a RedisPublisher. client may be nil (e.g.
// Redis unreachable at startup), in which case Publish is a silent no-op.
func NewRedisPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client}
}

func (p *RedisPublisher) Publish(ctx context.Context, topic string, event any) {
	if p.client == nil {
		return
	}
	body, err := json.Marshal(event)
	if err != nil {
		log.Printf("[REALTIME] marshal event for topic %s: %v", topic, err)
		return
	}
	if err := p.client.Publish(ctx, topic, string(body)).Err(); err != nil {
		log.Printf("[REALTIME] publish to topic %s: %v", topic, err)
	}
}

// NoopPublisher discards every event; used in tests and any deployment that
// runs without a Redis broker.
type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, topic string, event any) {}

// Package worker implements the payout dispatcher: a bounded goroutine pool
// that claims payouts from a shared, at-least-once queue and drives them
// through the external-provider step, retrying with bounded backoff.
package worker

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// ErrQueueEmpty is returned by Dequeue when no item arrived before the timeout.
var ErrQueueEmpty = errors.New("worker: queue empty")

// RedisQueue implements a reliable at-least-once queue on top of Redis
// lists: BRPOPLPUSH moves an item atomically from the pending list into a
// processing list, where it stays until Ack removes it. A crashed worker
// leaves its claimed items visible in the processing list for a reaper (or
// operator) to requeue — the queue never silently drops a unit of work.
type RedisQueue struct {
	client        *redis.Client
	queueKey      string
	processingKey string
}

// NewRedisQueue constructs a RedisQueue backed by client.
func NewRedisQueue(client *redis.Client, queueKey, processingKey string) *RedisQueue {
	return &RedisQueue{client: client, queueKey: queueKey, processingKey: processingKey}
}

// Enqueue pushes a work item identified by workKind and key onto the queue.
// Implements payout.Queue.
func (q *RedisQueue) Enqueue(ctx context.Context, workKind, key string) error {
	item := encodeItem(workKind, key)
	if err := q.client.LPush(ctx, q.queueKey, item).Err(); err != nil {
		return fmt.Errorf("worker: enqueue %s: %w", item, err)
	}
	return nil
}

// Dequeue blocks up to timeout for the next item, atomically moving it into
// the processing list. Callers MUST call Ack once the item is durably
// handled, successfully or not — Ack is what removes at-least-once
// redelivery risk for that specific attempt.
func (q *RedisQueue) Dequeue(ctx context.Context, timeout time.Duration) (workKind, key string, err error) {
	item, err := q.client.BRPopLPush(ctx, q.queueKey, q.processingKey, timeout).Result()
	if err == redis.Nil {
		return "", "", ErrQueueEmpty
	}
	if err != nil {
		return "", "", fmt.Errorf("worker: dequeue: %w", err)
	}
	workKind, key, err = decodeItem(item)
	if err != nil {
		return "", "", err
	}
	return workKind, key, nil
}

// Ack removes the given item from the processing list once it has been
// durably handled (regardless of success/failure outcome).
func (q *RedisQueue) Ack(ctx context.Context, workKind, key string) error {
	item := encodeItem(workKind, key)
	if err := q.client.LRem(ctx, q.processingKey, 1, item).Err(); err != nil {
		return fmt.Errorf("worker: ack %s: %w", item, err)
	}
	return nil
}

func encodeItem(workKind, key string) string {
	return workKind + "|" + key
}

func decodeItem(item string) (workKind, key string, err error) {
	parts := strings.SplitN(item, "|", 2)
	if len(parts) != 2 {
		return "", "", fmt.Errorf("worker: malformed queue item %q", item)
	}
	return parts[0], parts[1], nil
}

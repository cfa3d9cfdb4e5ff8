package worker

import (
	"context"
	"testing"
	"time"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisQueue_Enqueue(t *testing.T) {
	client, mock := redismock.NewClientMock()
	q := NewRedisQueue(client, "queue", "processing")

	item := encodeItem(ProcessPayout, "payout-1")
	mock.ExpectLPush("queue", item).SetVal(1)

	err := q.Enqueue(context.Background(), ProcessPayout, "payout-1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisQueue_Dequeue(t *testing.T) {
	client, mock := redismock.NewClientMock()
	q := NewRedisQueue(client, "queue", "processing")

	item := encodeItem(ProcessPayout, "payout-1")
	mock.ExpectBRPopLPush("queue", "processing", 5*time.Second).SetVal(item)

	kind, key, err := q.Dequeue(context.Background(), 5*time.Second)
	require.NoError(t, err)
	assert.Equal(t, ProcessPayout, kind)
	assert.Equal(t, "payout-1", key)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisQueue_Dequeue_Empty(t *testing.T) {
	client, mock := redismock.NewClientMock()
	q := NewRedisQueue(client, "queue", "processing")

	mock.ExpectBRPopLPush("queue", "processing", time.Second).RedisNil()

	_, _, err := q.Dequeue(context.Background(), time.Second)
	assert.ErrorIs(t, err, ErrQueueEmpty)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisQueue_Ack(t *testing.T) {
	client, mock := redismock.NewClientMock()
	q := NewRedisQueue(client, "queue", "processing")

	item := encodeItem(ProcessPayout, "payout-1")
	mock.ExpectLRem("processing", int64(1), item).SetVal(1)

	err := q.Ack(context.Background(), ProcessPayout, "payout-1")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

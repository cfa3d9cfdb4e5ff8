package realtime

import (
	"context"
	"testing"

	"github.com/go-redis/redismock/v8"
	"github.com/stretchr/testify/assert"
)

func TestRedisPublisher_Publish(t *testing.T) {
	client, mock := redismock.NewClientMock()
	p := NewRedisPublisher(client)

	mock.ExpectPublish("payout", `{"id":"p1"}`).SetVal(1)

	p.Publish(context.Background(), "payout", struct {
		ID string `json:"id"`
	}{ID: "p1"})

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRedisPublisher_NilClientIsNoop(t *testing.T) {
	p := NewRedisPublisher(nil)
	p.Publish(context.Background(), "payout", map[string]string{"id": "p1"})
}

func TestNoopPublisher_DiscardsEverything(t *testing.T) {
	NoopPublisher{}.Publish(context.Background(), "payout", map[string]string{"id": "p1"})
}

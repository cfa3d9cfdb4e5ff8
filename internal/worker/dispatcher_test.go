package worker

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruralpay/ledger/internal/events"
	"github.com/ruralpay/ledger/internal/ledger"
	"github.com/ruralpay/ledger/internal/payout"
	"github.com/ruralpay/ledger/internal/provider"
)

// fakeQueue is an in-memory workQueue used only by tests in this package.
type fakeQueue struct {
	mu     sync.Mutex
	acked  []string
	queued []string
}

func (q *fakeQueue) Dequeue(ctx context.Context, timeout time.Duration) (string, string, error) {
	return "", "", ErrQueueEmpty
}

func (q *fakeQueue) Ack(ctx context.Context, workKind, key string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.acked = append(q.acked, key)
	return nil
}

func (q *fakeQueue) Enqueue(ctx context.Context, workKind, key string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.queued = append(q.queued, key)
	return nil
}

func TestDispatcher_ProcessOne_ClaimNoOpWhenTerminal(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ledgerSvc := ledger.NewService(db)
	eventLog := events.NewLog(db, nil)
	machine := payout.NewMachine(db, ledgerSvc, eventLog, nil, nil, 5)

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM payouts WHERE id = \\$1 FOR UPDATE").
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "idempotency_key", "amount_cents", "currency", "recipient_account", "recipient_name",
			"description", "metadata", "status", "linked_transaction_id", "external_payout_id", "external_reference",
			"error_message", "retry_count", "created_at", "updated_at", "processed_at",
		}).AddRow("p1", "k1", int64(10000), "USD", "R", "J", "d", []byte(`{}`), payout.Completed, nil, nil, nil, nil, 0, now, now, nil))
	mock.ExpectRollback()

	q := &fakeQueue{}
	fakeProvider := provider.NewFake()
	d := &Dispatcher{
		queue:           q,
		machine:         machine,
		provider:        fakeProvider,
		backoff:         Backoff{Base: time.Millisecond, Factor: 2, Cap: time.Second},
		maxRetries:      5,
		claimTimeout:    time.Second,
		providerTimeout: time.Second,
	}

	d.processOne(context.Background(), 0, "p1")

	assert.Equal(t, 0, fakeProvider.CallCount("k1"))
	assert.Contains(t, q.acked, "p1")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDispatcher_ProcessOne_AlwaysAcksTheDequeuedItem(t *testing.T) {
	// processOne must Ack even when claim fails outright, so the item never
	// sits stuck in the processing list; a broker-level reaper handles true
	// crashes.
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ledgerSvc := ledger.NewService(db)
	eventLog := events.NewLog(db, nil)
	machine := payout.NewMachine(db, ledgerSvc, eventLog, nil, nil, 5)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM payouts WHERE id = \\$1 FOR UPDATE").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	q := &fakeQueue{}
	d := &Dispatcher{
		queue:           q,
		machine:         machine,
		provider:        provider.NewFake(),
		backoff:         Backoff{Base: time.Millisecond, Factor: 2, Cap: time.Second},
		maxRetries:      5,
		claimTimeout:    time.Second,
		providerTimeout: time.Second,
	}

	d.processOne(context.Background(), 0, "missing")

	assert.Contains(t, q.acked, "missing")
}

package payout

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruralpay/ledger/internal/events"
	"github.com/ruralpay/ledger/internal/ledger"
)

func newTestMachine(t *testing.T) (*Machine, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	ledgerSvc := ledger.NewService(db)
	eventLog := events.NewLog(db, nil)
	m := NewMachine(db, ledgerSvc, eventLog, nil, nil, 5)
	return m, mock, db
}

func validRequest() Request {
	return Request{
		IdempotencyKey:   "k1",
		AmountCents:      10000,
		Currency:         "USD",
		RecipientAccount: "R",
		RecipientName:    "J",
		Description:      "d",
	}
}

func TestMachine_Intake_ValidatesRequest(t *testing.T) {
	m, _, _ := newTestMachine(t)

	req := validRequest()
	req.AmountCents = 0

	_, _, err := m.Intake(context.Background(), req)
	assert.ErrorIs(t, err, ErrValidation)
}

func TestMachine_Intake_NewPayout(t *testing.T) {
	m, mock, _ := newTestMachine(t)
	req := validRequest()

	mock.ExpectBegin()

	mock.ExpectQuery("SELECT (.+) FROM payouts WHERE idempotency_key = \\$1 FOR UPDATE").
		WithArgs(req.IdempotencyKey).
		WillReturnError(sql.ErrNoRows)

	mock.ExpectExec("INSERT INTO payouts").
		WillReturnResult(sqlmock.NewResult(1, 1))

	mock.ExpectQuery("SELECT (.+) FROM events WHERE event_id = \\$1 FOR UPDATE").
		WithArgs("payout.created:k1").
		WillReturnError(sql.ErrNoRows)

	mock.ExpectQuery("INSERT INTO event_sequence_counter (.+) ON CONFLICT (.+) DO UPDATE SET value = event_sequence_counter.value \\+ 1 RETURNING value").
		WillReturnRows(sqlmock.NewRows([]string{"value"}).AddRow(int64(1)))

	mock.ExpectQuery("INSERT INTO events").
		WillReturnRows(sqlmock.NewRows([]string{"created_at"}).AddRow(time.Now()))

	mock.ExpectExec("INSERT INTO payout_summaries").
		WillReturnResult(sqlmock.NewResult(1, 1))

	mock.ExpectCommit()

	p, created, err := m.Intake(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, Pending, p.Status)
	assert.Equal(t, req.IdempotencyKey, p.IdempotencyKey)
	assert.True(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMachine_Intake_LosesInsertRace(t *testing.T) {
	m, mock, _ := newTestMachine(t)
	req := validRequest()
	now := time.Now()

	mock.ExpectBegin()

	mock.ExpectQuery("SELECT (.+) FROM payouts WHERE idempotency_key = \\$1 FOR UPDATE").
		WithArgs(req.IdempotencyKey).
		WillReturnError(sql.ErrNoRows)

	mock.ExpectExec("INSERT INTO payouts").
		WillReturnResult(sqlmock.NewResult(0, 0))

	mock.ExpectQuery("SELECT (.+) FROM payouts WHERE idempotency_key = \\$1 FOR UPDATE").
		WithArgs(req.IdempotencyKey).
		WillReturnRows(payoutRow("p1", req, Pending, now))

	mock.ExpectRollback()

	p, created, err := m.Intake(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "p1", p.ID)
	assert.False(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMachine_Intake_LosesInsertRace_ConflictingFields(t *testing.T) {
	m, mock, _ := newTestMachine(t)
	stored := validRequest()
	now := time.Now()

	mock.ExpectBegin()

	mock.ExpectQuery("SELECT (.+) FROM payouts WHERE idempotency_key = \\$1 FOR UPDATE").
		WithArgs(stored.IdempotencyKey).
		WillReturnError(sql.ErrNoRows)

	mock.ExpectExec("INSERT INTO payouts").
		WillReturnResult(sqlmock.NewResult(0, 0))

	mock.ExpectQuery("SELECT (.+) FROM payouts WHERE idempotency_key = \\$1 FOR UPDATE").
		WithArgs(stored.IdempotencyKey).
		WillReturnRows(payoutRow("p1", stored, Pending, now))

	mock.ExpectRollback()

	conflicting := stored
	conflicting.AmountCents = 500

	_, created, err := m.Intake(context.Background(), conflicting)
	assert.ErrorIs(t, err, ErrIdempotencyConflict)
	assert.False(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMachine_Intake_IdempotentReplayReturnsExisting(t *testing.T) {
	m, mock, _ := newTestMachine(t)
	req := validRequest()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM payouts WHERE idempotency_key = \\$1 FOR UPDATE").
		WithArgs(req.IdempotencyKey).
		WillReturnRows(payoutRow("p1", req, Pending, now))
	mock.ExpectRollback()

	p, created, err := m.Intake(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "p1", p.ID)
	assert.False(t, created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMachine_Intake_ConflictOnMismatchedFields(t *testing.T) {
	m, mock, _ := newTestMachine(t)
	stored := validRequest()
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM payouts WHERE idempotency_key = \\$1 FOR UPDATE").
		WithArgs(stored.IdempotencyKey).
		WillReturnRows(payoutRow("p1", stored, Pending, now))
	mock.ExpectRollback()

	conflicting := stored
	conflicting.AmountCents = 500

	_, _, err := m.Intake(context.Background(), conflicting)
	assert.ErrorIs(t, err, ErrIdempotencyConflict)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMachine_Cancel_IllegalFromProcessing(t *testing.T) {
	m, mock, _ := newTestMachine(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM payouts WHERE id = \\$1 FOR UPDATE").
		WithArgs("p1").
		WillReturnRows(payoutRow("p1", validRequest(), Processing, now))
	mock.ExpectRollback()

	_, err := m.Cancel(context.Background(), "p1")
	assert.ErrorIs(t, err, ErrIllegalTransition)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMachine_ClaimForProcessing_NoOpWhenTerminal(t *testing.T) {
	m, mock, _ := newTestMachine(t)
	now := time.Now()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM payouts WHERE id = \\$1 FOR UPDATE").
		WithArgs("p1").
		WillReturnRows(payoutRow("p1", validRequest(), Completed, now))
	mock.ExpectRollback()

	p, err := m.ClaimForProcessing(context.Background(), "p1")
	require.NoError(t, err)
	assert.Equal(t, Completed, p.Status)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func payoutRow(id string, req Request, status Status, ts time.Time) *sqlmock.Rows {
	metadataJSON, _ := req.Metadata.Value()
	return sqlmock.NewRows([]string{
		"id", "idempotency_key", "amount_cents", "currency", "recipient_account", "recipient_name",
		"description", "metadata", "status", "linked_transaction_id", "external_payout_id", "external_reference",
		"error_message", "retry_count", "created_at", "updated_at", "processed_at",
	}).AddRow(
		id, req.IdempotencyKey, req.AmountCents, req.Currency, req.RecipientAccount, req.RecipientName,
		req.Description, metadataJSON, status, nil, nil, nil,
		nil, 0, ts, ts, nil,
	)
}

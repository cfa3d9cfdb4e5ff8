package readmodel

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruralpay/ledger/internal/ledger"
)

func TestApplyLedgerEntries_UpdatesBothAccountsAndSummary(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	tx, err := db.Begin()
	require.NoError(t, err)

	now := time.Now()
	entries := []ledger.Entry{
		{ID: "e1", TransactionID: "payout_k1", AccountID: "liability-acct", Side: ledger.Debit, AmountCents: 10000, Currency: "USD", CreatedAt: now},
		{ID: "e2", TransactionID: "payout_k1", AccountID: "cash-acct", Side: ledger.Credit, AmountCents: 10000, Currency: "USD", CreatedAt: now},
	}

	mock.ExpectQuery("SELECT normal_side FROM accounts WHERE id = \\$1").
		WithArgs("liability-acct").
		WillReturnRows(sqlmock.NewRows([]string{"normal_side"}).AddRow(ledger.Credit))
	mock.ExpectExec("INSERT INTO account_balances").
		WillReturnResult(sqlmock.NewResult(1, 1))

	mock.ExpectQuery("SELECT normal_side FROM accounts WHERE id = \\$1").
		WithArgs("cash-acct").
		WillReturnRows(sqlmock.NewRows([]string{"normal_side"}).AddRow(ledger.Debit))
	mock.ExpectExec("INSERT INTO account_balances").
		WillReturnResult(sqlmock.NewResult(1, 1))

	mock.ExpectExec("INSERT INTO ledger_transaction_summaries").
		WithArgs("payout_k1", "liability-acct", "cash-acct", int64(10000), "USD", now).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = ApplyLedgerEntries(context.Background(), tx, entries, 7)
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplyPayoutChange_Upserts(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	tx, err := db.Begin()
	require.NoError(t, err)

	now := time.Now()
	mock.ExpectExec("INSERT INTO payout_summaries").
		WithArgs("p1", "k1", int64(10000), "USD", "R", "COMPLETED", now, (*time.Time)(nil)).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err = ApplyPayoutChange(context.Background(), tx, PayoutView{
		PayoutID:         "p1",
		IdempotencyKey:   "k1",
		AmountCents:      10000,
		Currency:         "USD",
		RecipientAccount: "R",
		Status:           "COMPLETED",
		CreatedAt:        now,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

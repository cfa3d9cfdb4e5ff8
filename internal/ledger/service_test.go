package ledger

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_CreateBalancedTransaction_RejectsUnbalanced(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	svc := NewService(db)

	mock.ExpectBegin()
	mock.ExpectRollback()

	_, _, err = svc.CreateBalancedTransaction(context.Background(), "tx1",
		Leg{AccountID: "a1", Cents: 1000, Currency: "USD"},
		Leg{AccountID: "a2", Cents: 900, Currency: "USD"},
		"mismatched legs")

	assert.ErrorIs(t, err, ErrUnbalanced)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_CreateBalancedTransaction_RejectsNonPositive(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	svc := NewService(db)

	mock.ExpectBegin()
	mock.ExpectRollback()

	_, _, err = svc.CreateBalancedTransaction(context.Background(), "tx1",
		Leg{AccountID: "a1", Cents: 0, Currency: "USD"},
		Leg{AccountID: "a2", Cents: 0, Currency: "USD"},
		"zero amount")

	assert.ErrorIs(t, err, ErrNonPositiveAmount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_CreateBalancedTransaction_NewTransaction(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	svc := NewService(db)
	now := time.Now()

	mock.ExpectBegin()

	mock.ExpectQuery("SELECT id, description, created_at FROM ledger_transactions WHERE id = \\$1 FOR UPDATE").
		WithArgs("payout_k1").
		WillReturnError(sql.ErrNoRows)

	mock.ExpectQuery("SELECT id, code, account_type, normal_side, created_at FROM accounts").
		WithArgs("liability-acct").
		WillReturnRows(sqlmock.NewRows([]string{"id", "code", "account_type", "normal_side", "created_at"}).
			AddRow("liability-acct", "PAYOUT_LIABILITY_001", Liability, Credit, now))

	mock.ExpectQuery("SELECT id, code, account_type, normal_side, created_at FROM accounts").
		WithArgs("cash-acct").
		WillReturnRows(sqlmock.NewRows([]string{"id", "code", "account_type", "normal_side", "created_at"}).
			AddRow("cash-acct", "CASH_001", Asset, Debit, now))

	mock.ExpectExec("INSERT INTO ledger_transactions").
		WithArgs("payout_k1", "payout k1", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	mock.ExpectExec("INSERT INTO ledger_entries").
		WithArgs(sqlmock.AnyArg(), "payout_k1", "liability-acct", Debit, int64(10000), "USD", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	mock.ExpectExec("INSERT INTO ledger_entries").
		WithArgs(sqlmock.AnyArg(), "payout_k1", "cash-acct", Credit, int64(10000), "USD", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	mock.ExpectCommit()

	txn, entries, err := svc.CreateBalancedTransaction(context.Background(), "payout_k1",
		Leg{AccountID: "liability-acct", Cents: 10000, Currency: "USD"},
		Leg{AccountID: "cash-acct", Cents: 10000, Currency: "USD"},
		"payout k1")

	require.NoError(t, err)
	assert.Equal(t, "payout_k1", txn.ID)
	require.Len(t, entries, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestService_GetAccountBalance_DefaultsToZero(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	svc := NewService(db)

	mock.ExpectQuery("SELECT balance_cents, currency FROM account_balances WHERE account_id = \\$1").
		WithArgs("missing-acct").
		WillReturnError(sql.ErrNoRows)

	amount, err := svc.GetAccountBalance(context.Background(), "missing-acct")
	require.NoError(t, err)
	assert.True(t, amount.IsZero())
	assert.Equal(t, "USD", amount.Currency)
}

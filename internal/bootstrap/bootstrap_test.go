package bootstrap

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/ruralpay/ledger/internal/ledger"
	"github.com/ruralpay/ledger/internal/payout"
)

func TestBootstrapAccounts_CreatesBothWhenAbsent(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	ledgerSvc := ledger.NewService(db)
	now := time.Now()

	mock.ExpectQuery("SELECT id, code, account_type, normal_side, created_at FROM accounts").
		WithArgs(payout.CashAccountCode).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO accounts").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("SELECT id, code, account_type, normal_side, created_at FROM accounts").
		WithArgs(payout.CashAccountCode).
		WillReturnRows(sqlmock.NewRows([]string{"id", "code", "account_type", "normal_side", "created_at"}).
			AddRow("cash-1", payout.CashAccountCode, ledger.Asset, ledger.Debit, now))

	mock.ExpectQuery("SELECT id, code, account_type, normal_side, created_at FROM accounts").
		WithArgs(payout.LiabilityAccountCode).
		WillReturnError(sql.ErrNoRows)
	mock.ExpectExec("INSERT INTO accounts").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectQuery("SELECT id, code, account_type, normal_side, created_at FROM accounts").
		WithArgs(payout.LiabilityAccountCode).
		WillReturnRows(sqlmock.NewRows([]string{"id", "code", "account_type", "normal_side", "created_at"}).
			AddRow("liability-1", payout.LiabilityAccountCode, ledger.Liability, ledger.Credit, now))

	result, err := BootstrapAccounts(context.Background(), ledgerSvc, nil)
	require.NoError(t, err)
	require.Equal(t, "cash-1", result.CashAccount.ID)
	require.Equal(t, "liability-1", result.LiabilityAccount.ID)
}

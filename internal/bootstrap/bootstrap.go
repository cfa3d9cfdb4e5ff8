// Package bootstrap creates the two accounts every payout depends on. It is
// invoked both by cmd/bootstrap and by the admin HTTP route, so the
// idempotent logic lives in one place.
package bootstrap

import (
	"context"
	"fmt"

	"github.com/ruralpay/ledger/internal/audit"
	"github.com/ruralpay/ledger/internal/ledger"
	"github.com/ruralpay/ledger/internal/payout"
)

// Result reports the two accounts after bootstrap runs.
type Result struct {
	CashAccount      *ledger.Account
	LiabilityAccount *ledger.Account
}

// BootstrapAccounts creates CASH_001 (Asset, Debit-normal) and
// PAYOUT_LIABILITY_001 (Liability, Credit-normal) if absent. Safe to call
// repeatedly.
func BootstrapAccounts(ctx context.Context, ledgerSvc *ledger.Service, auditLog *audit.Logger) (*Result, error) {
	cash, err := ledgerSvc.CreateAccount(ctx, payout.CashAccountCode, ledger.Asset)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: create cash account: %w", err)
	}

	liability, err := ledgerSvc.CreateAccount(ctx, payout.LiabilityAccountCode, ledger.Liability)
	if err != nil {
		return nil, fmt.Errorf("bootstrap: create liability account: %w", err)
	}

	if auditLog != nil {
		auditLog.LogOperation("BOOTSTRAP", fmt.Sprintf("accounts ready: cash=%s liability=%s", cash.ID, liability.ID))
	}

	return &Result{CashAccount: cash, LiabilityAccount: liability}, nil
}

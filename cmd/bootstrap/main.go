package main

import (
	"context"
	"log"

	"github.com/ruralpay/ledger/internal/audit"
	"github.com/ruralpay/ledger/internal/bootstrap"
	"github.com/ruralpay/ledger/internal/config"
	"github.com/ruralpay/ledger/internal/database"
	"github.com/ruralpay/ledger/internal/ledger"
)

// One-shot CLI wrapper around bootstrap.BootstrapAccounts, for operators
// standing up a new environment without going through the HTTP API.
func main() {
	config.LoadEnv()

	db := database.InitDatabase()
	defer db.Close()

	ledgerSvc := ledger.NewService(db)
	auditLog := audit.NewLogger()

	result, err := bootstrap.BootstrapAccounts(context.Background(), ledgerSvc, auditLog)
	if err != nil {
		log.Fatalf("bootstrap failed: %v", err)
	}

	log.Printf("cash account: %s", result.CashAccount.ID)
	log.Printf("liability account: %s", result.LiabilityAccount.ID)
}

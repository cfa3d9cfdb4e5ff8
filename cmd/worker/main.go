package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/spf13/viper"

	"github.com/ruralpay/ledger/internal/audit"
	"github.com/ruralpay/ledger/internal/config"
	"github.com/ruralpay/ledger/internal/database"
	"github.com/ruralpay/ledger/internal/events"
	"github.com/ruralpay/ledger/internal/ledger"
	"github.com/ruralpay/ledger/internal/payout"
	"github.com/ruralpay/ledger/internal/provider"
	"github.com/ruralpay/ledger/internal/worker"
)

func main() {
	config.LoadEnv()
	wc := config.LoadWorkerConfig()

	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient == nil {
		log.Fatal("worker: redis is required to consume the payout queue")
	}
	defer redisClient.Close()

	ledgerSvc := ledger.NewService(db)
	eventLog := events.NewLog(db, nil)
	auditLog := audit.NewLogger()
	queue := worker.NewRedisQueue(redisClient, wc.QueueKey, wc.ProcessingKey)
	machine := payout.NewMachine(db, ledgerSvc, eventLog, queue, auditLog, wc.MaxRetries)

	var prov provider.Provider
	if endpoint := viper.GetString("provider.iso20022_endpoint"); endpoint != "" {
		prov = provider.NewISO20022Provider(endpoint, viper.GetString("provider.originator_bic"))
	} else {
		log.Println("worker: no provider.iso20022_endpoint configured, using in-memory fake provider")
		prov = provider.NewFake()
	}

	backoff := worker.Backoff{Base: wc.BackoffBase, Factor: wc.BackoffFactor, Cap: wc.BackoffCap}
	dispatcher := worker.NewDispatcher(queue, machine, prov, backoff, wc.MaxRetries, wc.ClaimTimeout, wc.ProviderTimeout)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("worker starting with concurrency %d", wc.Concurrency)
	dispatcher.Run(ctx, wc.Concurrency)
	log.Println("worker stopped")
}

package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/viper"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/ruralpay/ledger/internal/audit"
	"github.com/ruralpay/ledger/internal/bootstrap"
	"github.com/ruralpay/ledger/internal/config"
	"github.com/ruralpay/ledger/internal/database"
	"github.com/ruralpay/ledger/internal/events"
	"github.com/ruralpay/ledger/internal/httpapi"
	"github.com/ruralpay/ledger/internal/ledger"
	"github.com/ruralpay/ledger/internal/payout"
	"github.com/ruralpay/ledger/internal/realtime"
	"github.com/ruralpay/ledger/internal/receipt"
	"github.com/ruralpay/ledger/internal/worker"
)

// @title Ledger and Payout API
// @version 1.0
// @description Double-entry ledger and exactly-once payout engine
// @BasePath /api

func main() {
	config.LoadEnv()

	db := database.InitDatabase()
	defer db.Close()

	redisClient := database.InitRedis()
	if redisClient != nil {
		defer redisClient.Close()
	}

	ledgerSvc := ledger.NewService(db)
	eventLog := events.NewLog(db, nil)
	auditLog := audit.NewLogger()

	wc := config.LoadWorkerConfig()
	var queue payout.Queue
	if redisClient != nil {
		queue = worker.NewRedisQueue(redisClient, wc.QueueKey, wc.ProcessingKey)
	}
	machine := payout.NewMachine(db, ledgerSvc, eventLog, queue, auditLog, wc.MaxRetries)

	if _, err := bootstrap.BootstrapAccounts(context.Background(), ledgerSvc, auditLog); err != nil {
		log.Fatalf("bootstrap accounts: %v", err)
	}

	var publisher realtime.Publisher = realtime.NoopPublisher{}
	if redisClient != nil {
		publisher = realtime.NewRedisPublisher(redisClient)
	}

	receiptRenderer := receipt.NewRenderer(redisClient)

	handlers := httpapi.Handlers{
		Payouts: httpapi.NewPayoutHandler(machine, eventLog, publisher),
		Events:  httpapi.NewEventHandler(eventLog),
		Admin:   httpapi.NewAdminHandler(ledgerSvc, auditLog),
		Receipt: httpapi.NewReceiptHandler(machine, receiptRenderer),
	}

	r := httpapi.NewRouter(handlers)
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	port := viper.GetString("http.port")
	if port == "" {
		port = "8080"
	}

	server := &http.Server{
		Addr:         ":" + port,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("server starting on :%s", port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("server shutting down...")
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatal("server forced to shutdown:", err)
	}

	log.Println("server stopped")
}

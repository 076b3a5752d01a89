package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lumapay/wallet-ledger/internal/api"
	"github.com/lumapay/wallet-ledger/internal/api/service"
	"github.com/lumapay/wallet-ledger/internal/config"
	"github.com/lumapay/wallet-ledger/internal/data/postgres"
	"github.com/lumapay/wallet-ledger/internal/gateway"
	"github.com/lumapay/wallet-ledger/internal/ledger"
	"github.com/lumapay/wallet-ledger/internal/lending"
	"github.com/lumapay/wallet-ledger/internal/logger"
	"github.com/lumapay/wallet-ledger/internal/outbox_poller"
	"github.com/lumapay/wallet-ledger/internal/platform/messaging/producers"
	"github.com/lumapay/wallet-ledger/internal/platform/persistence"
	"github.com/lumapay/wallet-ledger/internal/reconcile"
	"github.com/lumapay/wallet-ledger/internal/transfer"
)

func main() {
	// Create base context with cancellation
	appCtx, cancelAppCtx := context.WithCancel(context.Background())
	defer cancelAppCtx()

	// Initialize configuration
	cfg, err := config.LoadConfig("api")
	if err != nil {
		// logger is not initialized yet, so we use fmt
		fmt.Printf("Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.NewLogger(cfg)

	log.Info("Starting wallet ledger API",
		"app_name", cfg.Application.Name,
		"env", cfg.Application.Env,
	)

	// Initialize PostgreSQL with app context (runs migrations)
	postgresDB, err := persistence.NewPostgresDB(appCtx, log, &cfg.Postgres)
	if err != nil {
		log.Error("Failed to initialize PostgreSQL", "error", err)
		os.Exit(1)
	}

	// Initialize Kafka producer for settled-transaction events
	settlementProducer, err := producers.NewSettlementProducer(appCtx, log, &cfg.Kafka)
	if err != nil {
		log.Error("Failed to initialize settlement Kafka producer", "error", err)
		os.Exit(1)
	}

	// Initialize repositories
	accountRepo := postgres.NewAccountRepository(log, postgresDB)
	transactionRepo := postgres.NewTransactionRepository(log, postgresDB)
	transferRepo := postgres.NewTransferRepository(log, postgresDB)
	gatewayRepo := postgres.NewGatewayRepository(log, postgresDB)
	pendingRepo := postgres.NewPendingPaymentRepository(log, postgresDB)
	loanRepo := postgres.NewLoanRepository(log, postgresDB)
	outboxRepo := postgres.NewOutboxRepository(log, postgresDB)

	// Initialize the ledger writer and the services built on it
	writer := ledger.NewWriter(postgresDB, accountRepo, transactionRepo, outboxRepo, log)
	orchestrator := transfer.NewOrchestrator(writer, accountRepo, transactionRepo, transferRepo, cfg.Transfers, log)
	accumulator := lending.NewAccumulator(postgresDB, loanRepo, writer, log)
	registry := gateway.NewRegistry(cfg.Payments.ProviderTimeout, cfg.Payments.CallbackBaseURL)
	reconciler := reconcile.NewReconciler(gatewayRepo, pendingRepo, accountRepo, transactionRepo, registry, writer, accumulator, cfg.Payments, log)

	accountService := service.NewAccountService(accountRepo, transactionRepo)

	// Initialize outbox poller publishing settled transactions to Kafka
	eventPublisher := outbox_poller.NewEventPublisher(outboxRepo, settlementProducer, log)
	poller := outbox_poller.NewPoller(&cfg.Outbox, outboxRepo, eventPublisher, log)
	go poller.Start(appCtx)

	// Sweep expired pending payments in the background
	go func() {
		ticker := time.NewTicker(cfg.Payments.ExpiryInterval)
		defer ticker.Stop()
		for {
			select {
			case <-appCtx.Done():
				return
			case <-ticker.C:
				if _, err := reconciler.ExpireStale(appCtx); err != nil {
					log.Error("Failed to expire stale pending payments", "error", err)
				}
			}
		}
	}()

	// Initialize REST server
	server := api.NewServer(log, cfg, accountService, orchestrator, reconciler, accumulator)
	log.Info("REST server initialized")

	// Create error channel for server errors
	errChan := make(chan error, 1)

	// Start server in goroutine
	go func() {
		log.Info("Starting HTTP server", "port", cfg.Server.Port)
		if err := server.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	// Set up signal handling
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	// Wait for a shutdown signal or error
	var serverErr error
	select {
	case <-quit:
		log.Info("Shutdown signal received")
	case err := <-errChan:
		log.Error("Server error occurred", "error", err)
		serverErr = err
	}

	// Cancel the application context
	cancelAppCtx()

	// Create a shutdown context with timeout
	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancelShutdown()

	// Graceful shutdown sequence
	log.Info("Starting graceful shutdown...")

	// Shutdown HTTP server
	if err = server.Stop(shutdownCtx); err != nil {
		log.Error("Error during server shutdown", "error", err)
	}

	if err = settlementProducer.Close(); err != nil {
		log.Error("Error closing settlement Kafka producer", "error", err)
	}

	// Shutdown postgres connection pool
	postgresDB.Close()

	// Final status
	if serverErr != nil {
		log.Error("HTTP server shutdown with errors", "error", serverErr)
	} else {
		log.Info("Server shutdown completed successfully")
	}
}

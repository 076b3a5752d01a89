package service

import (
	"context"
	"log/slog"
	"sync"

	"github.com/lumapay/wallet-ledger/internal/domain/transaction"
	"github.com/panjf2000/ants/v2"
)

// WorkerPoolProjectionService fans projection work out to an ants pool
// while keeping the caller synchronous, so the Kafka offset is only
// committed after the journal write finished.
type WorkerPoolProjectionService struct {
	baseService ProjectionService
	pool        *ants.Pool
	logger      *slog.Logger
	// Use a mutex to protect access to the results map
	mu      sync.Mutex
	results map[string]chan error
}

type WorkerPoolConfig struct {
	Size int
}

func NewWorkerPoolProjectionService(
	baseService ProjectionService,
	config WorkerPoolConfig,
	logger *slog.Logger,
) (*WorkerPoolProjectionService, error) {
	pool, err := ants.NewPool(config.Size)
	if err != nil {
		return nil, err
	}

	return &WorkerPoolProjectionService{
		baseService: baseService,
		pool:        pool,
		logger:      logger,
		results:     make(map[string]chan error),
	}, nil
}

// ProjectTransaction submits the projection to the worker pool and waits
// for its outcome.
func (s *WorkerPoolProjectionService) ProjectTransaction(ctx context.Context, txn *transaction.Transaction) error {
	s.logger.Debug("Submitting transaction to projection pool",
		"transaction_id", txn.ID.String(),
		"account_id", txn.AccountID.String(),
	)

	resultChan := make(chan error, 1)

	transactionID := txn.ID.String()
	s.mu.Lock()
	s.results[transactionID] = resultChan
	s.mu.Unlock()

	// Copy to avoid data races with the caller
	txnCopy := *txn

	err := s.pool.Submit(func() {
		err := s.baseService.ProjectTransaction(ctx, &txnCopy)

		resultChan <- err

		s.mu.Lock()
		delete(s.results, transactionID)
		close(resultChan)
		s.mu.Unlock()
	})

	if err != nil {
		s.mu.Lock()
		delete(s.results, transactionID)
		close(resultChan)
		s.mu.Unlock()

		s.logger.Error("Failed to submit transaction to projection pool",
			"transaction_id", transactionID,
			"error", err,
		)
		return err
	}

	return <-resultChan
}

// Shutdown gracefully shuts down the worker pool.
func (s *WorkerPoolProjectionService) Shutdown() {
	s.logger.Info("Shutting down projection worker pool", "running_workers", s.pool.Running())
	s.pool.Release()
}

// Running returns the number of running workers in the pool.
func (s *WorkerPoolProjectionService) Running() int {
	return s.pool.Running()
}

// Capacity returns the capacity of the worker pool.
func (s *WorkerPoolProjectionService) Capacity() int {
	return s.pool.Cap()
}

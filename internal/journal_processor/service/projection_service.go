package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/lumapay/wallet-ledger/internal/domain/journal"
	"github.com/lumapay/wallet-ledger/internal/domain/transaction"
)

// JournalProjectionService projects settlement events into the immutable
// MongoDB journal. Projection is idempotent: Kafka may redeliver, the
// journal must not duplicate.
type JournalProjectionService struct {
	journalRepo journal.Repository
	logger      *slog.Logger
}

// NewJournalProjectionService creates a projection service
func NewJournalProjectionService(journalRepo journal.Repository, logger *slog.Logger) *JournalProjectionService {
	return &JournalProjectionService{
		journalRepo: journalRepo,
		logger:      logger,
	}
}

// ProjectTransaction writes one terminal transaction into the journal.
// Redelivered events are recognized by transaction id and skipped.
func (s *JournalProjectionService) ProjectTransaction(ctx context.Context, txn *transaction.Transaction) error {
	if !txn.Status.IsTerminal() {
		return fmt.Errorf("refusing to journal non-terminal transaction %s in status %s", txn.ID, txn.Status)
	}

	entry := journal.FromTransaction(txn)
	if err := s.journalRepo.Create(ctx, entry); err != nil {
		if errors.Is(err, journal.ErrDuplicateEntry{}) {
			s.logger.Info("Journal entry already exists, skipping",
				"transaction_id", txn.ID.String(),
			)
			return nil
		}
		return fmt.Errorf("failed to project transaction %s into journal: %w", txn.ID, err)
	}

	s.logger.Info("Journal entry created",
		"transaction_id", txn.ID.String(),
		"account_id", txn.AccountID.String(),
		"type", string(txn.Type),
		"status", string(txn.Status),
	)
	return nil
}

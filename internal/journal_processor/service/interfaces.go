package service

import (
	"context"

	"github.com/lumapay/wallet-ledger/internal/domain/transaction"
)

// ProjectionService writes terminal transactions into the journal store
type ProjectionService interface {
	ProjectTransaction(ctx context.Context, txn *transaction.Transaction) error
}

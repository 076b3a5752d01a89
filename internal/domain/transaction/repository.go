package transaction

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lumapay/wallet-ledger/internal/domain/shared"
)

// Repository manages transaction persistence
type Repository interface {
	Create(ctx context.Context, tx *Transaction) error
	GetByID(ctx context.Context, id uuid.UUID) (*Transaction, error)

	// GetByIDForUpdate locks the transaction row for a status transition.
	// Must be called within a database transaction.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Transaction, error)

	// GetByReference resolves a transaction by its unique reference string.
	// Returns nil when no transaction carries the reference.
	GetByReference(ctx context.Context, reference string) (*Transaction, error)

	GetByAccountID(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*Transaction, error)
	CountByAccountID(ctx context.Context, accountID uuid.UUID) (int64, error)

	// MarkCompleted flips status to COMPLETED and stamps completed_at
	MarkCompleted(ctx context.Context, id uuid.UUID, completedAt time.Time) error

	// MarkTerminal flips status to FAILED or CANCELLED with a reason
	MarkTerminal(ctx context.Context, id uuid.UUID, status shared.TransactionStatus, reason string) error

	// SumCompletedSince totals completed amounts of the given types across
	// all accounts belonging to a user, starting at the cut-off. Daily caps
	// count per user, not per account.
	SumCompletedSince(ctx context.Context, userID uuid.UUID, types []shared.TransactionType, since time.Time) (int64, error)

	WithTx(tx pgx.Tx) Repository
}

// ErrTransactionNotFound indicates missing transaction
type ErrTransactionNotFound struct {
	TransactionID uuid.UUID
}

func (e ErrTransactionNotFound) Error() string {
	return "transaction not found: " + e.TransactionID.String()
}

// Is matches any ErrTransactionNotFound when the target carries a nil ID
func (e ErrTransactionNotFound) Is(target error) bool {
	t, ok := target.(ErrTransactionNotFound)
	if !ok {
		return false
	}
	return t.TransactionID == uuid.Nil || t.TransactionID == e.TransactionID
}

// ErrDuplicateReference indicates reference uniqueness violation
type ErrDuplicateReference struct {
	Reference string
}

func (e ErrDuplicateReference) Error() string {
	return "duplicate transaction reference: " + e.Reference
}

// Is matches any ErrDuplicateReference when the target carries no reference
func (e ErrDuplicateReference) Is(target error) bool {
	t, ok := target.(ErrDuplicateReference)
	if !ok {
		return false
	}
	return t.Reference == "" || t.Reference == e.Reference
}

package transfer

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lumapay/wallet-ledger/internal/domain/shared"
)

// Repository manages transfer intent persistence
type Repository interface {
	Create(ctx context.Context, transfer *Transfer) error
	GetByID(ctx context.Context, id uuid.UUID) (*Transfer, error)
	GetByAccountID(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*Transfer, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status shared.TransferStatus) error
	WithTx(tx pgx.Tx) Repository
}

// ErrTransferNotFound indicates missing transfer
type ErrTransferNotFound struct {
	TransferID uuid.UUID
}

func (e ErrTransferNotFound) Error() string {
	return "transfer not found: " + e.TransferID.String()
}

// Is matches any ErrTransferNotFound when the target carries a nil ID
func (e ErrTransferNotFound) Is(target error) bool {
	t, ok := target.(ErrTransferNotFound)
	if !ok {
		return false
	}
	return t.TransferID == uuid.Nil || t.TransferID == e.TransferID
}

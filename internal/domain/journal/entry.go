package journal

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/lumapay/wallet-ledger/internal/domain/shared"
	"github.com/lumapay/wallet-ledger/internal/domain/transaction"
)

// Entry is the immutable projection of a terminal transaction kept in the
// journal store. Read-only observers (rewards, notifications, reporting)
// consume journal entries and never touch balances.
type Entry struct {
	TransactionID uuid.UUID                `json:"transaction_id" bson:"transaction_id"`
	AccountID     uuid.UUID                `json:"account_id" bson:"account_id"`
	Type          shared.TransactionType   `json:"type" bson:"type"`
	Amount        int64                    `json:"amount" bson:"amount"` // Minor units
	Fee           int64                    `json:"fee" bson:"fee"`
	Currency      string                   `json:"currency" bson:"currency"`
	Status        shared.TransactionStatus `json:"status" bson:"status"`
	Reference     string                   `json:"reference" bson:"reference"`
	Metadata      map[string]string        `json:"metadata,omitempty" bson:"metadata,omitempty"`
	FailReason    string                   `json:"fail_reason,omitempty" bson:"fail_reason,omitempty"`
	CreatedAt     time.Time                `json:"created_at" bson:"created_at"`
	SettledAt     time.Time                `json:"settled_at" bson:"settled_at"`
}

// FromTransaction projects a terminal transaction into a journal entry
func FromTransaction(txn *transaction.Transaction) *Entry {
	settledAt := time.Now()
	if txn.CompletedAt != nil {
		settledAt = *txn.CompletedAt
	}
	return &Entry{
		TransactionID: txn.ID,
		AccountID:     txn.AccountID,
		Type:          txn.Type,
		Amount:        txn.Amount,
		Fee:           txn.Fee,
		Currency:      txn.Currency,
		Status:        txn.Status,
		Reference:     txn.Reference,
		Metadata:      txn.Metadata,
		FailReason:    txn.FailReason,
		CreatedAt:     txn.CreatedAt,
		SettledAt:     settledAt,
	}
}

// Repository manages journal entry persistence with pagination support
type Repository interface {
	Create(ctx context.Context, entry *Entry) error
	GetByTransactionID(ctx context.Context, transactionID uuid.UUID) (*Entry, error)
	GetByAccountID(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*Entry, error)
	CountByAccountID(ctx context.Context, accountID uuid.UUID) (int64, error)
	GetByTimeRange(ctx context.Context, startTime, endTime time.Time, limit, offset int) ([]*Entry, error)
}

// ErrEntryNotFound indicates missing journal entry
type ErrEntryNotFound struct {
	TransactionID uuid.UUID
}

func (e ErrEntryNotFound) Error() string {
	return "journal entry not found: " + e.TransactionID.String()
}

// Is matches any ErrEntryNotFound when the target carries a nil ID
func (e ErrEntryNotFound) Is(target error) bool {
	t, ok := target.(ErrEntryNotFound)
	if !ok {
		return false
	}
	return t.TransactionID == uuid.Nil || t.TransactionID == e.TransactionID
}

// ErrDuplicateEntry indicates transaction uniqueness violation
type ErrDuplicateEntry struct {
	TransactionID uuid.UUID
}

func (e ErrDuplicateEntry) Error() string {
	return "duplicate journal entry: " + e.TransactionID.String()
}

// Is matches any ErrDuplicateEntry when the target carries a nil ID
func (e ErrDuplicateEntry) Is(target error) bool {
	t, ok := target.(ErrDuplicateEntry)
	if !ok {
		return false
	}
	return t.TransactionID == uuid.Nil || t.TransactionID == e.TransactionID
}

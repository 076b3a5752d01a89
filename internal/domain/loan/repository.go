package loan

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// Repository manages loan persistence
type Repository interface {
	Create(ctx context.Context, loan *Loan) error
	GetByID(ctx context.Context, id uuid.UUID) (*Loan, error)

	// GetByIDForUpdate locks the loan row so concurrent repayments
	// serialize on the paid total. Must be called within a transaction.
	GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*Loan, error)

	GetByAccountID(ctx context.Context, accountID uuid.UUID) ([]*Loan, error)
	Update(ctx context.Context, loan *Loan) error
	WithTx(tx pgx.Tx) Repository
}

// ErrLoanNotFound indicates missing loan
type ErrLoanNotFound struct {
	LoanID uuid.UUID
}

func (e ErrLoanNotFound) Error() string {
	return "loan not found: " + e.LoanID.String()
}

// Is matches any ErrLoanNotFound when the target carries a nil ID
func (e ErrLoanNotFound) Is(target error) bool {
	t, ok := target.(ErrLoanNotFound)
	if !ok {
		return false
	}
	return t.LoanID == uuid.Nil || t.LoanID == e.LoanID
}

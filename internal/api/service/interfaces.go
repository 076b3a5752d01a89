package service

import (
	"context"
	"net/url"

	"github.com/google/uuid"

	"github.com/lumapay/wallet-ledger/internal/domain/account"
	"github.com/lumapay/wallet-ledger/internal/domain/loan"
	"github.com/lumapay/wallet-ledger/internal/domain/payment"
	"github.com/lumapay/wallet-ledger/internal/domain/shared"
	"github.com/lumapay/wallet-ledger/internal/domain/transaction"
	"github.com/lumapay/wallet-ledger/internal/domain/transfer"
	"github.com/lumapay/wallet-ledger/internal/lending"
	"github.com/lumapay/wallet-ledger/internal/reconcile"
)

// AccountService defines the interface for account operations
type AccountService interface {
	// CreateAccount opens a zero-balance wallet for the user.
	// All funding goes through the ledger afterwards.
	CreateAccount(ctx context.Context, userID uuid.UUID, currency string) (*account.Account, error)

	// GetAccountByID retrieves an account by its ID
	// Returns ErrAccountNotFound if the account doesn't exist
	GetAccountByID(ctx context.Context, id uuid.UUID) (*account.Account, error)

	// GetTransactionsByAccountID retrieves a paginated list of ledger
	// transactions for an account, newest first.
	// Returns transactions, total count, and any error
	GetTransactionsByAccountID(ctx context.Context, accountID uuid.UUID, page, perPage int) ([]*transaction.Transaction, int64, error)
}

// TransferService defines the interface for money-movement operations
type TransferService interface {
	TransferInternal(ctx context.Context, fromUserID, fromAccountID, toAccountID uuid.UUID, amount int64, note string) (*transfer.Transfer, error)
	TransferOwn(ctx context.Context, userID, fromAccountID, toAccountID uuid.UUID, amount int64) (*transfer.Transfer, error)
	TransferExternal(ctx context.Context, fromAccountID uuid.UUID, kind shared.TransferKind, amount int64, beneficiary transfer.Beneficiary, note string) (*transfer.Transfer, error)
	SettleExternal(ctx context.Context, transferID uuid.UUID) error
	ReturnExternal(ctx context.Context, transferID uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*transfer.Transfer, error)
}

// PaymentService defines the interface for gateway checkout and settlement
type PaymentService interface {
	// Initiate opens a checkout with a provider and durably records the
	// in-flight payment before any money moves.
	Initiate(ctx context.Context, req reconcile.InitiateRequest) (*reconcile.Initiation, error)

	// HandleCallback settles a provider return, recovering from lost
	// pending state when necessary. Replays are no-ops.
	HandleCallback(ctx context.Context, provider payment.Provider, params url.Values) (*reconcile.CallbackResult, error)
}

// LoanService defines the interface for loan repayment operations
type LoanService interface {
	// ApplyRepayment clamps the amount to the loan's remaining balance and
	// settles a repayment debit against the loan's wallet account.
	ApplyRepayment(ctx context.Context, loanID uuid.UUID, amount int64, source lending.Source, reference string) (*lending.Result, error)

	// GetByID retrieves a loan by its ID
	GetByID(ctx context.Context, id uuid.UUID) (*loan.Loan, error)
}

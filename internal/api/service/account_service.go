package service

import (
	"context"

	"github.com/google/uuid"

	"github.com/lumapay/wallet-ledger/internal/domain/account"
	"github.com/lumapay/wallet-ledger/internal/domain/transaction"
)

// AccountServiceImpl implements the AccountService interface
type AccountServiceImpl struct {
	accountRepo     account.Repository
	transactionRepo transaction.Repository
}

// NewAccountService creates a new account service
func NewAccountService(accountRepo account.Repository, transactionRepo transaction.Repository) AccountService {
	return &AccountServiceImpl{
		accountRepo:     accountRepo,
		transactionRepo: transactionRepo,
	}
}

// CreateAccount opens a zero-balance wallet. Deposits, not creation, fund it:
// the balance column belongs to the ledger writer alone.
func (s *AccountServiceImpl) CreateAccount(ctx context.Context, userID uuid.UUID, currency string) (*account.Account, error) {
	acc, err := account.NewAccount(userID, 0, currency)
	if err != nil {
		return nil, err
	}

	if err := s.accountRepo.Create(ctx, acc); err != nil {
		return nil, err
	}

	return acc, nil
}

// GetAccountByID retrieves an account by its ID, returns ErrAccountNotFound if not found
func (s *AccountServiceImpl) GetAccountByID(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	return s.accountRepo.GetByID(ctx, id)
}

// GetTransactionsByAccountID returns one page of the account's ledger history
// along with the total row count for pagination metadata.
func (s *AccountServiceImpl) GetTransactionsByAccountID(ctx context.Context, accountID uuid.UUID, page, perPage int) ([]*transaction.Transaction, int64, error) {
	if _, err := s.accountRepo.GetByID(ctx, accountID); err != nil {
		return nil, 0, err
	}

	offset := (page - 1) * perPage
	txns, err := s.transactionRepo.GetByAccountID(ctx, accountID, perPage, offset)
	if err != nil {
		return nil, 0, err
	}

	total, err := s.transactionRepo.CountByAccountID(ctx, accountID)
	if err != nil {
		return nil, 0, err
	}

	return txns, total, nil
}

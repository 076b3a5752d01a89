package transfer

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lumapay/wallet-ledger/internal/config"
	"github.com/lumapay/wallet-ledger/internal/domain/account"
	"github.com/lumapay/wallet-ledger/internal/domain/shared"
	"github.com/lumapay/wallet-ledger/internal/domain/transaction"
	domain "github.com/lumapay/wallet-ledger/internal/domain/transfer"
)

type MockLedgerWriter struct {
	mock.Mock
}

func (m *MockLedgerWriter) Record(ctx context.Context, accountID uuid.UUID, txType shared.TransactionType, amount, fee int64, reference string, metadata transaction.Metadata) (*transaction.Transaction, error) {
	args := m.Called(ctx, accountID, txType, amount, fee, reference, metadata)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transaction.Transaction), args.Error(1)
}

func (m *MockLedgerWriter) Complete(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transaction.Transaction), args.Error(1)
}

func (m *MockLedgerWriter) CompletePair(ctx context.Context, debitID, creditID uuid.UUID) (*transaction.Transaction, *transaction.Transaction, error) {
	args := m.Called(ctx, debitID, creditID)
	if args.Get(0) == nil {
		return nil, nil, args.Error(2)
	}
	return args.Get(0).(*transaction.Transaction), args.Get(1).(*transaction.Transaction), args.Error(2)
}

func (m *MockLedgerWriter) RecordAndComplete(ctx context.Context, accountID uuid.UUID, txType shared.TransactionType, amount, fee int64, reference string, metadata transaction.Metadata) (*transaction.Transaction, error) {
	args := m.Called(ctx, accountID, txType, amount, fee, reference, metadata)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transaction.Transaction), args.Error(1)
}

func (m *MockLedgerWriter) Fail(ctx context.Context, id uuid.UUID, reason string) error {
	args := m.Called(ctx, id, reason)
	return args.Error(0)
}

type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) Create(ctx context.Context, acc *account.Account) error {
	args := m.Called(ctx, acc)
	return args.Error(0)
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.Account), args.Error(1)
}

func (m *MockAccountRepository) GetByUserID(ctx context.Context, userID uuid.UUID) ([]*account.Account, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*account.Account), args.Error(1)
}

func (m *MockAccountRepository) Update(ctx context.Context, acc *account.Account) error {
	args := m.Called(ctx, acc)
	return args.Error(0)
}

func (m *MockAccountRepository) LockForUpdate(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.Account), args.Error(1)
}

func (m *MockAccountRepository) WithTx(tx pgx.Tx) account.Repository {
	return m
}

type MockTransactionRepository struct {
	mock.Mock
}

func (m *MockTransactionRepository) Create(ctx context.Context, txn *transaction.Transaction) error {
	args := m.Called(ctx, txn)
	return args.Error(0)
}

func (m *MockTransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transaction.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transaction.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) GetByReference(ctx context.Context, reference string) (*transaction.Transaction, error) {
	args := m.Called(ctx, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*transaction.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) GetByAccountID(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*transaction.Transaction, error) {
	args := m.Called(ctx, accountID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*transaction.Transaction), args.Error(1)
}

func (m *MockTransactionRepository) CountByAccountID(ctx context.Context, accountID uuid.UUID) (int64, error) {
	args := m.Called(ctx, accountID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTransactionRepository) MarkCompleted(ctx context.Context, id uuid.UUID, completedAt time.Time) error {
	args := m.Called(ctx, id, completedAt)
	return args.Error(0)
}

func (m *MockTransactionRepository) MarkTerminal(ctx context.Context, id uuid.UUID, status shared.TransactionStatus, reason string) error {
	args := m.Called(ctx, id, status, reason)
	return args.Error(0)
}

func (m *MockTransactionRepository) SumCompletedSince(ctx context.Context, userID uuid.UUID, types []shared.TransactionType, since time.Time) (int64, error) {
	args := m.Called(ctx, userID, types, since)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockTransactionRepository) WithTx(tx pgx.Tx) transaction.Repository {
	return m
}

type MockTransferRepository struct {
	mock.Mock
}

func (m *MockTransferRepository) Create(ctx context.Context, tr *domain.Transfer) error {
	args := m.Called(ctx, tr)
	return args.Error(0)
}

func (m *MockTransferRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transfer, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Transfer), args.Error(1)
}

func (m *MockTransferRepository) GetByAccountID(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*domain.Transfer, error) {
	args := m.Called(ctx, accountID, limit, offset)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Transfer), args.Error(1)
}

func (m *MockTransferRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status shared.TransferStatus) error {
	args := m.Called(ctx, id, status)
	return args.Error(0)
}

func (m *MockTransferRepository) WithTx(tx pgx.Tx) domain.Repository {
	return m
}

type orchestratorFixture struct {
	writer       *MockLedgerWriter
	accounts     *MockAccountRepository
	transactions *MockTransactionRepository
	transfers    *MockTransferRepository
	orchestrator *Orchestrator
}

func newOrchestratorFixture(t *testing.T) *orchestratorFixture {
	t.Helper()
	f := &orchestratorFixture{
		writer:       new(MockLedgerWriter),
		accounts:     new(MockAccountRepository),
		transactions: new(MockTransactionRepository),
		transfers:    new(MockTransferRepository),
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	cfg := config.TransfersConfig{
		MinAmount:        1,
		InternalFeeFixed: 100, // $1
		InternalFeeBps:   200, // 2%
		DomesticFeeFixed: 100,
		DomesticFeeBps:   200,
		WireFeeFixed:     2500,
		WireFeeBps:       50,
		ExternalDailyCap: 100_000_000,
	}
	f.orchestrator = NewOrchestrator(f.writer, f.accounts, f.transactions, f.transfers, cfg, logger)
	return f
}

func (f *orchestratorFixture) assertExpectations(t *testing.T) {
	t.Helper()
	f.writer.AssertExpectations(t)
	f.accounts.AssertExpectations(t)
	f.transactions.AssertExpectations(t)
	f.transfers.AssertExpectations(t)
}

func userAccount(userID uuid.UUID, balance int64) *account.Account {
	return &account.Account{
		ID:       uuid.New(),
		UserID:   userID,
		Balance:  balance,
		Currency: "USD",
		Status:   account.StatusActive,
		Version:  1,
	}
}

func TestOrchestrator_TransferInternal(t *testing.T) {
	ctx := context.Background()

	t.Run("debits gross and credits net with paired references", func(t *testing.T) {
		f := newOrchestratorFixture(t)
		userID := uuid.New()
		from := userAccount(userID, 100_000)
		to := userAccount(uuid.New(), 0)
		debitID, creditID := uuid.New(), uuid.New()

		f.accounts.On("GetByID", ctx, from.ID).Return(from, nil)
		f.accounts.On("GetByID", ctx, to.ID).Return(to, nil)

		// $100 at $1 fixed plus 2%: fee 300, debit leg covers 10,300 total,
		// credit leg receives exactly the transferred amount.
		var outRef, inRef string
		f.writer.On("Record", ctx, from.ID, shared.TransactionTypeTransferOut, int64(10_000), int64(300),
			mock.MatchedBy(func(ref string) bool {
				// testify evaluates matchers against every Record call while
				// diffing arguments, so only capture on an actual match.
				if strings.HasSuffix(ref, "-OUT") {
					outRef = ref
				}
				return strings.HasSuffix(ref, "-OUT")
			}), mock.Anything).Return(&transaction.Transaction{ID: debitID}, nil)
		f.writer.On("Record", ctx, to.ID, shared.TransactionTypeTransferIn, int64(10_000), int64(0),
			mock.MatchedBy(func(ref string) bool {
				if strings.HasSuffix(ref, "-IN") {
					inRef = ref
				}
				return strings.HasSuffix(ref, "-IN")
			}), mock.Anything).Return(&transaction.Transaction{ID: creditID}, nil)
		f.transfers.On("Create", ctx, mock.MatchedBy(func(tr *domain.Transfer) bool {
			return tr.Kind == shared.TransferKindInternal && tr.Amount == 10_000 && tr.Fee == 300
		})).Return(nil)
		f.writer.On("CompletePair", ctx, debitID, creditID).
			Return(&transaction.Transaction{ID: debitID}, &transaction.Transaction{ID: creditID}, nil)
		f.transfers.On("UpdateStatus", ctx, mock.Anything, shared.TransferStatusSettled).Return(nil)

		tr, err := f.orchestrator.TransferInternal(ctx, userID, from.ID, to.ID, 10_000, "rent")
		require.NoError(t, err)
		assert.Equal(t, shared.TransferStatusSettled, tr.Status)
		assert.Equal(t, int64(300), tr.Fee)
		assert.Equal(t, strings.TrimSuffix(outRef, "-OUT"), strings.TrimSuffix(inRef, "-IN"))
		f.assertExpectations(t)
	})

	t.Run("balance must cover amount plus fee", func(t *testing.T) {
		f := newOrchestratorFixture(t)
		userID := uuid.New()
		from := userAccount(userID, 10_000) // Covers the amount but not the fee
		to := userAccount(uuid.New(), 0)

		f.accounts.On("GetByID", ctx, from.ID).Return(from, nil)
		f.accounts.On("GetByID", ctx, to.ID).Return(to, nil)

		_, err := f.orchestrator.TransferInternal(ctx, userID, from.ID, to.ID, 10_000, "")
		assert.ErrorIs(t, err, shared.PolicyViolation{Reason: shared.PolicyReasonInsufficientBalance})
		f.writer.AssertNotCalled(t, "Record", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		f.assertExpectations(t)
	})

	t.Run("configured cap bounds a single transfer", func(t *testing.T) {
		f := newOrchestratorFixture(t)
		f.orchestrator.cfg.InternalMaxAmount = 50_000
		userID := uuid.New()
		from := userAccount(userID, 1_000_000)
		to := userAccount(uuid.New(), 0)

		f.accounts.On("GetByID", ctx, from.ID).Return(from, nil)
		f.accounts.On("GetByID", ctx, to.ID).Return(to, nil)

		_, err := f.orchestrator.TransferInternal(ctx, userID, from.ID, to.ID, 60_000, "")
		assert.ErrorIs(t, err, shared.PolicyViolation{Reason: shared.PolicyReasonAboveMaximum})
		f.assertExpectations(t)
	})
}

func TestOrchestrator_TransferOwn(t *testing.T) {
	ctx := context.Background()

	t.Run("moves money between own accounts free of charge", func(t *testing.T) {
		f := newOrchestratorFixture(t)
		userID := uuid.New()
		from := userAccount(userID, 50_000)
		to := userAccount(userID, 0)
		debitID, creditID := uuid.New(), uuid.New()

		f.accounts.On("GetByID", ctx, from.ID).Return(from, nil)
		f.accounts.On("GetByID", ctx, to.ID).Return(to, nil)
		f.writer.On("Record", ctx, from.ID, shared.TransactionTypeTransferOut, int64(20_000), int64(0), mock.Anything, mock.Anything).
			Return(&transaction.Transaction{ID: debitID}, nil)
		f.writer.On("Record", ctx, to.ID, shared.TransactionTypeTransferIn, int64(20_000), int64(0), mock.Anything, mock.Anything).
			Return(&transaction.Transaction{ID: creditID}, nil)
		f.transfers.On("Create", ctx, mock.Anything).Return(nil)
		f.writer.On("CompletePair", ctx, debitID, creditID).
			Return(&transaction.Transaction{ID: debitID}, &transaction.Transaction{ID: creditID}, nil)
		f.transfers.On("UpdateStatus", ctx, mock.Anything, shared.TransferStatusSettled).Return(nil)

		tr, err := f.orchestrator.TransferOwn(ctx, userID, from.ID, to.ID, 20_000)
		require.NoError(t, err)
		assert.Equal(t, int64(0), tr.Fee)
		f.assertExpectations(t)
	})
}

func TestOrchestrator_TransferExternal(t *testing.T) {
	ctx := context.Background()

	wireBeneficiary := domain.Beneficiary{
		Name:              "Acme GmbH",
		BankName:          "Commerzbank",
		AccountNumberMask: "DE44500105175407324931",
		SwiftCode:         "COBADEFF",
	}

	t.Run("wire exceeding the balance is rejected before any record", func(t *testing.T) {
		f := newOrchestratorFixture(t)
		userID := uuid.New()
		from := userAccount(userID, 400_000) // $4000

		f.accounts.On("GetByID", ctx, from.ID).Return(from, nil)
		f.transactions.On("SumCompletedSince", ctx, userID, mock.Anything, mock.Anything).Return(int64(0), nil)

		// $5000 wire needs 500,000 plus the wire fee
		_, err := f.orchestrator.TransferExternal(ctx, from.ID, shared.TransferKindWire, 500_000, wireBeneficiary, "")
		assert.ErrorIs(t, err, shared.PolicyViolation{Reason: shared.PolicyReasonInsufficientBalance})
		f.writer.AssertNotCalled(t, "Record", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		f.transfers.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
		f.assertExpectations(t)
	})

	t.Run("daily cap counts all of the user's accounts", func(t *testing.T) {
		f := newOrchestratorFixture(t)
		userID := uuid.New()
		from := userAccount(userID, 100_000_000)

		f.accounts.On("GetByID", ctx, from.ID).Return(from, nil)
		// Another account of the same user already used most of the cap today
		f.transactions.On("SumCompletedSince", ctx, userID, mock.Anything, mock.Anything).Return(int64(99_500_000), nil)

		_, err := f.orchestrator.TransferExternal(ctx, from.ID, shared.TransferKindWire, 1_000_000, wireBeneficiary, "")
		assert.ErrorIs(t, err, shared.PolicyViolation{Reason: shared.PolicyReasonDailyCapExceeded})
		f.writer.AssertNotCalled(t, "Record", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		f.assertExpectations(t)
	})

	t.Run("wire holds the funds immediately and stays pending", func(t *testing.T) {
		f := newOrchestratorFixture(t)
		userID := uuid.New()
		from := userAccount(userID, 1_000_000)
		debitID := uuid.New()

		f.accounts.On("GetByID", ctx, from.ID).Return(from, nil)
		f.transactions.On("SumCompletedSince", ctx, userID, mock.Anything, mock.Anything).Return(int64(0), nil)
		// fee = 2500 fixed + 0.5% of 500,000 = 5000
		f.writer.On("Record", ctx, from.ID, shared.TransactionTypeTransferOut, int64(500_000), int64(5000), mock.Anything, mock.Anything).
			Return(&transaction.Transaction{ID: debitID}, nil)
		f.transfers.On("Create", ctx, mock.MatchedBy(func(tr *domain.Transfer) bool {
			return tr.Kind == shared.TransferKindWire && tr.Status == shared.TransferStatusPending && tr.EstimatedAt != nil
		})).Return(nil)
		f.writer.On("Complete", ctx, debitID).Return(&transaction.Transaction{ID: debitID}, nil)

		tr, err := f.orchestrator.TransferExternal(ctx, from.ID, shared.TransferKindWire, 500_000, wireBeneficiary, "supplier invoice")
		require.NoError(t, err)
		assert.Equal(t, shared.TransferStatusPending, tr.Status)
		assert.Equal(t, int64(5000), tr.Fee)
		f.assertExpectations(t)
	})
}

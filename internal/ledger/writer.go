// Package ledger owns every balance mutation in the system. The Writer is
// the only component allowed to change an account balance, and it does so
// exactly once per transaction, atomically with the status transition.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lumapay/wallet-ledger/internal/domain/account"
	"github.com/lumapay/wallet-ledger/internal/domain/outbox"
	"github.com/lumapay/wallet-ledger/internal/domain/shared"
	"github.com/lumapay/wallet-ledger/internal/domain/transaction"
)

// TxRunner opens the database transaction scope a settlement runs in.
// persistence.PostgresDB is the production implementation.
type TxRunner interface {
	ExecuteTx(ctx context.Context, fn func(tx pgx.Tx) error) error
}

// Writer creates transaction records and applies them to account balances.
type Writer struct {
	db           TxRunner
	accounts     account.Repository
	transactions transaction.Repository
	outbox       outbox.Repository
	logger       *slog.Logger
}

// NewWriter creates a ledger writer
func NewWriter(
	db TxRunner,
	accounts account.Repository,
	transactions transaction.Repository,
	outboxRepo outbox.Repository,
	logger *slog.Logger,
) *Writer {
	return &Writer{
		db:           db,
		accounts:     accounts,
		transactions: transactions,
		outbox:       outboxRepo,
		logger:       logger,
	}
}

// Record creates a transaction in PENDING status. No balance is touched.
func (w *Writer) Record(ctx context.Context, accountID uuid.UUID, txType shared.TransactionType, amount, fee int64, reference string, metadata transaction.Metadata) (*transaction.Transaction, error) {
	return w.record(ctx, w.accounts, w.transactions, accountID, txType, amount, fee, reference, metadata)
}

func (w *Writer) record(ctx context.Context, accounts account.Repository, transactions transaction.Repository, accountID uuid.UUID, txType shared.TransactionType, amount, fee int64, reference string, metadata transaction.Metadata) (*transaction.Transaction, error) {
	if !txType.IsValid() {
		return nil, shared.ValidationError{Detail: "unknown transaction type: " + string(txType)}
	}
	if amount <= 0 {
		return nil, shared.ValidationError{Detail: "amount must be positive"}
	}
	if fee < 0 {
		return nil, shared.ValidationError{Detail: "fee cannot be negative"}
	}
	if reference == "" {
		return nil, shared.ValidationError{Detail: "reference is required"}
	}

	acc, err := accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}

	txn := transaction.New(accountID, txType, amount, fee, acc.Currency, reference, metadata)
	if err := transactions.Create(ctx, txn); err != nil {
		return nil, err
	}

	w.logger.Info("Transaction recorded",
		"transaction_id", txn.ID.String(),
		"account_id", accountID.String(),
		"type", string(txType),
		"amount", amount,
		"fee", fee,
		"reference", reference,
	)
	return txn, nil
}

// Complete applies the transaction amount to its account balance and flips
// the status to COMPLETED as one atomic unit. Calling it on an already
// completed transaction is a no-op, which makes retries safe.
func (w *Writer) Complete(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	return w.complete(ctx, id, false)
}

// CompleteWithOverdraft is Complete with explicit authorization for the
// balance to go negative. Reserved for administrative corrections.
func (w *Writer) CompleteWithOverdraft(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	return w.complete(ctx, id, true)
}

func (w *Writer) complete(ctx context.Context, id uuid.UUID, allowNegative bool) (*transaction.Transaction, error) {
	var txn *transaction.Transaction
	err := w.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		var err error
		txn, err = w.completeInTx(ctx, tx, id, allowNegative)
		return err
	})
	if err != nil {
		return nil, err
	}
	return txn, nil
}

// CompletePair completes a debit leg and a credit leg within one database
// transaction: either both legs settle or neither does. Legs are completed
// in account-ID order so two opposing transfers cannot deadlock.
func (w *Writer) CompletePair(ctx context.Context, debitID, creditID uuid.UUID) (*transaction.Transaction, *transaction.Transaction, error) {
	var debit, credit *transaction.Transaction
	err := w.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		txRepo := w.transactions.WithTx(tx)

		debitTxn, err := txRepo.GetByID(ctx, debitID)
		if err != nil {
			return err
		}
		creditTxn, err := txRepo.GetByID(ctx, creditID)
		if err != nil {
			return err
		}

		first, second := debitID, creditID
		if strings.Compare(creditTxn.AccountID.String(), debitTxn.AccountID.String()) < 0 {
			first, second = creditID, debitID
		}

		if _, err := w.completeInTx(ctx, tx, first, false); err != nil {
			return err
		}
		if _, err := w.completeInTx(ctx, tx, second, false); err != nil {
			return err
		}

		debit, err = txRepo.GetByID(ctx, debitID)
		if err != nil {
			return err
		}
		credit, err = txRepo.GetByID(ctx, creditID)
		return err
	})
	if err != nil {
		return nil, nil, err
	}
	return debit, credit, nil
}

// RecordAndComplete creates a transaction and settles it in one atomic
// scope. Used by flows that have already passed the gateway or policy stage
// and settle immediately.
func (w *Writer) RecordAndComplete(ctx context.Context, accountID uuid.UUID, txType shared.TransactionType, amount, fee int64, reference string, metadata transaction.Metadata) (*transaction.Transaction, error) {
	txn, err := w.Record(ctx, accountID, txType, amount, fee, reference, metadata)
	if err != nil {
		return nil, err
	}
	return w.Complete(ctx, txn.ID)
}

// RecordInTx is Record scoped to the caller's database transaction.
func (w *Writer) RecordInTx(ctx context.Context, tx pgx.Tx, accountID uuid.UUID, txType shared.TransactionType, amount, fee int64, reference string, metadata transaction.Metadata) (*transaction.Transaction, error) {
	return w.record(ctx, w.accounts.WithTx(tx), w.transactions.WithTx(tx), accountID, txType, amount, fee, reference, metadata)
}

// CompleteInTx is Complete scoped to the caller's database transaction, for
// flows that must settle a leg atomically with their own state (loan paid
// totals, for one).
func (w *Writer) CompleteInTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*transaction.Transaction, error) {
	return w.completeInTx(ctx, tx, id, false)
}

// Fail marks a pending transaction FAILED without any balance change
func (w *Writer) Fail(ctx context.Context, id uuid.UUID, reason string) error {
	return w.terminate(ctx, id, shared.TransactionStatusFailed, reason)
}

// Cancel marks a pending transaction CANCELLED without any balance change
func (w *Writer) Cancel(ctx context.Context, id uuid.UUID, reason string) error {
	return w.terminate(ctx, id, shared.TransactionStatusCancelled, reason)
}

func (w *Writer) terminate(ctx context.Context, id uuid.UUID, status shared.TransactionStatus, reason string) error {
	return w.db.ExecuteTx(ctx, func(tx pgx.Tx) error {
		txRepo := w.transactions.WithTx(tx)

		txn, err := txRepo.GetByIDForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if txn.Status == status {
			return nil // Already terminal with the same outcome
		}
		if txn.Status.IsTerminal() {
			return shared.LedgerViolation{Detail: fmt.Sprintf("transaction %s is already %s", id, txn.Status)}
		}

		if err := txRepo.MarkTerminal(ctx, id, status, reason); err != nil {
			return err
		}

		txn.Status = status
		txn.FailReason = reason
		message, err := outbox.NewMessage(txn)
		if err != nil {
			return fmt.Errorf("failed to build outbox message: %w", err)
		}
		if err := w.outbox.WithTx(tx).Create(ctx, message); err != nil {
			return err
		}

		w.logger.Info("Transaction terminated",
			"transaction_id", id.String(),
			"status", string(status),
			"reason", reason,
		)
		return nil
	})
}

// completeInTx performs the balance mutation and status flip using the
// caller's database transaction. The account row lock serializes concurrent
// completions against the same account.
func (w *Writer) completeInTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, allowNegative bool) (*transaction.Transaction, error) {
	txRepo := w.transactions.WithTx(tx)
	accRepo := w.accounts.WithTx(tx)

	txn, err := txRepo.GetByIDForUpdate(ctx, id)
	if err != nil {
		return nil, err
	}

	if txn.Status == shared.TransactionStatusCompleted {
		w.logger.Info("Transaction already completed, skipping", "transaction_id", id.String())
		return txn, nil
	}
	if txn.Status.IsTerminal() {
		return nil, shared.LedgerViolation{Detail: fmt.Sprintf("cannot complete transaction %s in status %s", id, txn.Status)}
	}

	acc, err := accRepo.LockForUpdate(ctx, txn.AccountID)
	if err != nil {
		return nil, err
	}

	if acc.Status == account.StatusFrozen {
		return nil, shared.LedgerViolation{Detail: "account " + acc.ID.String() + " is frozen"}
	}
	if acc.Currency != txn.Currency {
		return nil, shared.LedgerViolation{Detail: fmt.Sprintf("currency mismatch: transaction %s account %s", txn.Currency, acc.Currency)}
	}

	if delta := txn.BalanceDelta(); delta < 0 {
		if err := acc.Debit(-delta, allowNegative); err != nil {
			// The row lock is held here, so this check can never be stale
			if errors.Is(err, account.ErrInsufficientFunds) {
				return nil, shared.PolicyViolation{
					Reason: shared.PolicyReasonInsufficientBalance,
					Detail: fmt.Sprintf("required %d, available %d", -delta, acc.Balance),
				}
			}
			return nil, shared.LedgerViolation{Detail: err.Error()}
		}
	} else {
		if err := acc.Credit(delta); err != nil {
			return nil, shared.LedgerViolation{Detail: err.Error()}
		}
	}

	if err := accRepo.Update(ctx, acc); err != nil {
		return nil, err
	}

	completedAt := time.Now()
	if err := txRepo.MarkCompleted(ctx, id, completedAt); err != nil {
		return nil, err
	}

	txn.Status = shared.TransactionStatusCompleted
	txn.CompletedAt = &completedAt

	message, err := outbox.NewMessage(txn)
	if err != nil {
		return nil, fmt.Errorf("failed to build outbox message: %w", err)
	}
	if err := w.outbox.WithTx(tx).Create(ctx, message); err != nil {
		return nil, err
	}

	w.logger.Info("Transaction completed",
		"transaction_id", id.String(),
		"account_id", acc.ID.String(),
		"type", string(txn.Type),
		"delta", txn.BalanceDelta(),
		"new_balance", acc.Balance,
	)
	return txn, nil
}

// Package lending applies repayments to loans. The accumulator clamps every
// repayment so a loan can never be overpaid, debits the wallet, and advances
// the paid total atomically with the loan row lock held.
package lending

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lumapay/wallet-ledger/internal/domain/loan"
	"github.com/lumapay/wallet-ledger/internal/domain/shared"
	"github.com/lumapay/wallet-ledger/internal/domain/transaction"
	"github.com/lumapay/wallet-ledger/internal/ledger"
	"github.com/lumapay/wallet-ledger/internal/platform/persistence"
)

// Source names where repayment money came from
type Source string

const (
	// SourceBalance debits the wallet directly
	SourceBalance Source = "BALANCE"
	// SourceGateway follows an external checkout whose funds were already
	// credited to the wallet by reconciliation
	SourceGateway Source = "GATEWAY"
)

// Result is a successfully applied repayment.
type Result struct {
	Loan        *loan.Loan
	Transaction *transaction.Transaction
	Requested   int64
	Applied     int64 // Clamped to the remaining balance
}

// Accumulator advances loan paid totals through ledger-recorded repayments.
type Accumulator struct {
	pgDB   *persistence.PostgresDB
	loans  loan.Repository
	writer *ledger.Writer
	logger *slog.Logger
}

// NewAccumulator creates a loan repayment accumulator
func NewAccumulator(pgDB *persistence.PostgresDB, loans loan.Repository, writer *ledger.Writer, logger *slog.Logger) *Accumulator {
	return &Accumulator{
		pgDB:   pgDB,
		loans:  loans,
		writer: writer,
		logger: logger,
	}
}

// ApplyRepayment clamps the requested amount to the loan's remaining
// balance, records and settles a repayment debit against the loan's wallet
// account, and advances the paid total — all inside one database
// transaction serialized on the loan row. A fully paid loan flips to
// COMPLETED irrevocably.
func (a *Accumulator) ApplyRepayment(ctx context.Context, loanID uuid.UUID, requested int64, source Source, reference string) (*Result, error) {
	if requested <= 0 {
		return nil, shared.ValidationError{Detail: "repayment amount must be positive"}
	}

	var result *Result
	err := a.pgDB.ExecuteTx(ctx, func(tx pgx.Tx) error {
		loanRepo := a.loans.WithTx(tx)

		l, err := loanRepo.GetByIDForUpdate(ctx, loanID)
		if err != nil {
			return err
		}
		if l.Remaining() == 0 {
			return shared.ValidationError{Detail: "loan " + loanID.String() + " is already settled"}
		}
		if !l.Repayable() {
			return shared.ValidationError{Detail: "loan " + loanID.String() + " is not active"}
		}

		applied := l.ClampRepayment(requested)
		metadata := transaction.Metadata{
			transaction.MetaLoanID:          loanID.String(),
			transaction.MetaRepaymentSource: string(source),
		}

		txn, err := a.writer.RecordInTx(ctx, tx, l.AccountID, shared.TransactionTypeLoanRepayment, applied, 0, reference, metadata)
		if err != nil {
			return err
		}
		txn, err = a.writer.CompleteInTx(ctx, tx, txn.ID)
		if err != nil {
			return err
		}

		if err := l.ApplyRepayment(applied); err != nil {
			return shared.LedgerViolation{Detail: err.Error()}
		}
		if err := loanRepo.Update(ctx, l); err != nil {
			return err
		}

		result = &Result{Loan: l, Transaction: txn, Requested: requested, Applied: applied}
		return nil
	})
	if err != nil {
		return nil, err
	}

	a.logger.Info("Loan repayment applied",
		"loan_id", loanID.String(),
		"requested", result.Requested,
		"applied", result.Applied,
		"amount_paid", result.Loan.AmountPaid,
		"total_payable", result.Loan.TotalPayable,
		"status", string(result.Loan.Status),
		"source", string(source),
	)
	return result, nil
}

// GetByID loads a loan
func (a *Accumulator) GetByID(ctx context.Context, id uuid.UUID) (*loan.Loan, error) {
	return a.loans.GetByID(ctx, id)
}

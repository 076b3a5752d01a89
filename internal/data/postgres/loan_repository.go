package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lumapay/wallet-ledger/internal/domain/loan"
	"github.com/lumapay/wallet-ledger/internal/platform/persistence"
)

// LoanRepository implements the loan.Repository interface for PostgreSQL
type LoanRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewLoanRepository creates a new PostgreSQL loan repository
func NewLoanRepository(logger *slog.Logger, db *persistence.PostgresDB) loan.Repository {
	return &LoanRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction for atomic operations
func (r *LoanRepository) WithTx(tx pgx.Tx) loan.Repository {
	return &LoanRepository{
		querier: tx,
		logger:  r.logger,
	}
}

const loanColumns = `id, account_id, principal, interest_bps, total_payable, amount_paid, currency, status, created_at, updated_at, completed_at`

func scanLoan(row pgx.Row) (*loan.Loan, error) {
	var l loan.Loan
	err := row.Scan(
		&l.ID,
		&l.AccountID,
		&l.Principal,
		&l.InterestBps,
		&l.TotalPayable,
		&l.AmountPaid,
		&l.Currency,
		&l.Status,
		&l.CreatedAt,
		&l.UpdatedAt,
		&l.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// Create stores a new loan
func (r *LoanRepository) Create(ctx context.Context, l *loan.Loan) error {
	query := `
		INSERT INTO loans (id, account_id, principal, interest_bps, total_payable, amount_paid, currency, status, created_at, updated_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.querier.Exec(ctx, query,
		l.ID,
		l.AccountID,
		l.Principal,
		l.InterestBps,
		l.TotalPayable,
		l.AmountPaid,
		l.Currency,
		l.Status,
		l.CreatedAt,
		l.UpdatedAt,
		l.CompletedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create loan", "loan_id", l.ID.String(), "error", err)
		return fmt.Errorf("failed to create loan: %w", err)
	}

	return nil
}

// GetByID retrieves a loan by its ID
func (r *LoanRepository) GetByID(ctx context.Context, id uuid.UUID) (*loan.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE id = $1`

	l, err := scanLoan(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, loan.ErrLoanNotFound{LoanID: id}
		}
		r.logger.Error("Failed to get loan", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get loan: %w", err)
	}

	return l, nil
}

// GetByIDForUpdate locks the loan row so concurrent repayments serialize on
// the paid total. Must be called within a transaction.
func (r *LoanRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*loan.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE id = $1 FOR UPDATE`

	l, err := scanLoan(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, loan.ErrLoanNotFound{LoanID: id}
		}
		r.logger.Error("Failed to lock loan for update", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to lock loan for update: %w", err)
	}

	return l, nil
}

// GetByAccountID retrieves all loans for an account, newest first
func (r *LoanRepository) GetByAccountID(ctx context.Context, accountID uuid.UUID) ([]*loan.Loan, error) {
	query := `SELECT ` + loanColumns + ` FROM loans WHERE account_id = $1 ORDER BY created_at DESC`

	rows, err := r.querier.Query(ctx, query, accountID)
	if err != nil {
		r.logger.Error("Failed to get loans", "account_id", accountID.String(), "error", err)
		return nil, fmt.Errorf("failed to get loans: %w", err)
	}
	defer rows.Close()

	var loans []*loan.Loan
	for rows.Next() {
		l, err := scanLoan(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan loan: %w", err)
		}
		loans = append(loans, l)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over loans: %w", err)
	}

	return loans, nil
}

// Update persists loan state changes
func (r *LoanRepository) Update(ctx context.Context, l *loan.Loan) error {
	query := `
		UPDATE loans
		SET amount_paid = $1, status = $2, updated_at = $3, completed_at = $4
		WHERE id = $5
	`

	result, err := r.querier.Exec(ctx, query,
		l.AmountPaid,
		l.Status,
		l.UpdatedAt,
		l.CompletedAt,
		l.ID,
	)
	if err != nil {
		r.logger.Error("Failed to update loan", "id", l.ID.String(), "error", err)
		return fmt.Errorf("failed to update loan: %w", err)
	}

	if result.RowsAffected() == 0 {
		return loan.ErrLoanNotFound{LoanID: l.ID}
	}

	return nil
}

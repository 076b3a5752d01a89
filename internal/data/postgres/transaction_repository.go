package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lumapay/wallet-ledger/internal/domain/shared"
	"github.com/lumapay/wallet-ledger/internal/domain/transaction"
	"github.com/lumapay/wallet-ledger/internal/platform/persistence"
)

const uniqueViolationCode = "23505"

// TransactionRepository implements the transaction.Repository interface for PostgreSQL
type TransactionRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewTransactionRepository creates a new PostgreSQL transaction repository
func NewTransactionRepository(logger *slog.Logger, db *persistence.PostgresDB) transaction.Repository {
	return &TransactionRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction for atomic operations
func (r *TransactionRepository) WithTx(tx pgx.Tx) transaction.Repository {
	return &TransactionRepository{
		querier: tx,
		logger:  r.logger,
	}
}

const transactionColumns = `id, account_id, type, amount, fee, currency, status, reference, metadata, fail_reason, created_at, completed_at`

func scanTransaction(row pgx.Row) (*transaction.Transaction, error) {
	var txn transaction.Transaction
	err := row.Scan(
		&txn.ID,
		&txn.AccountID,
		&txn.Type,
		&txn.Amount,
		&txn.Fee,
		&txn.Currency,
		&txn.Status,
		&txn.Reference,
		&txn.Metadata,
		&txn.FailReason,
		&txn.CreatedAt,
		&txn.CompletedAt,
	)
	if err != nil {
		return nil, err
	}
	return &txn, nil
}

// Create stores a new transaction record. Returns ErrDuplicateReference when
// the reference string is already taken.
func (r *TransactionRepository) Create(ctx context.Context, txn *transaction.Transaction) error {
	query := `
		INSERT INTO transactions (id, account_id, type, amount, fee, currency, status, reference, metadata, fail_reason, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`

	_, err := r.querier.Exec(ctx, query,
		txn.ID,
		txn.AccountID,
		txn.Type,
		txn.Amount,
		txn.Fee,
		txn.Currency,
		txn.Status,
		txn.Reference,
		txn.Metadata,
		txn.FailReason,
		txn.CreatedAt,
		txn.CompletedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return transaction.ErrDuplicateReference{Reference: txn.Reference}
		}
		r.logger.Error("Failed to create transaction", "transaction_id", txn.ID.String(), "error", err)
		return fmt.Errorf("failed to create transaction: %w", err)
	}

	return nil
}

// GetByID retrieves a transaction by its ID
func (r *TransactionRepository) GetByID(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1`

	txn, err := scanTransaction(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, transaction.ErrTransactionNotFound{TransactionID: id}
		}
		r.logger.Error("Failed to get transaction", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	return txn, nil
}

// GetByIDForUpdate locks the transaction row for a status transition
func (r *TransactionRepository) GetByIDForUpdate(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE id = $1 FOR UPDATE`

	txn, err := scanTransaction(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, transaction.ErrTransactionNotFound{TransactionID: id}
		}
		r.logger.Error("Failed to lock transaction for update", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to lock transaction for update: %w", err)
	}

	return txn, nil
}

// GetByReference resolves a transaction by its unique reference string.
// Returns nil when no transaction carries the reference.
func (r *TransactionRepository) GetByReference(ctx context.Context, reference string) (*transaction.Transaction, error) {
	if reference == "" {
		return nil, errors.New("reference cannot be empty")
	}

	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE reference = $1`

	txn, err := scanTransaction(r.querier.QueryRow(ctx, query, reference))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil // No transaction with this reference
		}
		r.logger.Error("Failed to get transaction by reference", "reference", reference, "error", err)
		return nil, fmt.Errorf("failed to get transaction by reference: %w", err)
	}

	return txn, nil
}

// GetByAccountID retrieves paginated transactions for an account, newest first
func (r *TransactionRepository) GetByAccountID(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*transaction.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM transactions
		WHERE account_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.querier.Query(ctx, query, accountID, limit, offset)
	if err != nil {
		r.logger.Error("Failed to get transactions", "account_id", accountID.String(), "error", err)
		return nil, fmt.Errorf("failed to get transactions: %w", err)
	}
	defer rows.Close()

	var txns []*transaction.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, txn)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over transactions: %w", err)
	}

	return txns, nil
}

// CountByAccountID counts the total number of transactions for an account
func (r *TransactionRepository) CountByAccountID(ctx context.Context, accountID uuid.UUID) (int64, error) {
	query := `SELECT COUNT(*) FROM transactions WHERE account_id = $1`

	var count int64
	if err := r.querier.QueryRow(ctx, query, accountID).Scan(&count); err != nil {
		r.logger.Error("Failed to count transactions", "account_id", accountID.String(), "error", err)
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}

	return count, nil
}

// MarkCompleted flips a pending transaction to COMPLETED and stamps the
// completion time. The status guard makes the transition one-way.
func (r *TransactionRepository) MarkCompleted(ctx context.Context, id uuid.UUID, completedAt time.Time) error {
	query := `
		UPDATE transactions
		SET status = $1, completed_at = $2
		WHERE id = $3 AND status = $4
	`

	result, err := r.querier.Exec(ctx, query, shared.TransactionStatusCompleted, completedAt, id, shared.TransactionStatusPending)
	if err != nil {
		r.logger.Error("Failed to mark transaction completed", "id", id.String(), "error", err)
		return fmt.Errorf("failed to mark transaction completed: %w", err)
	}

	if result.RowsAffected() == 0 {
		return transaction.ErrTransactionNotFound{TransactionID: id}
	}

	return nil
}

// MarkTerminal flips a pending transaction to FAILED or CANCELLED with a reason
func (r *TransactionRepository) MarkTerminal(ctx context.Context, id uuid.UUID, status shared.TransactionStatus, reason string) error {
	if !status.IsTerminal() || status == shared.TransactionStatusCompleted {
		return fmt.Errorf("status %s is not a terminal failure status", status)
	}

	query := `
		UPDATE transactions
		SET status = $1, fail_reason = $2
		WHERE id = $3 AND status = $4
	`

	result, err := r.querier.Exec(ctx, query, status, reason, id, shared.TransactionStatusPending)
	if err != nil {
		r.logger.Error("Failed to mark transaction terminal", "id", id.String(), "status", string(status), "error", err)
		return fmt.Errorf("failed to mark transaction terminal: %w", err)
	}

	if result.RowsAffected() == 0 {
		return transaction.ErrTransactionNotFound{TransactionID: id}
	}

	return nil
}

// SumCompletedSince totals completed amounts of the given types across a
// user's accounts starting at the cut-off. Used for daily cap accounting,
// which applies per user rather than per account.
func (r *TransactionRepository) SumCompletedSince(ctx context.Context, userID uuid.UUID, types []shared.TransactionType, since time.Time) (int64, error) {
	query := `
		SELECT COALESCE(SUM(t.amount), 0)
		FROM transactions t
		JOIN accounts a ON a.id = t.account_id
		WHERE a.user_id = $1 AND t.status = $2 AND t.type = ANY($3) AND t.completed_at >= $4
	`

	typeStrings := make([]string, len(types))
	for i, t := range types {
		typeStrings[i] = string(t)
	}

	var total int64
	err := r.querier.QueryRow(ctx, query, userID, shared.TransactionStatusCompleted, typeStrings, since).Scan(&total)
	if err != nil {
		r.logger.Error("Failed to sum completed transactions", "user_id", userID.String(), "error", err)
		return 0, fmt.Errorf("failed to sum completed transactions: %w", err)
	}

	return total, nil
}

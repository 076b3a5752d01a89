package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lumapay/wallet-ledger/internal/domain/shared"
	"github.com/lumapay/wallet-ledger/internal/domain/transfer"
	"github.com/lumapay/wallet-ledger/internal/platform/persistence"
)

// TransferRepository implements the transfer.Repository interface for PostgreSQL
type TransferRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewTransferRepository creates a new PostgreSQL transfer repository
func NewTransferRepository(logger *slog.Logger, db *persistence.PostgresDB) transfer.Repository {
	return &TransferRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction for atomic operations
func (r *TransferRepository) WithTx(tx pgx.Tx) transfer.Repository {
	return &TransferRepository{
		querier: tx,
		logger:  r.logger,
	}
}

const transferColumns = `id, kind, status, from_account_id, to_account_id, amount, fee, currency, debit_leg_id, credit_leg_id, reference, note, beneficiary, estimated_at, created_at, updated_at`

func scanTransfer(row pgx.Row) (*transfer.Transfer, error) {
	var t transfer.Transfer
	var beneficiaryJSON []byte
	err := row.Scan(
		&t.ID,
		&t.Kind,
		&t.Status,
		&t.FromAccountID,
		&t.ToAccountID,
		&t.Amount,
		&t.Fee,
		&t.Currency,
		&t.DebitLegID,
		&t.CreditLegID,
		&t.Reference,
		&t.Note,
		&beneficiaryJSON,
		&t.EstimatedAt,
		&t.CreatedAt,
		&t.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if len(beneficiaryJSON) > 0 {
		var b transfer.Beneficiary
		if err := json.Unmarshal(beneficiaryJSON, &b); err != nil {
			return nil, fmt.Errorf("failed to decode beneficiary: %w", err)
		}
		t.Beneficiary = &b
	}
	return &t, nil
}

// Create stores a new transfer intent
func (r *TransferRepository) Create(ctx context.Context, t *transfer.Transfer) error {
	var beneficiaryJSON []byte
	if t.Beneficiary != nil {
		var err error
		beneficiaryJSON, err = json.Marshal(t.Beneficiary)
		if err != nil {
			return fmt.Errorf("failed to encode beneficiary: %w", err)
		}
	}

	query := `
		INSERT INTO transfers (id, kind, status, from_account_id, to_account_id, amount, fee, currency, debit_leg_id, credit_leg_id, reference, note, beneficiary, estimated_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`

	_, err := r.querier.Exec(ctx, query,
		t.ID,
		t.Kind,
		t.Status,
		t.FromAccountID,
		t.ToAccountID,
		t.Amount,
		t.Fee,
		t.Currency,
		t.DebitLegID,
		t.CreditLegID,
		t.Reference,
		t.Note,
		beneficiaryJSON,
		t.EstimatedAt,
		t.CreatedAt,
		t.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create transfer", "transfer_id", t.ID.String(), "error", err)
		return fmt.Errorf("failed to create transfer: %w", err)
	}

	return nil
}

// GetByID retrieves a transfer by its ID
func (r *TransferRepository) GetByID(ctx context.Context, id uuid.UUID) (*transfer.Transfer, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE id = $1`

	t, err := scanTransfer(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, transfer.ErrTransferNotFound{TransferID: id}
		}
		r.logger.Error("Failed to get transfer", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get transfer: %w", err)
	}

	return t, nil
}

// GetByAccountID retrieves paginated transfers where the account is either
// source or destination, newest first
func (r *TransferRepository) GetByAccountID(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*transfer.Transfer, error) {
	query := `
		SELECT ` + transferColumns + `
		FROM transfers
		WHERE from_account_id = $1 OR to_account_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.querier.Query(ctx, query, accountID, limit, offset)
	if err != nil {
		r.logger.Error("Failed to get transfers", "account_id", accountID.String(), "error", err)
		return nil, fmt.Errorf("failed to get transfers: %w", err)
	}
	defer rows.Close()

	var transfers []*transfer.Transfer
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transfer: %w", err)
		}
		transfers = append(transfers, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over transfers: %w", err)
	}

	return transfers, nil
}

// UpdateStatus moves the transfer intent to a new status
func (r *TransferRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status shared.TransferStatus) error {
	query := `
		UPDATE transfers
		SET status = $1, updated_at = $2
		WHERE id = $3
	`

	result, err := r.querier.Exec(ctx, query, status, time.Now(), id)
	if err != nil {
		r.logger.Error("Failed to update transfer status", "id", id.String(), "status", string(status), "error", err)
		return fmt.Errorf("failed to update transfer status: %w", err)
	}

	if result.RowsAffected() == 0 {
		return transfer.ErrTransferNotFound{TransferID: id}
	}

	return nil
}

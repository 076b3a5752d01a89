package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/lumapay/wallet-ledger/internal/domain/payment"
	"github.com/lumapay/wallet-ledger/internal/platform/persistence"
)

// PendingPaymentRepository implements payment.PendingRepository for PostgreSQL
type PendingPaymentRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewPendingPaymentRepository creates a new PostgreSQL pending payment repository
func NewPendingPaymentRepository(logger *slog.Logger, db *persistence.PostgresDB) payment.PendingRepository {
	return &PendingPaymentRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

// WithTx wraps the repository with a transaction for atomic operations
func (r *PendingPaymentRepository) WithTx(tx pgx.Tx) payment.PendingRepository {
	return &PendingPaymentRepository{
		querier: tx,
		logger:  r.logger,
	}
}

// Create stores a new pending payment keyed by its gateway reference
func (r *PendingPaymentRepository) Create(ctx context.Context, pp *payment.PendingPayment) error {
	query := `
		INSERT INTO pending_payments (id, reference, gateway_id, provider, account_id, amount, currency, target_kind, target_id, status, expires_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`

	_, err := r.querier.Exec(ctx, query,
		pp.ID,
		pp.Reference,
		pp.GatewayID,
		pp.Provider,
		pp.AccountID,
		pp.Amount,
		pp.Currency,
		pp.TargetKind,
		pp.TargetID,
		pp.Status,
		pp.ExpiresAt,
		pp.CreatedAt,
		pp.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create pending payment", "reference", pp.Reference, "error", err)
		return fmt.Errorf("failed to create pending payment: %w", err)
	}

	return nil
}

// GetByReference retrieves a pending payment by its gateway reference
func (r *PendingPaymentRepository) GetByReference(ctx context.Context, reference string) (*payment.PendingPayment, error) {
	query := `
		SELECT id, reference, gateway_id, provider, account_id, amount, currency, target_kind, target_id, status, expires_at, created_at, updated_at
		FROM pending_payments
		WHERE reference = $1
	`

	var pp payment.PendingPayment
	err := r.querier.QueryRow(ctx, query, reference).Scan(
		&pp.ID,
		&pp.Reference,
		&pp.GatewayID,
		&pp.Provider,
		&pp.AccountID,
		&pp.Amount,
		&pp.Currency,
		&pp.TargetKind,
		&pp.TargetID,
		&pp.Status,
		&pp.ExpiresAt,
		&pp.CreatedAt,
		&pp.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrPendingNotFound{Reference: reference}
		}
		r.logger.Error("Failed to get pending payment", "reference", reference, "error", err)
		return nil, fmt.Errorf("failed to get pending payment: %w", err)
	}

	return &pp, nil
}

// Consume atomically flips a PENDING record to CONSUMED. The status guard in
// the WHERE clause makes this the idempotency boundary: only one caller ever
// sees a row transition.
func (r *PendingPaymentRepository) Consume(ctx context.Context, reference string) error {
	query := `
		UPDATE pending_payments
		SET status = $1, updated_at = $2
		WHERE reference = $3 AND status = $4
	`

	result, err := r.querier.Exec(ctx, query, payment.PendingStatusConsumed, time.Now(), reference, payment.PendingStatusPending)
	if err != nil {
		r.logger.Error("Failed to consume pending payment", "reference", reference, "error", err)
		return fmt.Errorf("failed to consume pending payment: %w", err)
	}

	if result.RowsAffected() == 0 {
		// Row either never existed or was already consumed/expired
		if _, getErr := r.GetByReference(ctx, reference); getErr != nil {
			return getErr
		}
		return payment.ErrPendingAlreadyConsumed{Reference: reference}
	}

	return nil
}

// ExpireStale marks PENDING records past their TTL as EXPIRED
func (r *PendingPaymentRepository) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE pending_payments
		SET status = $1, updated_at = $2
		WHERE status = $3 AND expires_at < $2
	`

	result, err := r.querier.Exec(ctx, query, payment.PendingStatusExpired, now, payment.PendingStatusPending)
	if err != nil {
		r.logger.Error("Failed to expire stale pending payments", "error", err)
		return 0, fmt.Errorf("failed to expire stale pending payments: %w", err)
	}

	return result.RowsAffected(), nil
}

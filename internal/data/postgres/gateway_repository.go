package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/lumapay/wallet-ledger/internal/domain/payment"
	"github.com/lumapay/wallet-ledger/internal/platform/persistence"
)

// GatewayRepository implements payment.GatewayRepository for PostgreSQL
type GatewayRepository struct {
	querier persistence.Querier
	logger  *slog.Logger
}

// NewGatewayRepository creates a new PostgreSQL gateway repository
func NewGatewayRepository(logger *slog.Logger, db *persistence.PostgresDB) payment.GatewayRepository {
	return &GatewayRepository{
		querier: db.Pool(),
		logger:  logger,
	}
}

const gatewayColumns = `id, provider, kind, display_name, min_amount, max_amount, daily_cap, fee_fixed, fee_bps, currencies, credentials, manual_instructions, enabled, created_at, updated_at`

func scanGateway(row pgx.Row) (*payment.Gateway, error) {
	var gw payment.Gateway
	err := row.Scan(
		&gw.ID,
		&gw.Provider,
		&gw.Kind,
		&gw.DisplayName,
		&gw.MinAmount,
		&gw.MaxAmount,
		&gw.DailyCap,
		&gw.FeeFixed,
		&gw.FeeBps,
		&gw.Currencies,
		&gw.Credentials,
		&gw.ManualInstructions,
		&gw.Enabled,
		&gw.CreatedAt,
		&gw.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &gw, nil
}

// Create stores a new gateway configuration
func (r *GatewayRepository) Create(ctx context.Context, gw *payment.Gateway) error {
	query := `
		INSERT INTO payment_gateways (id, provider, kind, display_name, min_amount, max_amount, daily_cap, fee_fixed, fee_bps, currencies, credentials, manual_instructions, enabled, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
	`

	_, err := r.querier.Exec(ctx, query,
		gw.ID,
		gw.Provider,
		gw.Kind,
		gw.DisplayName,
		gw.MinAmount,
		gw.MaxAmount,
		gw.DailyCap,
		gw.FeeFixed,
		gw.FeeBps,
		gw.Currencies,
		gw.Credentials,
		gw.ManualInstructions,
		gw.Enabled,
		gw.CreatedAt,
		gw.UpdatedAt,
	)
	if err != nil {
		r.logger.Error("Failed to create payment gateway", "provider", string(gw.Provider), "error", err)
		return fmt.Errorf("failed to create payment gateway: %w", err)
	}

	return nil
}

// GetByID retrieves a gateway by its ID
func (r *GatewayRepository) GetByID(ctx context.Context, id uuid.UUID) (*payment.Gateway, error) {
	query := `SELECT ` + gatewayColumns + ` FROM payment_gateways WHERE id = $1`

	gw, err := scanGateway(r.querier.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrGatewayNotFound{}
		}
		r.logger.Error("Failed to get payment gateway", "id", id.String(), "error", err)
		return nil, fmt.Errorf("failed to get payment gateway: %w", err)
	}

	return gw, nil
}

// GetEnabledByProvider finds the active gateway for a provider identity.
// Used by the direct verification recovery path when pending state is lost.
func (r *GatewayRepository) GetEnabledByProvider(ctx context.Context, provider payment.Provider) (*payment.Gateway, error) {
	query := `SELECT ` + gatewayColumns + ` FROM payment_gateways WHERE provider = $1 AND enabled = TRUE`

	gw, err := scanGateway(r.querier.QueryRow(ctx, query, provider))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payment.ErrGatewayNotFound{Provider: provider}
		}
		r.logger.Error("Failed to get payment gateway by provider", "provider", string(provider), "error", err)
		return nil, fmt.Errorf("failed to get payment gateway by provider: %w", err)
	}

	return gw, nil
}

// ListEnabled retrieves all enabled gateways
func (r *GatewayRepository) ListEnabled(ctx context.Context) ([]*payment.Gateway, error) {
	query := `SELECT ` + gatewayColumns + ` FROM payment_gateways WHERE enabled = TRUE ORDER BY display_name ASC`

	rows, err := r.querier.Query(ctx, query)
	if err != nil {
		r.logger.Error("Failed to list payment gateways", "error", err)
		return nil, fmt.Errorf("failed to list payment gateways: %w", err)
	}
	defer rows.Close()

	var gateways []*payment.Gateway
	for rows.Next() {
		gw, err := scanGateway(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan payment gateway: %w", err)
		}
		gateways = append(gateways, gw)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating over payment gateways: %w", err)
	}

	return gateways, nil
}

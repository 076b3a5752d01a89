package payment

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Provider identifies a payment provider integration
type Provider string

const (
	// ProviderCheckout verifies with a short-lived checkout-session identifier
	ProviderCheckout Provider = "checkoutpay"
	// ProviderReference verifies with a merchant-assigned reference
	ProviderReference Provider = "refpay"
	// ProviderBankManual settles through manually confirmed bank instructions
	ProviderBankManual Provider = "bank_manual"
	// ProviderCryptoManual settles through manually confirmed crypto payments
	ProviderCryptoManual Provider = "crypto_manual"
)

// GatewayKind distinguishes API-driven gateways from instruction-based ones
type GatewayKind string

const (
	GatewayKindAutomatic GatewayKind = "AUTOMATIC"
	GatewayKindManual    GatewayKind = "MANUAL"
)

// Gateway describes a money-movement capability: provider identity, limits,
// fee formula and credentials. Read-only at reconciliation time.
type Gateway struct {
	ID                 uuid.UUID   `json:"id"`
	Provider           Provider    `json:"provider"`
	Kind               GatewayKind `json:"kind"`
	DisplayName        string      `json:"display_name"`
	MinAmount          int64       `json:"min_amount"` // Minor units
	MaxAmount          int64       `json:"max_amount"`
	DailyCap           int64       `json:"daily_cap"`
	FeeFixed           int64       `json:"fee_fixed"`
	FeeBps             int64       `json:"fee_bps"` // Percentage in basis points
	Currencies         string      `json:"currencies"` // Comma-separated 3-letter codes
	Credentials        Credentials `json:"-"`
	ManualInstructions string      `json:"manual_instructions,omitempty"`
	Enabled            bool        `json:"enabled"`
	CreatedAt          time.Time   `json:"created_at"`
	UpdatedAt          time.Time   `json:"updated_at"`
}

// Credentials is an opaque provider credential bag (base URL, keys)
type Credentials map[string]string

// SupportsCurrency reports whether the gateway accepts the currency code
func (g *Gateway) SupportsCurrency(currency string) bool {
	for _, c := range strings.Split(g.Currencies, ",") {
		if strings.EqualFold(strings.TrimSpace(c), currency) {
			return true
		}
	}
	return false
}

// GatewayRepository manages gateway configuration persistence
type GatewayRepository interface {
	Create(ctx context.Context, gw *Gateway) error
	GetByID(ctx context.Context, id uuid.UUID) (*Gateway, error)

	// GetEnabledByProvider finds the active gateway for a provider identity.
	// Used by the direct verification recovery path.
	GetEnabledByProvider(ctx context.Context, provider Provider) (*Gateway, error)

	ListEnabled(ctx context.Context) ([]*Gateway, error)
}

// ErrGatewayNotFound indicates no usable gateway for the lookup
type ErrGatewayNotFound struct {
	Provider Provider
}

func (e ErrGatewayNotFound) Error() string {
	return "payment gateway not found: " + string(e.Provider)
}

// Is matches any ErrGatewayNotFound when the target carries no provider
func (e ErrGatewayNotFound) Is(target error) bool {
	t, ok := target.(ErrGatewayNotFound)
	if !ok {
		return false
	}
	return t.Provider == "" || t.Provider == e.Provider
}

// Package gateway abstracts payment provider integrations behind a single
// interface: initiate a checkout, verify its outcome. Providers differ only
// in the token their callback carries and the wire shape of their API.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/lumapay/wallet-ledger/internal/domain/payment"
	"github.com/lumapay/wallet-ledger/internal/domain/shared"
)

// InitiateRequest asks a provider to open a checkout for an amount.
type InitiateRequest struct {
	Amount    int64  // Minor units
	Currency  string
	Reference string // Our reference, echoed back on the callback

	// ReturnParams are extra query parameters embedded in the return URL so
	// a callback stays reconcilable even when the pending record is gone.
	ReturnParams url.Values
}

// returnQuery merges the reference into the extra return parameters.
func (r InitiateRequest) returnQuery() string {
	params := url.Values{"reference": {r.Reference}}
	for key, values := range r.ReturnParams {
		params[key] = values
	}
	return params.Encode()
}

// Initiation is the provider's answer: either a redirect for automatic
// gateways or static instructions for manual ones.
type Initiation struct {
	ProviderRef  string
	RedirectURL  string
	Instructions string
}

// Verification is the provider's authoritative statement about a payment.
type Verification struct {
	Paid      bool
	Amount    int64
	Currency  string
	Reference string
}

// Gateway is a single provider integration.
type Gateway interface {
	// Initiate opens a checkout. No local state changes on failure.
	Initiate(ctx context.Context, req InitiateRequest) (Initiation, error)

	// Verify asks the provider whether the payment identified by token was
	// made. token is provider-specific: a session id, a reference.
	Verify(ctx context.Context, token string) (Verification, error)
}

// ErrManualGateway is returned by Verify on manual gateways: their
// settlement is an administrative action, not an API call.
var ErrManualGateway = errors.New("manual gateway does not support verification")

// httpDoer is the outbound HTTP seam, satisfied by *http.Client and by
// fakes in tests.
type httpDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Registry builds the right Gateway implementation for a configured
// payment gateway row.
type Registry struct {
	client          httpDoer
	callbackBaseURL string
}

// NewRegistry creates a gateway registry. All providers share one HTTP
// client with the given timeout.
func NewRegistry(providerTimeout time.Duration, callbackBaseURL string) *Registry {
	return &Registry{
		client:          &http.Client{Timeout: providerTimeout},
		callbackBaseURL: callbackBaseURL,
	}
}

// ForGateway returns the provider integration for a gateway row.
func (r *Registry) ForGateway(gw *payment.Gateway) (Gateway, error) {
	switch gw.Provider {
	case payment.ProviderCheckout:
		return &checkoutProvider{client: r.client, credentials: gw.Credentials, callbackURL: r.callbackURL(gw.Provider)}, nil
	case payment.ProviderReference:
		return &referenceProvider{client: r.client, credentials: gw.Credentials, callbackURL: r.callbackURL(gw.Provider)}, nil
	case payment.ProviderBankManual, payment.ProviderCryptoManual:
		return &manualProvider{instructions: gw.ManualInstructions}, nil
	default:
		return nil, shared.ValidationError{Detail: "unsupported payment provider: " + string(gw.Provider)}
	}
}

func (r *Registry) callbackURL(provider payment.Provider) string {
	return fmt.Sprintf("%s/api/v1/payments/callback/%s", r.callbackBaseURL, provider)
}

// ResolveCallbackToken normalizes provider-specific callback query shapes
// into the single token Verify expects.
func ResolveCallbackToken(provider payment.Provider, params url.Values) (string, error) {
	switch provider {
	case payment.ProviderCheckout:
		token := params.Get("session_id")
		if token == "" {
			return "", shared.ValidationError{Detail: "missing session_id in checkout callback"}
		}
		return token, nil
	case payment.ProviderReference:
		token := params.Get("reference")
		if token == "" {
			return "", shared.ValidationError{Detail: "missing reference in callback"}
		}
		return token, nil
	default:
		return "", shared.ValidationError{Detail: "provider " + string(provider) + " does not deliver callbacks"}
	}
}

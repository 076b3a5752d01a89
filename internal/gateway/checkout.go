package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/lumapay/wallet-ledger/internal/domain/payment"
	"github.com/lumapay/wallet-ledger/internal/domain/shared"
)

// checkoutProvider integrates a session-based checkout API: Initiate opens
// a hosted checkout session, the callback carries the session id, and
// Verify resolves the session's final state.
type checkoutProvider struct {
	client      httpDoer
	credentials payment.Credentials
	callbackURL string
}

type checkoutSessionRequest struct {
	AmountMinor int64  `json:"amount_minor"`
	Currency    string `json:"currency"`
	Reference   string `json:"reference"`
	CallbackURL string `json:"callback_url"`
}

type checkoutSessionResponse struct {
	SessionID   string `json:"session_id"`
	RedirectURL string `json:"redirect_url"`
}

type checkoutSessionState struct {
	Status      string `json:"status"` // "paid", "open", "expired"
	AmountMinor int64  `json:"amount_minor"`
	Currency    string `json:"currency"`
	Reference   string `json:"reference"`
}

func (p *checkoutProvider) Initiate(ctx context.Context, req InitiateRequest) (Initiation, error) {
	body, err := json.Marshal(checkoutSessionRequest{
		AmountMinor: req.Amount,
		Currency:    req.Currency,
		Reference:   req.Reference,
		CallbackURL: p.callbackURL + "?" + req.returnQuery(),
	})
	if err != nil {
		return Initiation{}, fmt.Errorf("failed to encode session request: %w", err)
	}

	var resp checkoutSessionResponse
	if err := p.call(ctx, http.MethodPost, "/v1/sessions", body, &resp); err != nil {
		return Initiation{}, err
	}
	if resp.SessionID == "" || resp.RedirectURL == "" {
		return Initiation{}, shared.GatewayError{
			Provider: string(payment.ProviderCheckout),
			Err:      fmt.Errorf("incomplete session response"),
		}
	}

	return Initiation{ProviderRef: resp.SessionID, RedirectURL: resp.RedirectURL}, nil
}

func (p *checkoutProvider) Verify(ctx context.Context, token string) (Verification, error) {
	var state checkoutSessionState
	if err := p.call(ctx, http.MethodGet, "/v1/sessions/"+token, nil, &state); err != nil {
		return Verification{}, err
	}

	return Verification{
		Paid:      state.Status == "paid",
		Amount:    state.AmountMinor,
		Currency:  state.Currency,
		Reference: state.Reference,
	}, nil
}

func (p *checkoutProvider) call(ctx context.Context, method, path string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, p.credentials["base_url"]+path, bytes.NewReader(body))
	if err != nil {
		return shared.GatewayError{Provider: string(payment.ProviderCheckout), Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+p.credentials["api_key"])
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return shared.GatewayError{Provider: string(payment.ProviderCheckout), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payloadPreview, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return shared.GatewayError{
			Provider: string(payment.ProviderCheckout),
			Err:      fmt.Errorf("unexpected status %d: %s", resp.StatusCode, payloadPreview),
		}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return shared.GatewayError{Provider: string(payment.ProviderCheckout), Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

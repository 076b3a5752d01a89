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

// referenceProvider integrates a merchant-reference API: the reference we
// assign at initiation is the whole identity of the payment, both on the
// callback and when verifying.
type referenceProvider struct {
	client      httpDoer
	credentials payment.Credentials
	callbackURL string
}

type referencePaymentRequest struct {
	Reference   string `json:"reference"`
	AmountMinor int64  `json:"amount_minor"`
	Currency    string `json:"currency"`
	ReturnURL   string `json:"return_url"`
}

type referencePaymentResponse struct {
	PaymentURL string `json:"payment_url"`
}

type referencePaymentState struct {
	Status      string `json:"status"` // "successful", "pending", "failed"
	AmountMinor int64  `json:"amount_minor"`
	Currency    string `json:"currency"`
}

func (p *referenceProvider) Initiate(ctx context.Context, req InitiateRequest) (Initiation, error) {
	body, err := json.Marshal(referencePaymentRequest{
		Reference:   req.Reference,
		AmountMinor: req.Amount,
		Currency:    req.Currency,
		ReturnURL:   p.callbackURL + "?" + req.returnQuery(),
	})
	if err != nil {
		return Initiation{}, fmt.Errorf("failed to encode payment request: %w", err)
	}

	var resp referencePaymentResponse
	if err := p.call(ctx, http.MethodPost, "/payments", body, &resp); err != nil {
		return Initiation{}, err
	}
	if resp.PaymentURL == "" {
		return Initiation{}, shared.GatewayError{
			Provider: string(payment.ProviderReference),
			Err:      fmt.Errorf("missing payment_url in response"),
		}
	}

	return Initiation{ProviderRef: req.Reference, RedirectURL: resp.PaymentURL}, nil
}

func (p *referenceProvider) Verify(ctx context.Context, token string) (Verification, error) {
	var state referencePaymentState
	if err := p.call(ctx, http.MethodGet, "/payments/"+token, nil, &state); err != nil {
		return Verification{}, err
	}

	return Verification{
		Paid:      state.Status == "successful",
		Amount:    state.AmountMinor,
		Currency:  state.Currency,
		Reference: token,
	}, nil
}

func (p *referenceProvider) call(ctx context.Context, method, path string, body []byte, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, p.credentials["base_url"]+path, bytes.NewReader(body))
	if err != nil {
		return shared.GatewayError{Provider: string(payment.ProviderReference), Err: err}
	}
	req.Header.Set("X-Api-Key", p.credentials["api_key"])
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return shared.GatewayError{Provider: string(payment.ProviderReference), Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		payloadPreview, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return shared.GatewayError{
			Provider: string(payment.ProviderReference),
			Err:      fmt.Errorf("unexpected status %d: %s", resp.StatusCode, payloadPreview),
		}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return shared.GatewayError{Provider: string(payment.ProviderReference), Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	return nil
}

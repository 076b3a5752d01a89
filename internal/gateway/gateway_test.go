package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumapay/wallet-ledger/internal/domain/payment"
	"github.com/lumapay/wallet-ledger/internal/domain/shared"
)

// fakeDoer answers outbound provider calls from a canned script
type fakeDoer struct {
	lastRequest *http.Request
	status      int
	body        any
	err         error
}

func (f *fakeDoer) Do(req *http.Request) (*http.Response, error) {
	f.lastRequest = req
	if f.err != nil {
		return nil, f.err
	}
	payload, _ := json.Marshal(f.body)
	return &http.Response{
		StatusCode: f.status,
		Body:       io.NopCloser(bytes.NewReader(payload)),
	}, nil
}

func TestCheckoutProvider(t *testing.T) {
	credentials := payment.Credentials{"base_url": "https://checkout.test", "api_key": "sk_test"}

	t.Run("initiate returns session redirect", func(t *testing.T) {
		doer := &fakeDoer{status: 200, body: checkoutSessionResponse{SessionID: "cs_123", RedirectURL: "https://checkout.test/pay/cs_123"}}
		p := &checkoutProvider{client: doer, credentials: credentials, callbackURL: "https://api.test/api/v1/payments/callback/checkoutpay"}

		init, err := p.Initiate(context.Background(), InitiateRequest{Amount: 5000, Currency: "USD", Reference: "PAY-1"})
		require.NoError(t, err)
		assert.Equal(t, "cs_123", init.ProviderRef)
		assert.Equal(t, "https://checkout.test/pay/cs_123", init.RedirectURL)
		assert.Equal(t, "Bearer sk_test", doer.lastRequest.Header.Get("Authorization"))
		assert.Equal(t, "https://checkout.test/v1/sessions", doer.lastRequest.URL.String())
	})

	t.Run("verify maps paid session", func(t *testing.T) {
		doer := &fakeDoer{status: 200, body: checkoutSessionState{Status: "paid", AmountMinor: 5000, Currency: "USD", Reference: "PAY-1"}}
		p := &checkoutProvider{client: doer, credentials: credentials}

		v, err := p.Verify(context.Background(), "cs_123")
		require.NoError(t, err)
		assert.True(t, v.Paid)
		assert.Equal(t, int64(5000), v.Amount)
		assert.Equal(t, "PAY-1", v.Reference)
		assert.Equal(t, "https://checkout.test/v1/sessions/cs_123", doer.lastRequest.URL.String())
	})

	t.Run("verify maps open session as unpaid", func(t *testing.T) {
		doer := &fakeDoer{status: 200, body: checkoutSessionState{Status: "open", AmountMinor: 5000, Currency: "USD"}}
		p := &checkoutProvider{client: doer, credentials: credentials}

		v, err := p.Verify(context.Background(), "cs_123")
		require.NoError(t, err)
		assert.False(t, v.Paid)
	})

	t.Run("transport failure surfaces as gateway error", func(t *testing.T) {
		doer := &fakeDoer{err: errors.New("connection refused")}
		p := &checkoutProvider{client: doer, credentials: credentials}

		_, err := p.Verify(context.Background(), "cs_123")
		assert.True(t, errors.Is(err, shared.GatewayError{Provider: string(payment.ProviderCheckout)}))
	})

	t.Run("non 2xx surfaces as gateway error", func(t *testing.T) {
		doer := &fakeDoer{status: 500, body: map[string]string{"error": "internal"}}
		p := &checkoutProvider{client: doer, credentials: credentials}

		_, err := p.Verify(context.Background(), "cs_123")
		assert.True(t, errors.Is(err, shared.GatewayError{}))
	})
}

func TestReferenceProvider(t *testing.T) {
	credentials := payment.Credentials{"base_url": "https://refpay.test", "api_key": "rk_test"}

	t.Run("initiate returns payment url with merchant reference", func(t *testing.T) {
		doer := &fakeDoer{status: 200, body: referencePaymentResponse{PaymentURL: "https://refpay.test/go/PAY-9"}}
		p := &referenceProvider{client: doer, credentials: credentials, callbackURL: "https://api.test/api/v1/payments/callback/refpay"}

		init, err := p.Initiate(context.Background(), InitiateRequest{Amount: 1200, Currency: "USD", Reference: "PAY-9"})
		require.NoError(t, err)
		assert.Equal(t, "PAY-9", init.ProviderRef)
		assert.Equal(t, "rk_test", doer.lastRequest.Header.Get("X-Api-Key"))
	})

	t.Run("verify keys off the reference token", func(t *testing.T) {
		doer := &fakeDoer{status: 200, body: referencePaymentState{Status: "successful", AmountMinor: 1200, Currency: "USD"}}
		p := &referenceProvider{client: doer, credentials: credentials}

		v, err := p.Verify(context.Background(), "PAY-9")
		require.NoError(t, err)
		assert.True(t, v.Paid)
		assert.Equal(t, "PAY-9", v.Reference)
		assert.Equal(t, "https://refpay.test/payments/PAY-9", doer.lastRequest.URL.String())
	})
}

func TestManualProvider(t *testing.T) {
	p := &manualProvider{instructions: "Wire to IBAN DE89 ..."}

	init, err := p.Initiate(context.Background(), InitiateRequest{Amount: 100, Currency: "EUR", Reference: "PAY-4"})
	require.NoError(t, err)
	assert.Equal(t, "Wire to IBAN DE89 ...", init.Instructions)
	assert.Equal(t, "PAY-4", init.ProviderRef)
	assert.Empty(t, init.RedirectURL)

	_, err = p.Verify(context.Background(), "anything")
	assert.ErrorIs(t, err, ErrManualGateway)
}

func TestResolveCallbackToken(t *testing.T) {
	t.Run("checkout uses session_id", func(t *testing.T) {
		token, err := ResolveCallbackToken(payment.ProviderCheckout, url.Values{"session_id": {"cs_42"}, "reference": {"PAY-1"}})
		require.NoError(t, err)
		assert.Equal(t, "cs_42", token)
	})

	t.Run("reference provider uses reference", func(t *testing.T) {
		token, err := ResolveCallbackToken(payment.ProviderReference, url.Values{"reference": {"PAY-9"}, "status": {"successful"}})
		require.NoError(t, err)
		assert.Equal(t, "PAY-9", token)
	})

	t.Run("missing token rejected", func(t *testing.T) {
		_, err := ResolveCallbackToken(payment.ProviderCheckout, url.Values{})
		assert.True(t, errors.Is(err, shared.ValidationError{}))
	})

	t.Run("manual providers deliver no callbacks", func(t *testing.T) {
		_, err := ResolveCallbackToken(payment.ProviderBankManual, url.Values{"reference": {"PAY-4"}})
		assert.Error(t, err)
	})
}

func TestRegistryForGateway(t *testing.T) {
	registry := NewRegistry(0, "https://api.test")

	for _, provider := range []payment.Provider{
		payment.ProviderCheckout, payment.ProviderReference,
		payment.ProviderBankManual, payment.ProviderCryptoManual,
	} {
		gw, err := registry.ForGateway(&payment.Gateway{Provider: provider})
		require.NoError(t, err, provider)
		assert.NotNil(t, gw)
	}

	_, err := registry.ForGateway(&payment.Gateway{Provider: "unknown"})
	assert.Error(t, err)
}

package handler

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lumapay/wallet-ledger/internal/domain/payment"
	"github.com/lumapay/wallet-ledger/internal/domain/shared"
	"github.com/lumapay/wallet-ledger/internal/reconcile"
)

func TestPaymentHandler_CreateDeposit(t *testing.T) {
	t.Run("opens a checkout", func(t *testing.T) {
		paymentService := new(MockPaymentService)
		handler := NewPaymentHandler(testLogger(), paymentService)

		accountID := uuid.New()
		gatewayID := uuid.New()
		paymentService.On("Initiate", mock.Anything, mock.MatchedBy(func(req reconcile.InitiateRequest) bool {
			return req.AccountID == accountID && req.GatewayID == gatewayID &&
				req.Amount == 10_000 && req.TargetKind == payment.TargetDeposit
		})).Return(&reconcile.Initiation{
			Reference:   "PAY-abc123",
			Provider:    "checkoutpay",
			Amount:      10_000,
			Fee:         150,
			Currency:    "USD",
			RedirectURL: "https://checkoutpay.example.com/session/cs_42",
			ExpiresAt:   time.Now().Add(15 * time.Minute),
		}, nil)

		body, _ := json.Marshal(CreateDepositRequest{
			AccountID: accountID.String(),
			GatewayID: gatewayID.String(),
			Amount:    10_000,
		})

		router := setupTestRouter()
		router.POST("/deposits", handler.CreateDeposit)
		req := httptest.NewRequest(http.MethodPost, "/deposits", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusAccepted, w.Code)

		var resp Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		data, _ := json.Marshal(resp.Data)
		var got reconcile.Initiation
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, "PAY-abc123", got.Reference)
		assert.NotEmpty(t, got.RedirectURL)
		paymentService.AssertExpectations(t)
	})

	t.Run("amount above gateway maximum", func(t *testing.T) {
		paymentService := new(MockPaymentService)
		handler := NewPaymentHandler(testLogger(), paymentService)

		paymentService.On("Initiate", mock.Anything, mock.Anything).
			Return(nil, shared.PolicyViolation{Reason: shared.PolicyReasonAboveMaximum})

		body, _ := json.Marshal(CreateDepositRequest{
			AccountID: uuid.New().String(),
			GatewayID: uuid.New().String(),
			Amount:    5_000_000,
		})

		router := setupTestRouter()
		router.POST("/deposits", handler.CreateDeposit)
		req := httptest.NewRequest(http.MethodPost, "/deposits", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusUnprocessableEntity, w.Code)

		var resp Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.NotNil(t, resp.Error)
		assert.Equal(t, "ABOVE_MAXIMUM", resp.Error.Code)
	})

	t.Run("malformed account id", func(t *testing.T) {
		paymentService := new(MockPaymentService)
		handler := NewPaymentHandler(testLogger(), paymentService)

		body, _ := json.Marshal(CreateDepositRequest{
			AccountID: "not-a-uuid",
			GatewayID: uuid.New().String(),
			Amount:    100,
		})

		router := setupTestRouter()
		router.POST("/deposits", handler.CreateDeposit)
		req := httptest.NewRequest(http.MethodPost, "/deposits", bytes.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		paymentService.AssertNotCalled(t, "Initiate", mock.Anything, mock.Anything)
	})
}

func TestPaymentHandler_Callback(t *testing.T) {
	t.Run("settles the payment", func(t *testing.T) {
		paymentService := new(MockPaymentService)
		handler := NewPaymentHandler(testLogger(), paymentService)

		paymentService.On("HandleCallback", mock.Anything, payment.ProviderCheckout, mock.MatchedBy(func(params url.Values) bool {
			return params.Get("session_id") == "cs_42" && params.Get("reference") == "PAY-abc123"
		})).Return(&reconcile.CallbackResult{
			Reference:  "PAY-abc123",
			Provider:   payment.ProviderCheckout,
			TargetKind: payment.TargetDeposit,
			Applied:    9_850,
			Fee:        150,
		}, nil)

		router := setupTestRouter()
		router.GET("/payments/callback/:provider", handler.Callback)
		req := httptest.NewRequest(http.MethodGet, "/payments/callback/checkoutpay?session_id=cs_42&reference=PAY-abc123", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		var resp Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		data, _ := json.Marshal(resp.Data)
		var got reconcile.CallbackResult
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, int64(9_850), got.Applied)
		assert.False(t, got.AlreadyApplied)
		paymentService.AssertExpectations(t)
	})

	t.Run("replayed callback reports already applied", func(t *testing.T) {
		paymentService := new(MockPaymentService)
		handler := NewPaymentHandler(testLogger(), paymentService)

		paymentService.On("HandleCallback", mock.Anything, payment.ProviderCheckout, mock.Anything).
			Return(&reconcile.CallbackResult{
				Reference:      "PAY-abc123",
				Provider:       payment.ProviderCheckout,
				TargetKind:     payment.TargetDeposit,
				AlreadyApplied: true,
			}, nil)

		router := setupTestRouter()
		router.GET("/payments/callback/:provider", handler.Callback)
		req := httptest.NewRequest(http.MethodGet, "/payments/callback/checkoutpay?session_id=cs_42&reference=PAY-abc123", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		var resp Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		data, _ := json.Marshal(resp.Data)
		var got reconcile.CallbackResult
		require.NoError(t, json.Unmarshal(data, &got))
		assert.True(t, got.AlreadyApplied)
	})

	t.Run("unverifiable callback", func(t *testing.T) {
		paymentService := new(MockPaymentService)
		handler := NewPaymentHandler(testLogger(), paymentService)

		paymentService.On("HandleCallback", mock.Anything, payment.ProviderCheckout, mock.Anything).
			Return(nil, shared.ErrVerificationFailed)

		router := setupTestRouter()
		router.GET("/payments/callback/:provider", handler.Callback)
		req := httptest.NewRequest(http.MethodGet, "/payments/callback/checkoutpay?session_id=cs_bogus", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusUnprocessableEntity, w.Code)

		var resp Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.NotNil(t, resp.Error)
		assert.Equal(t, "VERIFICATION_FAILED", resp.Error.Code)
	})
}

package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lumapay/wallet-ledger/internal/domain/loan"
	"github.com/lumapay/wallet-ledger/internal/domain/payment"
	"github.com/lumapay/wallet-ledger/internal/domain/shared"
	"github.com/lumapay/wallet-ledger/internal/domain/transaction"
	"github.com/lumapay/wallet-ledger/internal/lending"
	"github.com/lumapay/wallet-ledger/internal/reconcile"
)

type MockLoanService struct {
	mock.Mock
}

func (m *MockLoanService) ApplyRepayment(ctx context.Context, loanID uuid.UUID, amount int64, source lending.Source, reference string) (*lending.Result, error) {
	args := m.Called(ctx, loanID, amount, source, reference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*lending.Result), args.Error(1)
}

func (m *MockLoanService) GetByID(ctx context.Context, id uuid.UUID) (*loan.Loan, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*loan.Loan), args.Error(1)
}

type MockPaymentService struct {
	mock.Mock
}

func (m *MockPaymentService) Initiate(ctx context.Context, req reconcile.InitiateRequest) (*reconcile.Initiation, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reconcile.Initiation), args.Error(1)
}

func (m *MockPaymentService) HandleCallback(ctx context.Context, provider payment.Provider, params url.Values) (*reconcile.CallbackResult, error) {
	args := m.Called(ctx, provider, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*reconcile.CallbackResult), args.Error(1)
}

func postRepayment(t *testing.T, handler *LoanHandler, loanID string, body CreateRepaymentRequest) *httptest.ResponseRecorder {
	t.Helper()
	router := setupTestRouter()
	router.POST("/loans/:id/repayments", handler.CreateRepayment)

	jsonBody, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, "/loans/"+loanID+"/repayments", bytes.NewReader(jsonBody))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestLoanHandler_CreateRepayment(t *testing.T) {
	t.Run("balance source settles immediately", func(t *testing.T) {
		loanService := new(MockLoanService)
		paymentService := new(MockPaymentService)
		handler := NewLoanHandler(testLogger(), loanService, paymentService)

		loanID := uuid.New()
		settled := &lending.Result{
			Loan: &loan.Loan{
				ID: loanID, AccountID: uuid.New(), Principal: 100_000,
				TotalPayable: 115_000, AmountPaid: 115_000,
				Currency: "USD", Status: loan.StatusCompleted,
			},
			Transaction: &transaction.Transaction{ID: uuid.New()},
			Requested:   120_000,
			Applied:     115_000,
		}
		loanService.On("ApplyRepayment", mock.Anything, loanID, int64(120_000), lending.SourceBalance, mock.AnythingOfType("string")).
			Return(settled, nil)

		w := postRepayment(t, handler, loanID.String(), CreateRepaymentRequest{Amount: 120_000, Source: "BALANCE"})
		require.Equal(t, http.StatusCreated, w.Code)

		var resp Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		data, _ := json.Marshal(resp.Data)
		var got RepaymentResponse
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, int64(115_000), got.Applied)
		assert.Equal(t, int64(0), got.Remaining)
		assert.Equal(t, string(loan.StatusCompleted), got.LoanStatus)

		loanService.AssertExpectations(t)
		paymentService.AssertNotCalled(t, "Initiate", mock.Anything, mock.Anything)
	})

	t.Run("insufficient balance surfaces as policy violation", func(t *testing.T) {
		loanService := new(MockLoanService)
		paymentService := new(MockPaymentService)
		handler := NewLoanHandler(testLogger(), loanService, paymentService)

		loanID := uuid.New()
		loanService.On("ApplyRepayment", mock.Anything, loanID, int64(500), lending.SourceBalance, mock.AnythingOfType("string")).
			Return(nil, shared.PolicyViolation{Reason: shared.PolicyReasonInsufficientBalance})

		w := postRepayment(t, handler, loanID.String(), CreateRepaymentRequest{Amount: 500, Source: "BALANCE"})
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		loanService.AssertExpectations(t)
	})

	t.Run("gateway source opens a checkout", func(t *testing.T) {
		loanService := new(MockLoanService)
		paymentService := new(MockPaymentService)
		handler := NewLoanHandler(testLogger(), loanService, paymentService)

		loanID := uuid.New()
		accountID := uuid.New()
		gatewayID := uuid.New()

		loanService.On("GetByID", mock.Anything, loanID).Return(&loan.Loan{
			ID: loanID, AccountID: accountID, Status: loan.StatusActive, Currency: "USD",
			Principal: 100_000, TotalPayable: 115_000,
		}, nil)
		paymentService.On("Initiate", mock.Anything, mock.MatchedBy(func(req reconcile.InitiateRequest) bool {
			return req.AccountID == accountID && req.GatewayID == gatewayID &&
				req.TargetKind == payment.TargetLoan && req.TargetID != nil && *req.TargetID == loanID
		})).Return(&reconcile.Initiation{Reference: "PAY-abc", RedirectURL: "https://checkout/pay"}, nil)

		w := postRepayment(t, handler, loanID.String(), CreateRepaymentRequest{
			Amount: 10_000, Source: "GATEWAY", GatewayID: gatewayID.String(),
		})
		assert.Equal(t, http.StatusAccepted, w.Code)
		loanService.AssertExpectations(t)
		paymentService.AssertExpectations(t)
	})

	t.Run("gateway source without gateway id", func(t *testing.T) {
		handler := NewLoanHandler(testLogger(), new(MockLoanService), new(MockPaymentService))
		w := postRepayment(t, handler, uuid.New().String(), CreateRepaymentRequest{Amount: 100, Source: "GATEWAY"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("settled loan is rejected", func(t *testing.T) {
		loanService := new(MockLoanService)
		handler := NewLoanHandler(testLogger(), loanService, new(MockPaymentService))

		loanID := uuid.New()
		loanService.On("ApplyRepayment", mock.Anything, loanID, int64(100), lending.SourceBalance, mock.AnythingOfType("string")).
			Return(nil, shared.ValidationError{Detail: "loan " + loanID.String() + " is already settled"})

		w := postRepayment(t, handler, loanID.String(), CreateRepaymentRequest{Amount: 100, Source: "BALANCE"})
		assert.Equal(t, http.StatusBadRequest, w.Code)
		loanService.AssertExpectations(t)
	})
}

func TestLoanHandler_GetByID(t *testing.T) {
	loanService := new(MockLoanService)
	handler := NewLoanHandler(testLogger(), loanService, new(MockPaymentService))

	loanID := uuid.New()
	loanService.On("GetByID", mock.Anything, loanID).Return(&loan.Loan{
		ID: loanID, AccountID: uuid.New(), Principal: 100_000, TotalPayable: 115_000,
		AmountPaid: 15_000, Currency: "USD", Status: loan.StatusActive,
	}, nil)

	router := setupTestRouter()
	router.GET("/loans/:id", handler.GetByID)

	req := httptest.NewRequest(http.MethodGet, "/loans/"+loanID.String(), nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)

	var resp Response
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	data, _ := json.Marshal(resp.Data)
	var got LoanResponse
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, int64(100_000), got.Remaining)
	loanService.AssertExpectations(t)
}

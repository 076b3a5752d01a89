package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/lumapay/wallet-ledger/internal/domain/account"
	"github.com/lumapay/wallet-ledger/internal/domain/transaction"
)

type MockAccountService struct {
	mock.Mock
}

func (m *MockAccountService) CreateAccount(ctx context.Context, userID uuid.UUID, currency string) (*account.Account, error) {
	args := m.Called(ctx, userID, currency)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.Account), args.Error(1)
}

func (m *MockAccountService) GetAccountByID(ctx context.Context, id uuid.UUID) (*account.Account, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*account.Account), args.Error(1)
}

func (m *MockAccountService) GetTransactionsByAccountID(ctx context.Context, accountID uuid.UUID, page, perPage int) ([]*transaction.Transaction, int64, error) {
	args := m.Called(ctx, accountID, page, perPage)
	if args.Get(0) == nil {
		return nil, 0, args.Error(2)
	}
	return args.Get(0).([]*transaction.Transaction), args.Get(1).(int64), args.Error(2)
}

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.Default()
	return r
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}

func TestAccountHandler_Create(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockService := new(MockAccountService)
		handler := NewAccountHandler(testLogger(), mockService)

		userID := uuid.New()
		now := time.Now()
		expectedAccount := &account.Account{
			ID:        uuid.New(),
			UserID:    userID,
			Balance:   0,
			Currency:  "USD",
			Status:    account.StatusActive,
			CreatedAt: now,
			UpdatedAt: now,
		}
		mockService.On("CreateAccount", mock.Anything, userID, "USD").Return(expectedAccount, nil)

		router := setupTestRouter()
		router.POST("/accounts", handler.Create)

		reqBody := CreateAccountRequest{UserID: userID.String(), Currency: "USD"}
		jsonBody, _ := json.Marshal(reqBody)

		req := httptest.NewRequest(http.MethodPost, "/accounts", bytes.NewReader(jsonBody))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusCreated, w.Code)

		var resp Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		data, _ := json.Marshal(resp.Data)
		var got AccountResponse
		require.NoError(t, json.Unmarshal(data, &got))
		assert.Equal(t, expectedAccount.ID.String(), got.ID)
		assert.Equal(t, "USD", got.Currency)
		assert.Equal(t, int64(0), got.Balance)

		mockService.AssertExpectations(t)
	})

	t.Run("InvalidBody", func(t *testing.T) {
		mockService := new(MockAccountService)
		handler := NewAccountHandler(testLogger(), mockService)

		router := setupTestRouter()
		router.POST("/accounts", handler.Create)

		req := httptest.NewRequest(http.MethodPost, "/accounts", bytes.NewReader([]byte(`{"user_id":"not-a-uuid"}`)))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		mockService.AssertNotCalled(t, "CreateAccount", mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestAccountHandler_GetByID(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockService := new(MockAccountService)
		handler := NewAccountHandler(testLogger(), mockService)

		accID := uuid.New()
		mockService.On("GetAccountByID", mock.Anything, accID).Return(&account.Account{
			ID: accID, UserID: uuid.New(), Balance: 2500, Currency: "USD", Status: account.StatusActive,
		}, nil)

		router := setupTestRouter()
		router.GET("/accounts/:id", handler.GetByID)

		req := httptest.NewRequest(http.MethodGet, "/accounts/"+accID.String(), nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("NotFound", func(t *testing.T) {
		mockService := new(MockAccountService)
		handler := NewAccountHandler(testLogger(), mockService)

		accID := uuid.New()
		mockService.On("GetAccountByID", mock.Anything, accID).Return(nil, account.ErrAccountNotFound{AccountID: accID})

		router := setupTestRouter()
		router.GET("/accounts/:id", handler.GetByID)

		req := httptest.NewRequest(http.MethodGet, "/accounts/"+accID.String(), nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		mockService.AssertExpectations(t)
	})

	t.Run("InvalidID", func(t *testing.T) {
		mockService := new(MockAccountService)
		handler := NewAccountHandler(testLogger(), mockService)

		router := setupTestRouter()
		router.GET("/accounts/:id", handler.GetByID)

		req := httptest.NewRequest(http.MethodGet, "/accounts/abc", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestAccountHandler_GetTransactions(t *testing.T) {
	t.Run("Success with pagination meta", func(t *testing.T) {
		mockService := new(MockAccountService)
		handler := NewAccountHandler(testLogger(), mockService)

		accID := uuid.New()
		txns := []*transaction.Transaction{
			{ID: uuid.New(), AccountID: accID, Amount: 100, Currency: "USD"},
			{ID: uuid.New(), AccountID: accID, Amount: 200, Currency: "USD"},
		}
		mockService.On("GetTransactionsByAccountID", mock.Anything, accID, 1, 10).Return(txns, int64(25), nil)

		router := setupTestRouter()
		router.GET("/accounts/:id/transactions", handler.GetTransactions)

		req := httptest.NewRequest(http.MethodGet, "/accounts/"+accID.String()+"/transactions", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)

		var resp Response
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.NotNil(t, resp.Meta)
		assert.Equal(t, 1, resp.Meta.Page)
		assert.Equal(t, 10, resp.Meta.PerPage)
		assert.Equal(t, 25, resp.Meta.TotalItems)
		assert.Equal(t, 3, resp.Meta.TotalPages)

		mockService.AssertExpectations(t)
	})

	t.Run("PerPage out of range", func(t *testing.T) {
		mockService := new(MockAccountService)
		handler := NewAccountHandler(testLogger(), mockService)

		router := setupTestRouter()
		router.GET("/accounts/:id/transactions", handler.GetTransactions)

		req := httptest.NewRequest(http.MethodGet, "/accounts/"+uuid.New().String()+"/transactions?per_page=500", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/lumapay/wallet-ledger/internal/api/handler"
	"github.com/lumapay/wallet-ledger/internal/api/middleware"
)

// setupRouter configures API routes and middleware for the application
func setupRouter(
	logger *slog.Logger,
	r *gin.Engine,
	accountHandler *handler.AccountHandler,
	transferHandler *handler.TransferHandler,
	paymentHandler *handler.PaymentHandler,
	loanHandler *handler.LoanHandler,
) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CorrelationID())

	// API v1 endpoints
	v1 := r.Group("/api/v1")
	{
		// Account operations
		accounts := v1.Group("/accounts")
		{
			accounts.POST("", accountHandler.Create)
			accounts.GET("/:id", accountHandler.GetByID)
			accounts.GET("/:id/transactions", accountHandler.GetTransactions)
		}

		// Money movement
		transfers := v1.Group("/transfers")
		{
			transfers.POST("", transferHandler.Create)
			transfers.GET("/:id", transferHandler.GetByID)
			transfers.POST("/:id/settle", transferHandler.Settle)
			transfers.POST("/:id/return", transferHandler.Return)
		}

		// Gateway deposits and provider callbacks
		v1.POST("/deposits", paymentHandler.CreateDeposit)
		v1.GET("/payments/callback/:provider", paymentHandler.Callback)

		// Loan repayments
		loans := v1.Group("/loans")
		{
			loans.GET("/:id", loanHandler.GetByID)
			loans.POST("/:id/repayments", loanHandler.CreateRepayment)
		}
	}

	// Health check endpoint for monitoring
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
	})
}

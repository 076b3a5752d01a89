package handler

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lumapay/wallet-ledger/internal/api/service"
	"github.com/lumapay/wallet-ledger/internal/domain/payment"
	"github.com/lumapay/wallet-ledger/internal/reconcile"
)

// PaymentHandler handles HTTP requests for gateway deposits and callbacks
type PaymentHandler struct {
	paymentService service.PaymentService
	logger         *slog.Logger
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(logger *slog.Logger, paymentService service.PaymentService) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		logger:         logger,
	}
}

// CreateDeposit opens a gateway checkout that will credit the wallet once
// the provider confirms payment
func (h *PaymentHandler) CreateDeposit(c *gin.Context) {
	var req CreateDepositRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	accountID, err := uuid.Parse(req.AccountID)
	if err != nil {
		RespondBadRequest(c, "Invalid account ID")
		return
	}
	gatewayID, err := uuid.Parse(req.GatewayID)
	if err != nil {
		RespondBadRequest(c, "Invalid gateway ID")
		return
	}

	initiation, err := h.paymentService.Initiate(c.Request.Context(), reconcile.InitiateRequest{
		AccountID:  accountID,
		GatewayID:  gatewayID,
		Amount:     req.Amount,
		TargetKind: payment.TargetDeposit,
	})
	if err != nil {
		respondDomainError(c, h.logger, err)
		return
	}

	RespondAccepted(c, initiation)
}

// Callback settles a provider return. The provider redirects the payer here;
// query parameters carry the provider's token plus whatever return
// parameters were embedded at initiation.
func (h *PaymentHandler) Callback(c *gin.Context) {
	provider := payment.Provider(c.Param("provider"))

	result, err := h.paymentService.HandleCallback(c.Request.Context(), provider, c.Request.URL.Query())
	if err != nil {
		respondDomainError(c, h.logger, err)
		return
	}

	RespondOK(c, result)
}

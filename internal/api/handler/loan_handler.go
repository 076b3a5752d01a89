package handler

import (
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lumapay/wallet-ledger/internal/api/service"
	"github.com/lumapay/wallet-ledger/internal/domain/loan"
	"github.com/lumapay/wallet-ledger/internal/domain/payment"
	"github.com/lumapay/wallet-ledger/internal/lending"
	"github.com/lumapay/wallet-ledger/internal/reconcile"
)

// LoanHandler handles HTTP requests for loan repayments
type LoanHandler struct {
	loanService    service.LoanService
	paymentService service.PaymentService
	logger         *slog.Logger
}

// NewLoanHandler creates a new loan handler
func NewLoanHandler(logger *slog.Logger, loanService service.LoanService, paymentService service.PaymentService) *LoanHandler {
	return &LoanHandler{
		loanService:    loanService,
		paymentService: paymentService,
		logger:         logger,
	}
}

// GetByID retrieves a loan by its ID
func (h *LoanHandler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid loan ID")
		return
	}

	l, err := h.loanService.GetByID(c.Request.Context(), id)
	if err != nil {
		respondDomainError(c, h.logger, err)
		return
	}

	RespondOK(c, mapLoanToResponse(l))
}

// CreateRepayment applies a repayment to a loan. BALANCE source settles
// immediately from the loan's wallet account; GATEWAY source opens a
// checkout and returns 202 with the redirect, repayment lands on callback.
func (h *LoanHandler) CreateRepayment(c *gin.Context) {
	loanID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid loan ID")
		return
	}

	var req CreateRepaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	switch lending.Source(req.Source) {
	case lending.SourceBalance:
		reference := "REPAY-" + uuid.New().String()
		result, err := h.loanService.ApplyRepayment(c.Request.Context(), loanID, req.Amount, lending.SourceBalance, reference)
		if err != nil {
			respondDomainError(c, h.logger, err)
			return
		}
		RespondCreated(c, mapRepaymentToResponse(result))

	case lending.SourceGateway:
		if req.GatewayID == "" {
			RespondBadRequest(c, "Gateway ID is required for gateway-sourced repayments")
			return
		}
		gatewayID, parseErr := uuid.Parse(req.GatewayID)
		if parseErr != nil {
			RespondBadRequest(c, "Invalid gateway ID")
			return
		}

		l, err := h.loanService.GetByID(c.Request.Context(), loanID)
		if err != nil {
			respondDomainError(c, h.logger, err)
			return
		}

		initiation, err := h.paymentService.Initiate(c.Request.Context(), reconcile.InitiateRequest{
			AccountID:  l.AccountID,
			GatewayID:  gatewayID,
			Amount:     req.Amount,
			TargetKind: payment.TargetLoan,
			TargetID:   &loanID,
		})
		if err != nil {
			respondDomainError(c, h.logger, err)
			return
		}
		RespondAccepted(c, initiation)

	default:
		RespondBadRequest(c, "Unknown repayment source: "+req.Source)
	}
}

func mapLoanToResponse(l *loan.Loan) LoanResponse {
	resp := LoanResponse{
		ID:           l.ID.String(),
		AccountID:    l.AccountID.String(),
		Principal:    l.Principal,
		InterestBps:  l.InterestBps,
		TotalPayable: l.TotalPayable,
		AmountPaid:   l.AmountPaid,
		Remaining:    l.Remaining(),
		Currency:     l.Currency,
		Status:       string(l.Status),
		CreatedAt:    l.CreatedAt.Format(time.RFC3339),
	}
	if l.CompletedAt != nil {
		resp.CompletedAt = l.CompletedAt.Format(time.RFC3339)
	}
	return resp
}

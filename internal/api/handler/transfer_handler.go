package handler

import (
	"context"
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lumapay/wallet-ledger/internal/api/service"
	"github.com/lumapay/wallet-ledger/internal/domain/shared"
	"github.com/lumapay/wallet-ledger/internal/domain/transfer"
)

// TransferHandler handles HTTP requests for money movement
type TransferHandler struct {
	transferService service.TransferService
	logger          *slog.Logger
}

// NewTransferHandler creates a new transfer handler
func NewTransferHandler(logger *slog.Logger, transferService service.TransferService) *TransferHandler {
	return &TransferHandler{
		transferService: transferService,
		logger:          logger,
	}
}

// Create dispatches a transfer request to the flow matching its kind.
// Internal and own transfers settle synchronously; external ones return
// with the debit held and an arrival estimate.
func (h *TransferHandler) Create(c *gin.Context) {
	var req CreateTransferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		RespondBadRequest(c, "Invalid user ID")
		return
	}
	fromID, err := uuid.Parse(req.FromAccountID)
	if err != nil {
		RespondBadRequest(c, "Invalid source account ID")
		return
	}

	kind := shared.TransferKind(req.Kind)

	var tr *transfer.Transfer
	switch kind {
	case shared.TransferKindInternal, shared.TransferKindOwn:
		if req.ToAccountID == "" {
			RespondBadRequest(c, "Destination account is required for "+req.Kind+" transfers")
			return
		}
		toID, parseErr := uuid.Parse(req.ToAccountID)
		if parseErr != nil {
			RespondBadRequest(c, "Invalid destination account ID")
			return
		}
		if kind == shared.TransferKindInternal {
			tr, err = h.transferService.TransferInternal(c.Request.Context(), userID, fromID, toID, req.Amount, req.Note)
		} else {
			tr, err = h.transferService.TransferOwn(c.Request.Context(), userID, fromID, toID, req.Amount)
		}

	case shared.TransferKindDomestic, shared.TransferKindWire:
		beneficiary := transfer.Beneficiary{
			Name:              req.BeneficiaryName,
			BankName:          req.BeneficiaryBank,
			AccountNumberMask: req.AccountNumber,
			RoutingNumber:     req.RoutingNumber,
			SwiftCode:         req.SwiftCode,
		}
		tr, err = h.transferService.TransferExternal(c.Request.Context(), fromID, kind, req.Amount, beneficiary, req.Note)

	default:
		RespondBadRequest(c, "Unknown transfer kind: "+req.Kind)
		return
	}

	if err != nil {
		respondDomainError(c, h.logger, err)
		return
	}

	if kind.IsExternal() {
		RespondAccepted(c, mapTransferToResponse(tr))
		return
	}
	RespondCreated(c, mapTransferToResponse(tr))
}

// GetByID retrieves a transfer by its ID
func (h *TransferHandler) GetByID(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid transfer ID")
		return
	}

	tr, err := h.transferService.GetByID(c.Request.Context(), id)
	if err != nil {
		respondDomainError(c, h.logger, err)
		return
	}

	RespondOK(c, mapTransferToResponse(tr))
}

// Settle marks a pending external transfer as settled by the receiving bank
func (h *TransferHandler) Settle(c *gin.Context) {
	h.finishExternal(c, h.transferService.SettleExternal)
}

// Return reverses a pending external transfer, refunding amount and fee
func (h *TransferHandler) Return(c *gin.Context) {
	h.finishExternal(c, h.transferService.ReturnExternal)
}

func (h *TransferHandler) finishExternal(c *gin.Context, op func(ctx context.Context, id uuid.UUID) error) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		RespondBadRequest(c, "Invalid transfer ID")
		return
	}

	if err := op(c.Request.Context(), id); err != nil {
		respondDomainError(c, h.logger, err)
		return
	}

	tr, err := h.transferService.GetByID(c.Request.Context(), id)
	if err != nil {
		respondDomainError(c, h.logger, err)
		return
	}

	RespondOK(c, mapTransferToResponse(tr))
}

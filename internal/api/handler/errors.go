package handler

import (
	"errors"
	"log/slog"

	"github.com/gin-gonic/gin"

	"github.com/lumapay/wallet-ledger/internal/domain/account"
	"github.com/lumapay/wallet-ledger/internal/domain/loan"
	"github.com/lumapay/wallet-ledger/internal/domain/payment"
	"github.com/lumapay/wallet-ledger/internal/domain/shared"
	"github.com/lumapay/wallet-ledger/internal/domain/transaction"
	"github.com/lumapay/wallet-ledger/internal/domain/transfer"
)

// respondDomainError translates the shared error taxonomy into HTTP statuses.
// Validation problems are 400, policy rejections 422, missing resources 404,
// provider failures 502. Ledger violations reaching this layer mean a guard
// upstream failed, so they surface as 500.
func respondDomainError(c *gin.Context, logger *slog.Logger, err error) {
	var validationErr shared.ValidationError
	if errors.As(err, &validationErr) {
		RespondBadRequest(c, validationErr.Detail)
		return
	}

	var policyErr shared.PolicyViolation
	if errors.As(err, &policyErr) {
		RespondUnprocessable(c, string(policyErr.Reason), policyErr.Error())
		return
	}

	switch {
	case errors.Is(err, account.ErrAccountNotFound{}):
		RespondNotFound(c, "Account not found")
		return
	case errors.Is(err, transaction.ErrTransactionNotFound{}):
		RespondNotFound(c, "Transaction not found")
		return
	case errors.Is(err, transfer.ErrTransferNotFound{}):
		RespondNotFound(c, "Transfer not found")
		return
	case errors.Is(err, loan.ErrLoanNotFound{}):
		RespondNotFound(c, "Loan not found")
		return
	case errors.Is(err, payment.ErrGatewayNotFound{}):
		RespondNotFound(c, "Payment gateway not found")
		return
	case errors.Is(err, transaction.ErrDuplicateReference{}):
		RespondConflict(c, "A transaction with this reference already exists")
		return
	case errors.Is(err, shared.ErrVerificationFailed):
		RespondUnprocessable(c, "VERIFICATION_FAILED", "Payment could not be verified")
		return
	}

	var gatewayErr shared.GatewayError
	if errors.As(err, &gatewayErr) {
		logger.Error("Provider call failed", "provider", gatewayErr.Provider, "error", err)
		RespondBadGateway(c, "")
		return
	}

	var ledgerErr shared.LedgerViolation
	if errors.As(err, &ledgerErr) {
		logger.Error("Ledger violation surfaced to API", "error", err)
		RespondInternalError(c)
		return
	}

	logger.Error("Unhandled error", "error", err)
	RespondInternalError(c)
}

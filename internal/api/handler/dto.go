package handler

import (
	"time"

	"github.com/lumapay/wallet-ledger/internal/domain/account"
	"github.com/lumapay/wallet-ledger/internal/domain/transaction"
	"github.com/lumapay/wallet-ledger/internal/domain/transfer"
	"github.com/lumapay/wallet-ledger/internal/lending"
)

// CreateAccountRequest represents a request to open a new wallet account
type CreateAccountRequest struct {
	UserID   string `json:"user_id" binding:"required,uuid"`
	Currency string `json:"currency" binding:"required,len=3"`
}

// AccountResponse represents an account in API responses
type AccountResponse struct {
	ID        string `json:"id"`
	UserID    string `json:"user_id"`
	Balance   int64  `json:"balance"`
	Currency  string `json:"currency"`
	Status    string `json:"status"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// TransactionResponse represents a ledger transaction in API responses
type TransactionResponse struct {
	ID          string `json:"id"`
	AccountID   string `json:"account_id"`
	Type        string `json:"type"`
	Amount      int64  `json:"amount"`
	Fee         int64  `json:"fee,omitempty"`
	Currency    string `json:"currency"`
	Status      string `json:"status"`
	Reference   string `json:"reference"`
	CreatedAt   string `json:"created_at"`
	CompletedAt string `json:"completed_at,omitempty"`
}

// CreateTransferRequest represents a request to move money. Kind selects the
// flow: INTERNAL and OWN need a destination account, DOMESTIC and WIRE need
// beneficiary details instead.
type CreateTransferRequest struct {
	Kind          string `json:"kind" binding:"required,oneof=INTERNAL OWN DOMESTIC WIRE"`
	UserID        string `json:"user_id" binding:"required,uuid"`
	FromAccountID string `json:"from_account_id" binding:"required,uuid"`
	ToAccountID   string `json:"to_account_id" binding:"omitempty,uuid"`
	Amount        int64  `json:"amount" binding:"required,gt=0"`
	Note          string `json:"note" binding:"max=255"`

	// External kinds only
	BeneficiaryName string `json:"beneficiary_name" binding:"max=140"`
	BeneficiaryBank string `json:"beneficiary_bank" binding:"max=140"`
	AccountNumber   string `json:"account_number" binding:"max=34"`
	RoutingNumber   string `json:"routing_number" binding:"max=9"`
	SwiftCode       string `json:"swift_code" binding:"max=11"`
}

// TransferResponse represents a transfer in API responses
type TransferResponse struct {
	ID            string                `json:"id"`
	Kind          string                `json:"kind"`
	Status        string                `json:"status"`
	FromAccountID string                `json:"from_account_id"`
	ToAccountID   string                `json:"to_account_id,omitempty"`
	Amount        int64                 `json:"amount"`
	Fee           int64                 `json:"fee"`
	Currency      string                `json:"currency"`
	Reference     string                `json:"reference"`
	Note          string                `json:"note,omitempty"`
	Beneficiary   *transfer.Beneficiary `json:"beneficiary,omitempty"`
	EstimatedAt   string                `json:"estimated_at,omitempty"`
	CreatedAt     string                `json:"created_at"`
}

// CreateDepositRequest represents a request to start a gateway checkout
type CreateDepositRequest struct {
	AccountID string `json:"account_id" binding:"required,uuid"`
	GatewayID string `json:"gateway_id" binding:"required,uuid"`
	Amount    int64  `json:"amount" binding:"required,gt=0"`
}

// CreateRepaymentRequest represents a loan repayment. BALANCE debits the
// wallet immediately; GATEWAY opens a checkout whose callback settles the
// repayment later.
type CreateRepaymentRequest struct {
	Amount    int64  `json:"amount" binding:"required,gt=0"`
	Source    string `json:"source" binding:"required,oneof=BALANCE GATEWAY"`
	GatewayID string `json:"gateway_id" binding:"omitempty,uuid"`
}

// RepaymentResponse represents an applied repayment in API responses
type RepaymentResponse struct {
	LoanID        string `json:"loan_id"`
	TransactionID string `json:"transaction_id"`
	Requested     int64  `json:"requested"`
	Applied       int64  `json:"applied"`
	AmountPaid    int64  `json:"amount_paid"`
	TotalPayable  int64  `json:"total_payable"`
	Remaining     int64  `json:"remaining"`
	LoanStatus    string `json:"loan_status"`
}

// LoanResponse represents a loan in API responses
type LoanResponse struct {
	ID           string `json:"id"`
	AccountID    string `json:"account_id"`
	Principal    int64  `json:"principal"`
	InterestBps  int64  `json:"interest_bps"`
	TotalPayable int64  `json:"total_payable"`
	AmountPaid   int64  `json:"amount_paid"`
	Remaining    int64  `json:"remaining"`
	Currency     string `json:"currency"`
	Status       string `json:"status"`
	CreatedAt    string `json:"created_at"`
	CompletedAt  string `json:"completed_at,omitempty"`
}

// PaginationParams represents pagination parameters for list endpoints
type PaginationParams struct {
	Page    int `form:"page,default=1" binding:"min=1"`
	PerPage int `form:"per_page,default=10" binding:"min=1,max=100"`
}

func mapAccountToResponse(acc *account.Account) AccountResponse {
	return AccountResponse{
		ID:        acc.ID.String(),
		UserID:    acc.UserID.String(),
		Balance:   acc.Balance,
		Currency:  acc.Currency,
		Status:    string(acc.Status),
		CreatedAt: acc.CreatedAt.Format(time.RFC3339),
		UpdatedAt: acc.UpdatedAt.Format(time.RFC3339),
	}
}

func mapTransactionToResponse(txn *transaction.Transaction) TransactionResponse {
	resp := TransactionResponse{
		ID:        txn.ID.String(),
		AccountID: txn.AccountID.String(),
		Type:      string(txn.Type),
		Amount:    txn.Amount,
		Fee:       txn.Fee,
		Currency:  txn.Currency,
		Status:    string(txn.Status),
		Reference: txn.Reference,
		CreatedAt: txn.CreatedAt.Format(time.RFC3339),
	}
	if txn.CompletedAt != nil {
		resp.CompletedAt = txn.CompletedAt.Format(time.RFC3339)
	}
	return resp
}

func mapTransferToResponse(tr *transfer.Transfer) TransferResponse {
	resp := TransferResponse{
		ID:            tr.ID.String(),
		Kind:          string(tr.Kind),
		Status:        string(tr.Status),
		FromAccountID: tr.FromAccountID.String(),
		Amount:        tr.Amount,
		Fee:           tr.Fee,
		Currency:      tr.Currency,
		Reference:     tr.Reference,
		Note:          tr.Note,
		Beneficiary:   tr.Beneficiary,
		CreatedAt:     tr.CreatedAt.Format(time.RFC3339),
	}
	if tr.ToAccountID != nil {
		resp.ToAccountID = tr.ToAccountID.String()
	}
	if tr.EstimatedAt != nil {
		resp.EstimatedAt = tr.EstimatedAt.Format(time.RFC3339)
	}
	return resp
}

func mapRepaymentToResponse(res *lending.Result) RepaymentResponse {
	return RepaymentResponse{
		LoanID:        res.Loan.ID.String(),
		TransactionID: res.Transaction.ID.String(),
		Requested:     res.Requested,
		Applied:       res.Applied,
		AmountPaid:    res.Loan.AmountPaid,
		TotalPayable:  res.Loan.TotalPayable,
		Remaining:     res.Loan.Remaining(),
		LoanStatus:    string(res.Loan.Status),
	}
}

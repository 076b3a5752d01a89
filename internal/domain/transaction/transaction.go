package transaction

import (
	"time"

	"github.com/google/uuid"
	"github.com/lumapay/wallet-ledger/internal/domain/shared"
)

// Metadata is a free-form key/value bag carried on each transaction. It holds
// gateway identifiers, counterpart names and reconciliation context, never
// anything that influences balance math.
type Metadata map[string]string

// Well-known metadata keys
const (
	MetaGatewayProvider   = "gateway_provider"
	MetaGatewayReference  = "gateway_reference"
	MetaCounterpartName   = "counterpart_name"
	MetaTransferID        = "transfer_id"
	MetaLoanID            = "loan_id"
	MetaRepaymentSource   = "repayment_source"
	MetaRecoveredCallback = "recovered_via_direct_verification"
)

// Transaction is an immutable record of one balance-affecting event. Its
// amount is applied to the account balance at most once, exactly when the
// status transitions into COMPLETED.
type Transaction struct {
	ID          uuid.UUID                `json:"id"`
	AccountID   uuid.UUID                `json:"account_id"`
	Type        shared.TransactionType   `json:"type"`
	Amount      int64                    `json:"amount"` // Stored in cents/minor units
	Fee         int64                    `json:"fee"`
	Currency    string                   `json:"currency"`
	Status      shared.TransactionStatus `json:"status"`
	Reference   string                   `json:"reference"`
	Metadata    Metadata                 `json:"metadata,omitempty"`
	FailReason  string                   `json:"fail_reason,omitempty"`
	CreatedAt   time.Time                `json:"created_at"`
	CompletedAt *time.Time               `json:"completed_at,omitempty"`
}

// BalanceDelta returns the signed amount the transaction applies to its
// account on completion. Debit types remove amount plus fee; credit types
// add the net amount.
func (t *Transaction) BalanceDelta() int64 {
	if t.Type.IsDebit() {
		return -(t.Amount + t.Fee)
	}
	return t.Amount
}

// New creates a PENDING transaction record
func New(accountID uuid.UUID, txType shared.TransactionType, amount, fee int64, currency, reference string, metadata Metadata) *Transaction {
	if metadata == nil {
		metadata = Metadata{}
	}
	return &Transaction{
		ID:        uuid.New(),
		AccountID: accountID,
		Type:      txType,
		Amount:    amount,
		Fee:       fee,
		Currency:  currency,
		Status:    shared.TransactionStatusPending,
		Reference: reference,
		Metadata:  metadata,
		CreatedAt: time.Now(),
	}
}

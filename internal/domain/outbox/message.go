package outbox

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/lumapay/wallet-ledger/internal/domain/shared"
	"github.com/lumapay/wallet-ledger/internal/domain/transaction"
)

// Message stores a settled-transaction event for reliable publishing. It is
// written in the same database transaction as the balance mutation so
// downstream observers never see an event without its balance change.
type Message struct {
	ID            int64               `json:"id"`
	TransactionID uuid.UUID           `json:"transaction_id"`
	AccountID     uuid.UUID           `json:"account_id"`
	Payload       json.RawMessage     `json:"payload"`
	Status        shared.OutboxStatus `json:"status"`
	Attempts      int                 `json:"attempts"`
	CreatedAt     time.Time           `json:"created_at"`
	LastAttemptAt *time.Time          `json:"last_attempt_at,omitempty"`
}

// NewMessage wraps a terminal transaction into an outbox message
func NewMessage(txn *transaction.Transaction) (*Message, error) {
	payload, err := json.Marshal(txn)
	if err != nil {
		return nil, err
	}

	return &Message{
		TransactionID: txn.ID,
		AccountID:     txn.AccountID,
		Payload:       payload,
		Status:        shared.OutboxStatusPending,
		Attempts:      0,
		CreatedAt:     time.Now(),
	}, nil
}

func (m *Message) IncrementAttempts() {
	m.Attempts++
	now := time.Now()
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsProcessed() {
	m.Status = shared.OutboxStatusProcessed
	now := time.Now()
	m.LastAttemptAt = &now
}

func (m *Message) MarkAsFailed() {
	m.Status = shared.OutboxStatusFailedToPublish
	now := time.Now()
	m.LastAttemptAt = &now
}

// GetTransaction extracts the transaction from the payload
func (m *Message) GetTransaction() (*transaction.Transaction, error) {
	var txn transaction.Transaction
	if err := json.Unmarshal(m.Payload, &txn); err != nil {
		return nil, err
	}
	return &txn, nil
}

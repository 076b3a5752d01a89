package transfer

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lumapay/wallet-ledger/internal/domain/shared"
)

// Beneficiary carries destination details for external transfers. Only the
// last four digits of the account number are ever retained.
type Beneficiary struct {
	Name              string `json:"name"`
	BankName          string `json:"bank_name"`
	AccountNumberMask string `json:"account_number_mask"`
	RoutingNumber     string `json:"routing_number,omitempty"` // Domestic
	SwiftCode         string `json:"swift_code,omitempty"`     // Wire
}

// MaskAccountNumber reduces an account number to its last four digits
func MaskAccountNumber(number string) string {
	number = strings.TrimSpace(number)
	if len(number) <= 4 {
		return number
	}
	return "****" + number[len(number)-4:]
}

// Transfer represents a single money-movement intent between two parties.
// It owns up to two transaction legs; its own status is independent of the
// legs for external kinds where settlement happens out-of-band.
type Transfer struct {
	ID             uuid.UUID             `json:"id"`
	Kind           shared.TransferKind   `json:"kind"`
	Status         shared.TransferStatus `json:"status"`
	FromAccountID  uuid.UUID             `json:"from_account_id"`
	ToAccountID    *uuid.UUID            `json:"to_account_id,omitempty"` // Internal/own only
	Amount         int64                 `json:"amount"`                  // Net amount, minor units
	Fee            int64                 `json:"fee"`
	Currency       string                `json:"currency"`
	DebitLegID     uuid.UUID             `json:"debit_leg_id"`
	CreditLegID    *uuid.UUID            `json:"credit_leg_id,omitempty"`
	Reference      string                `json:"reference"`
	Note           string                `json:"note,omitempty"`
	Beneficiary    *Beneficiary          `json:"beneficiary,omitempty"`
	EstimatedAt    *time.Time            `json:"estimated_at,omitempty"` // External arrival estimate
	CreatedAt      time.Time             `json:"created_at"`
	UpdatedAt      time.Time             `json:"updated_at"`
}

// Settlement lead time per external kind, in business days
const (
	DomesticBusinessDays = 3
	WireBusinessDays     = 5
)

// EstimateArrival returns from plus n business days, skipping weekends
func EstimateArrival(from time.Time, businessDays int) time.Time {
	t := from
	for added := 0; added < businessDays; {
		t = t.AddDate(0, 0, 1)
		if wd := t.Weekday(); wd != time.Saturday && wd != time.Sunday {
			added++
		}
	}
	return t
}

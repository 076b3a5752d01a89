package loan

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common errors
var (
	ErrLoanSettled      = errors.New("loan is already settled")
	ErrLoanNotRepayable = errors.New("loan is not in a repayable state")
	ErrInvalidAmount    = errors.New("repayment amount must be positive")
)

// Status defines the loan lifecycle states
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusApproved  Status = "APPROVED"
	StatusActive    Status = "ACTIVE" // Disbursed and accruing repayments
	StatusCompleted Status = "COMPLETED"
	StatusRejected  Status = "REJECTED"
	StatusDefaulted Status = "DEFAULTED"
	StatusCancelled Status = "CANCELLED"
)

// Loan carries a principal, its computed total payable and a running paid
// total. AmountPaid never exceeds TotalPayable; COMPLETED is one-way.
type Loan struct {
	ID           uuid.UUID  `json:"id"`
	AccountID    uuid.UUID  `json:"account_id"`
	Principal    int64      `json:"principal"` // Minor units
	InterestBps  int64      `json:"interest_bps"`
	TotalPayable int64      `json:"total_payable"`
	AmountPaid   int64      `json:"amount_paid"`
	Currency     string     `json:"currency"`
	Status       Status     `json:"status"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}

// NewLoan creates a pending loan; total payable is principal plus simple
// interest at the given basis points.
func NewLoan(accountID uuid.UUID, principal, interestBps int64, currency string) (*Loan, error) {
	if principal <= 0 {
		return nil, ErrInvalidAmount
	}
	if interestBps < 0 {
		return nil, errors.New("interest rate cannot be negative")
	}

	now := time.Now()
	return &Loan{
		ID:           uuid.New(),
		AccountID:    accountID,
		Principal:    principal,
		InterestBps:  interestBps,
		TotalPayable: principal + principal*interestBps/10000,
		AmountPaid:   0,
		Currency:     currency,
		Status:       StatusPending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}, nil
}

// Remaining returns the unpaid portion of the total payable
func (l *Loan) Remaining() int64 {
	return l.TotalPayable - l.AmountPaid
}

// Repayable reports whether the loan can accept a repayment
func (l *Loan) Repayable() bool {
	return l.Status == StatusActive
}

// ClampRepayment reduces a requested repayment so the running paid total can
// never exceed the total payable.
func (l *Loan) ClampRepayment(requested int64) int64 {
	if remaining := l.Remaining(); requested > remaining {
		return remaining
	}
	return requested
}

// ApplyRepayment adds the (already clamped) amount to the paid total and
// flips the loan to COMPLETED the instant it is fully paid. The transition
// is irreversible.
func (l *Loan) ApplyRepayment(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if !l.Repayable() {
		return ErrLoanNotRepayable
	}
	if amount > l.Remaining() {
		return errors.New("repayment exceeds remaining balance; clamp before applying")
	}

	l.AmountPaid += amount
	l.UpdatedAt = time.Now()
	if l.AmountPaid >= l.TotalPayable {
		now := time.Now()
		l.Status = StatusCompleted
		l.CompletedAt = &now
	}
	return nil
}

package payment

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// TargetKind names the domain object a pending payment settles into
type TargetKind string

const (
	TargetDeposit TargetKind = "DEPOSIT"
	TargetLoan    TargetKind = "LOAN"
)

// PendingStatus defines pending payment lifecycle states
type PendingStatus string

const (
	PendingStatusPending  PendingStatus = "PENDING"
	PendingStatusConsumed PendingStatus = "CONSUMED"
	PendingStatusExpired  PendingStatus = "EXPIRED"
)

// PendingPayment durably associates a gateway reference with an in-flight
// external checkout. It is keyed by the gateway reference so reconciliation
// never depends on process or session memory, and is consumed exactly once
// at successful verification.
type PendingPayment struct {
	ID         uuid.UUID     `json:"id"`
	Reference  string        `json:"reference"` // Unique gateway reference
	GatewayID  uuid.UUID     `json:"gateway_id"`
	Provider   Provider      `json:"provider"`
	AccountID  uuid.UUID     `json:"account_id"`
	Amount     int64         `json:"amount"` // Minor units
	Currency   string        `json:"currency"`
	TargetKind TargetKind    `json:"target_kind"`
	TargetID   *uuid.UUID    `json:"target_id,omitempty"` // Loan ID for loan targets
	Status     PendingStatus `json:"status"`
	ExpiresAt  time.Time     `json:"expires_at"`
	CreatedAt  time.Time     `json:"created_at"`
	UpdatedAt  time.Time     `json:"updated_at"`
}

// Expired reports whether the record's TTL has lapsed at the given instant
func (p *PendingPayment) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}

// PendingRepository manages durable pending payment state
type PendingRepository interface {
	Create(ctx context.Context, pp *PendingPayment) error
	GetByReference(ctx context.Context, reference string) (*PendingPayment, error)

	// Consume atomically flips a PENDING record to CONSUMED. Returns
	// ErrPendingAlreadyConsumed when another caller got there first, making
	// it the idempotency boundary for payment application.
	Consume(ctx context.Context, reference string) error

	// ExpireStale marks PENDING records past their TTL as EXPIRED and
	// returns how many were affected.
	ExpireStale(ctx context.Context, now time.Time) (int64, error)

	WithTx(tx pgx.Tx) PendingRepository
}

// ErrPendingNotFound indicates no pending payment for a reference
type ErrPendingNotFound struct {
	Reference string
}

func (e ErrPendingNotFound) Error() string {
	return "pending payment not found: " + e.Reference
}

// Is matches any ErrPendingNotFound when the target carries no reference
func (e ErrPendingNotFound) Is(target error) bool {
	t, ok := target.(ErrPendingNotFound)
	if !ok {
		return false
	}
	return t.Reference == "" || t.Reference == e.Reference
}

// ErrPendingAlreadyConsumed indicates the payment was already applied
type ErrPendingAlreadyConsumed struct {
	Reference string
}

func (e ErrPendingAlreadyConsumed) Error() string {
	return "pending payment already consumed: " + e.Reference
}

// Is matches any ErrPendingAlreadyConsumed when the target carries no reference
func (e ErrPendingAlreadyConsumed) Is(target error) bool {
	t, ok := target.(ErrPendingAlreadyConsumed)
	if !ok {
		return false
	}
	return t.Reference == "" || t.Reference == e.Reference
}

package shared

import (
	"errors"
	"fmt"
)

// PolicyReason identifies why the fee and limit policy rejected an amount
type PolicyReason string

const (
	PolicyReasonBelowMinimum        PolicyReason = "BELOW_MINIMUM"
	PolicyReasonAboveMaximum        PolicyReason = "ABOVE_MAXIMUM"
	PolicyReasonDailyCapExceeded    PolicyReason = "DAILY_CAP_EXCEEDED"
	PolicyReasonInsufficientBalance PolicyReason = "INSUFFICIENT_BALANCE"
	PolicyReasonCurrencyMismatch    PolicyReason = "CURRENCY_MISMATCH"
)

// PolicyViolation is returned when an amount fails limit or balance checks.
// It is always rejected before any write happens.
type PolicyViolation struct {
	Reason PolicyReason
	Detail string
}

func (e PolicyViolation) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("policy violation: %s (%s)", e.Reason, e.Detail)
	}
	return fmt.Sprintf("policy violation: %s", e.Reason)
}

// Is matches any PolicyViolation when the target carries no reason,
// otherwise matches on the reason
func (e PolicyViolation) Is(target error) bool {
	t, ok := target.(PolicyViolation)
	if !ok {
		return false
	}
	return t.Reason == "" || t.Reason == e.Reason
}

// LedgerViolation indicates an operation would break a ledger invariant
// (frozen account, negative balance, illegal status transition). Seen from a
// correctly guarded caller it is a logic bug, not a user error.
type LedgerViolation struct {
	Detail string
}

func (e LedgerViolation) Error() string {
	return "ledger violation: " + e.Detail
}

func (e LedgerViolation) Is(target error) bool {
	_, ok := target.(LedgerViolation)
	return ok
}

// ValidationError indicates malformed input, rejected before any state
// machine entry
type ValidationError struct {
	Detail string
}

func (e ValidationError) Error() string {
	return "validation error: " + e.Detail
}

func (e ValidationError) Is(target error) bool {
	_, ok := target.(ValidationError)
	return ok
}

// GatewayError indicates the payment provider was unreachable or rejected
// the call. No local state changes when it is returned.
type GatewayError struct {
	Provider string
	Err      error
}

func (e GatewayError) Error() string {
	return fmt.Sprintf("gateway error (%s): %v", e.Provider, e.Err)
}

func (e GatewayError) Unwrap() error { return e.Err }

func (e GatewayError) Is(target error) bool {
	t, ok := target.(GatewayError)
	if !ok {
		return false
	}
	return t.Provider == "" || t.Provider == e.Provider
}

// ErrVerificationFailed indicates the provider confirmed non-payment or
// reconciliation could not determine payment. No balance change occurs.
var ErrVerificationFailed = errors.New("payment verification failed")

// ErrStateLost indicates the pending-payment record for an in-flight
// checkout is missing or expired. Recoverable: reconciliation falls back to
// direct provider verification.
var ErrStateLost = errors.New("pending payment state lost")

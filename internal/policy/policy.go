// Package policy evaluates amounts against fee schedules and limits. It is
// pure: no I/O, no clock, no persistence. Callers load limits from whatever
// source applies (gateway row, transfer kind table) and pass in the daily
// usage they computed.
package policy

import (
	"fmt"

	"github.com/lumapay/wallet-ledger/internal/domain/shared"
)

// Limits is a fee schedule plus amount constraints, all in minor units.
// A zero Max or DailyCap means unlimited.
type Limits struct {
	MinAmount int64
	MaxAmount int64
	DailyCap  int64
	FeeFixed  int64
	FeeBps    int64
}

// Assessment is the outcome of a successful policy evaluation.
type Assessment struct {
	Amount int64
	Fee    int64
	Total  int64 // Amount + Fee
}

// Fee computes the fee for an amount: fixed part plus basis points,
// truncated toward zero.
func (l Limits) Fee(amount int64) int64 {
	return l.FeeFixed + amount*l.FeeBps/10000
}

// Evaluate checks amount against the limits and returns the fee assessment.
// usedToday is the sum of already-completed amounts counted against the
// daily cap.
func Evaluate(amount int64, l Limits, usedToday int64) (Assessment, error) {
	if amount <= 0 {
		return Assessment{}, shared.ValidationError{Detail: "amount must be positive"}
	}
	if l.MinAmount > 0 && amount < l.MinAmount {
		return Assessment{}, shared.PolicyViolation{
			Reason: shared.PolicyReasonBelowMinimum,
			Detail: fmt.Sprintf("amount %d below minimum %d", amount, l.MinAmount),
		}
	}
	if l.MaxAmount > 0 && amount > l.MaxAmount {
		return Assessment{}, shared.PolicyViolation{
			Reason: shared.PolicyReasonAboveMaximum,
			Detail: fmt.Sprintf("amount %d above maximum %d", amount, l.MaxAmount),
		}
	}
	if l.DailyCap > 0 && usedToday+amount > l.DailyCap {
		return Assessment{}, shared.PolicyViolation{
			Reason: shared.PolicyReasonDailyCapExceeded,
			Detail: fmt.Sprintf("amount %d exceeds remaining daily cap %d", amount, l.DailyCap-usedToday),
		}
	}

	fee := l.Fee(amount)
	return Assessment{Amount: amount, Fee: fee, Total: amount + fee}, nil
}

// CheckBalance verifies a balance covers a debit total. It exists so the
// insufficient-funds rejection carries the same error shape as the other
// policy outcomes; callers run it against the freshly locked row, never a
// stale read.
func CheckBalance(balance, total int64) error {
	if total > balance {
		return shared.PolicyViolation{
			Reason: shared.PolicyReasonInsufficientBalance,
			Detail: fmt.Sprintf("required %d, available %d", total, balance),
		}
	}
	return nil
}

package account

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// Common errors
var (
	ErrInsufficientFunds     = errors.New("insufficient funds")
	ErrInvalidAmount         = errors.New("amount must be positive")
	ErrAccountFrozen         = errors.New("account is frozen")
	ErrInvalidCurrencyFormat = errors.New("currency must be a 3-letter code")
)

// Status defines the account lifecycle states
type Status string

const (
	StatusActive Status = "ACTIVE"
	StatusFrozen Status = "FROZEN"
)

// Account holds a single monetary balance for one user. The balance is
// mutated only by the ledger writer; every other code path reads it.
type Account struct {
	ID        uuid.UUID `json:"id"`
	UserID    uuid.UUID `json:"user_id"`
	Balance   int64     `json:"balance"` // Stored in cents/minor units
	Currency  string    `json:"currency"`
	Status    Status    `json:"status"`
	Version   int       `json:"version"` // For optimistic locking
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewAccount creates an active account for the given user
func NewAccount(userID uuid.UUID, initialBalance int64, currency string) (*Account, error) {
	if userID == uuid.Nil {
		return nil, errors.New("user ID is required")
	}
	if len(currency) != 3 {
		return nil, ErrInvalidCurrencyFormat
	}
	if initialBalance < 0 {
		return nil, ErrInvalidAmount
	}

	now := time.Now()
	return &Account{
		ID:        uuid.New(),
		UserID:    userID,
		Balance:   initialBalance,
		Currency:  currency,
		Status:    StatusActive,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Credit adds the amount to the balance
func (a *Account) Credit(amount int64) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if a.Status == StatusFrozen {
		return ErrAccountFrozen
	}

	a.Balance += amount
	a.UpdatedAt = time.Now()
	a.Version++
	return nil
}

// Debit subtracts the amount from the balance. When allowNegative is false
// the balance may never drop below zero.
func (a *Account) Debit(amount int64, allowNegative bool) error {
	if amount <= 0 {
		return ErrInvalidAmount
	}
	if a.Status == StatusFrozen {
		return ErrAccountFrozen
	}
	if !allowNegative && a.Balance < amount {
		return ErrInsufficientFunds
	}

	a.Balance -= amount
	a.UpdatedAt = time.Now()
	a.Version++
	return nil
}

// CanDebit checks whether the account can cover the amount
func (a *Account) CanDebit(amount int64) bool {
	return a.Status == StatusActive && a.Balance >= amount
}

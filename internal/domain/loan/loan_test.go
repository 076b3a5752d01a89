package loan

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func activeLoan(t *testing.T, principal, interestBps int64) *Loan {
	t.Helper()
	l, err := NewLoan(uuid.New(), principal, interestBps, "USD")
	require.NoError(t, err)
	l.Status = StatusActive
	return l
}

func TestNewLoan(t *testing.T) {
	t.Run("total payable includes simple interest", func(t *testing.T) {
		l, err := NewLoan(uuid.New(), 100_000, 1500, "USD")
		require.NoError(t, err)
		assert.Equal(t, int64(115_000), l.TotalPayable)
		assert.Equal(t, StatusPending, l.Status)
	})

	t.Run("zero interest", func(t *testing.T) {
		l, err := NewLoan(uuid.New(), 100_000, 0, "USD")
		require.NoError(t, err)
		assert.Equal(t, int64(100_000), l.TotalPayable)
	})

	t.Run("non-positive principal is rejected", func(t *testing.T) {
		_, err := NewLoan(uuid.New(), 0, 100, "USD")
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("negative interest is rejected", func(t *testing.T) {
		_, err := NewLoan(uuid.New(), 1000, -1, "USD")
		assert.Error(t, err)
	})
}

func TestLoan_ClampRepayment(t *testing.T) {
	l := activeLoan(t, 1000, 0)
	l.AmountPaid = 850 // 150 remaining

	assert.Equal(t, int64(100), l.ClampRepayment(100))
	assert.Equal(t, int64(150), l.ClampRepayment(150))
	assert.Equal(t, int64(150), l.ClampRepayment(151))
	assert.Equal(t, int64(150), l.ClampRepayment(1_000_000))
}

func TestLoan_ApplyRepayment(t *testing.T) {
	t.Run("partial repayment advances the paid total", func(t *testing.T) {
		l := activeLoan(t, 1000, 0)
		require.NoError(t, l.ApplyRepayment(400))
		assert.Equal(t, int64(400), l.AmountPaid)
		assert.Equal(t, int64(600), l.Remaining())
		assert.Equal(t, StatusActive, l.Status)
		assert.Nil(t, l.CompletedAt)
	})

	t.Run("final repayment completes the loan", func(t *testing.T) {
		l := activeLoan(t, 1000, 0)
		require.NoError(t, l.ApplyRepayment(1000))
		assert.Equal(t, int64(0), l.Remaining())
		assert.Equal(t, StatusCompleted, l.Status)
		require.NotNil(t, l.CompletedAt)
	})

	t.Run("completed loan refuses further repayments", func(t *testing.T) {
		l := activeLoan(t, 1000, 0)
		require.NoError(t, l.ApplyRepayment(1000))
		assert.ErrorIs(t, l.ApplyRepayment(1), ErrLoanNotRepayable)
		assert.Equal(t, int64(1000), l.AmountPaid)
	})

	t.Run("unclamped overpayment is refused", func(t *testing.T) {
		l := activeLoan(t, 1000, 0)
		l.AmountPaid = 900
		assert.Error(t, l.ApplyRepayment(200))
		assert.Equal(t, int64(900), l.AmountPaid)
	})

	t.Run("pending loan is not repayable", func(t *testing.T) {
		l, err := NewLoan(uuid.New(), 1000, 0, "USD")
		require.NoError(t, err)
		assert.ErrorIs(t, l.ApplyRepayment(100), ErrLoanNotRepayable)
	})

	t.Run("non-positive amount is rejected", func(t *testing.T) {
		l := activeLoan(t, 1000, 0)
		assert.ErrorIs(t, l.ApplyRepayment(0), ErrInvalidAmount)
	})
}

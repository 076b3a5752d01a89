package shared

// TransactionType defines the balance-affecting event categories
type TransactionType string

const (
	TransactionTypeDeposit             TransactionType = "DEPOSIT"
	TransactionTypeWithdrawal          TransactionType = "WITHDRAWAL"
	TransactionTypeTransferIn          TransactionType = "TRANSFER_IN"
	TransactionTypeTransferOut         TransactionType = "TRANSFER_OUT"
	TransactionTypeLoanDisbursement    TransactionType = "LOAN_DISBURSEMENT"
	TransactionTypeLoanRepayment       TransactionType = "LOAN_REPAYMENT"
	TransactionTypeFundingDisbursement TransactionType = "FUNDING_DISBURSEMENT"
	TransactionTypeReferralReward      TransactionType = "REFERRAL_REWARD"
	TransactionTypeRankReward          TransactionType = "RANK_REWARD"
)

// IsDebit reports whether the type removes money from the account.
// Debit transactions subtract amount plus fee; credit transactions add
// the net amount only (the fee is never forwarded to a recipient).
func (t TransactionType) IsDebit() bool {
	switch t {
	case TransactionTypeWithdrawal, TransactionTypeTransferOut, TransactionTypeLoanRepayment:
		return true
	}
	return false
}

// IsValid reports whether the type is a known transaction type
func (t TransactionType) IsValid() bool {
	switch t {
	case TransactionTypeDeposit, TransactionTypeWithdrawal,
		TransactionTypeTransferIn, TransactionTypeTransferOut,
		TransactionTypeLoanDisbursement, TransactionTypeLoanRepayment,
		TransactionTypeFundingDisbursement, TransactionTypeReferralReward,
		TransactionTypeRankReward:
		return true
	}
	return false
}

// TransactionStatus defines transaction lifecycle states.
// COMPLETED, FAILED and CANCELLED are terminal.
type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "PENDING"
	TransactionStatusCompleted TransactionStatus = "COMPLETED"
	TransactionStatusFailed    TransactionStatus = "FAILED"
	TransactionStatusCancelled TransactionStatus = "CANCELLED"
)

// IsTerminal reports whether no further status transition is allowed
func (s TransactionStatus) IsTerminal() bool {
	return s == TransactionStatusCompleted || s == TransactionStatusFailed || s == TransactionStatusCancelled
}

// TransferKind defines the supported money-movement intents
type TransferKind string

const (
	TransferKindInternal TransferKind = "INTERNAL"
	TransferKindOwn      TransferKind = "OWN"
	TransferKindDomestic TransferKind = "DOMESTIC"
	TransferKindWire     TransferKind = "WIRE"
)

// IsExternal reports whether settlement happens out-of-band
func (k TransferKind) IsExternal() bool {
	return k == TransferKindDomestic || k == TransferKindWire
}

// TransferStatus tracks a transfer intent independent of its legs.
// External kinds stay PENDING until out-of-band settlement resolves.
type TransferStatus string

const (
	TransferStatusPending  TransferStatus = "PENDING"
	TransferStatusSettled  TransferStatus = "SETTLED"
	TransferStatusReturned TransferStatus = "RETURNED"
	TransferStatusFailed   TransferStatus = "FAILED"
)

// OutboxStatus defines message publishing states
type OutboxStatus string

const (
	OutboxStatusPending         OutboxStatus = "PENDING"
	OutboxStatusProcessed       OutboxStatus = "PROCESSED"
	OutboxStatusFailedToPublish OutboxStatus = "FAILED_TO_PUBLISH"
)

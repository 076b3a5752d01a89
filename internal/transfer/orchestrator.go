// Package transfer orchestrates money movement between accounts: instant
// internal and own-account transfers with two ledger legs settled
// atomically, and external transfers where funds are held immediately and
// the wire settles out of band.
package transfer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/lumapay/wallet-ledger/internal/config"
	"github.com/lumapay/wallet-ledger/internal/domain/account"
	"github.com/lumapay/wallet-ledger/internal/domain/shared"
	"github.com/lumapay/wallet-ledger/internal/domain/transaction"
	domain "github.com/lumapay/wallet-ledger/internal/domain/transfer"
	"github.com/lumapay/wallet-ledger/internal/policy"
)

// ledgerWriter is the slice of the ledger writer transfers need
type ledgerWriter interface {
	Record(ctx context.Context, accountID uuid.UUID, txType shared.TransactionType, amount, fee int64, reference string, metadata transaction.Metadata) (*transaction.Transaction, error)
	Complete(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error)
	CompletePair(ctx context.Context, debitID, creditID uuid.UUID) (*transaction.Transaction, *transaction.Transaction, error)
	RecordAndComplete(ctx context.Context, accountID uuid.UUID, txType shared.TransactionType, amount, fee int64, reference string, metadata transaction.Metadata) (*transaction.Transaction, error)
	Fail(ctx context.Context, id uuid.UUID, reason string) error
}

// Orchestrator coordinates transfer intents and their ledger legs.
type Orchestrator struct {
	writer       ledgerWriter
	accounts     account.Repository
	transactions transaction.Repository
	transfers    domain.Repository
	cfg          config.TransfersConfig
	logger       *slog.Logger
}

// NewOrchestrator creates a transfer orchestrator
func NewOrchestrator(
	writer ledgerWriter,
	accounts account.Repository,
	transactions transaction.Repository,
	transfers domain.Repository,
	cfg config.TransfersConfig,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		writer:       writer,
		accounts:     accounts,
		transactions: transactions,
		transfers:    transfers,
		cfg:          cfg,
		logger:       logger,
	}
}

// TransferInternal moves money between two accounts of different users.
// The debit leg carries the fee, the credit leg is the net amount, and both
// settle in one atomic scope.
func (o *Orchestrator) TransferInternal(ctx context.Context, fromUserID, fromAccountID, toAccountID uuid.UUID, amount int64, note string) (*domain.Transfer, error) {
	if fromAccountID == toAccountID {
		return nil, shared.ValidationError{Detail: "cannot transfer to the same account"}
	}

	from, err := o.accounts.GetByID(ctx, fromAccountID)
	if err != nil {
		return nil, err
	}
	if from.UserID != fromUserID {
		return nil, shared.ValidationError{Detail: "source account does not belong to the user"}
	}
	to, err := o.accounts.GetByID(ctx, toAccountID)
	if err != nil {
		return nil, err
	}

	return o.pairTransfer(ctx, shared.TransferKindInternal, from, to, amount, note)
}

// TransferOwn moves money between two accounts of the same user, free of
// charge.
func (o *Orchestrator) TransferOwn(ctx context.Context, userID, fromAccountID, toAccountID uuid.UUID, amount int64) (*domain.Transfer, error) {
	if fromAccountID == toAccountID {
		return nil, shared.ValidationError{Detail: "source and destination accounts must differ"}
	}

	from, err := o.accounts.GetByID(ctx, fromAccountID)
	if err != nil {
		return nil, err
	}
	to, err := o.accounts.GetByID(ctx, toAccountID)
	if err != nil {
		return nil, err
	}
	if from.UserID != userID || to.UserID != userID {
		return nil, shared.ValidationError{Detail: "both accounts must belong to the user"}
	}

	return o.pairTransfer(ctx, shared.TransferKindOwn, from, to, amount, "")
}

func (o *Orchestrator) pairTransfer(ctx context.Context, kind shared.TransferKind, from, to *account.Account, amount int64, note string) (*domain.Transfer, error) {
	if from.Currency != to.Currency {
		return nil, shared.PolicyViolation{
			Reason: shared.PolicyReasonCurrencyMismatch,
			Detail: fmt.Sprintf("cannot transfer %s into a %s account", from.Currency, to.Currency),
		}
	}

	assessment, err := policy.Evaluate(amount, o.limitsFor(kind), 0)
	if err != nil {
		return nil, err
	}

	// Soft precheck for a fast rejection. The authoritative check runs
	// against the locked row when the debit leg completes.
	if !from.CanDebit(assessment.Total) {
		return nil, shared.PolicyViolation{
			Reason: shared.PolicyReasonInsufficientBalance,
			Detail: fmt.Sprintf("required %d, available %d", assessment.Total, from.Balance),
		}
	}

	transferID := uuid.New()
	reference := newReference()
	metadata := transaction.Metadata{transaction.MetaTransferID: transferID.String()}

	debit, err := o.writer.Record(ctx, from.ID, shared.TransactionTypeTransferOut, amount, assessment.Fee, reference+"-OUT", metadata)
	if err != nil {
		return nil, err
	}
	credit, err := o.writer.Record(ctx, to.ID, shared.TransactionTypeTransferIn, amount, 0, reference+"-IN", metadata)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	toID := to.ID
	creditID := credit.ID
	tr := &domain.Transfer{
		ID:            transferID,
		Kind:          kind,
		Status:        shared.TransferStatusPending,
		FromAccountID: from.ID,
		ToAccountID:   &toID,
		Amount:        amount,
		Fee:           assessment.Fee,
		Currency:      from.Currency,
		DebitLegID:    debit.ID,
		CreditLegID:   &creditID,
		Reference:     reference,
		Note:          note,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := o.transfers.Create(ctx, tr); err != nil {
		return nil, err
	}

	if _, _, err := o.writer.CompletePair(ctx, debit.ID, credit.ID); err != nil {
		o.abandon(ctx, tr, debit.ID, credit.ID, err)
		return nil, err
	}

	if err := o.transfers.UpdateStatus(ctx, tr.ID, shared.TransferStatusSettled); err != nil {
		return nil, err
	}
	tr.Status = shared.TransferStatusSettled

	o.logger.Info("Transfer settled",
		"transfer_id", tr.ID.String(),
		"kind", string(kind),
		"from_account", from.ID.String(),
		"to_account", to.ID.String(),
		"amount", amount,
		"fee", assessment.Fee,
	)
	return tr, nil
}

// TransferExternal debits the source account immediately and leaves the
// transfer PENDING until the receiving network confirms or returns it.
func (o *Orchestrator) TransferExternal(ctx context.Context, fromAccountID uuid.UUID, kind shared.TransferKind, amount int64, beneficiary domain.Beneficiary, note string) (*domain.Transfer, error) {
	if !kind.IsExternal() {
		return nil, shared.ValidationError{Detail: "kind must be DOMESTIC or WIRE"}
	}
	if beneficiary.Name == "" || beneficiary.AccountNumberMask == "" {
		return nil, shared.ValidationError{Detail: "beneficiary name and account number are required"}
	}
	if kind == shared.TransferKindDomestic && beneficiary.RoutingNumber == "" {
		return nil, shared.ValidationError{Detail: "routing number is required for domestic transfers"}
	}
	if kind == shared.TransferKindWire && beneficiary.SwiftCode == "" {
		return nil, shared.ValidationError{Detail: "SWIFT code is required for wire transfers"}
	}
	beneficiary.AccountNumberMask = domain.MaskAccountNumber(beneficiary.AccountNumberMask)

	from, err := o.accounts.GetByID(ctx, fromAccountID)
	if err != nil {
		return nil, err
	}

	usedToday, err := o.transactions.SumCompletedSince(ctx, from.UserID,
		[]shared.TransactionType{shared.TransactionTypeTransferOut}, startOfDayUTC(time.Now()))
	if err != nil {
		return nil, err
	}

	assessment, err := policy.Evaluate(amount, o.limitsFor(kind), usedToday)
	if err != nil {
		return nil, err
	}
	if !from.CanDebit(assessment.Total) {
		return nil, shared.PolicyViolation{
			Reason: shared.PolicyReasonInsufficientBalance,
			Detail: fmt.Sprintf("required %d, available %d", assessment.Total, from.Balance),
		}
	}

	transferID := uuid.New()
	reference := newReference()
	metadata := transaction.Metadata{
		transaction.MetaTransferID:      transferID.String(),
		transaction.MetaCounterpartName: beneficiary.Name,
	}

	debit, err := o.writer.Record(ctx, from.ID, shared.TransactionTypeTransferOut, amount, assessment.Fee, reference+"-OUT", metadata)
	if err != nil {
		return nil, err
	}

	businessDays := domain.DomesticBusinessDays
	if kind == shared.TransferKindWire {
		businessDays = domain.WireBusinessDays
	}
	now := time.Now()
	eta := domain.EstimateArrival(now, businessDays)

	tr := &domain.Transfer{
		ID:            transferID,
		Kind:          kind,
		Status:        shared.TransferStatusPending,
		FromAccountID: from.ID,
		Amount:        amount,
		Fee:           assessment.Fee,
		Currency:      from.Currency,
		DebitLegID:    debit.ID,
		Reference:     reference,
		Note:          note,
		Beneficiary:   &beneficiary,
		EstimatedAt:   &eta,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := o.transfers.Create(ctx, tr); err != nil {
		return nil, err
	}

	// Funds are held the moment the debit leg settles; the transfer intent
	// stays PENDING until the network result arrives.
	if _, err := o.writer.Complete(ctx, debit.ID); err != nil {
		o.abandon(ctx, tr, debit.ID, uuid.Nil, err)
		return nil, err
	}

	o.logger.Info("External transfer initiated",
		"transfer_id", tr.ID.String(),
		"kind", string(kind),
		"from_account", from.ID.String(),
		"amount", amount,
		"fee", assessment.Fee,
		"estimated_at", eta.Format(time.RFC3339),
	)
	return tr, nil
}

// SettleExternal records the out-of-band confirmation for a held external
// transfer. The debit already settled at initiation, so only the intent
// status moves.
func (o *Orchestrator) SettleExternal(ctx context.Context, transferID uuid.UUID) error {
	tr, err := o.pendingExternal(ctx, transferID)
	if err != nil {
		return err
	}
	if err := o.transfers.UpdateStatus(ctx, tr.ID, shared.TransferStatusSettled); err != nil {
		return err
	}
	o.logger.Info("External transfer settled", "transfer_id", transferID.String())
	return nil
}

// ReturnExternal refunds a held external transfer that the receiving
// network bounced. The full held amount, fee included, goes back to the
// source account through a fresh credit leg.
func (o *Orchestrator) ReturnExternal(ctx context.Context, transferID uuid.UUID) error {
	tr, err := o.pendingExternal(ctx, transferID)
	if err != nil {
		return err
	}

	metadata := transaction.Metadata{transaction.MetaTransferID: tr.ID.String()}
	if _, err := o.writer.RecordAndComplete(ctx, tr.FromAccountID, shared.TransactionTypeTransferIn,
		tr.Amount+tr.Fee, 0, tr.Reference+"-RET", metadata); err != nil {
		return err
	}

	if err := o.transfers.UpdateStatus(ctx, tr.ID, shared.TransferStatusReturned); err != nil {
		return err
	}
	o.logger.Info("External transfer returned",
		"transfer_id", transferID.String(),
		"refunded", tr.Amount+tr.Fee,
	)
	return nil
}

// GetByID loads a single transfer intent
func (o *Orchestrator) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transfer, error) {
	return o.transfers.GetByID(ctx, id)
}

// ListByAccount pages through transfers touching an account
func (o *Orchestrator) ListByAccount(ctx context.Context, accountID uuid.UUID, limit, offset int) ([]*domain.Transfer, error) {
	return o.transfers.GetByAccountID(ctx, accountID, limit, offset)
}

func (o *Orchestrator) pendingExternal(ctx context.Context, transferID uuid.UUID) (*domain.Transfer, error) {
	tr, err := o.transfers.GetByID(ctx, transferID)
	if err != nil {
		return nil, err
	}
	if !tr.Kind.IsExternal() {
		return nil, shared.ValidationError{Detail: "transfer " + transferID.String() + " is not external"}
	}
	if tr.Status != shared.TransferStatusPending {
		return nil, shared.ValidationError{Detail: fmt.Sprintf("transfer %s is already %s", transferID, tr.Status)}
	}
	return tr, nil
}

// abandon marks the legs failed and the intent FAILED after a settlement
// error. Best effort: the legs are still PENDING, so no balance was touched.
func (o *Orchestrator) abandon(ctx context.Context, tr *domain.Transfer, debitID, creditID uuid.UUID, cause error) {
	reason := cause.Error()
	if err := o.writer.Fail(ctx, debitID, reason); err != nil {
		o.logger.Error("Failed to mark debit leg failed", "transaction_id", debitID.String(), "error", err)
	}
	if creditID != uuid.Nil {
		if err := o.writer.Fail(ctx, creditID, reason); err != nil {
			o.logger.Error("Failed to mark credit leg failed", "transaction_id", creditID.String(), "error", err)
		}
	}
	if err := o.transfers.UpdateStatus(ctx, tr.ID, shared.TransferStatusFailed); err != nil {
		o.logger.Error("Failed to mark transfer failed", "transfer_id", tr.ID.String(), "error", err)
	}
}

func (o *Orchestrator) limitsFor(kind shared.TransferKind) policy.Limits {
	l := policy.Limits{MinAmount: o.cfg.MinAmount}
	switch kind {
	case shared.TransferKindInternal:
		l.FeeFixed = o.cfg.InternalFeeFixed
		l.FeeBps = o.cfg.InternalFeeBps
		l.MaxAmount = o.cfg.InternalMaxAmount
	case shared.TransferKindDomestic:
		l.FeeFixed = o.cfg.DomesticFeeFixed
		l.FeeBps = o.cfg.DomesticFeeBps
		l.DailyCap = o.cfg.ExternalDailyCap
	case shared.TransferKindWire:
		l.FeeFixed = o.cfg.WireFeeFixed
		l.FeeBps = o.cfg.WireFeeBps
		l.DailyCap = o.cfg.ExternalDailyCap
	}
	return l
}

func newReference() string {
	return "TRF-" + uuid.NewString()
}

func startOfDayUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

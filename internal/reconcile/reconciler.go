// Package reconcile tracks an external payment from checkout initiation
// through provider callback to ledger settlement. All coordination state
// lives in durable PendingPayment rows keyed by the gateway reference, so a
// callback arriving on another device, after an expiry, or after a crash is
// handled by the same verification path as the happy case.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/google/uuid"
	"github.com/lumapay/wallet-ledger/internal/config"
	"github.com/lumapay/wallet-ledger/internal/domain/account"
	"github.com/lumapay/wallet-ledger/internal/domain/payment"
	"github.com/lumapay/wallet-ledger/internal/domain/shared"
	"github.com/lumapay/wallet-ledger/internal/domain/transaction"
	"github.com/lumapay/wallet-ledger/internal/gateway"
	"github.com/lumapay/wallet-ledger/internal/lending"
	"github.com/lumapay/wallet-ledger/internal/policy"
)

// ledgerWriter is the slice of the ledger writer reconciliation needs
type ledgerWriter interface {
	RecordAndComplete(ctx context.Context, accountID uuid.UUID, txType shared.TransactionType, amount, fee int64, reference string, metadata transaction.Metadata) (*transaction.Transaction, error)
	Complete(ctx context.Context, id uuid.UUID) (*transaction.Transaction, error)
}

// repaymentApplier is the slice of the loan accumulator reconciliation needs
type repaymentApplier interface {
	ApplyRepayment(ctx context.Context, loanID uuid.UUID, amount int64, source lending.Source, reference string) (*lending.Result, error)
}

// gatewayResolver builds provider integrations from gateway rows
type gatewayResolver interface {
	ForGateway(gw *payment.Gateway) (gateway.Gateway, error)
}

// Reconciler drives the payment reconciliation state machine.
type Reconciler struct {
	gateways     payment.GatewayRepository
	pendings     payment.PendingRepository
	accounts     account.Repository
	transactions transaction.Repository
	resolver     gatewayResolver
	writer       ledgerWriter
	repayments   repaymentApplier
	cfg          config.PaymentsConfig
	logger       *slog.Logger
}

// NewReconciler creates a payment reconciler
func NewReconciler(
	gateways payment.GatewayRepository,
	pendings payment.PendingRepository,
	accounts account.Repository,
	transactions transaction.Repository,
	resolver gatewayResolver,
	writer ledgerWriter,
	repayments repaymentApplier,
	cfg config.PaymentsConfig,
	logger *slog.Logger,
) *Reconciler {
	return &Reconciler{
		gateways:     gateways,
		pendings:     pendings,
		accounts:     accounts,
		transactions: transactions,
		resolver:     resolver,
		writer:       writer,
		repayments:   repayments,
		cfg:          cfg,
		logger:       logger,
	}
}

// InitiateRequest starts an external checkout towards a deposit or a loan
// repayment.
type InitiateRequest struct {
	AccountID  uuid.UUID
	GatewayID  uuid.UUID
	Amount     int64 // Minor units
	TargetKind payment.TargetKind
	TargetID   *uuid.UUID // Loan ID for loan targets
}

// Initiation is what the caller needs to continue the checkout.
type Initiation struct {
	Reference    string    `json:"reference"`
	Provider     string    `json:"provider"`
	Amount       int64     `json:"amount"`
	Fee          int64     `json:"fee"`
	Currency     string    `json:"currency"`
	RedirectURL  string    `json:"redirect_url,omitempty"`
	Instructions string    `json:"instructions,omitempty"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// CallbackResult reports how a provider callback was settled.
type CallbackResult struct {
	Reference      string             `json:"reference"`
	Provider       payment.Provider   `json:"provider"`
	TargetKind     payment.TargetKind `json:"target_kind"`
	Applied        int64              `json:"applied"` // Net credited, minor units
	Fee            int64              `json:"fee"`
	AlreadyApplied bool               `json:"already_applied"` // Replay detected, nothing changed
	Recovered      bool               `json:"recovered"`       // Settled via direct verification
}

// Initiate validates the amount against the gateway's policy, durably
// records the in-flight payment, and opens the checkout with the provider.
// The provider call happens strictly after the durable write and before any
// balance change.
func (r *Reconciler) Initiate(ctx context.Context, req InitiateRequest) (*Initiation, error) {
	gw, err := r.gateways.GetByID(ctx, req.GatewayID)
	if err != nil {
		return nil, err
	}
	if !gw.Enabled {
		return nil, payment.ErrGatewayNotFound{Provider: gw.Provider}
	}

	acc, err := r.accounts.GetByID(ctx, req.AccountID)
	if err != nil {
		return nil, err
	}
	if !gw.SupportsCurrency(acc.Currency) {
		return nil, shared.PolicyViolation{
			Reason: shared.PolicyReasonCurrencyMismatch,
			Detail: fmt.Sprintf("gateway %s does not support %s", gw.DisplayName, acc.Currency),
		}
	}

	usedToday, err := r.transactions.SumCompletedSince(ctx, acc.UserID,
		[]shared.TransactionType{shared.TransactionTypeDeposit}, startOfDayUTC(time.Now()))
	if err != nil {
		return nil, err
	}
	assessment, err := policy.Evaluate(req.Amount, gatewayLimits(gw), usedToday)
	if err != nil {
		return nil, err
	}

	if req.TargetKind == payment.TargetLoan {
		if req.TargetID == nil {
			return nil, shared.ValidationError{Detail: "loan target requires a loan id"}
		}
	} else if req.TargetKind != payment.TargetDeposit {
		return nil, shared.ValidationError{Detail: "unknown payment target: " + string(req.TargetKind)}
	}

	now := time.Now()
	reference := newPaymentReference()
	pp := &payment.PendingPayment{
		ID:         uuid.New(),
		Reference:  reference,
		GatewayID:  gw.ID,
		Provider:   gw.Provider,
		AccountID:  acc.ID,
		Amount:     req.Amount,
		Currency:   acc.Currency,
		TargetKind: req.TargetKind,
		TargetID:   req.TargetID,
		Status:     payment.PendingStatusPending,
		ExpiresAt:  now.Add(r.cfg.PendingTTL),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := r.pendings.Create(ctx, pp); err != nil {
		return nil, err
	}

	impl, err := r.resolver.ForGateway(gw)
	if err != nil {
		return nil, err
	}
	returnParams := url.Values{"account_id": {acc.ID.String()}}
	if req.TargetID != nil {
		returnParams.Set("loan_id", req.TargetID.String())
	}
	init, err := impl.Initiate(ctx, gateway.InitiateRequest{
		Amount:       req.Amount,
		Currency:     acc.Currency,
		Reference:    reference,
		ReturnParams: returnParams,
	})
	if err != nil {
		// The pending row stays and ages out through the TTL sweep
		return nil, err
	}

	r.logger.Info("Payment initiated",
		"reference", reference,
		"provider", string(gw.Provider),
		"account_id", acc.ID.String(),
		"amount", req.Amount,
		"target", string(req.TargetKind),
	)
	return &Initiation{
		Reference:    reference,
		Provider:     string(gw.Provider),
		Amount:       req.Amount,
		Fee:          assessment.Fee,
		Currency:     acc.Currency,
		RedirectURL:  init.RedirectURL,
		Instructions: init.Instructions,
		ExpiresAt:    pp.ExpiresAt,
	}, nil
}

// HandleCallback settles a provider callback exactly once. The pending row
// is the idempotency boundary on the happy path; the transaction reference
// uniqueness backs it up everywhere else, including the direct-verification
// recovery path.
func (r *Reconciler) HandleCallback(ctx context.Context, provider payment.Provider, params url.Values) (*CallbackResult, error) {
	token, err := gateway.ResolveCallbackToken(provider, params)
	if err != nil {
		r.logger.Warn("Callback rejected: unusable token", "provider", string(provider), "error", err)
		return nil, fmt.Errorf("%w: %v", shared.ErrVerificationFailed, err)
	}
	reference := params.Get("reference")

	// Replay guard: a completed transaction under the reference means this
	// callback was settled before; a pending one means a crash split the
	// record from its balance application and completion is retried here.
	if reference != "" {
		handled, err := r.replayOrResume(ctx, provider, reference)
		if err != nil || handled != nil {
			return handled, err
		}
	}

	pp, err := r.pendings.GetByReference(ctx, reference)
	switch {
	case err == nil && pp.Status == payment.PendingStatusConsumed:
		// Consumed with no transaction under the reference: a crash split
		// consumption from application. Direct verification resolves it.
		return r.recover(ctx, provider, token, reference, pp, params)
	case err == nil && pp.Status == payment.PendingStatusPending && !pp.Expired(time.Now()):
		return r.settle(ctx, pp, token)
	case err == nil:
		// Expired, by status or by clock
		return r.recover(ctx, provider, token, reference, pp, params)
	case errors.Is(err, payment.ErrPendingNotFound{}):
		return r.recover(ctx, provider, token, reference, nil, params)
	default:
		return nil, err
	}
}

// settle is the happy path: verify with the provider, consume the pending
// row, apply the provider-reported amount.
func (r *Reconciler) settle(ctx context.Context, pp *payment.PendingPayment, token string) (*CallbackResult, error) {
	gw, err := r.gateways.GetByID(ctx, pp.GatewayID)
	if err != nil {
		return nil, err
	}
	verification, err := r.verify(ctx, gw, token, pp.Reference)
	if err != nil {
		return nil, err
	}
	if verification.Currency != "" && verification.Currency != pp.Currency {
		r.logger.Error("Provider currency disagrees with pending payment",
			"reference", pp.Reference, "provider", string(pp.Provider),
			"expected", pp.Currency, "reported", verification.Currency)
		return nil, fmt.Errorf("%w: currency mismatch", shared.ErrVerificationFailed)
	}
	if verification.Amount != pp.Amount {
		// The provider's word is final; the initiated amount is only a hint
		r.logger.Warn("Provider amount disagrees with pending payment",
			"reference", pp.Reference, "initiated", pp.Amount, "reported", verification.Amount)
	}

	if err := r.pendings.Consume(ctx, pp.Reference); err != nil {
		if errors.Is(err, payment.ErrPendingAlreadyConsumed{}) {
			r.logger.Info("Pending payment raced to consumption", "reference", pp.Reference)
			return &CallbackResult{Reference: pp.Reference, Provider: pp.Provider, AlreadyApplied: true}, nil
		}
		return nil, err
	}

	return r.apply(ctx, gw, pp.AccountID, verification.Amount, pp.Reference, pp.TargetKind, pp.TargetID, false)
}

// recover is the StateLost path: no usable pending row, so the provider is
// asked directly and its reported amount is applied. An expired row still
// supplies the target; a fully lost one falls back to the identifiers we
// embedded in the return URL at initiation.
func (r *Reconciler) recover(ctx context.Context, provider payment.Provider, token, reference string, stale *payment.PendingPayment, params url.Values) (*CallbackResult, error) {
	r.logger.Warn("Pending payment state lost, attempting direct verification",
		"provider", string(provider), "reference", reference, "cause", shared.ErrStateLost)

	gw, err := r.gateways.GetEnabledByProvider(ctx, provider)
	if err != nil {
		return nil, err
	}
	verification, err := r.verify(ctx, gw, token, reference)
	if err != nil {
		return nil, err
	}

	if reference == "" {
		reference = verification.Reference
	}
	if reference == "" {
		r.logger.Error("Direct verification succeeded but no reference is known",
			"provider", string(provider), "amount", verification.Amount)
		return nil, fmt.Errorf("%w: no reference to reconcile against", shared.ErrVerificationFailed)
	}

	handled, err := r.replayOrResume(ctx, provider, reference)
	if err != nil || handled != nil {
		return handled, err
	}

	accountID, targetKind, targetID, err := r.recoverTarget(stale, params)
	if err != nil {
		r.logger.Error("Direct verification succeeded but target is unrecoverable",
			"provider", string(provider), "reference", reference, "amount", verification.Amount, "error", err)
		return nil, err
	}

	acc, err := r.accounts.GetByID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if verification.Currency != "" && verification.Currency != acc.Currency {
		r.logger.Error("Provider currency disagrees with recovered target",
			"reference", reference, "provider", string(provider),
			"expected", acc.Currency, "reported", verification.Currency)
		return nil, fmt.Errorf("%w: currency mismatch", shared.ErrVerificationFailed)
	}

	return r.apply(ctx, gw, accountID, verification.Amount, reference, targetKind, targetID, true)
}

// replayOrResume resolves a callback whose reference is already held by a
// transaction. Returns nil when no transaction carries the reference and the
// normal flow should proceed.
func (r *Reconciler) replayOrResume(ctx context.Context, provider payment.Provider, reference string) (*CallbackResult, error) {
	existing, err := r.transactions.GetByReference(ctx, reference)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, nil
	}

	switch existing.Status {
	case shared.TransactionStatusCompleted:
		r.logger.Info("Callback replay detected", "reference", reference, "provider", string(provider))
		return &CallbackResult{Reference: reference, Provider: provider, AlreadyApplied: true}, nil
	case shared.TransactionStatusPending:
		return r.resume(ctx, provider, existing)
	default:
		// FAILED or CANCELLED: the reference is burned and the money, if the
		// provider ever took any, needs manual follow-up.
		r.logger.Error("Callback reference held by a terminal transaction",
			"reference", reference, "provider", string(provider), "status", string(existing.Status))
		return nil, fmt.Errorf("%w: reference %s is %s", shared.ErrVerificationFailed, reference, existing.Status)
	}
}

// resume finishes a deposit that was recorded but never applied to the
// balance. The record only exists because a verified callback got as far as
// creating it, so re-verification is unnecessary; Complete is a no-op if a
// concurrent retry wins the race.
func (r *Reconciler) resume(ctx context.Context, provider payment.Provider, txn *transaction.Transaction) (*CallbackResult, error) {
	r.logger.Warn("Callback reference held by an unapplied transaction, resuming settlement",
		"reference", txn.Reference, "transaction_id", txn.ID.String(), "provider", string(provider))

	completed, err := r.writer.Complete(ctx, txn.ID)
	if err != nil {
		return nil, err
	}

	result := &CallbackResult{
		Reference:  completed.Reference,
		Provider:   provider,
		TargetKind: payment.TargetDeposit,
		Applied:    completed.Amount,
		Fee:        completed.Fee,
		Recovered:  true,
	}
	if raw, ok := completed.Metadata[transaction.MetaLoanID]; ok {
		loanID, err := uuid.Parse(raw)
		if err != nil {
			return nil, shared.ValidationError{Detail: "malformed loan id on transaction " + completed.ID.String()}
		}
		result.TargetKind = payment.TargetLoan
		repayment, err := r.repayments.ApplyRepayment(ctx, loanID, completed.Amount, lending.SourceGateway, completed.Reference+"-REPAY")
		if err != nil {
			r.logger.Error("Deposit settled but loan repayment failed",
				"reference", completed.Reference, "loan_id", loanID.String(), "amount", completed.Amount, "error", err)
			return nil, err
		}
		result.Applied = repayment.Applied
	}

	r.logger.Info("Payment reconciled",
		"reference", completed.Reference,
		"provider", string(provider),
		"applied", result.Applied,
		"fee", completed.Fee,
		"recovered", true,
	)
	return result, nil
}

func (r *Reconciler) recoverTarget(stale *payment.PendingPayment, params url.Values) (uuid.UUID, payment.TargetKind, *uuid.UUID, error) {
	if stale != nil {
		return stale.AccountID, stale.TargetKind, stale.TargetID, nil
	}

	accountID, err := uuid.Parse(params.Get("account_id"))
	if err != nil {
		return uuid.Nil, "", nil, fmt.Errorf("%w: no pending record and no account on the return URL", shared.ErrVerificationFailed)
	}
	if raw := params.Get("loan_id"); raw != "" {
		loanID, err := uuid.Parse(raw)
		if err != nil {
			return uuid.Nil, "", nil, shared.ValidationError{Detail: "malformed loan_id on callback"}
		}
		return accountID, payment.TargetLoan, &loanID, nil
	}
	return accountID, payment.TargetDeposit, nil, nil
}

// verify asks the provider and maps every non-paid outcome to a
// verification failure with enough context logged for manual follow-up.
func (r *Reconciler) verify(ctx context.Context, gw *payment.Gateway, token, reference string) (gateway.Verification, error) {
	impl, err := r.resolver.ForGateway(gw)
	if err != nil {
		return gateway.Verification{}, err
	}
	verification, err := impl.Verify(ctx, token)
	if err != nil {
		r.logger.Error("Provider verification call failed",
			"reference", reference, "provider", string(gw.Provider), "error", err)
		return gateway.Verification{}, err
	}
	if !verification.Paid {
		r.logger.Warn("Provider reports payment not made",
			"reference", reference, "provider", string(gw.Provider), "amount", verification.Amount)
		return gateway.Verification{}, shared.ErrVerificationFailed
	}
	return verification, nil
}

// apply credits the verified amount exactly once. The gateway fee comes out
// of the credited amount; loan targets then repay from the fresh wallet
// credit, so an overpayment clamp leaves the surplus in the wallet.
func (r *Reconciler) apply(ctx context.Context, gw *payment.Gateway, accountID uuid.UUID, amount int64, reference string, targetKind payment.TargetKind, targetID *uuid.UUID, recovered bool) (*CallbackResult, error) {
	fee := gatewayLimits(gw).Fee(amount)
	net := amount - fee
	if net <= 0 {
		r.logger.Error("Verified amount does not cover the gateway fee",
			"reference", reference, "provider", string(gw.Provider), "amount", amount, "fee", fee)
		return nil, fmt.Errorf("%w: amount %d does not cover fee %d", shared.ErrVerificationFailed, amount, fee)
	}

	metadata := transaction.Metadata{
		transaction.MetaGatewayProvider:  string(gw.Provider),
		transaction.MetaGatewayReference: reference,
	}
	if recovered {
		metadata[transaction.MetaRecoveredCallback] = "true"
	}
	if targetID != nil {
		metadata[transaction.MetaLoanID] = targetID.String()
	}

	if _, err := r.writer.RecordAndComplete(ctx, accountID, shared.TransactionTypeDeposit, net, fee, reference, metadata); err != nil {
		if errors.Is(err, transaction.ErrDuplicateReference{}) {
			r.logger.Info("Reference already settled, treating callback as replay", "reference", reference)
			return &CallbackResult{Reference: reference, Provider: gw.Provider, AlreadyApplied: true}, nil
		}
		return nil, err
	}

	result := &CallbackResult{
		Reference:  reference,
		Provider:   gw.Provider,
		TargetKind: targetKind,
		Applied:    net,
		Fee:        fee,
		Recovered:  recovered,
	}

	if targetKind == payment.TargetLoan && targetID != nil {
		repayment, err := r.repayments.ApplyRepayment(ctx, *targetID, net, lending.SourceGateway, reference+"-REPAY")
		if err != nil {
			// The deposit landed; the wallet holds the money for a retry or
			// manual application against the loan.
			r.logger.Error("Deposit settled but loan repayment failed",
				"reference", reference, "loan_id", targetID.String(), "amount", net, "error", err)
			return nil, err
		}
		result.Applied = repayment.Applied
	}

	r.logger.Info("Payment reconciled",
		"reference", reference,
		"provider", string(gw.Provider),
		"applied", result.Applied,
		"fee", fee,
		"target", string(targetKind),
		"recovered", recovered,
	)
	return result, nil
}

// ExpireStale sweeps pending payments past their TTL. Run periodically.
func (r *Reconciler) ExpireStale(ctx context.Context) (int64, error) {
	expired, err := r.pendings.ExpireStale(ctx, time.Now())
	if err != nil {
		return 0, err
	}
	if expired > 0 {
		r.logger.Info("Expired stale pending payments", "count", expired)
	}
	return expired, nil
}

func gatewayLimits(gw *payment.Gateway) policy.Limits {
	return policy.Limits{
		MinAmount: gw.MinAmount,
		MaxAmount: gw.MaxAmount,
		DailyCap:  gw.DailyCap,
		FeeFixed:  gw.FeeFixed,
		FeeBps:    gw.FeeBps,
	}
}

func newPaymentReference() string {
	return "PAY-" + uuid.NewString()
}

func startOfDayUTC(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}

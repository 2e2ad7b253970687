// Package orchestrator implements the split-payment transaction core: it
// validates a group charge, fans out per-participant gateway charges,
// reconciles partial outcomes against the fund ledger, and persists the
// record of fully-successful transactions.
//
// The state machine is Validating -> Charging -> Reconciling -> {Persisted |
// Aborted}. Validation failures abort with no side effects; once charges are
// dispatched they all run to completion regardless of sibling failures.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"

	"github.com/danielodicho/lumo/internal/calculator"
	"github.com/danielodicho/lumo/internal/gateway"
	"github.com/danielodicho/lumo/internal/ledger"
	"github.com/danielodicho/lumo/internal/metrics"
	"github.com/danielodicho/lumo/internal/models"
	"github.com/danielodicho/lumo/internal/money"
	"github.com/danielodicho/lumo/internal/storage"
)

// Orchestrator coordinates the split-payment transaction flow.
type Orchestrator struct {
	store   storage.Store
	ledger  *ledger.Ledger
	gateway gateway.ChargeGateway
}

// New creates an orchestrator over the given collaborators.
func New(store storage.Store, l *ledger.Ledger, gw gateway.ChargeGateway) *Orchestrator {
	return &Orchestrator{store: store, ledger: l, gateway: gw}
}

// Request describes one group charge to process.
type Request struct {
	// GroupTransactionID is the caller's correlation/idempotency key.
	// Generated when empty.
	GroupTransactionID string

	// MerchantName is the merchant being paid.
	MerchantName string

	// TotalAmount is the total charge to split.
	TotalAmount decimal.Decimal

	// ParticipantIDs selects who splits the charge. Order is preserved in
	// the persisted payment list.
	ParticipantIDs []string
}

// chargeOutcome is one branch's result from the charging fan-out.
type chargeOutcome struct {
	payment models.ParticipantPayment
	err     error
}

// ProcessTransaction runs one group charge end to end and returns the
// persisted transaction record.
//
// Validation failures (bad amount, empty set, share below gateway minimum,
// insufficient pooled or per-participant funds, unknown participant, missing
// payment method) return before any gateway call with no state mutated.
// After the charging fan-out, a *PartialFailureError reports any failed
// participants alongside the charges that did succeed (those participants
// stay debited; no compensating refund is issued). A *RecordPersistenceError
// reports a store write failure after every charge succeeded.
func (o *Orchestrator) ProcessTransaction(ctx context.Context, req Request) (*models.Transaction, error) {
	abort := func(err error) (*models.Transaction, error) {
		metrics.TransactionsTotal.WithLabelValues(metrics.OutcomeAborted).Inc()
		return nil, err
	}

	if req.MerchantName == "" {
		return abort(ErrMissingMerchant)
	}

	// Re-invocation with a known group id returns the recorded outcome
	// instead of charging anyone twice.
	if req.GroupTransactionID != "" {
		existing, err := o.store.TransactionByGroupID(ctx, req.GroupTransactionID)
		if err == nil {
			slog.Info("Transaction recovered by group id, skipping charges",
				"group_transaction_id", req.GroupTransactionID)
			return existing, nil
		}
		if !errors.Is(err, storage.ErrNotFound) {
			return abort(err)
		}
	} else {
		req.GroupTransactionID = uuid.New().String()
	}

	// Validating: split first, then ledger pre-flight. Nothing below this
	// block runs unless every check passed.
	splits, err := calculator.ComputeSplit(req.TotalAmount, req.ParticipantIDs)
	if err != nil {
		return abort(err)
	}

	participants, err := o.loadParticipants(ctx, req.ParticipantIDs)
	if err != nil {
		return abort(err)
	}

	if err := o.preflight(req.TotalAmount, participants, splits); err != nil {
		return abort(err)
	}

	splitInfo := calculator.Describe(req.TotalAmount, len(participants), splits[req.ParticipantIDs[0]])
	slog.Info("Processing group transaction",
		"group_transaction_id", req.GroupTransactionID,
		"merchant", req.MerchantName,
		"total", req.TotalAmount.StringFixed(2),
		"participants", len(participants),
	)

	// Charging: independent fan-out, wait-for-all. One participant's
	// failure must not cancel or block the others, so there is no shared
	// context cancellation and no first-error shortcut here.
	outcomes := make([]chargeOutcome, len(participants))
	var wg sync.WaitGroup
	for i, p := range participants {
		wg.Add(1)
		go func(i int, p *models.Participant) {
			defer wg.Done()
			outcomes[i] = o.chargeOne(ctx, p, splits[p.ID], req, splitInfo)
		}(i, p)
	}
	wg.Wait()

	// Reconciling: successful debits have already been applied inside
	// chargeOne, immediately after each charge succeeded.
	var failed []FailedCharge
	var succeeded []SucceededCharge
	payments := make([]models.ParticipantPayment, len(outcomes))
	for i, outcome := range outcomes {
		payments[i] = outcome.payment
		if outcome.err != nil {
			failed = append(failed, FailedCharge{
				ParticipantID:   outcome.payment.ParticipantID,
				ParticipantName: outcome.payment.ParticipantName,
				Amount:          outcome.payment.Amount,
				Err:             outcome.err,
			})
			continue
		}
		succeeded = append(succeeded, SucceededCharge{
			ParticipantID:   outcome.payment.ParticipantID,
			ParticipantName: outcome.payment.ParticipantName,
			Amount:          outcome.payment.Amount,
			ChargeID:        outcome.payment.ChargeID,
		})
	}

	if len(failed) > 0 {
		metrics.TransactionsTotal.WithLabelValues(metrics.OutcomePartialFailure).Inc()
		err := &PartialFailureError{
			GroupTransactionID: req.GroupTransactionID,
			Failed:             failed,
			Succeeded:          succeeded,
		}
		slog.Warn("Group transaction aborted with partial failure",
			"group_transaction_id", req.GroupTransactionID,
			"failed", len(failed),
			"succeeded", len(succeeded),
		)
		return nil, err
	}

	// Persisted: all charges succeeded, write the record once.
	txn := &models.Transaction{
		GroupTransactionID: req.GroupTransactionID,
		MerchantName:       req.MerchantName,
		TotalAmount:        req.TotalAmount,
		Payments:           payments,
		SplitInfo:          splitInfo,
		Status:             models.TransactionSuccess,
	}
	if err := o.store.SaveTransaction(ctx, txn); err != nil {
		metrics.TransactionsTotal.WithLabelValues(metrics.OutcomePersistFailure).Inc()
		slog.Error("Transaction record write failed after successful charges; manual reconciliation required",
			"group_transaction_id", req.GroupTransactionID,
			"merchant", req.MerchantName,
			"total", req.TotalAmount.StringFixed(2),
			"error", err,
		)
		return nil, &RecordPersistenceError{Transaction: txn, Err: err}
	}

	metrics.TransactionsTotal.WithLabelValues(metrics.OutcomePersisted).Inc()
	slog.Info("Group transaction persisted",
		"group_transaction_id", req.GroupTransactionID,
		"transaction_id", txn.ID,
	)
	return txn, nil
}

// loadParticipants resolves the selected participant ids in request order.
func (o *Orchestrator) loadParticipants(ctx context.Context, ids []string) ([]*models.Participant, error) {
	participants := make([]*models.Participant, len(ids))
	for i, id := range ids {
		p, err := o.store.GetParticipant(ctx, id)
		if err != nil {
			return nil, err
		}
		if p.DefaultPaymentMethodID == "" {
			return nil, &NoPaymentMethodError{ParticipantID: p.ID, ParticipantName: p.Name}
		}
		participants[i] = p
	}
	return participants, nil
}

// preflight verifies pooled and per-participant funds before any external
// call. Any violation aborts the whole transaction.
func (o *Orchestrator) preflight(total decimal.Decimal, participants []*models.Participant, splits map[string]decimal.Decimal) error {
	pooled := decimal.Zero
	for _, p := range participants {
		pooled = pooled.Add(p.PledgedAmount)
	}
	if pooled.LessThan(total) {
		return &ledger.InsufficientFundsError{Required: total, Available: pooled}
	}

	for _, p := range participants {
		if share := splits[p.ID]; p.PledgedAmount.LessThan(share) {
			return &ledger.InsufficientFundsError{
				ParticipantID: p.ID,
				Required:      share,
				Available:     p.PledgedAmount,
			}
		}
	}
	return nil
}

// chargeOne submits one participant's share and, on success, debits their
// pledged balance immediately so a partially-failed group still reflects the
// charges that actually landed.
func (o *Orchestrator) chargeOne(ctx context.Context, p *models.Participant, share decimal.Decimal, req Request, splitInfo string) chargeOutcome {
	payment := models.ParticipantPayment{
		ParticipantID:   p.ID,
		ParticipantName: p.Name,
		Amount:          share,
		Status:          models.PaymentPending,
	}

	// The gateway rejects charges under its minimum.
	units := money.ToMinorUnits(share)
	if units < money.MinimumChargeMinorUnits {
		payment.Status = models.PaymentFailed
		metrics.ChargesTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
		return chargeOutcome{payment: payment, err: &calculator.BelowMinimumChargeError{
			Share:   share,
			Minimum: money.MinimumChargeMinorUnits,
		}}
	}

	timer := prometheus.NewTimer(metrics.ChargeDuration)
	result, err := o.gateway.CreateCharge(ctx, gateway.ChargeRequest{
		CustomerID:         p.GatewayCustomerID,
		PaymentMethodID:    p.DefaultPaymentMethodID,
		AmountMinorUnits:   units,
		MerchantName:       req.MerchantName,
		ParticipantName:    p.Name,
		SplitInfo:          splitInfo,
		GroupTransactionID: req.GroupTransactionID,
	})
	timer.ObserveDuration()

	if err != nil {
		payment.Status = models.PaymentFailed
		metrics.ChargesTotal.WithLabelValues(metrics.OutcomeFailed).Inc()
		slog.Warn("Participant charge failed",
			"group_transaction_id", req.GroupTransactionID,
			"participant_id", p.ID,
			"participant", p.Name,
			"amount", share.StringFixed(2),
			"error", err,
		)
		return chargeOutcome{payment: payment, err: fmt.Errorf("charge for %s: %w", p.Name, err)}
	}

	payment.ChargeID = result.ChargeID
	payment.Status = models.PaymentSucceeded
	metrics.ChargesTotal.WithLabelValues(metrics.OutcomeSucceeded).Inc()

	if err := o.ledger.Debit(ctx, p.ID, share); err != nil {
		// The charge went through but the pledged balance could not be
		// updated. The charge stands; flag for manual reconciliation.
		slog.Error("Debit failed after successful charge; manual reconciliation required",
			"group_transaction_id", req.GroupTransactionID,
			"participant_id", p.ID,
			"charge_id", result.ChargeID,
			"amount", share.StringFixed(2),
			"error", err,
		)
	}

	slog.Debug("Participant charged",
		"group_transaction_id", req.GroupTransactionID,
		"participant_id", p.ID,
		"charge_id", result.ChargeID,
		"amount", share.StringFixed(2),
	)
	return chargeOutcome{payment: payment}
}

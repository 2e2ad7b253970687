package orchestrator

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/danielodicho/lumo/internal/models"
)

// ErrMissingMerchant is returned when no merchant name was given.
var ErrMissingMerchant = errors.New("merchant name is required")

// NoPaymentMethodError is returned when a selected participant has no saved
// payment method to charge.
type NoPaymentMethodError struct {
	ParticipantID   string
	ParticipantName string
}

func (e *NoPaymentMethodError) Error() string {
	return fmt.Sprintf("participant %s (%s) has no payment method", e.ParticipantName, e.ParticipantID)
}

// FailedCharge describes one participant whose gateway charge failed.
type FailedCharge struct {
	ParticipantID   string
	ParticipantName string
	Amount          decimal.Decimal
	Err             error
}

// SucceededCharge describes one participant who was actually charged. Exposed
// on partial failure so callers can drive refund tooling; the orchestrator
// itself never issues compensating refunds.
type SucceededCharge struct {
	ParticipantID   string
	ParticipantName string
	Amount          decimal.Decimal
	ChargeID        string
}

// PartialFailureError is the transaction-level condition signaled when at
// least one charge of the group failed. Participants in Succeeded have been
// charged and debited; no transaction record is persisted and no automatic
// reversal is performed.
type PartialFailureError struct {
	GroupTransactionID string
	Failed             []FailedCharge
	Succeeded          []SucceededCharge
}

func (e *PartialFailureError) Error() string {
	names := make([]string, len(e.Failed))
	for i, f := range e.Failed {
		names[i] = f.ParticipantName
	}
	return fmt.Sprintf("payment failed for %d of %d participants: %s",
		len(e.Failed), len(e.Failed)+len(e.Succeeded), strings.Join(names, ", "))
}

// RecordPersistenceError is returned when every charge succeeded but the
// transaction record could not be written. Money has moved and the ledger of
// record is inconsistent; callers must reconcile out-of-band.
type RecordPersistenceError struct {
	Transaction *models.Transaction
	Err         error
}

func (e *RecordPersistenceError) Error() string {
	return fmt.Sprintf("all charges succeeded but the transaction record was not persisted (group %s): %v",
		e.Transaction.GroupTransactionID, e.Err)
}

func (e *RecordPersistenceError) Unwrap() error { return e.Err }

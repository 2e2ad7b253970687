package models

import "github.com/shopspring/decimal"

// TransactionStatus is the overall outcome of a group charge.
type TransactionStatus string

const (
	TransactionPending TransactionStatus = "pending"
	TransactionSuccess TransactionStatus = "success"
	TransactionFailed  TransactionStatus = "failed"
)

// PaymentStatus is the outcome of one participant's charge.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentSucceeded PaymentStatus = "succeeded"
	PaymentFailed    PaymentStatus = "failed"
)

// Transaction represents a single merchant charge split across the group.
//
// A Transaction is persisted only when every constituent payment succeeded;
// there is no partially-succeeded persisted state.
type Transaction struct {
	// ID is the unique identifier for the transaction record (UUID format).
	ID string

	// GroupTransactionID is the caller-supplied correlation key tying
	// together all participant payments of one merchant charge. Unique;
	// doubles as an idempotency key for re-invocation.
	GroupTransactionID string

	// MerchantName is the merchant the group charge was made to.
	MerchantName string

	// TotalAmount is the total requested charge amount.
	TotalAmount decimal.Decimal

	// Payments are the per-participant slices of this charge, in the order
	// the participants were submitted. Owned exclusively by the transaction.
	Payments []ParticipantPayment

	// SplitInfo is a free-form description of the allocation policy used.
	SplitInfo string

	// Status is the overall outcome.
	Status TransactionStatus

	// CreatedAt is the Unix timestamp when the record was persisted.
	CreatedAt int64
}

// ParticipantPayment is one participant's slice of a Transaction.
type ParticipantPayment struct {
	// ParticipantID references the participant charged. Weak reference:
	// used for lookup only, never a foreign key into live participants.
	ParticipantID string

	// ParticipantName is a snapshot of the participant's name at charge
	// time, so records stay readable after the participant is deleted.
	ParticipantName string

	// Amount is the share charged to this participant.
	Amount decimal.Decimal

	// ChargeID is the gateway's identifier for the charge result.
	ChargeID string

	// Status is the outcome of this participant's charge.
	Status PaymentStatus
}

package models

import "github.com/shopspring/decimal"

// Participant represents a member of the group who has pledged funds to the
// shared virtual card and verified a payment method with the gateway.
type Participant struct {
	// ID is the unique identifier for the participant (UUID format).
	ID string

	// Name is the display name of the participant.
	Name string

	// PledgedAmount is the participant's remaining pledged balance.
	// Non-negative; mutated only by the orchestrator as charges settle
	// or by explicit pledge updates.
	PledgedAmount decimal.Decimal

	// GatewayCustomerID is the participant's customer handle at the
	// payment gateway (opaque, unique).
	GatewayCustomerID string

	// DefaultPaymentMethodID is the handle of the saved payment method
	// charged for this participant's share. Empty until a method is attached.
	DefaultPaymentMethodID string

	// CreatedAt is the Unix timestamp when the participant was created.
	CreatedAt int64
}

// Card holds display details of a saved payment method, fetched from the
// gateway for presentation only.
type Card struct {
	Brand    string `json:"brand"`
	Last4    string `json:"last4"`
	ExpMonth int64  `json:"expMonth"`
	ExpYear  int64  `json:"expYear"`
}

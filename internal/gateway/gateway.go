// Package gateway defines the payment-processor capability consumed by the
// orchestrator and the participant lifecycle, plus its Stripe implementation.
package gateway

import (
	"context"
	"fmt"

	"github.com/danielodicho/lumo/internal/models"
)

// ChargeRequest carries everything needed to charge one participant's share.
type ChargeRequest struct {
	// CustomerID is the participant's customer handle at the gateway.
	CustomerID string

	// PaymentMethodID is the saved payment method to charge.
	PaymentMethodID string

	// AmountMinorUnits is the share in the gateway's integer representation.
	AmountMinorUnits int64

	// MerchantName, ParticipantName, SplitInfo and GroupTransactionID are
	// recorded as charge metadata for reconciliation and statements.
	MerchantName       string
	ParticipantName    string
	SplitInfo          string
	GroupTransactionID string
}

// ChargeResult is the gateway's answer to a successful charge.
type ChargeResult struct {
	ChargeID string
	Status   string
}

// ChargeGateway is the external payment-processing capability. Implementations
// must be safe for concurrent use: the orchestrator fans out CreateCharge
// calls in parallel.
type ChargeGateway interface {
	// CreateCustomer registers a customer and returns its handle.
	CreateCustomer(ctx context.Context, name string, metadata map[string]string) (string, error)

	// UpdateCustomerMetadata replaces metadata on an existing customer.
	UpdateCustomerMetadata(ctx context.Context, customerID string, metadata map[string]string) error

	// DeleteCustomer removes a customer. Used to clean up after a failed
	// participant creation.
	DeleteCustomer(ctx context.Context, customerID string) error

	// AttachPaymentMethod attaches a payment method to a customer and makes
	// it the default, returning the method handle.
	AttachPaymentMethod(ctx context.Context, customerID, paymentMethodID string) (string, error)

	// CreateCharge submits one participant's share. Any failure (declined,
	// upstream insufficient funds, network) is a *Error.
	CreateCharge(ctx context.Context, req ChargeRequest) (*ChargeResult, error)

	// PaymentMethodDisplay fetches card display details for a saved method.
	PaymentMethodDisplay(ctx context.Context, paymentMethodID string) (*models.Card, error)
}

// Error is a failure reported by the gateway. Code is the processor's own
// error code when one was given; Err is the underlying cause. The raw cause
// is kept for operator diagnosis and never shown to end users directly.
type Error struct {
	Op   string // gateway operation that failed
	Code string
	Err  error
}

func (e *Error) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("gateway %s failed (%s): %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("gateway %s failed: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Package service implements the participant lifecycle on top of the store,
// the fund ledger, and the charge gateway.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shopspring/decimal"

	"github.com/danielodicho/lumo/internal/gateway"
	"github.com/danielodicho/lumo/internal/ledger"
	"github.com/danielodicho/lumo/internal/models"
	"github.com/danielodicho/lumo/internal/storage"
)

var (
	// ErrMissingName is returned when a participant is created without a name.
	ErrMissingName = errors.New("name is required")

	// ErrMissingPaymentMethod is returned when a payment method handle is required but absent.
	ErrMissingPaymentMethod = errors.New("payment method id is required")

	// ErrInvalidPledge is returned for non-positive initial pledges.
	ErrInvalidPledge = errors.New("pledged amount must be positive")
)

// ParticipantView is a participant together with the display details of
// their saved card, when those could be fetched.
type ParticipantView struct {
	Participant *models.Participant
	Card        *models.Card
}

// Participants manages the participant lifecycle.
type Participants struct {
	store   storage.Store
	ledger  *ledger.Ledger
	gateway gateway.ChargeGateway
}

// NewParticipants creates the participant service.
func NewParticipants(store storage.Store, l *ledger.Ledger, gw gateway.ChargeGateway) *Participants {
	return &Participants{store: store, ledger: l, gateway: gw}
}

// Create registers a gateway customer with the verified payment method, then
// persists the participant. The gateway customer is cleaned up again if any
// later step fails, so no orphaned customers are left behind.
func (s *Participants) Create(ctx context.Context, name string, pledge decimal.Decimal, paymentMethodID string) (*ParticipantView, error) {
	if name == "" {
		return nil, ErrMissingName
	}
	if !pledge.IsPositive() {
		return nil, ErrInvalidPledge
	}
	if paymentMethodID == "" {
		return nil, ErrMissingPaymentMethod
	}

	customerID, err := s.gateway.CreateCustomer(ctx, name, map[string]string{
		"pledgedAmount": pledge.StringFixed(2),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create gateway customer: %w", err)
	}

	if _, err := s.gateway.AttachPaymentMethod(ctx, customerID, paymentMethodID); err != nil {
		s.cleanupCustomer(ctx, customerID)
		return nil, fmt.Errorf("failed to attach payment method: %w", err)
	}

	card, err := s.gateway.PaymentMethodDisplay(ctx, paymentMethodID)
	if err != nil {
		s.cleanupCustomer(ctx, customerID)
		return nil, fmt.Errorf("failed to get payment method details: %w", err)
	}

	p := &models.Participant{
		Name:                   name,
		PledgedAmount:          pledge,
		GatewayCustomerID:      customerID,
		DefaultPaymentMethodID: paymentMethodID,
	}
	if err := s.store.CreateParticipant(ctx, p); err != nil {
		s.cleanupCustomer(ctx, customerID)
		return nil, fmt.Errorf("failed to persist participant: %w", err)
	}

	slog.Info("Participant created",
		"participant_id", p.ID,
		"name", name,
		"pledged", pledge.StringFixed(2),
		"customer_id", customerID,
	)
	return &ParticipantView{Participant: p, Card: card}, nil
}

// cleanupCustomer removes a gateway customer created during a failed Create.
func (s *Participants) cleanupCustomer(ctx context.Context, customerID string) {
	if err := s.gateway.DeleteCustomer(ctx, customerID); err != nil {
		slog.Error("Failed to clean up gateway customer after error",
			"customer_id", customerID, "error", err)
	}
}

// List returns all participants with card display details. A failed card
// lookup only drops that participant's card, never the listing.
func (s *Participants) List(ctx context.Context) ([]*ParticipantView, error) {
	participants, err := s.store.ListParticipants(ctx)
	if err != nil {
		return nil, err
	}

	views := make([]*ParticipantView, len(participants))
	for i, p := range participants {
		view := &ParticipantView{Participant: p}
		if p.DefaultPaymentMethodID != "" {
			card, err := s.gateway.PaymentMethodDisplay(ctx, p.DefaultPaymentMethodID)
			if err != nil {
				slog.Warn("Failed to fetch card details",
					"participant_id", p.ID, "error", err)
			} else {
				view.Card = card
			}
		}
		views[i] = view
	}
	return views, nil
}

// Get returns a single participant.
func (s *Participants) Get(ctx context.Context, id string) (*models.Participant, error) {
	return s.store.GetParticipant(ctx, id)
}

// AddPaymentMethod attaches a new payment method at the gateway and makes it
// the participant's default.
func (s *Participants) AddPaymentMethod(ctx context.Context, participantID, paymentMethodID string) (*models.Participant, error) {
	if paymentMethodID == "" {
		return nil, ErrMissingPaymentMethod
	}

	p, err := s.store.GetParticipant(ctx, participantID)
	if err != nil {
		return nil, err
	}

	attached, err := s.gateway.AttachPaymentMethod(ctx, p.GatewayCustomerID, paymentMethodID)
	if err != nil {
		return nil, fmt.Errorf("failed to attach payment method: %w", err)
	}

	if err := s.store.SetDefaultPaymentMethod(ctx, participantID, attached); err != nil {
		return nil, err
	}
	p.DefaultPaymentMethodID = attached

	slog.Info("Payment method attached",
		"participant_id", participantID, "payment_method_id", attached)
	return p, nil
}

// UpdatePledge replaces the participant's pledged balance. The gateway
// customer's metadata is updated best-effort for reconciliation.
func (s *Participants) UpdatePledge(ctx context.Context, participantID string, amount decimal.Decimal) (*models.Participant, error) {
	if err := s.ledger.SetPledge(ctx, participantID, amount); err != nil {
		return nil, err
	}

	p, err := s.store.GetParticipant(ctx, participantID)
	if err != nil {
		return nil, err
	}

	if err := s.gateway.UpdateCustomerMetadata(ctx, p.GatewayCustomerID, map[string]string{
		"pledgedAmount": amount.StringFixed(2),
	}); err != nil {
		slog.Warn("Failed to update gateway customer metadata",
			"participant_id", participantID, "error", err)
	}

	slog.Info("Pledge updated",
		"participant_id", participantID, "pledged", amount.StringFixed(2))
	return p, nil
}

// Delete removes the participant from future split computations. Historical
// transaction records and the gateway customer are left intact.
func (s *Participants) Delete(ctx context.Context, participantID string) error {
	if err := s.store.DeleteParticipant(ctx, participantID); err != nil {
		return err
	}
	slog.Info("Participant deleted", "participant_id", participantID)
	return nil
}

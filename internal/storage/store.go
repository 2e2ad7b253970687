// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/danielodicho/lumo/internal/models"
)

// ErrNotFound is returned (wrapped) when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Store defines the interface for participant and transaction persistence.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL, etc.)
// without changing the service layer.
type Store interface {
	// CreateParticipant persists a new participant. The ID and CreatedAt
	// fields are populated by the store when unset.
	CreateParticipant(ctx context.Context, p *models.Participant) error

	// GetParticipant retrieves a participant by ID.
	GetParticipant(ctx context.Context, id string) (*models.Participant, error)

	// ListParticipants returns all participants, oldest first.
	ListParticipants(ctx context.Context) ([]*models.Participant, error)

	// UpdateParticipantPledge replaces a participant's pledged balance.
	UpdateParticipantPledge(ctx context.Context, id string, amount decimal.Decimal) error

	// SetDefaultPaymentMethod records the participant's default payment
	// method handle.
	SetDefaultPaymentMethod(ctx context.Context, id, paymentMethodID string) error

	// DeleteParticipant removes a participant. Historical transaction
	// records referencing the participant are left untouched.
	DeleteParticipant(ctx context.Context, id string) error

	// SaveTransaction persists a transaction record with all of its
	// participant payments. The ID and CreatedAt fields are populated by
	// the store when unset.
	SaveTransaction(ctx context.Context, txn *models.Transaction) error

	// TransactionByGroupID retrieves a transaction by its group
	// transaction (correlation) id. The record id is accepted too.
	TransactionByGroupID(ctx context.Context, groupID string) (*models.Transaction, error)

	// ListTransactions returns all transactions, most recent first.
	ListTransactions(ctx context.Context) ([]*models.Transaction, error)

	// DeleteTransaction removes a transaction record and its payments.
	// Accepts the record id or the group transaction id.
	DeleteTransaction(ctx context.Context, id string) error

	// Close releases any resources held by the store.
	Close() error
}

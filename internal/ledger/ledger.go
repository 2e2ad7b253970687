// Package ledger tracks each participant's pledged balance.
//
// Balances live in the store; the ledger's job is serialization: all
// read-modify-write cycles on one participant's balance go through that
// participant's mutex, so concurrent transactions touching the same
// participant cannot interleave their debits (single writer per participant).
package ledger

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/danielodicho/lumo/internal/storage"
)

// InsufficientFundsError is returned when a debit (or a pre-flight check)
// exceeds the available pledged balance. ParticipantID is empty when the
// shortfall is in the pooled group balance rather than one participant's.
type InsufficientFundsError struct {
	ParticipantID string
	Required      decimal.Decimal
	Available     decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	if e.ParticipantID == "" {
		return fmt.Sprintf("insufficient pooled funds: required $%s, available $%s",
			e.Required.StringFixed(2), e.Available.StringFixed(2))
	}
	return fmt.Sprintf("insufficient funds for participant %s: required $%s, available $%s",
		e.ParticipantID, e.Required.StringFixed(2), e.Available.StringFixed(2))
}

// Ledger provides serialized balance operations on top of a Store.
type Ledger struct {
	store storage.Store

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a ledger backed by the given store.
func New(store storage.Store) *Ledger {
	return &Ledger{
		store: store,
		locks: make(map[string]*sync.Mutex),
	}
}

// lockFor returns the mutex owning the given participant's balance,
// allocating it on first use. Locks are never freed; the participant set
// is small and bounded.
func (l *Ledger) lockFor(participantID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.locks[participantID]
	if !ok {
		lock = &sync.Mutex{}
		l.locks[participantID] = lock
	}
	return lock
}

// Balance returns the participant's current pledged balance.
func (l *Ledger) Balance(ctx context.Context, participantID string) (decimal.Decimal, error) {
	p, err := l.store.GetParticipant(ctx, participantID)
	if err != nil {
		return decimal.Zero, err
	}
	return p.PledgedAmount, nil
}

// Debit subtracts amount from the participant's pledged balance. Fails with
// *InsufficientFundsError when the balance does not cover the amount; no
// state is mutated in that case.
func (l *Ledger) Debit(ctx context.Context, participantID string, amount decimal.Decimal) error {
	lock := l.lockFor(participantID)
	lock.Lock()
	defer lock.Unlock()

	p, err := l.store.GetParticipant(ctx, participantID)
	if err != nil {
		return err
	}
	if p.PledgedAmount.LessThan(amount) {
		return &InsufficientFundsError{
			ParticipantID: participantID,
			Required:      amount,
			Available:     p.PledgedAmount,
		}
	}
	return l.store.UpdateParticipantPledge(ctx, participantID, p.PledgedAmount.Sub(amount))
}

// SetPledge replaces the participant's pledged balance (explicit pledge
// update). Negative amounts are rejected.
func (l *Ledger) SetPledge(ctx context.Context, participantID string, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("pledge amount must not be negative, got %s", amount.StringFixed(2))
	}

	lock := l.lockFor(participantID)
	lock.Lock()
	defer lock.Unlock()

	return l.store.UpdateParticipantPledge(ctx, participantID, amount)
}

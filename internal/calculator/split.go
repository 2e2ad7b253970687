// Package calculator computes per-participant shares of a group charge.
package calculator

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/danielodicho/lumo/internal/money"
)

var (
	// ErrInvalidAmount is returned when the total amount is zero or negative.
	ErrInvalidAmount = errors.New("total amount must be positive")

	// ErrEmptyParticipants is returned when there is nobody to split with.
	ErrEmptyParticipants = errors.New("must have at least one participant")

	// ErrDuplicateParticipant is returned when the same participant appears
	// more than once in a split. Participants form a set; a duplicate would
	// double-charge one card and double-count one pledge.
	ErrDuplicateParticipant = errors.New("participant ids must be unique")
)

// BelowMinimumChargeError is returned when the computed per-participant share
// is under the gateway's minimum chargeable amount.
type BelowMinimumChargeError struct {
	Share   decimal.Decimal
	Minimum int64 // minor units
}

func (e *BelowMinimumChargeError) Error() string {
	return fmt.Sprintf("per-participant share %s is below the gateway minimum of %d minor units",
		e.Share.StringFixed(2), e.Minimum)
}

// ComputeSplit divides total equally among the given participant IDs. The
// IDs must form a set: any repeat is rejected before shares are assigned.
//
// The per-head share is the total in minor units floor-divided by the
// participant count; the truncation remainder is dropped, so the sum of
// shares can fall short of the total by up to len(participantIDs)-1 minor
// units. The remainder is not redistributed.
func ComputeSplit(total decimal.Decimal, participantIDs []string) (map[string]decimal.Decimal, error) {
	if !total.IsPositive() {
		return nil, ErrInvalidAmount
	}
	if len(participantIDs) == 0 {
		return nil, ErrEmptyParticipants
	}

	totalUnits := money.ToMinorUnits(total)
	shareUnits := totalUnits / int64(len(participantIDs))
	if shareUnits < money.MinimumChargeMinorUnits {
		return nil, &BelowMinimumChargeError{
			Share:   money.FromMinorUnits(shareUnits),
			Minimum: money.MinimumChargeMinorUnits,
		}
	}

	share := money.FromMinorUnits(shareUnits)
	splits := make(map[string]decimal.Decimal, len(participantIDs))
	for _, id := range participantIDs {
		if _, ok := splits[id]; ok {
			return nil, fmt.Errorf("participant %s listed twice: %w", id, ErrDuplicateParticipant)
		}
		splits[id] = share
	}
	return splits, nil
}

// Describe renders the allocation policy for the transaction record,
// e.g. "Split $15.00 equally among 2 participants ($7.50 each)".
func Describe(total decimal.Decimal, count int, share decimal.Decimal) string {
	return fmt.Sprintf("Split $%s equally among %d participants ($%s each)",
		total.StringFixed(2), count, share.StringFixed(2))
}

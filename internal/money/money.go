// Package money converts between decimal amounts and the gateway's integer
// minor-unit representation.
package money

import "github.com/shopspring/decimal"

// MinimumChargeMinorUnits is the gateway's smallest chargeable amount
// (50 minor units, i.e. $0.50 for USD). Shares below this are rejected
// before any external call is made.
const MinimumChargeMinorUnits int64 = 50

var hundred = decimal.NewFromInt(100)

// ToMinorUnits converts a decimal amount to integer minor units,
// rounding half away from zero on the multiplied value.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// FromMinorUnits converts integer minor units back to a decimal amount.
func FromMinorUnits(units int64) decimal.Decimal {
	return decimal.NewFromInt(units).Shift(-2)
}

// BelowMinimumCharge reports whether amount is under the gateway minimum.
func BelowMinimumCharge(amount decimal.Decimal) bool {
	return ToMinorUnits(amount) < MinimumChargeMinorUnits
}

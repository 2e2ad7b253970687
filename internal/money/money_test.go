package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestToMinorUnits(t *testing.T) {
	tests := []struct {
		amount string
		want   int64
	}{
		{"7.50", 750},
		{"0.50", 50},
		{"10", 1000},
		{"3.333", 333},  // rounds half away from zero on the multiplied value
		{"3.335", 334},
		{"0.005", 1},
		{"0.004", 0},
	}
	for _, tt := range tests {
		got := ToMinorUnits(decimal.RequireFromString(tt.amount))
		assert.Equal(t, tt.want, got, "amount %s", tt.amount)
	}
}

func TestFromMinorUnits(t *testing.T) {
	assert.Equal(t, "7.50", FromMinorUnits(750).StringFixed(2))
	assert.Equal(t, "0.01", FromMinorUnits(1).StringFixed(2))
}

func TestBelowMinimumCharge(t *testing.T) {
	assert.True(t, BelowMinimumCharge(decimal.RequireFromString("0.49")))
	assert.False(t, BelowMinimumCharge(decimal.RequireFromString("0.50")))
}

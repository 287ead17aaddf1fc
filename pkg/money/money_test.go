package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestRoundDollarsHalfUp(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"10000.404", "10000.4"},
		{"10000.405", "10000.41"},
		{"0.005", "0.01"},
		{"125.004999", "125"},
		{"8000", "8000"},
	}
	for _, tc := range cases {
		got := RoundDollars(decimal.RequireFromString(tc.in))
		assert.True(t, got.Equal(decimal.RequireFromString(tc.want)), "round %s: got %s", tc.in, got)
	}
}

func TestFeeRounding(t *testing.T) {
	// excess 125.005 t at $80.00/t comes out to exactly $10000.40.
	excess := decimal.RequireFromString("125.005")
	rate := decimal.RequireFromString("80.00")
	fee := RoundDollars(excess.Mul(rate))
	assert.True(t, fee.Equal(decimal.RequireFromString("10000.40")), "got %s", fee)
}

func TestFloorTonnes(t *testing.T) {
	assert.True(t, FloorTonnes(decimal.RequireFromString("12.99")).Equal(decimal.NewFromInt(12)))
	assert.True(t, FloorTonnes(decimal.NewFromInt(7)).Equal(decimal.NewFromInt(7)))
}

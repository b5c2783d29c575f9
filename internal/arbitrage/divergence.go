// Package arbitrage compares the latest prices of two sources and reports
// symbols whose relative divergence meets a threshold.
package arbitrage

import "github.com/shopspring/decimal"

var hundred = decimal.NewFromInt(100)

// Divergence returns (primary - secondary) / secondary as a percentage,
// rounded half away from zero to places decimals. A zero secondary price
// yields zero.
func Divergence(primary, secondary decimal.Decimal, places int32) decimal.Decimal {
	if secondary.IsZero() {
		return decimal.Zero
	}
	return primary.Sub(secondary).Mul(hundred).DivRound(secondary, places)
}

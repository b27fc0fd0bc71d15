package domain

import "github.com/shopspring/decimal"

// MinorUnits converts an amount into the smallest currency unit
// (cents, paise) using round-half-to-even.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).RoundBank(0).IntPart()
}

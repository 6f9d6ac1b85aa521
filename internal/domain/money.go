package domain

import "github.com/shopspring/decimal"

// ToMinorUnits converts a currency amount to cents, rounding half away from zero.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Shift(2).Round(0).IntPart()
}

// FromMinorUnits converts cents to a currency amount.
func FromMinorUnits(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// UnitPriceFromTotal recovers a unit price from a line total in cents,
// rounded to two decimal places.
func UnitPriceFromTotal(totalCents int64, quantity int64) decimal.Decimal {
	if quantity <= 0 {
		return FromMinorUnits(totalCents)
	}
	return decimal.NewFromInt(totalCents).
		Div(decimal.NewFromInt(quantity)).
		Shift(-2).
		Round(2)
}

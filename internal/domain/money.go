package domain

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// minorUnitScale is the number of decimal places between major and minor units (cents).
const minorUnitScale = 2

var maxMinorUnits = decimal.NewFromInt(math.MaxInt64)

// Money is an amount in minor currency units (cents). All arithmetic on prices
// happens on this type; major units only appear at ingestion and display.
type Money int64

// MoneyFromDecimal converts a major-unit amount (e.g. 12.50 dollars) into minor units.
// Amounts that are negative, carry sub-cent precision or do not fit in Money are rejected.
func MoneyFromDecimal(amount decimal.Decimal) (Money, error) {
	if amount.IsNegative() {
		return 0, fmt.Errorf("%w: amount %s is negative", ErrInvalidPricing, amount.String())
	}
	minor := amount.Shift(minorUnitScale)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, fmt.Errorf("%w: amount %s has sub-cent precision", ErrInvalidPricing, amount.String())
	}
	if minor.GreaterThan(maxMinorUnits) {
		return 0, fmt.Errorf("%w: amount %s is out of range", ErrInvalidPricing, amount.String())
	}
	return Money(minor.IntPart()), nil
}

// Major returns the amount in major units.
func (m Money) Major() decimal.Decimal {
	return decimal.NewFromInt(int64(m)).Shift(-minorUnitScale)
}

// String formats the amount in major units with two decimals, e.g. "1234.50".
func (m Money) String() string {
	return m.Major().StringFixed(minorUnitScale)
}

// Times multiplies a unit amount by a quantity.
func (m Money) Times(quantity int) Money {
	return m * Money(quantity)
}

// Package core holds the domain model shared by every other package:
// entities, monetary arithmetic and recurrence-date calculation.
//
// All monetary values are decimal with two-fraction-digit currency
// semantics. Binary floats never touch a balance.
package core

import (
	"strings"

	"github.com/shopspring/decimal"
)

// ParseAmount converts a user-supplied amount string into a decimal.
// Both dot (12.34) and comma (12,34) separators are accepted. The value
// must be positive with at most two fraction digits.
func ParseAmount(s string) (decimal.Decimal, error) {
	s = strings.TrimSpace(strings.ReplaceAll(s, ",", "."))
	if s == "" || strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return decimal.Zero, ErrInvalidAmount
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, ErrInvalidAmount
	}
	if !d.IsPositive() {
		return decimal.Zero, ErrInvalidAmount
	}
	if err := ValidateAmount(d); err != nil {
		return decimal.Zero, err
	}
	return d, nil
}

// ValidateAmount rejects negative values and values carrying more than
// two fraction digits.
func ValidateAmount(d decimal.Decimal) error {
	if d.IsNegative() {
		return ErrInvalidAmount
	}
	if d.Exponent() < -2 {
		return ErrInvalidAmount
	}
	return nil
}

// Cents converts a two-fraction-digit decimal to integer cents, the
// representation the store keeps so SQL aggregates stay exact.
func Cents(d decimal.Decimal) int64 {
	return d.Shift(2).IntPart()
}

// FromCents converts integer cents back into a decimal amount.
func FromCents(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

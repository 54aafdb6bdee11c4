// Package money converts between human-entered decimal amounts and integer
// minor units.
//
// Amounts enter the system as decimals (a float from a form or a decimal
// string on the wire) and are stored as int64 minor units (x100). Rounding is
// half away from zero. Negative amounts are rendered in parentheses without a
// minus sign: -500 -> "(5.00)".
package money

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// ScaleFactor is the number of minor units in one major unit.
const ScaleFactor = 100

// MaxAmount is the largest single amount accepted, in minor units
// (10 trillion major units).
const MaxAmount int64 = 1_000_000_000_000_000

// MaxTotal bounds any sum of amounts, such as the total of a group's items.
const MaxTotal int64 = 1_000 * MaxAmount

// ErrInvalidAmount is returned for negative, non-finite or out-of-range amounts.
var ErrInvalidAmount = errors.New("invalid amount")

var (
	scale     = decimal.NewFromInt(ScaleFactor)
	maxMinor  = decimal.NewFromInt(MaxAmount)
	zeroMinor = decimal.Zero
)

// ToMinorUnits converts a non-negative decimal amount to minor units.
func ToMinorUnits(amount float64) (int64, error) {
	if math.IsNaN(amount) || math.IsInf(amount, 0) {
		return 0, fmt.Errorf("%w: %v is not a finite number", ErrInvalidAmount, amount)
	}
	return fromDecimal(decimal.NewFromFloat(amount))
}

// ParseMinorUnits converts a decimal string such as "19.99" to minor units.
func ParseMinorUnits(s string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a decimal number", ErrInvalidAmount, s)
	}
	return fromDecimal(d)
}

func fromDecimal(d decimal.Decimal) (int64, error) {
	if d.LessThan(zeroMinor) {
		return 0, fmt.Errorf("%w: %s is negative", ErrInvalidAmount, d.String())
	}
	minor := d.Mul(scale).Round(0)
	if minor.GreaterThan(maxMinor) {
		return 0, fmt.Errorf("%w: %s is too large", ErrInvalidAmount, d.String())
	}
	return minor.IntPart(), nil
}

// AddTotal adds amount to total, failing with ErrInvalidAmount when either
// is negative or the result would exceed MaxTotal.
func AddTotal(total, amount int64) (int64, error) {
	if total < 0 || amount < 0 {
		return 0, fmt.Errorf("%w: negative operand", ErrInvalidAmount)
	}
	if amount > MaxTotal-total {
		return 0, fmt.Errorf("%w: total would exceed %s", ErrInvalidAmount, ToDisplayString(MaxTotal))
	}
	return total + amount, nil
}

// ToDisplayString formats minor units as "whole.dd".
// Negative amounts are wrapped in parentheses: -500 -> "(5.00)".
func ToDisplayString(minor int64) string {
	negative := minor < 0
	abs := uint64(minor)
	if negative {
		abs = uint64(-(minor + 1)) + 1
	}

	s := fmt.Sprintf("%d.%02d", abs/ScaleFactor, abs%ScaleFactor)
	if negative {
		return "(" + s + ")"
	}
	return s
}

package domain

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Monetary amounts cross the service boundary as decimal strings ("250.00")
// and are held internally as int64 minor units. Parsing is the core's
// responsibility; the boundary forwards caller input untouched.

// ParseAmount converts a caller-supplied decimal string to minor units.
// More than two fractional digits, a non-numeric value, or an amount that
// does not fit int64 is a validation failure.
func ParseAmount(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, NewValidationError("amount is required")
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, NewValidationError("amount is not a number")
	}
	minor := d.Shift(2)
	if !minor.IsInteger() {
		return 0, NewValidationError("amount has more than two decimal places")
	}
	if !minor.BigInt().IsInt64() {
		return 0, NewValidationError("amount out of range")
	}
	return minor.IntPart(), nil
}

// ParsePositiveAmount is ParseAmount plus the strictly-positive rule shared
// by every money movement.
func ParsePositiveAmount(s string) (int64, error) {
	minor, err := ParseAmount(s)
	if err != nil {
		return 0, err
	}
	if minor <= 0 {
		return 0, NewValidationError("amount must be positive")
	}
	return minor, nil
}

// FormatAmount renders minor units as a two-decimal string.
func FormatAmount(minor int64) string {
	return decimal.New(minor, -2).StringFixed(2)
}

package money

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits carried by Money.
const Scale = 2

var (
	// ErrInvalid is returned when an amount cannot be represented exactly in minor units.
	ErrInvalid = errors.New("invalid money amount")
	// ErrOverflow is returned when arithmetic would exceed the representable range.
	ErrOverflow = errors.New("money overflow")
	// ErrNegative is returned when a subtraction would drop below zero.
	ErrNegative = errors.New("money would become negative")
)

// Money is a fixed-point amount held in minor units (1/100 of the currency unit).
type Money int64

// Zero is the zero amount.
const Zero Money = 0

// FromMinor wraps a minor-unit integer.
func FromMinor(minor int64) Money {
	return Money(minor)
}

// FromMajor converts whole currency units into Money.
func FromMajor(major int64) (Money, error) {
	if major > math.MaxInt64/100 || major < math.MinInt64/100 {
		return 0, ErrOverflow
	}
	return Money(major * 100), nil
}

// Parse reads a decimal string such as "150", "150.5" or "150.55".
func Parse(s string) (Money, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalid, s)
	}
	return FromDecimal(d)
}

// maxMinorDigits is the number of decimal digits in math.MaxInt64.
const maxMinorDigits = 19

// FromDecimal converts a decimal value, rejecting anything finer than a minor unit.
// The exponent is bounded before any shift so huge exponents fail without
// materializing the power of ten.
func FromDecimal(d decimal.Decimal) (Money, error) {
	if d.IsZero() {
		return 0, nil
	}
	exp := int64(d.Exponent()) + Scale
	switch {
	case exp >= maxMinorDigits:
		return 0, ErrOverflow
	case exp < 0 && -exp > int64(d.NumDigits()):
		return 0, fmt.Errorf("%w: more than %d decimal places", ErrInvalid, Scale)
	}

	shifted := d.Shift(Scale)
	if !shifted.IsInteger() {
		return 0, fmt.Errorf("%w: more than %d decimal places", ErrInvalid, Scale)
	}
	bi := shifted.BigInt()
	if !bi.IsInt64() {
		return 0, ErrOverflow
	}
	return Money(bi.Int64()), nil
}

// Minor returns the amount in minor units.
func (m Money) Minor() int64 {
	return int64(m)
}

// Decimal returns the amount in major units as a decimal.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(int64(m), -Scale)
}

// IsPositive reports whether m > 0.
func (m Money) IsPositive() bool {
	return m > 0
}

// Add returns m+o or ErrOverflow.
func (m Money) Add(o Money) (Money, error) {
	if (o > 0 && m > math.MaxInt64-o) || (o < 0 && m < math.MinInt64-o) {
		return 0, ErrOverflow
	}
	return m + o, nil
}

// Sub returns m-o. The result must stay non-negative.
func (m Money) Sub(o Money) (Money, error) {
	if o > m {
		return 0, ErrNegative
	}
	if o < 0 && m > math.MaxInt64+o {
		return 0, ErrOverflow
	}
	return m - o, nil
}

// String renders the amount with two fractional digits, e.g. "150.00".
func (m Money) String() string {
	return m.Decimal().StringFixed(Scale)
}

// Format renders the amount prefixed with a currency code, e.g. "INR 150.00".
func (m Money) Format(currency string) string {
	if currency == "" {
		return m.String()
	}
	return currency + " " + m.String()
}

// MarshalJSON encodes the amount as a decimal string to avoid float rounding in clients.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

// UnmarshalJSON accepts both JSON numbers and decimal strings.
func (m *Money) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalid, string(data))
	}
	v, err := FromDecimal(d)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

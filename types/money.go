// Package types provides common types used across Subfund.
package types

import (
	"encoding/json"
	"fmt"
)

// Money represents a USD value in integer cents.
// All arithmetic is integer-only — no floating point.
//
// Examples:
//   - USD(1599) = $15.99
//   - USD(4900) = $49.00
type Money struct {
	Cents int64 `json:"cents"`
}

// USD creates a Money value from cents.
func USD(cents int64) Money { return Money{Cents: cents} }

// ZeroUSD is the zero Money value.
func ZeroUSD() Money { return Money{} }

// Arithmetic operations

// Add adds two Money values.
func (m Money) Add(other Money) Money {
	return Money{Cents: m.Cents + other.Cents}
}

// Subtract subtracts another Money value.
func (m Money) Subtract(other Money) Money {
	return Money{Cents: m.Cents - other.Cents}
}

// Multiply multiplies the Money by a quantity.
func (m Money) Multiply(qty int64) Money {
	return Money{Cents: m.Cents * qty}
}

// Divide divides the Money by a divisor. Uses integer division.
func (m Money) Divide(divisor int64) Money {
	if divisor == 0 {
		panic("money: division by zero")
	}
	return Money{Cents: m.Cents / divisor}
}

// Comparison methods

// IsZero returns true if the amount is zero.
func (m Money) IsZero() bool { return m.Cents == 0 }

// IsPositive returns true if the amount is greater than zero.
func (m Money) IsPositive() bool { return m.Cents > 0 }

// IsNegative returns true if the amount is less than zero.
func (m Money) IsNegative() bool { return m.Cents < 0 }

// Equal returns true if both Money values are equal.
func (m Money) Equal(other Money) bool { return m.Cents == other.Cents }

// LessThan returns true if m is less than other.
func (m Money) LessThan(other Money) bool { return m.Cents < other.Cents }

// GreaterThanOrEqual returns true if m is at least other.
func (m Money) GreaterThanOrEqual(other Money) bool { return m.Cents >= other.Cents }

// String formats the value as dollars, e.g. "$15.99". Negative values
// render as "-$0.42".
func (m Money) String() string {
	cents := m.Cents
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}

// MarshalJSON implements json.Marshaler.
func (m Money) MarshalJSON() ([]byte, error) {
	type alias Money
	return json.Marshal(alias(m))
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Money) UnmarshalJSON(data []byte) error {
	type alias Money
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*m = Money(a)
	return nil
}

// Sum adds a series of Money values.
func Sum(values ...Money) Money {
	var total Money
	for _, v := range values {
		total = total.Add(v)
	}
	return total
}

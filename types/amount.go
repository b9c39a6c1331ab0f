package types

import (
	"errors"
	"math"
	"math/bits"
)

// Amount is a quantity of the staked asset in base units (the smallest
// indivisible denomination). All balance, lock, and stake arithmetic is
// done on Amounts with explicit overflow checks.
type Amount uint64

// UnitScale is the number of base units per priced unit. Oracle prices are
// quoted in USD cents per priced unit, so every USD conversion passes
// through this constant.
const UnitScale Amount = 1_000_000_000

// BasisPointDenominator converts basis points into a fraction
// (100 bps = 1%).
const BasisPointDenominator = 10_000

// SecondsPerYear is the accrual denominator for elapsed-time yield.
const SecondsPerYear = 31_536_000

// Arithmetic errors. The root subfund package re-exports these as
// ErrArithmeticOverflow / ErrArithmeticUnderflow.
var (
	ErrOverflow     = errors.New("subfund: arithmetic overflow")
	ErrUnderflow    = errors.New("subfund: arithmetic underflow")
	ErrDivideByZero = errors.New("subfund: division by zero")
)

// Add returns a+b, failing on overflow.
func (a Amount) Add(b Amount) (Amount, error) {
	sum := a + b
	if sum < a {
		return 0, ErrOverflow
	}
	return sum, nil
}

// Sub returns a-b, failing on underflow.
func (a Amount) Sub(b Amount) (Amount, error) {
	if b > a {
		return 0, ErrUnderflow
	}
	return a - b, nil
}

// SaturatingSub returns a-b, clamped at zero.
func (a Amount) SaturatingSub(b Amount) Amount {
	if b > a {
		return 0
	}
	return a - b
}

// Mul returns a*b, failing on overflow.
func (a Amount) Mul(b uint64) (Amount, error) {
	hi, lo := bits.Mul64(uint64(a), b)
	if hi != 0 {
		return 0, ErrOverflow
	}
	return Amount(lo), nil
}

// MulDiv computes a*b/div through a 128-bit intermediate, so the product
// never truncates before the division. The quotient floors toward zero.
// Fails when div is zero or the quotient does not fit in 64 bits.
func MulDiv(a, b, div uint64) (uint64, error) {
	if div == 0 {
		return 0, ErrDivideByZero
	}
	hi, lo := bits.Mul64(a, b)
	if hi >= div {
		// bits.Div64 panics on quotient overflow; reject first.
		return 0, ErrOverflow
	}
	quo, _ := bits.Div64(hi, lo, div)
	return quo, nil
}

// Bps applies a basis-point fraction: a*bps/10_000, floored.
func (a Amount) Bps(bps uint64) (Amount, error) {
	out, err := MulDiv(uint64(a), bps, BasisPointDenominator)
	if err != nil {
		return 0, err
	}
	return Amount(out), nil
}

// MaxAmount is the largest representable Amount.
const MaxAmount Amount = math.MaxUint64

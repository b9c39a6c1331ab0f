package types

import (
	"encoding/json"
	"testing"
)

func TestMoneyConstructors(t *testing.T) {
	tests := []struct {
		name    string
		money   Money
		cents   int64
		display string
	}{
		{"USD", USD(4900), 4900, "$49.00"},
		{"SubDollar", USD(99), 99, "$0.99"},
		{"Zero", ZeroUSD(), 0, "$0.00"},
		{"Negative", USD(-42), -42, "-$0.42"},
		{"LargeValue", USD(123_456_789), 123_456_789, "$1234567.89"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.money.Cents != tt.cents {
				t.Errorf("Cents: got %d, want %d", tt.money.Cents, tt.cents)
			}
			if tt.money.String() != tt.display {
				t.Errorf("Display: got %s, want %s", tt.money.String(), tt.display)
			}
		})
	}
}

func TestMoneyArithmetic(t *testing.T) {
	tests := []struct {
		name     string
		op       func() Money
		expected Money
	}{
		{"Add", func() Money { return USD(100).Add(USD(200)) }, USD(300)},
		{"Subtract", func() Money { return USD(500).Subtract(USD(200)) }, USD(300)},
		{"SubtractBelowZero", func() Money { return USD(100).Subtract(USD(200)) }, USD(-100)},
		{"Multiply", func() Money { return USD(100).Multiply(3) }, USD(300)},
		{"Divide", func() Money { return USD(900).Divide(3) }, USD(300)},
		{"DivideFloors", func() Money { return USD(100).Divide(3) }, USD(33)},
		{"Complex", func() Money {
			return USD(1000).Add(USD(500)).Multiply(2).Subtract(USD(1000))
		}, USD(2000)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.op()
			if !result.Equal(tt.expected) {
				t.Errorf("Got %v, want %v", result, tt.expected)
			}
		})
	}
}

func TestMoneyDivisionByZero(t *testing.T) {
	defer func() {
		if r := recover(); r == nil {
			t.Error("Expected panic for division by zero")
		}
	}()

	_ = USD(100).Divide(0)
}

func TestMoneyComparisons(t *testing.T) {
	small := USD(100)
	big := USD(200)

	if !small.LessThan(big) {
		t.Error("100 should be less than 200")
	}
	if big.LessThan(small) {
		t.Error("200 should not be less than 100")
	}
	if !big.GreaterThanOrEqual(small) {
		t.Error("200 should be at least 100")
	}
	if !big.GreaterThanOrEqual(big) {
		t.Error("200 should be at least itself")
	}
	if !small.IsPositive() {
		t.Error("100 should be positive")
	}
	if !ZeroUSD().IsZero() {
		t.Error("zero should be zero")
	}
	if !USD(-1).IsNegative() {
		t.Error("-1 should be negative")
	}
}

func TestMoneyJSON(t *testing.T) {
	original := USD(1599)

	data, err := json.Marshal(original)
	if err != nil {
		t.Fatal(err)
	}

	var decoded Money
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}

	if !decoded.Equal(original) {
		t.Errorf("Round trip: got %v, want %v", decoded, original)
	}
}

func TestMoneySum(t *testing.T) {
	total := Sum(USD(100), USD(200), USD(300))
	if !total.Equal(USD(600)) {
		t.Errorf("Got %v, want $6.00", total)
	}

	if !Sum().IsZero() {
		t.Error("empty sum should be zero")
	}
}

// Package core holds the domain model of the ledger: exact monetary
// amounts, the record types persisted by the store, and the pure
// aggregation logic shared by the projector and the rollup.
package core

import (
	"fmt"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits persisted for every monetary
// column. Amounts with more precision are rejected at the boundary.
const Scale = 4

// Amount is an exact monetary value: a decimal plus a currency tag.
// The zero value is 0 with no currency and acts as a neutral element
// for Add and Sum.
type Amount struct {
	value decimal.Decimal
	cur   string
}

// NewAmount builds an Amount from a decimal value and a currency code.
func NewAmount(value decimal.Decimal, currency string) Amount {
	return Amount{value: value, cur: currency}
}

// Zero returns the zero amount in the given currency.
func Zero(currency string) Amount {
	return Amount{cur: currency}
}

// ParseAmount parses a decimal string into an Amount. It rejects values
// that cannot be represented at the persisted scale.
func ParseAmount(s, currency string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if d.Exponent() < -Scale {
		return Amount{}, fmt.Errorf("%w: %q exceeds scale %d", ErrInvalidAmount, s, Scale)
	}
	return Amount{value: d, cur: currency}, nil
}

// MustParseAmount is ParseAmount for literals in tests and fixtures.
func MustParseAmount(s, currency string) Amount {
	a, err := ParseAmount(s, currency)
	if err != nil {
		panic(err)
	}
	return a
}

// ValidCurrency reports whether code is a known ISO 4217 currency code.
func ValidCurrency(code string) bool {
	return money.GetCurrency(code) != nil
}

// Currency returns the amount's currency code.
func (a Amount) Currency() string { return a.cur }

// Decimal returns the underlying decimal value.
func (a Amount) Decimal() decimal.Decimal { return a.value }

// IsZero reports whether the value is exactly zero.
func (a Amount) IsZero() bool { return a.value.IsZero() }

// IsNegative reports whether the value is strictly negative.
func (a Amount) IsNegative() bool { return a.value.IsNegative() }

// Neg returns the amount with its sign flipped.
func (a Amount) Neg() Amount { return Amount{value: a.value.Neg(), cur: a.cur} }

// String renders the value at the persisted scale, e.g. "-200.0000".
func (a Amount) String() string { return a.value.StringFixed(Scale) }

func (a Amount) sameCurrency(b Amount) error {
	// The zero Amount carries no currency and combines with anything.
	if a.cur == "" || b.cur == "" || a.cur == b.cur {
		return nil
	}
	return fmt.Errorf("%w: %s vs %s", ErrCurrencyMismatch, a.cur, b.cur)
}

func (a Amount) pick(b Amount) string {
	if a.cur != "" {
		return a.cur
	}
	return b.cur
}

// Add returns a+b. Mixing currencies is a caller bug and fails with
// ErrCurrencyMismatch.
func (a Amount) Add(b Amount) (Amount, error) {
	if err := a.sameCurrency(b); err != nil {
		return Amount{}, err
	}
	return Amount{value: a.value.Add(b.value), cur: a.pick(b)}, nil
}

// Sub returns a-b, with the same currency rules as Add.
func (a Amount) Sub(b Amount) (Amount, error) {
	if err := a.sameCurrency(b); err != nil {
		return Amount{}, err
	}
	return Amount{value: a.value.Sub(b.value), cur: a.pick(b)}, nil
}

// Equal reports exact equality of value and currency.
func (a Amount) Equal(b Amount) bool {
	return a.value.Equal(b.value) && a.sameCurrency(b) == nil
}

// Cmp compares values: -1 if a<b, 0 if equal, 1 if a>b. Comparing
// different currencies fails with ErrCurrencyMismatch.
func (a Amount) Cmp(b Amount) (int, error) {
	if err := a.sameCurrency(b); err != nil {
		return 0, err
	}
	return a.value.Cmp(b.value), nil
}

// Round returns the amount rounded half-up at the given scale. Rounding
// is never implicit; every other operation is exact.
func (a Amount) Round(scale int32) Amount {
	return Amount{value: a.value.Round(scale), cur: a.cur}
}

// Sum reduces a sequence of amounts to their exact total in the given
// currency. An empty sequence yields zero.
func Sum(currency string, amounts []Amount) (Amount, error) {
	total := Zero(currency)
	for _, a := range amounts {
		var err error
		total, err = total.Add(a)
		if err != nil {
			return Amount{}, err
		}
	}
	return total, nil
}

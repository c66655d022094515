// Package money provides the fixed-precision decimal amount used by every
// balance, ledger row and payment in the system.
package money

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

// Scale is the number of fractional digits kept for currency amounts.
const Scale = 2

var (
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidAmount     = errors.New("invalid money amount")
)

var hundred = decimal.NewFromInt(100)

// Money is an immutable amount rounded to Scale decimal places.
// The zero value is 0.00.
type Money struct {
	d decimal.Decimal
}

var Zero = Money{}

func FromDecimal(d decimal.Decimal) Money {
	return Money{d: d.Round(Scale)}
}

// FromCents builds an amount from its minor units, e.g. FromCents(10050) is 100.50.
func FromCents(cents int64) Money {
	return Money{d: decimal.New(cents, -Scale)}
}

func FromInt(units int64) Money {
	return Money{d: decimal.NewFromInt(units).Round(Scale)}
}

// Parse reads a client-supplied amount. Amounts with more than Scale
// significant fractional digits are rejected rather than rounded.
func Parse(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return exact(d)
}

func exact(d decimal.Decimal) (Money, error) {
	if !d.Equal(d.Round(Scale)) {
		return Zero, fmt.Errorf("%w: %s has more than %d decimal places", ErrInvalidAmount, d, Scale)
	}
	return FromDecimal(d), nil
}

func MustParse(s string) Money {
	m, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) Decimal() decimal.Decimal { return m.d }

func (m Money) Add(o Money) Money { return FromDecimal(m.d.Add(o.d)) }

func (m Money) Sub(o Money) Money { return FromDecimal(m.d.Sub(o.d)) }

// Mul multiplies by a scalar and rounds the product back to Scale.
func (m Money) Mul(factor decimal.Decimal) Money { return FromDecimal(m.d.Mul(factor)) }

// Percent returns p percent of m, rounded to Scale.
func (m Money) Percent(p decimal.Decimal) Money {
	return FromDecimal(m.d.Mul(p).Div(hundred))
}

func (m Money) Neg() Money { return FromDecimal(m.d.Neg()) }

func (m Money) Abs() Money { return FromDecimal(m.d.Abs()) }

func (m Money) Cmp(o Money) int { return m.d.Cmp(o.d) }

func (m Money) Equal(o Money) bool { return m.d.Equal(o.d) }

func (m Money) GreaterThan(o Money) bool { return m.d.GreaterThan(o.d) }

func (m Money) GreaterThanOrEqual(o Money) bool { return m.d.GreaterThanOrEqual(o.d) }

func (m Money) LessThan(o Money) bool { return m.d.LessThan(o.d) }

func (m Money) IsZero() bool { return m.d.IsZero() }

func (m Money) IsNegative() bool { return m.d.IsNegative() }

func (m Money) IsPositive() bool { return m.d.IsPositive() }

func (m Money) String() string { return m.d.StringFixed(Scale) }

// MarshalJSON encodes the amount as a fixed-point string so clients never
// round-trip it through a float.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

func (m *Money) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidAmount, string(b))
	}
	v, err := exact(d)
	if err != nil {
		return err
	}
	*m = v
	return nil
}

func (m *Money) Scan(src interface{}) error {
	var d decimal.Decimal
	if err := d.Scan(src); err != nil {
		return err
	}
	*m = FromDecimal(d)
	return nil
}

func (m Money) Value() (driver.Value, error) {
	return m.String(), nil
}

// Sum adds all amounts.
func Sum(amounts ...Money) Money {
	total := Zero
	for _, a := range amounts {
		total = total.Add(a)
	}
	return total
}

// Package money provides fixed point monetary values and percentage rates.
package money

import (
	"bytes"
	"fmt"
	"math/bits"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/fieldops/fieldops/internal/shared"
)

// Scale is the number of minor-unit digits carried by an Amount.
const Scale = 2

// Amount is a monetary value stored in minor units (cents).
type Amount int64

// Zero is the empty amount.
const Zero Amount = 0

// MaxAmount bounds every Amount produced by parsing or arithmetic, in either
// direction. It leaves int64 headroom for adding two in-range values.
const MaxAmount Amount = 1_000_000_000_000_000

var maxDecimal = decimal.New(int64(MaxAmount), -Scale)

func errOutOfRange(v string) error {
	return shared.Validation(fmt.Sprintf("amount %s is outside the supported range of ±%s", v, MaxAmount))
}

// InRange reports whether a lies within ±MaxAmount.
func (a Amount) InRange() bool { return a >= -MaxAmount && a <= MaxAmount }

// FromMinor wraps a value already expressed in minor units.
func FromMinor(v int64) Amount { return Amount(v) }

// FromMajor converts whole major units into an Amount. It is meant for
// constants and does not range check.
func FromMajor(v int64) Amount { return Amount(v * 100) }

// FromDecimal converts d into an Amount. Values with more than Scale
// fractional digits or beyond MaxAmount are rejected rather than silently
// rounded or wrapped.
func FromDecimal(d decimal.Decimal) (Amount, error) {
	if !d.Equal(d.Round(Scale)) {
		return 0, shared.Validation(fmt.Sprintf("amount %s has more than %d decimal places", d.String(), Scale))
	}
	if d.Abs().GreaterThan(maxDecimal) {
		return 0, errOutOfRange(d.String())
	}
	return Amount(d.Shift(Scale).IntPart()), nil
}

// Parse reads a decimal string such as "12.50".
func Parse(s string) (Amount, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, shared.Validation(fmt.Sprintf("invalid amount %q", s))
	}
	return FromDecimal(d)
}

// MustParse is Parse for constants in tests and fixtures.
func MustParse(s string) Amount {
	a, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Minor returns the raw minor-unit value.
func (a Amount) Minor() int64 { return int64(a) }

// Decimal returns the amount in major units.
func (a Amount) Decimal() decimal.Decimal { return decimal.New(int64(a), -Scale) }

// Float64 returns an approximate major-unit value, for display only.
func (a Amount) Float64() float64 { return a.Decimal().InexactFloat64() }

func (a Amount) String() string { return a.Decimal().StringFixed(Scale) }

// Add returns a + b, or a ValidationError when the sum leaves ±MaxAmount.
func (a Amount) Add(b Amount) (Amount, error) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) || !sum.InRange() {
		return 0, errOutOfRange(a.Decimal().Add(b.Decimal()).String())
	}
	return sum, nil
}

// Sub returns a - b. Both operands are expected to be in range, so the
// result fits in int64.
func (a Amount) Sub(b Amount) Amount { return a - b }

// MulQty multiplies a unit price by an item quantity. Negative quantities and
// products beyond MaxAmount are rejected.
func (a Amount) MulQty(qty int) (Amount, error) {
	if qty < 0 {
		return 0, shared.Validation(fmt.Sprintf("quantity %d must not be negative", qty))
	}
	abs := uint64(a)
	if a < 0 {
		abs = uint64(-a)
	}
	hi, lo := bits.Mul64(abs, uint64(qty))
	if hi != 0 || lo > uint64(MaxAmount) {
		return 0, errOutOfRange(a.Decimal().Mul(decimal.NewFromInt(int64(qty))).String())
	}
	if a < 0 {
		return -Amount(lo), nil
	}
	return Amount(lo), nil
}

func (a Amount) IsZero() bool { return a == 0 }

func (a Amount) IsNegative() bool { return a < 0 }

func (a Amount) IsPositive() bool { return a > 0 }

// Sum adds amounts with the same range check as Add. In-range results do
// not depend on argument order.
func Sum(amounts ...Amount) (Amount, error) {
	var total Amount
	for _, a := range amounts {
		next, err := total.Add(a)
		if err != nil {
			return 0, err
		}
		total = next
	}
	return total, nil
}

// MarshalJSON writes the amount as a JSON number in major units.
func (a Amount) MarshalJSON() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalJSON accepts a JSON number or a numeric string in major units.
func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*a = 0
		return nil
	}
	raw := string(data)
	if len(data) > 0 && data[0] == '"' {
		unquoted, err := strconv.Unquote(raw)
		if err != nil {
			return shared.Validation(fmt.Sprintf("invalid amount %s", raw))
		}
		raw = unquoted
	}
	parsed, err := Parse(raw)
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Rate is a percentage such as 10 or 7.25.
type Rate struct {
	d decimal.Decimal
}

var hundred = decimal.NewFromInt(100)

// Percent builds a whole-number rate.
func Percent(v int64) Rate { return Rate{d: decimal.NewFromInt(v)} }

// ParseRate reads a percentage string. At most four fractional digits are kept.
func ParseRate(s string) (Rate, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Rate{}, shared.Validation(fmt.Sprintf("invalid tax rate %q", s))
	}
	if !d.Equal(d.Round(4)) {
		return Rate{}, shared.Validation(fmt.Sprintf("tax rate %s has more than 4 decimal places", s))
	}
	return Rate{d: d}, nil
}

// MustRate is ParseRate for constants.
func MustRate(s string) Rate {
	r, err := ParseRate(s)
	if err != nil {
		panic(err)
	}
	return r
}

func (r Rate) Decimal() decimal.Decimal { return r.d }

func (r Rate) IsNegative() bool { return r.d.IsNegative() }

func (r Rate) String() string { return r.d.String() }

// Apply returns a × rate / 100 rounded half away from zero to the minor unit.
// A result beyond MaxAmount is a ValidationError.
func (r Rate) Apply(a Amount) (Amount, error) {
	return FromDecimal(a.Decimal().Mul(r.d).Div(hundred).Round(Scale))
}

func (r Rate) MarshalJSON() ([]byte, error) {
	return []byte(r.d.String()), nil
}

func (r *Rate) UnmarshalJSON(data []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(data); err != nil {
		return shared.Validation(fmt.Sprintf("invalid tax rate %s", string(data)))
	}
	if !d.Equal(d.Round(4)) {
		return shared.Validation(fmt.Sprintf("tax rate %s has more than 4 decimal places", d.String()))
	}
	r.d = d
	return nil
}

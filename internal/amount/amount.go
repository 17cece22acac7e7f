package amount

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// Amount is an unsigned integer expressed in a tick's smallest unit.
type Amount = uint256.Int

var (
	ErrOverflow    = errors.New("amount overflow")
	ErrUnderflow   = errors.New("amount underflow")
	ErrInvalid     = errors.New("invalid amount")
	ErrDivByZero   = errors.New("division by zero")
	ErrInvalidRate = errors.New("invalid fee rate")
)

// FeeDenominator is the scale of swap fee rates (thousandths).
const FeeDenominator = 1000

func Zero() Amount {
	return Amount{}
}

func FromUint64(v uint64) Amount {
	return *uint256.NewInt(v)
}

// Parse reads a non-negative base-10 integer string.
func Parse(s string) (Amount, error) {
	if s == "" {
		return Amount{}, fmt.Errorf("%w: empty", ErrInvalid)
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return Amount{}, fmt.Errorf("%w: %q", ErrInvalid, s)
		}
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return Amount{}, fmt.Errorf("%w: %q: %v", ErrInvalid, s, err)
	}
	return *v, nil
}

// MustParse is Parse for constants and tests.
func MustParse(s string) Amount {
	v, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return v
}

func Add(a, b Amount) (Amount, error) {
	var z Amount
	if _, overflow := z.AddOverflow(&a, &b); overflow {
		return Amount{}, ErrOverflow
	}
	return z, nil
}

func Sub(a, b Amount) (Amount, error) {
	var z Amount
	if _, underflow := z.SubOverflow(&a, &b); underflow {
		return Amount{}, ErrUnderflow
	}
	return z, nil
}

func Mul(a, b Amount) (Amount, error) {
	var z Amount
	if _, overflow := z.MulOverflow(&a, &b); overflow {
		return Amount{}, ErrOverflow
	}
	return z, nil
}

func Div(a, b Amount) (Amount, error) {
	if b.IsZero() {
		return Amount{}, ErrDivByZero
	}
	var z Amount
	z.Div(&a, &b)
	return z, nil
}

// MulDiv returns a*b/d with a 512-bit intermediate product.
func MulDiv(a, b, d Amount) (Amount, error) {
	if d.IsZero() {
		return Amount{}, ErrDivByZero
	}
	var z Amount
	if _, overflow := z.MulDivOverflow(&a, &b, &d); overflow {
		return Amount{}, ErrOverflow
	}
	return z, nil
}

// Sqrt returns floor(sqrt(a)).
func Sqrt(a Amount) Amount {
	var z Amount
	z.Sqrt(&a)
	return z
}

func Min(a, b Amount) Amount {
	if a.Lt(&b) {
		return a
	}
	return b
}

func String(a Amount) string {
	return a.Dec()
}

// Format renders a base-unit amount as a display value with the given decimals.
func Format(a Amount, decimals uint8) string {
	if decimals == 0 {
		return a.Dec()
	}
	return decimal.NewFromBigInt(a.ToBig(), -int32(decimals)).String()
}

// ParseFeeRate converts a decimal fee rate such as "0.003" into thousandths.
func ParseFeeRate(s string) (uint64, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidRate, s)
	}
	if d.IsNegative() || d.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return 0, fmt.Errorf("%w: %q out of range", ErrInvalidRate, s)
	}
	scaled := d.Mul(decimal.NewFromInt(FeeDenominator))
	if !scaled.IsInteger() {
		return 0, fmt.Errorf("%w: %q is not a whole number of thousandths", ErrInvalidRate, s)
	}
	return uint64(scaled.IntPart()), nil
}

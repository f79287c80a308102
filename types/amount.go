// Package types provides the value domain shared across settlement.
package types

import (
	"errors"
	"fmt"
	"math/big"
	"math/bits"
)

// ErrOverflow is returned when a checked operation leaves the int128 range.
var ErrOverflow = errors.New("types: int128 overflow")

// Amount is a signed 128-bit integer in two's complement.
//
// Positive deltas mean the ledger owes the participant; negative deltas mean
// the participant owes the ledger. All arithmetic is checked: a result that
// does not fit is reported as ErrOverflow and never wraps.
type Amount struct {
	hi int64
	lo uint64
}

var (
	// MaxAmount is 2^127 - 1.
	MaxAmount = Amount{hi: 1<<63 - 1, lo: 1<<64 - 1}
	// MinAmount is -2^127.
	MinAmount = Amount{hi: -1 << 63, lo: 0}

	minBig = new(big.Int).Neg(new(big.Int).Lsh(big.NewInt(1), 127))
	maxBig = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 127), big.NewInt(1))
	mask64 = new(big.Int).SetUint64(1<<64 - 1)
)

// NewAmount returns v as an Amount.
func NewAmount(v int64) Amount {
	hi := int64(0)
	if v < 0 {
		hi = -1
	}
	return Amount{hi: hi, lo: uint64(v)}
}

// AmountFromBig converts b, failing with ErrOverflow outside the int128 range.
func AmountFromBig(b *big.Int) (Amount, error) {
	if b == nil {
		return Amount{}, nil
	}
	if b.Cmp(minBig) < 0 || b.Cmp(maxBig) > 0 {
		return Amount{}, fmt.Errorf("%w: %s", ErrOverflow, b.String())
	}
	lo := new(big.Int).And(b, mask64).Uint64()
	hi := new(big.Int).Rsh(b, 64).Int64()
	return Amount{hi: hi, lo: lo}, nil
}

// ParseAmount parses a base-10 integer.
func ParseAmount(s string) (Amount, error) {
	b, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return Amount{}, fmt.Errorf("types: parse amount %q: invalid integer", s)
	}
	return AmountFromBig(b)
}

// MustParseAmount is like ParseAmount but panics on error.
func MustParseAmount(s string) Amount {
	a, err := ParseAmount(s)
	if err != nil {
		panic(err)
	}
	return a
}

// Add returns a+b.
func (a Amount) Add(b Amount) (Amount, error) {
	lo, carry := bits.Add64(a.lo, b.lo, 0)
	hi, _ := bits.Add64(uint64(a.hi), uint64(b.hi), carry)
	r := Amount{hi: int64(hi), lo: lo}
	if (a.hi < 0) == (b.hi < 0) && (r.hi < 0) != (a.hi < 0) {
		return Amount{}, ErrOverflow
	}
	return r, nil
}

// Sub returns a-b.
func (a Amount) Sub(b Amount) (Amount, error) {
	lo, borrow := bits.Sub64(a.lo, b.lo, 0)
	hi, _ := bits.Sub64(uint64(a.hi), uint64(b.hi), borrow)
	r := Amount{hi: int64(hi), lo: lo}
	if (a.hi < 0) != (b.hi < 0) && (r.hi < 0) != (a.hi < 0) {
		return Amount{}, ErrOverflow
	}
	return r, nil
}

// Neg returns -a. Negating MinAmount overflows.
func (a Amount) Neg() (Amount, error) {
	return Amount{}.Sub(a)
}

// Abs returns |a|. The absolute value of MinAmount overflows.
func (a Amount) Abs() (Amount, error) {
	if a.IsNegative() {
		return a.Neg()
	}
	return a, nil
}

// Sign returns -1, 0 or +1.
func (a Amount) Sign() int {
	switch {
	case a.hi < 0:
		return -1
	case a.hi == 0 && a.lo == 0:
		return 0
	default:
		return 1
	}
}

// IsZero reports whether a == 0.
func (a Amount) IsZero() bool { return a.hi == 0 && a.lo == 0 }

// IsPositive reports whether a > 0.
func (a Amount) IsPositive() bool { return a.Sign() > 0 }

// IsNegative reports whether a < 0.
func (a Amount) IsNegative() bool { return a.hi < 0 }

// Cmp compares a and b and returns -1, 0 or +1.
func (a Amount) Cmp(b Amount) int {
	switch {
	case a.hi < b.hi:
		return -1
	case a.hi > b.hi:
		return 1
	case a.lo < b.lo:
		return -1
	case a.lo > b.lo:
		return 1
	default:
		return 0
	}
}

// Big returns a as a newly allocated big.Int.
func (a Amount) Big() *big.Int {
	b := big.NewInt(a.hi)
	b.Lsh(b, 64)
	return b.Add(b, new(big.Int).SetUint64(a.lo))
}

// String returns the base-10 representation.
func (a Amount) String() string {
	if a.hi == 0 {
		return fmt.Sprintf("%d", a.lo)
	}
	if a.hi == -1 && a.lo >= 1<<63 {
		return fmt.Sprintf("%d", int64(a.lo))
	}
	return a.Big().String()
}

// MarshalText implements encoding.TextMarshaler.
func (a Amount) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (a *Amount) UnmarshalText(data []byte) error {
	if len(data) == 0 {
		*a = Amount{}
		return nil
	}
	parsed, err := ParseAmount(string(data))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Sum folds values with checked addition.
func Sum(values ...Amount) (Amount, error) {
	var total Amount
	for _, v := range values {
		next, err := total.Add(v)
		if err != nil {
			return Amount{}, err
		}
		total = next
	}
	return total, nil
}

package types

import (
	"encoding/json"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmountArithmetic(t *testing.T) {
	tests := []struct {
		name string
		op   func() (Amount, error)
		want string
	}{
		{"Add", func() (Amount, error) { return NewAmount(100).Add(NewAmount(200)) }, "300"},
		{"AddNegative", func() (Amount, error) { return NewAmount(100).Add(NewAmount(-300)) }, "-200"},
		{"Sub", func() (Amount, error) { return NewAmount(100).Sub(NewAmount(-100)) }, "200"},
		{"SubToZero", func() (Amount, error) { return NewAmount(-7).Sub(NewAmount(-7)) }, "0"},
		{"CarryIntoHigh", func() (Amount, error) {
			return MustParseAmount("18446744073709551615").Add(NewAmount(1))
		}, "18446744073709551616"},
		{"BorrowFromHigh", func() (Amount, error) {
			return MustParseAmount("18446744073709551616").Sub(NewAmount(1))
		}, "18446744073709551615"},
		{"Neg", func() (Amount, error) { return NewAmount(42).Neg() }, "-42"},
		{"AbsNegative", func() (Amount, error) { return NewAmount(-42).Abs() }, "42"},
		{"MaxMinusMax", func() (Amount, error) { return MaxAmount.Sub(MaxAmount) }, "0"},
		{"MinPlusMax", func() (Amount, error) { return MinAmount.Add(MaxAmount) }, "-1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.op()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestAmountOverflow(t *testing.T) {
	tests := []struct {
		name string
		op   func() (Amount, error)
	}{
		{"MaxPlusOne", func() (Amount, error) { return MaxAmount.Add(NewAmount(1)) }},
		{"MinMinusOne", func() (Amount, error) { return MinAmount.Sub(NewAmount(1)) }},
		{"MinPlusMin", func() (Amount, error) { return MinAmount.Add(MinAmount) }},
		{"MaxMinusMin", func() (Amount, error) { return MaxAmount.Sub(MinAmount) }},
		{"NegMin", func() (Amount, error) { return MinAmount.Neg() }},
		{"AbsMin", func() (Amount, error) { return MinAmount.Abs() }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.op()
			assert.ErrorIs(t, err, ErrOverflow)
		})
	}
}

func TestAmountBounds(t *testing.T) {
	assert.Equal(t, "170141183460469231731687303715884105727", MaxAmount.String())
	assert.Equal(t, "-170141183460469231731687303715884105728", MinAmount.String())

	_, err := ParseAmount("170141183460469231731687303715884105728")
	assert.ErrorIs(t, err, ErrOverflow)

	_, err = ParseAmount("-170141183460469231731687303715884105729")
	assert.ErrorIs(t, err, ErrOverflow)

	_, err = ParseAmount("12abc")
	assert.Error(t, err)
}

func TestAmountBigRoundTrip(t *testing.T) {
	values := []string{
		"0", "1", "-1", "9223372036854775807", "-9223372036854775808",
		"-18446744073709551616", "123456789012345678901234567890",
		"-123456789012345678901234567890",
		MaxAmount.String(), MinAmount.String(),
	}
	for _, v := range values {
		b, ok := new(big.Int).SetString(v, 10)
		require.True(t, ok)

		a, err := AmountFromBig(b)
		require.NoError(t, err, v)
		assert.Equal(t, v, a.String())
		assert.Equal(t, 0, a.Big().Cmp(b), v)
	}
}

func TestAmountCompare(t *testing.T) {
	assert.Equal(t, -1, NewAmount(-1).Cmp(NewAmount(0)))
	assert.Equal(t, 1, MustParseAmount("18446744073709551616").Cmp(NewAmount(1)))
	assert.Equal(t, 0, NewAmount(5).Cmp(MustParseAmount("5")))
	assert.Equal(t, -1, MinAmount.Cmp(MaxAmount))

	assert.Equal(t, -1, NewAmount(-9).Sign())
	assert.Equal(t, 0, Amount{}.Sign())
	assert.Equal(t, 1, NewAmount(9).Sign())
	assert.True(t, Amount{}.IsZero())
	assert.True(t, NewAmount(-1).IsNegative())
	assert.True(t, NewAmount(1).IsPositive())
}

func TestAmountJSON(t *testing.T) {
	type wrapper struct {
		Delta Amount `json:"delta"`
	}

	data, err := json.Marshal(wrapper{Delta: MustParseAmount("-340282366920938463463374607431768211")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"delta":"-340282366920938463463374607431768211"}`, string(data))

	var got wrapper
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "-340282366920938463463374607431768211", got.Delta.String())
}

func TestSum(t *testing.T) {
	total, err := Sum(NewAmount(1), NewAmount(2), NewAmount(-4))
	require.NoError(t, err)
	assert.Equal(t, "-1", total.String())

	_, err = Sum(MaxAmount, NewAmount(1))
	assert.ErrorIs(t, err, ErrOverflow)
}

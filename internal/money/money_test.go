package money

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
		wantErr  bool
	}{
		{name: "two decimals", input: "100.50", expected: "100.50"},
		{name: "integer", input: "42", expected: "42.00"},
		{name: "trailing zeros beyond scale", input: "7.500", expected: "7.50"},
		{name: "negative", input: "-3.45", expected: "-3.45"},
		{name: "sub-cent amount", input: "100.005", wantErr: true},
		{name: "sub-cent negative", input: "-3.456", wantErr: true},
		{name: "garbage", input: "12abc", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := Parse(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, m.String())
		})
	}
}

func TestArithmetic(t *testing.T) {
	balance := MustParse("200.00")
	amount := MustParse("100.50")

	assert.Equal(t, "99.50", balance.Sub(amount).String())
	assert.Equal(t, "300.50", balance.Add(amount).String())
	assert.Equal(t, "301.50", amount.Mul(decimal.NewFromInt(3)).String())
	assert.Equal(t, "-100.50", amount.Neg().String())
	assert.Equal(t, "100.50", amount.Neg().Abs().String())
}

func TestFloatFreeAddition(t *testing.T) {
	total := Zero
	for i := 0; i < 10; i++ {
		total = total.Add(MustParse("0.10"))
	}
	assert.True(t, total.Equal(FromInt(1)))
}

func TestPercent(t *testing.T) {
	fee := MustParse("150.00").Percent(decimal.NewFromFloat(2.5))
	assert.Equal(t, "3.75", fee.String())

	fee = MustParse("0.10").Percent(decimal.NewFromInt(15))
	assert.Equal(t, "0.02", fee.String())
}

func TestPredicates(t *testing.T) {
	assert.True(t, Zero.IsZero())
	assert.False(t, Zero.IsNegative())
	assert.False(t, Zero.IsPositive())
	assert.True(t, MustParse("-0.01").IsNegative())
	assert.True(t, FromCents(1).IsPositive())
	assert.True(t, MustParse("5").GreaterThanOrEqual(MustParse("5.00")))
	assert.True(t, MustParse("4.99").LessThan(MustParse("5")))
	assert.Equal(t, 1, MustParse("5.01").Cmp(MustParse("5")))
}

func TestJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		Amount Money `json:"amount"`
	}{Amount: MustParse("12.3")})
	require.NoError(t, err)
	assert.JSONEq(t, `{"amount":"12.30"}`, string(b))

	var in struct {
		Amount Money `json:"amount"`
	}
	err = json.Unmarshal([]byte(`{"amount":"7.125"}`), &in)
	assert.ErrorIs(t, err, ErrInvalidAmount)

	require.NoError(t, json.Unmarshal([]byte(`{"amount":19.99}`), &in))
	assert.Equal(t, "19.99", in.Amount.String())

	assert.Error(t, json.Unmarshal([]byte(`{"amount":"nope"}`), &in))
}

func TestFromDecimalRounds(t *testing.T) {
	assert.Equal(t, "0.01", FromDecimal(decimal.RequireFromString("0.005")).String())
}

func TestScanValue(t *testing.T) {
	var m Money
	require.NoError(t, m.Scan("250.456"))
	assert.Equal(t, "250.46", m.String())

	require.NoError(t, m.Scan([]byte("10")))
	v, err := m.Value()
	require.NoError(t, err)
	assert.Equal(t, "10.00", v)
}

func TestSum(t *testing.T) {
	assert.Equal(t, "6.60", Sum(MustParse("1.10"), MustParse("2.20"), MustParse("3.30")).String())
	assert.True(t, Sum().IsZero())
}

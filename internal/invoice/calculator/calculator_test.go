package calculator

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func TestCalculateVATOnly(t *testing.T) {
	got, err := Calculate(d("1000"), Rates{VAT: d("20")})
	require.NoError(t, err)

	assert.True(t, got.VAT.Equal(d("200")))
	assert.True(t, got.Tax.Equal(d("200")))
	assert.True(t, got.Total.Equal(d("1200")))
	assert.True(t, got.Withholding.IsZero())
	assert.True(t, got.StampDuty.IsZero())
}

func TestCalculateMissingRatesContributeZero(t *testing.T) {
	got, err := Calculate(d("437.19"), Rates{})
	require.NoError(t, err)
	assert.True(t, got.Tax.IsZero())
	assert.True(t, got.Total.Equal(d("437.19")))
}

func TestCalculateTotalMatchesFormula(t *testing.T) {
	rates := Rates{VAT: d("15"), Withholding: d("2.5"), StampDuty: d("0.75")}
	factor := decimal.NewFromInt(1).Add(d("18.25").Div(decimal.NewFromInt(100)))
	tolerance := d("0.01")

	for _, base := range []string{"0", "0.01", "1", "99.99", "1234.56", "1000000"} {
		got, err := Calculate(d(base), rates)
		require.NoError(t, err)

		want := d(base).Mul(factor)
		assert.True(t, got.Total.Sub(want).Abs().LessThanOrEqual(tolerance), "base %s: total %s want %s", base, got.Total, want)
		assert.True(t, got.Total.Equal(got.Base.Add(got.Tax)), "base %s", base)
	}
}

func TestCalculateRoundsHalfAwayFromZero(t *testing.T) {
	got, err := Calculate(d("0.05"), Rates{VAT: d("50")})
	require.NoError(t, err)
	// 0.025 rounds up to 0.03
	assert.True(t, got.VAT.Equal(d("0.03")))
	assert.True(t, got.Total.Equal(d("0.08")))
}

func TestCalculateRejectsNegativeBase(t *testing.T) {
	_, err := Calculate(d("-1"), Rates{VAT: d("20")})
	assert.ErrorIs(t, err, ErrNegativeBase)
}

package report

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func TestGrowthPercent(t *testing.T) {
	g, ok := GrowthPercent(d("100"), d("150"))
	require.True(t, ok)
	assert.True(t, g.Equal(d("50")), "growth = %s", g)

	g, ok = GrowthPercent(d("200"), d("100"))
	require.True(t, ok)
	assert.True(t, g.Equal(d("-50")), "growth = %s", g)
}

func TestGrowthPercent_ExcludesNonPositiveEarlier(t *testing.T) {
	_, ok := GrowthPercent(d("0"), d("150"))
	assert.False(t, ok, "zero earlier period must be excluded, not reported as growth")

	_, ok = GrowthPercent(d("-5"), d("150"))
	assert.False(t, ok)
}

func TestSafeRatio(t *testing.T) {
	r, ok := SafeRatio(d("500"), d("4"))
	require.True(t, ok)
	assert.True(t, r.Equal(d("125")), "ratio = %s", r)

	_, ok = SafeRatio(d("500"), d("0"))
	assert.False(t, ok, "zero denominator must be excluded")
}

func TestCAGRPercent(t *testing.T) {
	// 100 -> 400 over 2 years doubles each year.
	rate, ok := CAGRPercent(d("100"), d("400"), 2)
	require.True(t, ok)
	assert.True(t, rate.Equal(d("100")), "cagr = %s", rate)
}

func TestCAGRPercent_Guards(t *testing.T) {
	_, ok := CAGRPercent(d("0"), d("400"), 2)
	assert.False(t, ok, "zero start")

	_, ok = CAGRPercent(d("100"), d("400"), 0)
	assert.False(t, ok, "zero span")

	_, ok = CAGRPercent(d("-1"), d("400"), 2)
	assert.False(t, ok, "negative start")
}

func TestContributionShares(t *testing.T) {
	shares, err := ContributionShares([]decimal.Decimal{d("30"), d("70")})
	require.NoError(t, err)
	require.Len(t, shares, 2)
	assert.True(t, shares[0].Equal(d("30")))
	assert.True(t, shares[1].Equal(d("70")))
}

func TestContributionShares_ZeroTotal(t *testing.T) {
	_, err := ContributionShares([]decimal.Decimal{d("0"), d("0")})
	assert.ErrorIs(t, err, ErrZeroTotal)
}

func TestToDecimal(t *testing.T) {
	for _, tc := range []struct {
		in   any
		want string
	}{
		{d("1.5"), "1.5"},
		{int64(7), "7"},
		{3.25, "3.25"},
		{"42.1", "42.1"},
	} {
		got, err := toDecimal(tc.in)
		require.NoError(t, err, "%v", tc.in)
		assert.True(t, got.Equal(d(tc.want)), "toDecimal(%v) = %s", tc.in, got)
	}

	_, err := toDecimal(nil)
	assert.Error(t, err)
	_, err = toDecimal("not-a-number")
	assert.Error(t, err)
}

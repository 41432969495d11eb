package report

import (
	"errors"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
)

// ErrZeroTotal reports a contribution-share request over a grand total of
// zero, where shares are undefined. The caller surfaces it for that one
// report only.
var ErrZeroTotal = errors.New("report: overall total is zero, shares undefined")

// toDecimal coerces a materialized query cell into a decimal. Backends
// differ in what they hand back for aggregates (decimal, int64, float64,
// or text), so every guard goes through this one funnel.
func toDecimal(v any) (decimal.Decimal, error) {
	switch x := v.(type) {
	case decimal.Decimal:
		return x, nil
	case int64:
		return decimal.NewFromInt(x), nil
	case int:
		return decimal.NewFromInt(int64(x)), nil
	case float64:
		return decimal.NewFromFloat(x), nil
	case string:
		d, err := decimal.NewFromString(x)
		if err != nil {
			return decimal.Zero, fmt.Errorf("report: non-numeric cell %q", x)
		}
		return d, nil
	case nil:
		return decimal.Zero, fmt.Errorf("report: nil numeric cell")
	default:
		return decimal.Zero, fmt.Errorf("report: unsupported numeric cell type %T", v)
	}
}

// GrowthPercent returns the period-over-period growth of later against
// earlier, in percent. Groups with earlier <= 0 have no defined growth;
// the second return is false and the group must be excluded, never
// reported as zero.
func GrowthPercent(earlier, later decimal.Decimal) (decimal.Decimal, bool) {
	if earlier.Sign() <= 0 {
		return decimal.Zero, false
	}
	return later.Sub(earlier).Div(earlier).Mul(decimal.NewFromInt(100)), true
}

// SafeRatio returns num/den, refusing den <= 0.
func SafeRatio(num, den decimal.Decimal) (decimal.Decimal, bool) {
	if den.Sign() <= 0 {
		return decimal.Zero, false
	}
	return num.Div(den), true
}

// CAGRPercent returns the compound annual growth rate over years, in
// percent. Undefined for start <= 0 or years <= 0: second return false.
func CAGRPercent(start, end decimal.Decimal, years int) (decimal.Decimal, bool) {
	if years <= 0 || start.Sign() <= 0 || end.Sign() < 0 {
		return decimal.Zero, false
	}
	s, _ := start.Float64()
	e, _ := end.Float64()
	rate := math.Pow(e/s, 1/float64(years)) - 1
	return decimal.NewFromFloat(rate * 100).Round(4), true
}

// ContributionShares divides each group total by the grand total,
// returning percent shares in input order. A zero grand total is
// ErrZeroTotal.
func ContributionShares(totals []decimal.Decimal) ([]decimal.Decimal, error) {
	sum := decimal.Zero
	for _, t := range totals {
		sum = sum.Add(t)
	}
	if sum.Sign() == 0 {
		return nil, ErrZeroTotal
	}
	hundred := decimal.NewFromInt(100)
	shares := make([]decimal.Decimal, len(totals))
	for i, t := range totals {
		shares[i] = t.Div(sum).Mul(hundred)
	}
	return shares, nil
}

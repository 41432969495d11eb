package report

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildTopN_LimitPerDialect(t *testing.T) {
	q := TopNQuery{
		Table:   "aggregated_transactions",
		GroupBy: []string{"state"},
		Metric:  "txn_amount",
		Filters: []string{"year", "quarter"},
		N:       5,
	}

	pg, err := BuildTopN("postgres", q)
	require.NoError(t, err)
	assert.Contains(t, pg, `LIMIT 5`)
	assert.NotContains(t, pg, "TOP")
	assert.Contains(t, pg, `WHERE "year" = ? AND "quarter" = ?`)
	assert.Contains(t, pg, `ORDER BY total DESC`)

	ms, err := BuildTopN("mssql", q)
	require.NoError(t, err)
	assert.Contains(t, ms, `SELECT TOP 5 `)
	assert.NotContains(t, ms, "LIMIT")

	lite, err := BuildTopN("sqlite", q)
	require.NoError(t, err)
	assert.Contains(t, lite, `LIMIT 5`)
}

func TestBuildTopN_AscendingAndMultiGroup(t *testing.T) {
	q, err := BuildTopN("postgres", TopNQuery{
		Table:     "aggregated_transactions",
		GroupBy:   []string{"year", "quarter"},
		Metric:    "txn_amount",
		N:         3,
		Ascending: true,
	})
	require.NoError(t, err)
	assert.Contains(t, q, `GROUP BY "year", "quarter"`)
	assert.Contains(t, q, `ORDER BY total ASC`)
}

func TestBuildTopN_RejectsBadInput(t *testing.T) {
	_, err := BuildTopN("postgres", TopNQuery{Table: "t", GroupBy: []string{"g"}, Metric: "m", N: 0})
	assert.Error(t, err, "non-positive limit")

	_, err = BuildTopN("postgres", TopNQuery{Table: "t; DROP TABLE x", GroupBy: []string{"g"}, Metric: "m", N: 1})
	assert.Error(t, err, "identifier injection")

	_, err = BuildTopN("postgres", TopNQuery{Table: "t", Metric: "m", N: 1})
	assert.Error(t, err, "no group columns")
}

func TestBuildGrowth_GuardsEarlierPeriodInSQL(t *testing.T) {
	q, err := BuildGrowth("postgres", GrowthQuery{
		Table:   "aggregated_transactions",
		GroupBy: "state",
		Metric:  "txn_count",
		Period:  "year",
	})
	require.NoError(t, err)
	assert.Contains(t, q, "WHERE e.total > 0", "rows with no positive earlier sum must be excluded in SQL")
	assert.Equal(t, 2, strings.Count(q, "?"), "one period placeholder per subquery")
}

func TestBuildGrowth_FiltersApplyToBothPeriods(t *testing.T) {
	q, err := BuildGrowth("postgres", GrowthQuery{
		Table:   "map_transaction_hover",
		GroupBy: "district_name",
		Metric:  "amount",
		Period:  "quarter",
		Filters: []string{"year"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(q, `"year" = ?`))
	assert.Equal(t, 2, strings.Count(q, `"quarter" = ?`))
}

func TestBuildRatio_GuardsDenominatorInSQL(t *testing.T) {
	q, err := BuildRatio("postgres", RatioQuery{
		Table:       "map_transaction_hover",
		GroupBy:     "district_name",
		Numerator:   "amount",
		Denominator: "transaction_count",
		Filters:     []string{"year", "quarter"},
	})
	require.NoError(t, err)
	assert.Contains(t, q, `HAVING SUM("transaction_count") > 0`)
}

func TestBuildSpan(t *testing.T) {
	q, err := BuildSpan("postgres", SpanQuery{
		Table:   "aggregated_transactions",
		GroupBy: "state",
		Metric:  "txn_amount",
		Year:    "year",
	})
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(q, `CASE WHEN "year" = ?`))
	assert.Contains(t, q, "start_total")
	assert.Contains(t, q, "end_total")
}

func TestBuildShare(t *testing.T) {
	q, err := BuildShare("postgres", ShareQuery{
		Table:   "aggregated_transactions",
		GroupBy: "state",
		Metric:  "txn_amount",
		Filters: []string{"year"},
	})
	require.NoError(t, err)
	assert.Contains(t, q, `SUM("txn_amount") AS total`)
	assert.Contains(t, q, `WHERE "year" = ?`)
	assert.Contains(t, q, "ORDER BY total DESC")
}

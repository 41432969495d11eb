package report

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"pulsedash/internal/tabular"
)

// Service exposes the fixed reporting scenarios. Each one composes
// exactly one aggregation template over the loaded tables; whatever
// arithmetic SQL cannot guard portably (growth, ratios, CAGR, shares)
// finishes in the pure functions from guards.go.
type Service struct {
	Exec *Executor
}

func NewService(exec *Executor) *Service { return &Service{Exec: exec} }

// TopStatesByAmount ranks states by total transaction amount in one
// period.
func (s *Service) TopStatesByAmount(ctx context.Context, year, quarter, n int) (*tabular.Table, error) {
	t, err := s.Exec.Execute(ctx, func(dialect string) (string, []any, error) {
		q, err := BuildTopN(dialect, TopNQuery{
			Table:   "aggregated_transactions",
			GroupBy: []string{"state"},
			Metric:  "txn_amount",
			Filters: []string{"year", "quarter"},
			N:       n,
		})
		return q, []any{year, quarter}, err
	})
	if err != nil {
		return nil, err
	}
	t.Columns = []string{"state", "total_amount"}
	return t, nil
}

// TopCategoriesByCount ranks transaction categories by count in one
// period.
func (s *Service) TopCategoriesByCount(ctx context.Context, year, quarter, n int) (*tabular.Table, error) {
	t, err := s.Exec.Execute(ctx, func(dialect string) (string, []any, error) {
		q, err := BuildTopN(dialect, TopNQuery{
			Table:   "aggregated_transactions",
			GroupBy: []string{"category"},
			Metric:  "txn_count",
			Filters: []string{"year", "quarter"},
			N:       n,
		})
		return q, []any{year, quarter}, err
	})
	if err != nil {
		return nil, err
	}
	t.Columns = []string{"category", "total_count"}
	return t, nil
}

// StateYearGrowth reports each state's transaction-count growth between
// two years. States with no positive earlier count are excluded.
func (s *Service) StateYearGrowth(ctx context.Context, fromYear, toYear int) (*tabular.Table, error) {
	t, err := s.Exec.Execute(ctx, func(dialect string) (string, []any, error) {
		q, err := BuildGrowth(dialect, GrowthQuery{
			Table:   "aggregated_transactions",
			GroupBy: "state",
			Metric:  "txn_count",
			Period:  "year",
		})
		return q, []any{fromYear, toYear}, err
	})
	if err != nil {
		return nil, err
	}
	return appendGrowth(t, "state")
}

// DistrictQuarterGrowth reports each district's transaction-value growth
// between two quarters of one year.
func (s *Service) DistrictQuarterGrowth(ctx context.Context, year, fromQuarter, toQuarter int) (*tabular.Table, error) {
	t, err := s.Exec.Execute(ctx, func(dialect string) (string, []any, error) {
		q, err := BuildGrowth(dialect, GrowthQuery{
			Table:   "map_transaction_hover",
			GroupBy: "district_name",
			Metric:  "amount",
			Period:  "quarter",
			Filters: []string{"year"},
		})
		return q, []any{year, fromQuarter, year, toQuarter}, err
	})
	if err != nil {
		return nil, err
	}
	return appendGrowth(t, "district")
}

// AverageTicketSize reports amount per transaction by district for one
// period. Districts with no transactions are excluded, not reported as
// zero.
func (s *Service) AverageTicketSize(ctx context.Context, year, quarter int) (*tabular.Table, error) {
	t, err := s.Exec.Execute(ctx, func(dialect string) (string, []any, error) {
		q, err := BuildRatio(dialect, RatioQuery{
			Table:       "map_transaction_hover",
			GroupBy:     "district_name",
			Numerator:   "amount",
			Denominator: "transaction_count",
			Filters:     []string{"year", "quarter"},
		})
		return q, []any{year, quarter}, err
	})
	if err != nil {
		return nil, err
	}
	return appendRatio(t, "district", "avg_ticket_size")
}

// UserEngagement reports app opens per registered user by state for one
// period.
func (s *Service) UserEngagement(ctx context.Context, year, quarter int) (*tabular.Table, error) {
	t, err := s.Exec.Execute(ctx, func(dialect string) (string, []any, error) {
		q, err := BuildRatio(dialect, RatioQuery{
			Table:       "map_user",
			GroupBy:     "state",
			Numerator:   "app_opens",
			Denominator: "registered_users",
			Filters:     []string{"year", "quarter"},
		})
		return q, []any{year, quarter}, err
	})
	if err != nil {
		return nil, err
	}
	return appendRatio(t, "state", "opens_per_user")
}

// StateCAGR reports each state's compound annual growth rate of
// transaction amount between two years. States without a positive
// starting amount are excluded.
func (s *Service) StateCAGR(ctx context.Context, startYear, endYear int) (*tabular.Table, error) {
	years := endYear - startYear
	if years <= 0 {
		return nil, fmt.Errorf("report: cagr span must be positive, got %d..%d", startYear, endYear)
	}
	t, err := s.Exec.Execute(ctx, func(dialect string) (string, []any, error) {
		q, err := BuildSpan(dialect, SpanQuery{
			Table:   "aggregated_transactions",
			GroupBy: "state",
			Metric:  "txn_amount",
			Year:    "year",
		})
		return q, []any{startYear, endYear}, err
	})
	if err != nil {
		return nil, err
	}

	out := &tabular.Table{Columns: []string{"state", "start_amount", "end_amount", "cagr_pct"}}
	for _, row := range t.Rows {
		start, err := toDecimal(row[1])
		if err != nil {
			return nil, err
		}
		end, err := toDecimal(row[2])
		if err != nil {
			return nil, err
		}
		rate, ok := CAGRPercent(start, end, years)
		if !ok {
			continue
		}
		out.Rows = append(out.Rows, []any{row[0], start, end, rate})
	}
	return out, nil
}

// StateContributionShare reports each state's share of the national
// transaction amount for one year.
func (s *Service) StateContributionShare(ctx context.Context, year int) (*tabular.Table, error) {
	t, err := s.Exec.Execute(ctx, func(dialect string) (string, []any, error) {
		q, err := BuildShare(dialect, ShareQuery{
			Table:   "aggregated_transactions",
			GroupBy: "state",
			Metric:  "txn_amount",
			Filters: []string{"year"},
		})
		return q, []any{year}, err
	})
	if err != nil {
		return nil, err
	}

	groups := make([]any, 0, len(t.Rows))
	totals := make([]decimal.Decimal, 0, len(t.Rows))
	for _, row := range t.Rows {
		d, err := toDecimal(row[1])
		if err != nil {
			return nil, err
		}
		groups = append(groups, row[0])
		totals = append(totals, d)
	}
	shares, err := ContributionShares(totals)
	if err != nil {
		return nil, err
	}

	out := &tabular.Table{Columns: []string{"state", "total_amount", "share_pct"}}
	for i := range totals {
		out.Rows = append(out.Rows, []any{groups[i], totals[i], shares[i].Round(4)})
	}
	return out, nil
}

// BottomQuartersByVolume ranks year/quarter periods by total transaction
// amount, smallest first.
func (s *Service) BottomQuartersByVolume(ctx context.Context, n int) (*tabular.Table, error) {
	t, err := s.Exec.Execute(ctx, func(dialect string) (string, []any, error) {
		q, err := BuildTopN(dialect, TopNQuery{
			Table:     "aggregated_transactions",
			GroupBy:   []string{"year", "quarter"},
			Metric:    "txn_amount",
			N:         n,
			Ascending: true,
		})
		return q, nil, err
	})
	if err != nil {
		return nil, err
	}
	t.Columns = []string{"year", "quarter", "total_amount"}
	return t, nil
}

// appendGrowth turns [grp, earlier_total, later_total] rows into
// [group, earlier, later, growth_pct], dropping rows the guard rejects.
func appendGrowth(t *tabular.Table, groupName string) (*tabular.Table, error) {
	out := &tabular.Table{Columns: []string{groupName, "earlier_total", "later_total", "growth_pct"}}
	for _, row := range t.Rows {
		earlier, err := toDecimal(row[1])
		if err != nil {
			return nil, err
		}
		later, err := toDecimal(row[2])
		if err != nil {
			return nil, err
		}
		growth, ok := GrowthPercent(earlier, later)
		if !ok {
			continue
		}
		out.Rows = append(out.Rows, []any{row[0], earlier, later, growth.Round(4)})
	}
	return out, nil
}

// appendRatio turns [grp, num_total, den_total] rows into
// [group, num, den, ratio], dropping rows the guard rejects.
func appendRatio(t *tabular.Table, groupName, ratioName string) (*tabular.Table, error) {
	out := &tabular.Table{Columns: []string{groupName, "numerator", "denominator", ratioName}}
	for _, row := range t.Rows {
		num, err := toDecimal(row[1])
		if err != nil {
			return nil, err
		}
		den, err := toDecimal(row[2])
		if err != nil {
			return nil, err
		}
		ratio, ok := SafeRatio(num, den)
		if !ok {
			continue
		}
		out.Rows = append(out.Rows, []any{row[0], num, den, ratio.Round(4)})
	}
	return out, nil
}

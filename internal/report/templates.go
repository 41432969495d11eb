package report

import (
	"fmt"
	"strings"

	"pulsedash/internal/storage"
)

// The builders below render the five aggregation shapes every report is
// composed from. They are pure string builders: identifiers are validated
// through storage.Ident, values always travel as '?' placeholders (the
// backends rebind them), and the only literal ever embedded is the
// validated row limit, because TOP/LIMIT cannot be parameterized portably
// across all three dialects.

// TopNQuery groups and sums a metric and returns the N largest (or
// smallest) groups.
type TopNQuery struct {
	Table   string
	GroupBy []string
	Metric  string
	// Filters are column names rendered as "col = ?" conjuncts; the
	// caller supplies one arg per filter, in order.
	Filters   []string
	N         int
	Ascending bool
}

func BuildTopN(dialect string, q TopNQuery) (string, error) {
	if q.N <= 0 {
		return "", fmt.Errorf("report: top-n limit must be positive, got %d", q.N)
	}
	if len(q.GroupBy) == 0 {
		return "", fmt.Errorf("report: top-n needs at least one group column")
	}
	qt, err := storage.Ident(q.Table)
	if err != nil {
		return "", err
	}
	groups := make([]string, len(q.GroupBy))
	for i, g := range q.GroupBy {
		if groups[i], err = storage.Ident(g); err != nil {
			return "", err
		}
	}
	qm, err := storage.Ident(q.Metric)
	if err != nil {
		return "", err
	}
	where, err := whereClause(q.Filters)
	if err != nil {
		return "", err
	}

	dir := "DESC"
	if q.Ascending {
		dir = "ASC"
	}

	var b strings.Builder
	b.WriteString("SELECT ")
	if dialect == "mssql" {
		fmt.Fprintf(&b, "TOP %d ", q.N)
	}
	fmt.Fprintf(&b, "%s, SUM(%s) AS total FROM %s%s GROUP BY %s ORDER BY total %s",
		strings.Join(groups, ", "), qm, qt, where, strings.Join(groups, ", "), dir)
	if dialect != "mssql" {
		fmt.Fprintf(&b, " LIMIT %d", q.N)
	}
	return b.String(), nil
}

// GrowthQuery joins a group's metric sum in two periods. Rows whose
// earlier sum is not positive are excluded here, in the WHERE guard, so
// no caller can divide by zero or report growth from nothing.
//
// Args: the earlier subquery's filters then its period value, followed by
// the later subquery's filters then its period value.
type GrowthQuery struct {
	Table   string
	GroupBy string
	Metric  string
	Period  string
	Filters []string
}

func BuildGrowth(dialect string, q GrowthQuery) (string, error) {
	qt, err := storage.Ident(q.Table)
	if err != nil {
		return "", err
	}
	qg, err := storage.Ident(q.GroupBy)
	if err != nil {
		return "", err
	}
	qm, err := storage.Ident(q.Metric)
	if err != nil {
		return "", err
	}
	conjuncts := make([]string, 0, len(q.Filters)+1)
	conjuncts = append(conjuncts, q.Filters...)
	conjuncts = append(conjuncts, q.Period)
	where, err := whereClause(conjuncts)
	if err != nil {
		return "", err
	}

	sub := fmt.Sprintf("SELECT %s AS grp, SUM(%s) AS total FROM %s%s GROUP BY %s", qg, qm, qt, where, qg)
	return fmt.Sprintf(
		"SELECT e.grp, e.total AS earlier_total, l.total AS later_total FROM (%s) e JOIN (%s) l ON e.grp = l.grp WHERE e.total > 0 ORDER BY e.grp",
		sub, sub), nil
}

// RatioQuery sums a numerator and denominator per group. Groups whose
// denominator sum is not positive are excluded by the HAVING guard.
type RatioQuery struct {
	Table       string
	GroupBy     string
	Numerator   string
	Denominator string
	Filters     []string
}

func BuildRatio(dialect string, q RatioQuery) (string, error) {
	qt, err := storage.Ident(q.Table)
	if err != nil {
		return "", err
	}
	qg, err := storage.Ident(q.GroupBy)
	if err != nil {
		return "", err
	}
	qn, err := storage.Ident(q.Numerator)
	if err != nil {
		return "", err
	}
	qd, err := storage.Ident(q.Denominator)
	if err != nil {
		return "", err
	}
	where, err := whereClause(q.Filters)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(
		"SELECT %s AS grp, SUM(%s) AS num_total, SUM(%s) AS den_total FROM %s%s GROUP BY %s HAVING SUM(%s) > 0 ORDER BY grp",
		qg, qn, qd, qt, where, qg, qd), nil
}

// SpanQuery fetches each group's metric sum in a start year and an end
// year in one pass. Args: the two year values, then any filters.
type SpanQuery struct {
	Table   string
	GroupBy string
	Metric  string
	Year    string
	Filters []string
}

func BuildSpan(dialect string, q SpanQuery) (string, error) {
	qt, err := storage.Ident(q.Table)
	if err != nil {
		return "", err
	}
	qg, err := storage.Ident(q.GroupBy)
	if err != nil {
		return "", err
	}
	qm, err := storage.Ident(q.Metric)
	if err != nil {
		return "", err
	}
	qy, err := storage.Ident(q.Year)
	if err != nil {
		return "", err
	}
	where, err := whereClause(q.Filters)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(
		"SELECT %s AS grp, SUM(CASE WHEN %s = ? THEN %s ELSE 0 END) AS start_total, SUM(CASE WHEN %s = ? THEN %s ELSE 0 END) AS end_total FROM %s%s GROUP BY %s ORDER BY grp",
		qg, qy, qm, qy, qm, qt, where, qg), nil
}

// ShareQuery sums a metric per group; the caller divides each group by
// the grand total in Go (ContributionShares), where the zero-total case
// is handled explicitly.
type ShareQuery struct {
	Table   string
	GroupBy string
	Metric  string
	Filters []string
}

func BuildShare(dialect string, q ShareQuery) (string, error) {
	qt, err := storage.Ident(q.Table)
	if err != nil {
		return "", err
	}
	qg, err := storage.Ident(q.GroupBy)
	if err != nil {
		return "", err
	}
	qm, err := storage.Ident(q.Metric)
	if err != nil {
		return "", err
	}
	where, err := whereClause(q.Filters)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf(
		"SELECT %s AS grp, SUM(%s) AS total FROM %s%s GROUP BY %s ORDER BY total DESC",
		qg, qm, qt, where, qg), nil
}

func whereClause(filters []string) (string, error) {
	if len(filters) == 0 {
		return "", nil
	}
	parts := make([]string, len(filters))
	for i, f := range filters {
		qf, err := storage.Ident(f)
		if err != nil {
			return "", err
		}
		parts[i] = qf + " = ?"
	}
	return " WHERE " + strings.Join(parts, " AND "), nil
}

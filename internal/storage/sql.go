package storage

import (
	"fmt"
	"strings"

	"pulsedash/internal/tabular"
)

// Ident validates that name is a canonical identifier (the Table Cleaner's
// output form) and returns it double-quoted. Anything else is rejected so
// table and column names can never smuggle SQL.
func Ident(name string) (string, error) {
	if name == "" {
		return "", fmt.Errorf("storage: empty identifier")
	}
	for i, r := range name {
		switch {
		case r >= 'a' && r <= 'z':
		case r == '_':
		case r >= '0' && r <= '9':
			if i == 0 {
				return "", fmt.Errorf("storage: identifier %q starts with a digit", name)
			}
		default:
			return "", fmt.Errorf("storage: identifier %q contains %q", name, r)
		}
	}
	return `"` + name + `"`, nil
}

// MustIdent is Ident for names already produced by the cleaner, where a
// failure is a programming error.
func MustIdent(name string) string {
	q, err := Ident(name)
	if err != nil {
		panic(err)
	}
	return q
}

// Rebind converts portable '?' placeholders into the dialect's native
// style: $1..$n for postgres, @p1..@pN for mssql, unchanged for sqlite.
// Quoted strings are left alone; builders never embed literals, so a
// simple scan is sufficient — but staying out of quotes keeps Rebind safe
// for hand-written report SQL too.
func Rebind(dialect, query string) string {
	var prefix string
	switch dialect {
	case "postgres":
		prefix = "$"
	case "mssql":
		prefix = "@p"
	default:
		return query
	}

	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	inQuote := false
	for _, r := range query {
		switch {
		case r == '\'':
			inQuote = !inQuote
			b.WriteRune(r)
		case r == '?' && !inQuote:
			n++
			fmt.Fprintf(&b, "%s%d", prefix, n)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

// BuildCreateTableSQL renders idempotent DDL for a destination table from
// an inferred schema. Pure, so DDL generation is testable without a
// database; typeFor maps the inferred kind to the backend's type name.
func BuildCreateTableSQL(table string, columns []tabular.Column, typeFor func(tabular.Kind) string) (string, error) {
	qt, err := Ident(table)
	if err != nil {
		return "", err
	}
	if len(columns) == 0 {
		return "", fmt.Errorf("storage: create table %s: no columns", table)
	}

	parts := make([]string, 0, len(columns))
	for _, c := range columns {
		qc, err := Ident(c.Name)
		if err != nil {
			return "", fmt.Errorf("storage: create table %s: %w", table, err)
		}
		parts = append(parts, qc+" "+typeFor(c.Kind))
	}

	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n)", qt, strings.Join(parts, ",\n  ")), nil
}

// MaxRowsPerInsert returns how many rows fit in one multi-row INSERT
// without the bound-parameter count (rows * columns) exceeding the
// backend's limit. Always at least 1, so a very wide table still loads
// one row per statement instead of failing.
func MaxRowsPerInsert(columns, maxParams int) int {
	if columns <= 0 {
		return 1
	}
	n := maxParams / columns
	if n < 1 {
		return 1
	}
	return n
}

// BuildInsertSQL renders one multi-row INSERT with '?' placeholders and
// its flattened args. Callers rebind per dialect.
func BuildInsertSQL(table string, columns []string, rows [][]any) (string, []any, error) {
	qt, err := Ident(table)
	if err != nil {
		return "", nil, err
	}
	if len(columns) == 0 || len(rows) == 0 {
		return "", nil, fmt.Errorf("storage: insert into %s: empty columns or rows", table)
	}

	var b strings.Builder
	b.WriteString("INSERT INTO ")
	b.WriteString(qt)
	b.WriteString(" (")
	for i, c := range columns {
		if i > 0 {
			b.WriteString(", ")
		}
		qc, err := Ident(c)
		if err != nil {
			return "", nil, fmt.Errorf("storage: insert into %s: %w", table, err)
		}
		b.WriteString(qc)
	}
	b.WriteString(") VALUES ")

	placeholder := "(" + strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ") + ")"
	args := make([]any, 0, len(rows)*len(columns))
	for i, row := range rows {
		if len(row) != len(columns) {
			return "", nil, fmt.Errorf("storage: insert into %s: row %d has %d values, want %d", table, i, len(row), len(columns))
		}
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(placeholder)
		args = append(args, row...)
	}
	return b.String(), args, nil
}

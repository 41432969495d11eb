// Package audit persists the per-dataset artifacts operators inspect
// offline: a full CSV snapshot of the cleaned table, a plain-text
// null-count report, and optionally a workbook summarizing the whole run.
package audit

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/shopspring/decimal"

	"pulsedash/internal/tabular"
)

// Writer holds the two artifact directories. Creating them is the
// caller's responsibility, once at process start; a missing directory
// surfaces as a write error here, never silently.
type Writer struct {
	CSVDir    string
	ReportDir string
}

// NullCount is one line of the null summary.
type NullCount struct {
	Column string
	Count  int
}

// Write serializes the table to {name}.csv and its null summary to
// {name}__null_summary.txt, overwriting prior artifacts of the same
// name. It returns the CSV path for logging.
func (w Writer) Write(t tabular.Table, name string) (string, error) {
	csvPath := filepath.Join(w.CSVDir, name+".csv")
	if err := writeCSV(csvPath, t); err != nil {
		return "", fmt.Errorf("audit: csv for %s: %w", name, err)
	}

	reportPath := filepath.Join(w.ReportDir, name+"__null_summary.txt")
	if err := writeNullSummary(reportPath, name, NullCounts(t)); err != nil {
		return "", fmt.Errorf("audit: null summary for %s: %w", name, err)
	}
	return csvPath, nil
}

// NullCounts tallies nil cells per column, in column order.
func NullCounts(t tabular.Table) []NullCount {
	out := make([]NullCount, len(t.Columns))
	for i, c := range t.Columns {
		out[i].Column = c
	}
	for _, row := range t.Rows {
		for i, v := range row {
			if v == nil {
				out[i].Count++
			}
		}
	}
	return out
}

func writeCSV(path string, t tabular.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	cw := csv.NewWriter(f)
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	rec := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, v := range row {
			rec[i] = cellString(v)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return err
	}
	return f.Close()
}

func writeNullSummary(path, name string, counts []NullCount) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "Null Values Summary for table: %s\n", name); err != nil {
		return err
	}
	for _, c := range counts {
		if _, err := fmt.Fprintf(f, "%s  %d\n", c.Column, c.Count); err != nil {
			return err
		}
	}
	return f.Close()
}

// cellString renders a cell for CSV: nulls become empty fields, decimals
// keep their exact text form.
func cellString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		return strconv.FormatBool(t)
	case decimal.Decimal:
		return t.String()
	default:
		return fmt.Sprint(t)
	}
}

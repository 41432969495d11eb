package audit

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"pulsedash/internal/tabular"
)

func sample() tabular.Table {
	return tabular.Table{
		Columns: []string{"state", "txn_count"},
		Rows: [][]any{
			{"karnataka", decimal.NewFromInt(10)},
			{nil, decimal.NewFromInt(3)},
			{"kerala", nil},
		},
	}
}

func TestNullCounts(t *testing.T) {
	got := NullCounts(sample())
	if got[0].Column != "state" || got[0].Count != 1 {
		t.Fatalf("state nulls = %+v", got[0])
	}
	if got[1].Column != "txn_count" || got[1].Count != 1 {
		t.Fatalf("txn_count nulls = %+v", got[1])
	}
}

func TestWrite_Artifacts(t *testing.T) {
	dir := t.TempDir()
	w := Writer{CSVDir: dir, ReportDir: dir}

	csvPath, err := w.Write(sample(), "aggregated_transactions")
	if err != nil {
		t.Fatalf("Write: %v", err)
	}
	if csvPath != filepath.Join(dir, "aggregated_transactions.csv") {
		t.Fatalf("csv path = %s", csvPath)
	}

	raw, err := os.ReadFile(csvPath)
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) != 4 {
		t.Fatalf("csv lines = %d, want header + 3 rows", len(lines))
	}
	if lines[0] != "state,txn_count" {
		t.Fatalf("header = %q", lines[0])
	}
	if lines[2] != ",3" {
		t.Fatalf("null cell must serialize empty: %q", lines[2])
	}

	report, err := os.ReadFile(filepath.Join(dir, "aggregated_transactions__null_summary.txt"))
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	text := string(report)
	if !strings.HasPrefix(text, "Null Values Summary for table: aggregated_transactions\n") {
		t.Fatalf("report header missing:\n%s", text)
	}
	if !strings.Contains(text, "state  1") || !strings.Contains(text, "txn_count  1") {
		t.Fatalf("report counts missing:\n%s", text)
	}
}

func TestWrite_OverwritesPriorArtifacts(t *testing.T) {
	dir := t.TempDir()
	w := Writer{CSVDir: dir, ReportDir: dir}

	if _, err := w.Write(sample(), "t"); err != nil {
		t.Fatalf("first write: %v", err)
	}
	small := tabular.Table{Columns: []string{"a"}, Rows: [][]any{{"x"}}}
	if _, err := w.Write(small, "t"); err != nil {
		t.Fatalf("second write: %v", err)
	}

	raw, _ := os.ReadFile(filepath.Join(dir, "t.csv"))
	if strings.Contains(string(raw), "karnataka") {
		t.Fatal("second write did not overwrite the first")
	}
}

func TestWrite_MissingDirPropagates(t *testing.T) {
	w := Writer{CSVDir: filepath.Join(t.TempDir(), "absent"), ReportDir: t.TempDir()}
	if _, err := w.Write(sample(), "t"); err == nil {
		t.Fatal("expected error for missing csv dir")
	}
}

func TestWorkbook_Save(t *testing.T) {
	wb := NewWorkbook()
	wb.Add("aggregated_transactions", []NullCount{{Column: "state", Count: 2}})
	wb.Add("map_user", []NullCount{{Column: "district", Count: 0}})

	path := filepath.Join(t.TempDir(), "audit_workbook.xlsx")
	if err := wb.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("workbook not written: %v", err)
	}
}

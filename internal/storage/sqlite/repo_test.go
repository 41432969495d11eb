package sqlite

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"pulsedash/internal/storage"
	"pulsedash/internal/tabular"
)

func openTestRepo(t *testing.T) storage.Repository {
	t.Helper()
	repo, err := New(context.Background(), storage.Config{
		Kind: "sqlite",
		DSN:  "file:" + filepath.Join(t.TempDir(), "load.db"),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(repo.Close)
	return repo
}

// A full default-size batch of a multi-column table must land in one
// InsertRows call even though rows x columns is far beyond the driver's
// bound-variable limit.
func TestInsertRows_DefaultBatchSizeManyColumns(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	cols := []tabular.Column{
		{Name: "state", Kind: tabular.KindText},
		{Name: "district", Kind: tabular.KindText},
		{Name: "year", Kind: tabular.KindNumeric},
		{Name: "amount", Kind: tabular.KindNumeric},
	}
	if err := repo.EnsureTable(ctx, "map_transaction_hover", cols); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}

	const total = 10000
	names := []string{"state", "district", "year", "amount"}
	rows := make([][]any, total)
	for i := range rows {
		rows[i] = []any{
			"karnataka",
			fmt.Sprintf("district_%d", i%30),
			decimal.NewFromInt(2023),
			decimal.NewFromInt(int64(i)),
		}
	}

	n, err := repo.InsertRows(ctx, "map_transaction_hover", names, rows)
	if err != nil {
		t.Fatalf("InsertRows: %v", err)
	}
	if n != total {
		t.Fatalf("written = %d, want %d", n, total)
	}
	count, err := repo.Count(ctx, "map_transaction_hover")
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != total {
		t.Fatalf("count = %d, want %d", count, total)
	}
}

func TestInsertRows_RoundTripsThroughQuery(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	cols := []tabular.Column{
		{Name: "state", Kind: tabular.KindText},
		{Name: "txn_amount", Kind: tabular.KindNumeric},
	}
	if err := repo.EnsureTable(ctx, "aggregated_transactions", cols); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}
	_, err := repo.InsertRows(ctx, "aggregated_transactions", []string{"state", "txn_amount"}, [][]any{
		{"karnataka", decimal.NewFromInt(70)},
		{"kerala", decimal.NewFromInt(30)},
	})
	if err != nil {
		t.Fatalf("InsertRows: %v", err)
	}

	got, err := repo.Query(ctx, `SELECT "state", SUM("txn_amount") AS total FROM "aggregated_transactions" GROUP BY "state" ORDER BY total DESC`)
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if got.NumRows() != 2 {
		t.Fatalf("rows = %d, want 2", got.NumRows())
	}
	if got.Rows[0][0] != "karnataka" {
		t.Fatalf("first row = %v", got.Rows[0])
	}
}

func TestTruncate(t *testing.T) {
	ctx := context.Background()
	repo := openTestRepo(t)

	cols := []tabular.Column{{Name: "a", Kind: tabular.KindText}}
	if err := repo.EnsureTable(ctx, "t", cols); err != nil {
		t.Fatalf("EnsureTable: %v", err)
	}
	if _, err := repo.InsertRows(ctx, "t", []string{"a"}, [][]any{{"x"}, {"y"}}); err != nil {
		t.Fatalf("InsertRows: %v", err)
	}
	if err := repo.Truncate(ctx, "t"); err != nil {
		t.Fatalf("Truncate: %v", err)
	}
	count, err := repo.Count(ctx, "t")
	if err != nil {
		t.Fatalf("Count: %v", err)
	}
	if count != 0 {
		t.Fatalf("count after truncate = %d, want 0", count)
	}
}

package storage

import (
	"context"
	"errors"
	"strings"
	"testing"

	"pulsedash/internal/tabular"
)

func TestIdent(t *testing.T) {
	if q, err := Ident("txn_amount"); err != nil || q != `"txn_amount"` {
		t.Fatalf("Ident = %q, %v", q, err)
	}
	for _, bad := range []string{"", "1abc", "a-b", `a"b`, "A", "a b", "t;drop"} {
		if _, err := Ident(bad); err == nil {
			t.Errorf("Ident(%q): expected error", bad)
		}
	}
}

func TestRebind(t *testing.T) {
	q := "SELECT * FROM t WHERE a = ? AND b = ? AND c = '?'"
	if got := Rebind("sqlite", q); got != q {
		t.Fatalf("sqlite rebind changed query: %q", got)
	}
	if got := Rebind("postgres", q); got != "SELECT * FROM t WHERE a = $1 AND b = $2 AND c = '?'" {
		t.Fatalf("postgres rebind = %q", got)
	}
	if got := Rebind("mssql", q); got != "SELECT * FROM t WHERE a = @p1 AND b = @p2 AND c = '?'" {
		t.Fatalf("mssql rebind = %q", got)
	}
}

func TestBuildCreateTableSQL(t *testing.T) {
	cols := []tabular.Column{
		{Name: "state", Kind: tabular.KindText},
		{Name: "txn_count", Kind: tabular.KindNumeric},
		{Name: "active", Kind: tabular.KindBool},
	}
	typeFor := func(k tabular.Kind) string {
		switch k {
		case tabular.KindNumeric:
			return "NUMERIC"
		case tabular.KindBool:
			return "BOOLEAN"
		default:
			return "TEXT"
		}
	}

	sql, err := BuildCreateTableSQL("aggregated_transactions", cols, typeFor)
	if err != nil {
		t.Fatalf("BuildCreateTableSQL: %v", err)
	}
	for _, want := range []string{
		`CREATE TABLE IF NOT EXISTS "aggregated_transactions"`,
		`"state" TEXT`,
		`"txn_count" NUMERIC`,
		`"active" BOOLEAN`,
	} {
		if !strings.Contains(sql, want) {
			t.Errorf("DDL missing %q:\n%s", want, sql)
		}
	}

	if _, err := BuildCreateTableSQL("bad name", cols, typeFor); err == nil {
		t.Fatal("expected error for invalid table name")
	}
	if _, err := BuildCreateTableSQL("t", nil, typeFor); err == nil {
		t.Fatal("expected error for zero columns")
	}
}

func TestMaxRowsPerInsert(t *testing.T) {
	cases := []struct {
		columns, maxParams, want int
	}{
		{4, 32000, 8000},
		{7, 65000, 9285},
		{4, 2000, 500},
		{3000, 2000, 1}, // wider than the limit still loads row by row
		{0, 2000, 1},
	}
	for _, c := range cases {
		if got := MaxRowsPerInsert(c.columns, c.maxParams); got != c.want {
			t.Errorf("MaxRowsPerInsert(%d, %d) = %d, want %d", c.columns, c.maxParams, got, c.want)
		}
		if got := MaxRowsPerInsert(c.columns, c.maxParams); c.columns > 0 && got*c.columns > c.maxParams && got != 1 {
			t.Errorf("MaxRowsPerInsert(%d, %d) = %d rows exceeds the parameter limit", c.columns, c.maxParams, got)
		}
	}
}

func TestBuildInsertSQL(t *testing.T) {
	sql, args, err := BuildInsertSQL("t", []string{"a", "b"}, [][]any{{1, 2}, {3, 4}})
	if err != nil {
		t.Fatalf("BuildInsertSQL: %v", err)
	}
	want := `INSERT INTO "t" ("a", "b") VALUES (?, ?), (?, ?)`
	if sql != want {
		t.Fatalf("sql = %q, want %q", sql, want)
	}
	if len(args) != 4 || args[0] != 1 || args[3] != 4 {
		t.Fatalf("args = %v", args)
	}

	if _, _, err := BuildInsertSQL("t", []string{"a"}, [][]any{{1, 2}}); err == nil {
		t.Fatal("expected error for ragged row")
	}
}

type stubRepo struct{ Repository }

func TestResolve_FallsBackToSecondary(t *testing.T) {
	orig := open
	defer func() { open = orig }()

	primaryErr := errors.New("connection refused")
	open = func(ctx context.Context, cfg Config) (Repository, error) {
		if cfg.Kind == "postgres" {
			return nil, primaryErr
		}
		return stubRepo{}, nil
	}

	repo, target, err := Resolve(context.Background(),
		Config{Kind: "postgres", DSN: "x"},
		Config{Kind: "sqlite", DSN: "y"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if repo == nil || target != "secondary" {
		t.Fatalf("target = %q, want secondary", target)
	}
}

func TestResolve_PrimaryPreferred(t *testing.T) {
	orig := open
	defer func() { open = orig }()

	open = func(ctx context.Context, cfg Config) (Repository, error) {
		return stubRepo{}, nil
	}

	_, target, err := Resolve(context.Background(), Config{Kind: "postgres"}, Config{Kind: "sqlite"})
	if err != nil || target != "primary" {
		t.Fatalf("target = %q, err = %v; want primary", target, err)
	}
}

func TestResolve_BothFailing(t *testing.T) {
	orig := open
	defer func() { open = orig }()

	open = func(ctx context.Context, cfg Config) (Repository, error) {
		return nil, errors.New("down")
	}

	_, _, err := Resolve(context.Background(), Config{Kind: "postgres"}, Config{Kind: "sqlite"})
	if !errors.Is(err, ErrAllTargetsFailed) {
		t.Fatalf("err = %v, want ErrAllTargetsFailed", err)
	}
}

func TestResolve_IndependentCalls(t *testing.T) {
	orig := open
	defer func() { open = orig }()

	calls := 0
	open = func(ctx context.Context, cfg Config) (Repository, error) {
		calls++
		if cfg.Kind == "postgres" && calls > 2 {
			// Primary recovers for the second resolution.
			return stubRepo{}, nil
		}
		if cfg.Kind == "postgres" {
			return nil, errors.New("down")
		}
		return stubRepo{}, nil
	}

	_, target, _ := Resolve(context.Background(), Config{Kind: "postgres"}, Config{Kind: "sqlite"})
	if target != "secondary" {
		t.Fatalf("first call target = %q", target)
	}
	// A later call must re-attempt the primary; no failure memory.
	_, target, _ = Resolve(context.Background(), Config{Kind: "postgres"}, Config{Kind: "sqlite"})
	if target != "primary" {
		t.Fatalf("second call target = %q, want primary", target)
	}
}

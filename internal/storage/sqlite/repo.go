// Package sqlite implements storage.Repository for SQLite via the
// cgo-free modernc driver. It backs the durable local secondary target,
// so a load run still lands somewhere when the cloud primary is down.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"pulsedash/internal/storage"
	"pulsedash/internal/tabular"
)

type Repo struct {
	db *sql.DB
}

func init() {
	storage.Register("sqlite", New)
}

func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Repo{db: db}, nil
}

func (r *Repo) Close()          { _ = r.db.Close() }
func (r *Repo) Dialect() string { return "sqlite" }

func (r *Repo) EnsureTable(ctx context.Context, table string, columns []tabular.Column) error {
	ddl, err := storage.BuildCreateTableSQL(table, columns, sqliteType)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("sqlite: create table %s: %w", table, err)
	}
	return nil
}

// maxParams stays under SQLITE_MAX_VARIABLE_NUMBER (32766 in modernc).
const maxParams = 32000

// InsertRows appends the batch, splitting it across statements so the
// bound-variable count never exceeds the driver's limit.
func (r *Repo) InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	limit := storage.MaxRowsPerInsert(len(columns), maxParams)

	var written int64
	for start := 0; start < len(rows); start += limit {
		end := start + limit
		if end > len(rows) {
			end = len(rows)
		}
		q, args, err := storage.BuildInsertSQL(table, columns, rows[start:end])
		if err != nil {
			return written, err
		}
		res, err := r.db.ExecContext(ctx, q, args...)
		if err != nil {
			return written, fmt.Errorf("sqlite: insert into %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		written += n
	}
	return written, nil
}

// Truncate deletes all rows. SQLite has no TRUNCATE statement; an
// unqualified DELETE takes the same fast path internally.
func (r *Repo) Truncate(ctx context.Context, table string) error {
	qt, err := storage.Ident(table)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, "DELETE FROM "+qt); err != nil {
		return fmt.Errorf("sqlite: truncate %s: %w", table, err)
	}
	return nil
}

func (r *Repo) Count(ctx context.Context, table string) (int64, error) {
	qt, err := storage.Ident(table)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+qt).Scan(&n); err != nil {
		return 0, fmt.Errorf("sqlite: count %s: %w", table, err)
	}
	return n, nil
}

func (r *Repo) Query(ctx context.Context, query string, args ...any) (*tabular.Table, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: query: %w", err)
	}
	defer rows.Close()
	return scanAll(rows)
}

// scanAll materializes a database/sql result, mapping TEXT scanned as
// []byte back to string.
func scanAll(rows *sql.Rows) (*tabular.Table, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := &tabular.Table{Columns: cols}
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		out.Rows = append(out.Rows, vals)
	}
	return out, rows.Err()
}

func sqliteType(k tabular.Kind) string {
	switch k {
	case tabular.KindNumeric:
		return "NUMERIC"
	case tabular.KindBool:
		return "BOOLEAN"
	default:
		return "TEXT"
	}
}

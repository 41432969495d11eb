// Package postgres implements storage.Repository for PostgreSQL, the
// cloud-hosted primary target.
package postgres

import (
	"context"
	"database/sql/driver"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"pulsedash/internal/storage"
	"pulsedash/internal/tabular"
)

type Repo struct {
	pool *pgxpool.Pool
}

func init() {
	storage.Register("postgres", New)
}

// New opens a pgx pool and verifies connectivity. A primary that cannot
// be pinged must fail here so the resolver can fall back.
func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return &Repo{pool: pool}, nil
}

func (r *Repo) Close()          { r.pool.Close() }
func (r *Repo) Dialect() string { return "postgres" }

func (r *Repo) EnsureTable(ctx context.Context, table string, columns []tabular.Column) error {
	ddl, err := storage.BuildCreateTableSQL(table, columns, pgType)
	if err != nil {
		return err
	}
	if _, err := r.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("postgres: create table %s: %w", table, err)
	}
	return nil
}

// maxParams stays under the extended-protocol cap of 65535 bind
// parameters per statement.
const maxParams = 65000

// InsertRows appends the batch, splitting it across statements so the
// bind-parameter count never exceeds the protocol cap.
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
		cmd, err := r.pool.Exec(ctx, storage.Rebind("postgres", q), args...)
		if err != nil {
			return written, fmt.Errorf("postgres: insert into %s: %w", table, err)
		}
		written += cmd.RowsAffected()
	}
	return written, nil
}

func (r *Repo) Truncate(ctx context.Context, table string) error {
	qt, err := storage.Ident(table)
	if err != nil {
		return err
	}
	if _, err := r.pool.Exec(ctx, "TRUNCATE TABLE "+qt); err != nil {
		return fmt.Errorf("postgres: truncate %s: %w", table, err)
	}
	return nil
}

func (r *Repo) Count(ctx context.Context, table string) (int64, error) {
	qt, err := storage.Ident(table)
	if err != nil {
		return 0, err
	}
	var n int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM "+qt).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count %s: %w", table, err)
	}
	return n, nil
}

func (r *Repo) Query(ctx context.Context, query string, args ...any) (*tabular.Table, error) {
	rows, err := r.pool.Query(ctx, storage.Rebind("postgres", query), args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: query: %w", err)
	}
	defer rows.Close()

	fds := rows.FieldDescriptions()
	out := &tabular.Table{Columns: make([]string, len(fds))}
	for i, fd := range fds {
		out.Columns[i] = fd.Name
	}

	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("postgres: scan: %w", err)
		}
		row := make([]any, len(vals))
		for i, v := range vals {
			row[i] = normalizeValue(v)
		}
		out.Rows = append(out.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: query: %w", err)
	}
	return out, nil
}

// normalizeValue unwraps pgx composite value types (pgtype.Numeric and
// friends implement driver.Valuer) so report code sees plain scalars.
func normalizeValue(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case driver.Valuer:
		dv, err := t.Value()
		if err != nil {
			return v
		}
		return normalizeValue(dv)
	default:
		return v
	}
}

func pgType(k tabular.Kind) string {
	switch k {
	case tabular.KindNumeric:
		return "NUMERIC"
	case tabular.KindBool:
		return "BOOLEAN"
	default:
		return "TEXT"
	}
}

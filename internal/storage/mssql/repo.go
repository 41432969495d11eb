// Package mssql implements storage.Repository for Microsoft SQL Server.
// Neither default target uses it, but either can be configured to
// (kind: mssql) without touching the pipeline.
package mssql

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/microsoft/go-mssqldb"

	"pulsedash/internal/storage"
	"pulsedash/internal/tabular"
)

type Repo struct {
	db *sql.DB
}

func init() {
	storage.Register("mssql", New)
}

func New(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
	db, err := sql.Open("sqlserver", cfg.DSN)
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
func (r *Repo) Dialect() string { return "mssql" }

// EnsureTable creates the table if absent. SQL Server has no
// CREATE TABLE IF NOT EXISTS, so the DDL is wrapped in an OBJECT_ID
// guard.
func (r *Repo) EnsureTable(ctx context.Context, table string, columns []tabular.Column) error {
	ddl, err := storage.BuildCreateTableSQL(table, columns, mssqlType)
	if err != nil {
		return err
	}
	// Strip the portable IF NOT EXISTS; guard with OBJECT_ID instead.
	ddl = "IF OBJECT_ID(N'" + table + "', N'U') IS NULL\n" +
		"EXEC(N'" + escapeSingle(replaceIfNotExists(ddl)) + "')"
	if _, err := r.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("mssql: create table %s: %w", table, err)
	}
	return nil
}

func replaceIfNotExists(ddl string) string {
	const portable = "CREATE TABLE IF NOT EXISTS "
	if len(ddl) > len(portable) && ddl[:len(portable)] == portable {
		return "CREATE TABLE " + ddl[len(portable):]
	}
	return ddl
}

func escapeSingle(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\'' {
			out = append(out, '\'')
		}
		out = append(out, s[i])
	}
	return string(out)
}

// maxParams stays under SQL Server's 2100-parameter request limit.
const maxParams = 2000

// InsertRows appends the batch, splitting it across statements so the
// parameter count never exceeds the server's request limit.
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
		res, err := r.db.ExecContext(ctx, storage.Rebind("mssql", q), args...)
		if err != nil {
			return written, fmt.Errorf("mssql: insert into %s: %w", table, err)
		}
		n, _ := res.RowsAffected()
		written += n
	}
	return written, nil
}

func (r *Repo) Truncate(ctx context.Context, table string) error {
	qt, err := storage.Ident(table)
	if err != nil {
		return err
	}
	if _, err := r.db.ExecContext(ctx, "TRUNCATE TABLE "+qt); err != nil {
		return fmt.Errorf("mssql: truncate %s: %w", table, err)
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
		return 0, fmt.Errorf("mssql: count %s: %w", table, err)
	}
	return n, nil
}

func (r *Repo) Query(ctx context.Context, query string, args ...any) (*tabular.Table, error) {
	rows, err := r.db.QueryContext(ctx, storage.Rebind("mssql", query), args...)
	if err != nil {
		return nil, fmt.Errorf("mssql: query: %w", err)
	}
	defer rows.Close()

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

func mssqlType(k tabular.Kind) string {
	switch k {
	case tabular.KindNumeric:
		return "DECIMAL(38, 9)"
	case tabular.KindBool:
		return "BIT"
	default:
		return "NVARCHAR(MAX)"
	}
}

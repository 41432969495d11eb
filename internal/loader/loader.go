// Package loader appends a cleaned table into a destination store in
// batches, creating the table with an inferred schema on first write.
package loader

import (
	"context"
	"fmt"

	"pulsedash/internal/storage"
	"pulsedash/internal/tabular"
)

// DefaultBatchSize bounds the rows per INSERT round-trip.
const DefaultBatchSize = 10000

type Options struct {
	// BatchSize <= 0 falls back to DefaultBatchSize.
	BatchSize int
	// Truncate clears the destination before the first append. Off by
	// default; repeated runs then accumulate duplicate rows.
	Truncate bool
}

// Load writes t into the named destination table.
//
// Semantics:
//   - empty table: no-op, no DDL, no error
//   - missing destination: created from the inferred schema
//   - existing destination: rows appended, no dedupe or conflict checks
//   - mid-write failure: returned as-is; rows from completed batches stay
func Load(ctx context.Context, repo storage.Repository, t tabular.Table, table string, opts Options) (int64, error) {
	if t.Empty() {
		return 0, nil
	}

	if err := repo.EnsureTable(ctx, table, tabular.InferSchema(t)); err != nil {
		return 0, err
	}
	if opts.Truncate {
		if err := repo.Truncate(ctx, table); err != nil {
			return 0, err
		}
	}

	batch := opts.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}

	var written int64
	for start := 0; start < len(t.Rows); start += batch {
		end := start + batch
		if end > len(t.Rows) {
			end = len(t.Rows)
		}
		n, err := repo.InsertRows(ctx, table, t.Columns, t.Rows[start:end])
		if err != nil {
			return written, fmt.Errorf("loader: %s rows %d-%d: %w", table, start, end, err)
		}
		written += n
	}
	return written, nil
}

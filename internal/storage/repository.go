// Package storage defines the backend-agnostic repository used by both
// sides of the pipeline: the loader appends tables into it and the report
// layer reads aggregates back out of it.
//
// Concrete backends (postgres, sqlite, mssql) register themselves from
// init() and are selected by Config.Kind, so neither the loader nor the
// report layer imports a driver.
package storage

import (
	"context"
	"fmt"
	"sync"

	"pulsedash/internal/tabular"
)

// Config selects and addresses one destination store.
type Config struct {
	Kind string `mapstructure:"kind"`
	DSN  string `mapstructure:"dsn"`
}

// Repository is the minimal surface the pipeline needs from a destination
// store. Appends are additive: nothing here deduplicates, and re-loading
// the same data duplicates rows unless Truncate is called first.
type Repository interface {
	// Close releases connections. Call once, at the end of the run.
	Close()

	// Dialect names the SQL dialect ("postgres", "sqlite", "mssql") so
	// query builders can pick LIMIT vs TOP. Placeholders are always the
	// portable '?' form; each backend rebinds to its native style.
	Dialect() string

	// EnsureTable creates the destination table with the inferred
	// schema if it does not exist yet. Idempotent.
	EnsureTable(ctx context.Context, table string, columns []tabular.Column) error

	// InsertRows appends one batch. Every row must have one value per
	// column. Returns the number of rows written.
	InsertRows(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)

	// Truncate removes all rows from the table.
	Truncate(ctx context.Context, table string) error

	// Count returns the table's current row count.
	Count(ctx context.Context, table string) (int64, error)

	// Query runs a read-only statement ('?' placeholders) and
	// materializes the full result.
	Query(ctx context.Context, query string, args ...any) (*tabular.Table, error)
}

type factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	mu        sync.RWMutex
	factories = map[string]factory{}
)

// Register registers a backend under a kind. Call from an init() in the
// backend package.
//
// Panics on empty kind, nil factory, or duplicate registration; ambiguous
// backend selection should fail fast at startup.
func Register(kind string, f factory) {
	mu.Lock()
	defer mu.Unlock()

	if kind == "" {
		panic("storage: Register called with empty kind")
	}
	if f == nil {
		panic("storage: Register called with nil factory")
	}
	if _, exists := factories[kind]; exists {
		panic(fmt.Sprintf("storage: factory already registered for kind=%q", kind))
	}
	factories[kind] = f
}

// New constructs a Repository for the configured backend kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	if cfg.Kind == "" {
		return nil, fmt.Errorf("storage: missing kind")
	}

	mu.RLock()
	f := factories[cfg.Kind]
	mu.RUnlock()

	if f == nil {
		return nil, fmt.Errorf("storage: unsupported kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

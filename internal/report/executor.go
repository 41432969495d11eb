package report

import (
	"context"
	"fmt"

	"pulsedash/internal/storage"
	"pulsedash/internal/tabular"
)

// BuildFunc renders a query for the dialect of whichever store the
// resolver picked. Builders receive the dialect because the row-limit
// syntax differs between backends.
type BuildFunc func(dialect string) (query string, args []any, err error)

// Executor runs one report query per call: resolve a store (primary
// first, secondary on failure), build, query, materialize, close. No
// connection outlives the call, so a primary outage during one report
// never pins later reports to the secondary.
type Executor struct {
	Primary   storage.Config
	Secondary storage.Config

	// resolve is a seam for tests.
	resolve func(ctx context.Context, primary, secondary storage.Config) (storage.Repository, string, error)
}

func NewExecutor(primary, secondary storage.Config) *Executor {
	return &Executor{Primary: primary, Secondary: secondary, resolve: storage.Resolve}
}

func (e *Executor) Execute(ctx context.Context, build BuildFunc) (*tabular.Table, error) {
	repo, target, err := e.resolve(ctx, e.Primary, e.Secondary)
	if err != nil {
		return nil, err
	}
	defer repo.Close()

	query, args, err := build(repo.Dialect())
	if err != nil {
		return nil, err
	}
	t, err := repo.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("report: query on %s: %w", target, err)
	}
	return t, nil
}

// Package pipeline drives the one-shot load: for every dataset in the
// roster it normalizes the JSON source, cleans it, writes the audit
// artifacts, and appends the table into both destination targets.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"pulsedash/internal/audit"
	"pulsedash/internal/config"
	"pulsedash/internal/loader"
	"pulsedash/internal/metrics"
	"pulsedash/internal/normalize"
	"pulsedash/internal/storage"
	"pulsedash/internal/tabular"
)

var logf = log.Printf

// Runner executes load runs. The function fields are seams: tests swap
// them for fakes, production uses NewDefaultRunner.
type Runner struct {
	NewRepository func(ctx context.Context, cfg storage.Config) (storage.Repository, error)
	Normalize     func(path string) (tabular.Table, error)
	Metrics       metrics.Backend
}

func NewDefaultRunner() *Runner {
	return &Runner{
		NewRepository: storage.New,
		Normalize:     normalize.Path,
		Metrics:       metrics.Nop{},
	}
}

// Run processes every dataset in cfg.Datasets, in order, strictly
// sequentially (the destination stores are shared and rate-limited).
//
// Both targets are opened once for the whole run and released when it
// ends, however it ends. A dataset's failure is recorded and the loop
// continues; the joined per-dataset errors are returned at the end, so
// one broken snapshot never blocks the rest of the roster.
func (r *Runner) Run(ctx context.Context, cfg *config.Config) error {
	runID := uuid.NewString()[:8]
	logf("[pipeline] run %s: %d datasets", runID, len(cfg.Datasets))

	for _, dir := range []string{cfg.CSVDir, cfg.ReportDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("pipeline: create artifact dir %s: %w", dir, err)
		}
	}

	primary, err := r.NewRepository(ctx, cfg.Primary)
	if err != nil {
		return fmt.Errorf("pipeline: open primary (%s): %w", cfg.Primary.Kind, err)
	}
	defer primary.Close()

	secondary, err := r.NewRepository(ctx, cfg.Secondary)
	if err != nil {
		return fmt.Errorf("pipeline: open secondary (%s): %w", cfg.Secondary.Kind, err)
	}
	defer secondary.Close()

	writer := audit.Writer{CSVDir: cfg.CSVDir, ReportDir: cfg.ReportDir}
	var workbook *audit.Workbook
	if cfg.AuditWorkbook {
		workbook = audit.NewWorkbook()
	}

	var errs []error
	for _, ds := range cfg.Datasets {
		start := time.Now()
		skipped, err := r.processDataset(ctx, cfg, ds, primary, secondary, writer, workbook, runID)
		r.Metrics.ObserveHistogram(metrics.LoadSeconds, time.Since(start).Seconds(),
			metrics.Labels{"dataset": ds.Name, "run": runID})
		switch {
		case err != nil:
			logf("[pipeline] run %s: dataset %s failed: %v", runID, ds.Name, err)
			r.Metrics.IncCounter(metrics.DatasetsFailed, 1, metrics.Labels{"dataset": ds.Name, "run": runID})
			errs = append(errs, fmt.Errorf("dataset %s: %w", ds.Name, err))
		case skipped:
			r.Metrics.IncCounter(metrics.DatasetsSkipped, 1, metrics.Labels{"dataset": ds.Name, "run": runID})
		default:
			r.Metrics.IncCounter(metrics.DatasetsProcessed, 1, metrics.Labels{"dataset": ds.Name, "run": runID})
		}
	}

	if workbook != nil {
		path := filepath.Join(cfg.ReportDir, "audit_workbook.xlsx")
		if err := workbook.Save(path); err != nil {
			errs = append(errs, err)
		} else {
			logf("[pipeline] run %s: audit workbook saved to %s", runID, path)
		}
	}

	return errors.Join(errs...)
}

// processDataset loads one roster entry. The bool reports an empty
// source that was skipped without touching the stores.
func (r *Runner) processDataset(
	ctx context.Context,
	cfg *config.Config,
	ds config.Dataset,
	primary, secondary storage.Repository,
	writer audit.Writer,
	workbook *audit.Workbook,
	runID string,
) (bool, error) {
	logf("[pipeline] ==== processing %s ====", ds.Name)

	source := ds.Source
	if !filepath.IsAbs(source) {
		source = filepath.Join(cfg.DataRoot, source)
	}

	raw, err := r.Normalize(source)
	if err != nil {
		return false, fmt.Errorf("read source %s: %w", source, err)
	}
	if raw.Empty() {
		logf("[pipeline] %s: no data found in %s, skipping", ds.Name, source)
		return true, nil
	}

	cleaned, collisions := tabular.Clean(raw)
	for _, c := range collisions {
		logf("[pipeline] %s: column name collision: %q and %q both become %q (last write wins)",
			ds.Name, c.Earlier, c.Later, c.Canonical)
	}

	csvPath, err := writer.Write(cleaned, ds.Name)
	if err != nil {
		return false, err
	}
	logf("[pipeline] %s: csv snapshot saved to %s", ds.Name, csvPath)
	if workbook != nil {
		workbook.Add(ds.Name, audit.NullCounts(cleaned))
	}

	opts := loader.Options{BatchSize: cfg.BatchSize, Truncate: cfg.TruncateBeforeLoad}
	for _, target := range []struct {
		name string
		repo storage.Repository
	}{
		{"primary", primary},
		{"secondary", secondary},
	} {
		n, err := loader.Load(ctx, target.repo, cleaned, ds.Name, opts)
		if err != nil {
			return false, fmt.Errorf("load into %s: %w", target.name, err)
		}
		count, err := target.repo.Count(ctx, ds.Name)
		if err != nil {
			return false, fmt.Errorf("count %s on %s: %w", ds.Name, target.name, err)
		}
		logf("[pipeline] %s: %s load complete, wrote %d rows, rowcount now %d",
			ds.Name, target.name, n, count)
		r.Metrics.IncCounter(metrics.RowsLoaded, float64(n),
			metrics.Labels{"dataset": ds.Name, "target": target.name, "run": runID})
	}

	return false, nil
}

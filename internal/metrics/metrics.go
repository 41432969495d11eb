// Package metrics defines the minimal backend interface the load
// pipeline emits into. The pipeline depends only on Backend; the Datadog
// implementation lives in the datadog subpackage and is wired in by the
// command, keeping vendor-specific code out of the core.
package metrics

import "context"

// Labels tag a single observation (dataset, target, run id).
type Labels map[string]string

// Backend receives pipeline observations. Implementations may buffer;
// Close must flush whatever is pending.
type Backend interface {
	// IncCounter adds delta to a named counter. Non-positive deltas are
	// ignored.
	IncCounter(name string, delta float64, labels Labels)

	// ObserveHistogram records one sample of a named distribution.
	ObserveHistogram(name string, value float64, labels Labels)

	// Close flushes pending observations and releases resources. Call
	// once at the end of the run.
	Close(ctx context.Context) error
}

// Metric names emitted by the pipeline.
const (
	DatasetsProcessed = "pulsedash.datasets.processed"
	DatasetsSkipped   = "pulsedash.datasets.skipped"
	DatasetsFailed    = "pulsedash.datasets.failed"
	RowsLoaded        = "pulsedash.rows.loaded"
	LoadSeconds       = "pulsedash.load.duration_seconds"
)

// Nop discards everything. It is the default backend so the pipeline
// never has to nil-check.
type Nop struct{}

func (Nop) IncCounter(string, float64, Labels)       {}
func (Nop) ObserveHistogram(string, float64, Labels) {}
func (Nop) Close(context.Context) error              { return nil }

package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// ErrAllTargetsFailed reports that neither the primary nor the secondary
// target could be opened. There is no third fallback.
var ErrAllTargetsFailed = errors.New("storage: all connection targets failed")

// open is a seam so resolver tests run without real backends.
var open = New

var logf = log.Printf

// Resolve opens a repository against the primary target, falling back to
// the secondary on any failure. Each call is independent: a later call
// re-attempts the primary even if an earlier one fell back.
//
// The returned string is "primary" or "secondary" and is also logged, so
// operators can see which store served a run or a report.
func Resolve(ctx context.Context, primary, secondary Config) (Repository, string, error) {
	repo, perr := open(ctx, primary)
	if perr == nil {
		logf("[resolver] connected to primary (%s)", primary.Kind)
		return repo, "primary", nil
	}
	logf("[resolver] primary (%s) unavailable: %v; falling back to secondary", primary.Kind, perr)

	repo, serr := open(ctx, secondary)
	if serr == nil {
		logf("[resolver] connected to secondary (%s)", secondary.Kind)
		return repo, "secondary", nil
	}

	return nil, "", fmt.Errorf("%w: primary (%s): %v; secondary (%s): %v",
		ErrAllTargetsFailed, primary.Kind, perr, secondary.Kind, serr)
}

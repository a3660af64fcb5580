package domain

import "errors"

// Sentinel errors shared across the harvest and enrich stages. Callers match
// with errors.Is; the wrapping message carries the offending filename or tag.
var (
	// ErrUnknownVariable means a filename or station type matched no known
	// variable keyword. Loading such a file would mislabel every row, so the
	// pipeline aborts instead.
	ErrUnknownVariable = errors.New("unknown variable keyword")

	// ErrNoTimestamp means a harvest filename embeds no parseable timestamp
	// and therefore has no timemark.
	ErrNoTimestamp = errors.New("no timestamp in filename")

	// ErrNotFound reports a missing row where exactly one was required.
	ErrNotFound = errors.New("not found")

	// ErrAmbiguousRun reports multiple run-configuration rows where exactly
	// one was required.
	ErrAmbiguousRun = errors.New("ambiguous model run")
)

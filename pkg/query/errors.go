package query

import "errors"

// ErrUnreachable is returned when no path exists between source and target
// — spec.md §7's Unreachable taxonomy entry: a normal query outcome, not a
// LoadFailure, and callers should branch on it with errors.Is rather than
// treat it as exceptional.
var ErrUnreachable = errors.New("query: target unreachable from source")

// ErrCancelled is returned when a context deadline or cancellation fires at
// one of the query's coarse checkpoints, per spec.md §5.
var ErrCancelled = errors.New("query: cancelled")

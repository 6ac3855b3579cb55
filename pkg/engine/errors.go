package engine

import "errors"

// ErrUnknownMode is returned when a Boundary API call names a mode that
// wasn't passed to Load.
var ErrUnknownMode = errors.New("engine: unknown mode")

package lifecycle

import "errors"

// Sentinel kinds for lifecycle errors.
var (
	ErrTerminal      = errors.New("application in terminal status")
	ErrOutOfOrder    = errors.New("stage invoked out of order")
	ErrBadTransition = errors.New("invalid transition")
)

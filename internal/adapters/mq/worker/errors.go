package worker

import "errors"

// Sentinel kinds for worker errors.
var (
	// ErrSkipped marks a task the runner declined to execute: a
	// duplicate invocation, a stale revision, or an out-of-order
	// request. Skips are routine, not failures.
	ErrSkipped = errors.New("stage task skipped")

	ErrBackpressure = errors.New("queue backpressure")
)

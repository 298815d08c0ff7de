package agents

import "errors"

var (
	// ErrUnknownStage reports a task whose stage has no registered
	// evaluator.
	ErrUnknownStage = errors.New("unknown stage")
	// ErrConcurrent reports an invocation that lost the revision race to
	// an overlapping invocation for the same application.
	ErrConcurrent = errors.New("concurrent invocation")
)

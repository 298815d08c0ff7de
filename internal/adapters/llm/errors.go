package llm

import "errors"

// Sentinel kinds for gateway errors.
var (
	ErrGateway   = errors.New("llm gateway call failed")
	ErrNoJSON    = errors.New("no JSON object in reply")
	ErrBadSchema = errors.New("reply violates expected schema")
)

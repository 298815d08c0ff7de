package simulate

import "time"

// HTTP status code constants.
const (
	StatusOK       = 200
	StatusCreated  = 201
	StatusAccepted = 202
	StatusConflict = 409
)

// Worker configuration constants.
const (
	WorkerChannelMultiplier = 2
)

// Polling constants. Queued stage tasks race manual agent runs, so
// the driver waits for the application to reach the expected stage
// and retries conflicts.
const (
	PollInterval         = 200 * time.Millisecond
	PollBudget           = 30 * time.Second
	ConflictRetries      = 5
	ConflictBackoff      = 300 * time.Millisecond
	PercentageMultiplier = 100
)

package repository

import "errors"

// Sentinel kinds for store errors.
var (
	ErrNotFound      = errors.New("record not found")
	ErrDuplicate     = errors.New("record already exists")
	ErrStaleRevision = errors.New("application revision is stale")
	ErrStageDone     = errors.New("stage already has a recorded result")
)

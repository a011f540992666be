package scheduler

import "errors"

var (
	// ErrInvalidConfig is returned when configuration is invalid
	ErrInvalidConfig = errors.New("invalid scheduler configuration")

	// ErrSyncAlreadyRunning is returned when a manual run overlaps a scheduled one
	ErrSyncAlreadyRunning = errors.New("carrier sync run already in progress")
)

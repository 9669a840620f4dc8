package scheduler

import "errors"

var (
	// ErrSchedulerNotRunning is returned when a trigger hits a stopped scheduler
	ErrSchedulerNotRunning = errors.New("scheduler: not running")

	// ErrInvalidConfig is returned when scheduler configuration is invalid
	ErrInvalidConfig = errors.New("scheduler: invalid configuration")
)

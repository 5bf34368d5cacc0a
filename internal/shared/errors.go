package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrRecalculationRunning indicates another recalculation holds the period lock.
	ErrRecalculationRunning = errors.New("recalculation already running")
	// ErrPeriodImmutable indicates the billing period no longer accepts input changes.
	ErrPeriodImmutable = errors.New("billing period immutable")
	// ErrInvalidPeriodTransition indicates status change not allowed.
	ErrInvalidPeriodTransition = errors.New("period transition invalid")
	// ErrAlreadyExists indicates a unique constraint violation.
	ErrAlreadyExists = errors.New("already exists")
)

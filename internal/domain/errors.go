package domain

import "errors"

var (
	// ErrInvalidThreshold is returned when a threshold is below one.
	ErrInvalidThreshold = errors.New("threshold must be at least 1")
	// ErrInvalidTimeout is returned when a timeout is negative.
	ErrInvalidTimeout = errors.New("timeout must be positive")
)

package handlers

import "errors"

var (
	// ErrSinkNotOpen is returned when a job arrives before Initialize opened the sink
	ErrSinkNotOpen = errors.New("sink is not open")

	// ErrWriteFailed wraps errors returned while writing a job to a sink
	ErrWriteFailed = errors.New("failed to write job")
)

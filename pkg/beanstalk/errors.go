package beanstalk

import "errors"

var (
	// ErrTimedOut is returned by ReserveWithTimeout when no job became available in time
	ErrTimedOut = errors.New("reserve timed out")

	// ErrNotConnected is returned when an operation needs an open connection
	ErrNotConnected = errors.New("not connected")

	// ErrAlreadyConnected is returned by Connect on an open client
	ErrAlreadyConnected = errors.New("already connected")

	// ErrConnectFailed is returned when the server cannot be reached
	ErrConnectFailed = errors.New("failed to connect to beanstalkd")

	// ErrNotFound is returned for unknown jobs or jobs reserved by another connection
	ErrNotFound = errors.New("job not found")

	// ErrNotIgnored is returned when ignoring the last watched tube
	ErrNotIgnored = errors.New("cannot ignore the only watched tube")

	// ErrInvalidTubeName is returned for empty tube names
	ErrInvalidTubeName = errors.New("invalid tube name")

	// ErrCommandFailed wraps protocol-level failures of delete, release and bury
	ErrCommandFailed = errors.New("beanstalkd command failed")
)

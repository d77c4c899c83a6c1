package logger

import "errors"

var (
	// ErrUnknownLevel is returned by ParseLevel for names outside the eight-level scale.
	ErrUnknownLevel = errors.New("unknown log level")

	// ErrUnknownFormat is returned by ParseFormat for unsupported output formats.
	ErrUnknownFormat = errors.New("unknown log format")
)

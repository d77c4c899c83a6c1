package schema

import "errors"

var (
	// ErrNilSchema is returned when compiling a nil definition
	ErrNilSchema = errors.New("schema definition cannot be nil")

	// ErrInvalidSchema is returned when a definition is not a valid JSON schema
	ErrInvalidSchema = errors.New("invalid JSON schema")

	// ErrInvalidDocument is matched by every *ValidationError
	ErrInvalidDocument = errors.New("document does not match schema")
)

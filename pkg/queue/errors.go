package queue

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dmitrymomot/tubeworker/pkg/schema"
	"github.com/dmitrymomot/tubeworker/pkg/validator"
)

var (
	// ErrConfigurationInvalid is returned when a fleet or handler configuration fails validation
	ErrConfigurationInvalid = errors.New("configuration is invalid")

	// ErrStartFailed is returned when a worker cannot reach the ready state
	ErrStartFailed = errors.New("worker failed to start")

	// ErrStopFailed is returned when a worker could not release its resources cleanly
	ErrStopFailed = errors.New("worker failed to stop cleanly")

	// ErrRegistryNil is returned when a nil handler registry is provided
	ErrRegistryNil = errors.New("handler registry cannot be nil")

	// ErrFactoryNil is returned when registering a nil handler factory
	ErrFactoryNil = errors.New("handler factory cannot be nil")

	// ErrHandlerPathRegistered is returned when a handler path is registered twice
	ErrHandlerPathRegistered = errors.New("handler path already registered")

	// ErrNilHandler is returned when a handler factory returns neither a handler nor an error
	ErrNilHandler = errors.New("factory returned no handler")

	// ErrUnknownHandlerPath is returned when a configured handler path has no factory
	ErrUnknownHandlerPath = errors.New("unknown handler path")

	// ErrInvalidJobBody is returned when a job body is not a JSON object
	ErrInvalidJobBody = errors.New("job body is not a JSON object")

	// ErrMissingJobType is returned when a job has no string type
	ErrMissingJobType = errors.New("job type is missing or not a string")

	// ErrHandlerNotFound is returned when no handler is registered for a job type
	ErrHandlerNotFound = errors.New("no handler registered for job type")

	// ErrInvalidPayload is returned when a job payload fails the handler's payload schema
	ErrInvalidPayload = errors.New("job payload is invalid")

	// ErrProcessingFailed wraps errors returned by a handler's Process
	ErrProcessingFailed = errors.New("job processing failed")

	// ErrHandlerPanic is returned when a handler panics while processing a job
	ErrHandlerPanic = errors.New("handler panicked")

	// ErrAlreadyStarted is returned when starting a worker or runner twice
	ErrAlreadyStarted = errors.New("already started")

	// ErrNotReady is returned by Runner.Healthcheck while any worker is not running
	ErrNotReady = errors.New("runner is not ready")
)

// ConfigurationError lists every violation found in a configuration.
type ConfigurationError struct {
	Message string
	Errors  validator.ValidationErrors
}

func (e *ConfigurationError) Error() string {
	if len(e.Errors) == 0 {
		return e.Message
	}
	parts := make([]string, 0, len(e.Errors))
	for _, v := range e.Errors {
		parts = append(parts, v.Field+": "+v.Message)
	}
	return e.Message + ": " + strings.Join(parts, "; ")
}

func (e *ConfigurationError) Unwrap() error {
	return ErrConfigurationInvalid
}

// newSchemaConfigurationError converts schema violations into a ConfigurationError.
func newSchemaConfigurationError(msg string, errs []schema.Error) *ConfigurationError {
	ve := make(validator.ValidationErrors, 0, len(errs))
	for _, e := range errs {
		ve.Add(validator.ValidationError{
			Field:   e.Field,
			Message: e.Description,
			Rule:    e.Type,
			Params:  map[string]any{"value": e.Value},
		})
	}
	return &ConfigurationError{Message: msg, Errors: ve}
}

// Start phases reported by StartError.
const (
	PhaseInitialize = "initialize"
	PhaseConnect    = "connect"
	PhaseWatch      = "watch"
	PhaseIgnore     = "ignore"
)

// StartError describes why a worker failed to start.
type StartError struct {
	WorkerID string
	Phase    string
	Err      error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("worker %s failed to start during %s: %v", e.WorkerID, e.Phase, e.Err)
}

func (e *StartError) Unwrap() []error {
	return []error{ErrStartFailed, e.Err}
}

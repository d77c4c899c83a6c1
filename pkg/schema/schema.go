package schema

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"
)

// Error describes one schema violation.
type Error struct {
	// Field is the JSON path of the offending value, "(root)" for the document itself.
	Field       string `json:"field"`
	Type        string `json:"type"`
	Description string `json:"description"`
	Value       any    `json:"value,omitempty"`
}

func (e Error) String() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Description)
}

// Result is the outcome of validating a document against a schema.
type Result struct {
	Valid  bool    `json:"valid"`
	Errors []Error `json:"errors,omitempty"`
}

// Err returns nil for a valid result and a *ValidationError otherwise.
func (r Result) Err() error {
	if r.Valid {
		return nil
	}
	return &ValidationError{Errors: r.Errors}
}

// ValidationError carries every violation of a failed validation.
type ValidationError struct {
	Errors []Error
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Errors))
	for _, err := range e.Errors {
		parts = append(parts, err.String())
	}
	return "schema validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidDocument
}

// Schema is a compiled JSON schema, safe for concurrent use.
type Schema struct {
	compiled *gojsonschema.Schema
}

// Compile compiles a schema definition. def may be a JSON string, a []byte,
// a json.RawMessage or any Go value that marshals to a JSON schema object
// (typically map[string]any decoded from configuration).
func Compile(def any) (*Schema, error) {
	if def == nil {
		return nil, ErrNilSchema
	}

	var loader gojsonschema.JSONLoader
	switch d := def.(type) {
	case string:
		loader = gojsonschema.NewStringLoader(d)
	case []byte:
		loader = gojsonschema.NewBytesLoader(d)
	case json.RawMessage:
		loader = gojsonschema.NewBytesLoader(d)
	default:
		loader = gojsonschema.NewGoLoader(d)
	}

	compiled, err := gojsonschema.NewSchema(loader)
	if err != nil {
		return nil, errors.Join(ErrInvalidSchema, err)
	}
	return &Schema{compiled: compiled}, nil
}

// MustCompile is like Compile but panics on error. Intended for schemas
// declared as package-level literals.
func MustCompile(def any) *Schema {
	s, err := Compile(def)
	if err != nil {
		panic(err)
	}
	return s
}

// Validate checks data against the schema and reports every violation.
// A document that cannot be encoded as JSON is reported as a single
// violation at the root.
func (s *Schema) Validate(data any) Result {
	res, err := s.compiled.Validate(gojsonschema.NewGoLoader(data))
	if err != nil {
		return Result{Errors: []Error{{
			Field:       "(root)",
			Type:        "document",
			Description: err.Error(),
		}}}
	}
	if res.Valid() {
		return Result{Valid: true}
	}

	errs := make([]Error, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		errs = append(errs, Error{
			Field:       e.Field(),
			Type:        e.Type(),
			Description: e.Description(),
			Value:       e.Value(),
		})
	}
	return Result{Errors: errs}
}

// Validate compiles def and validates data against it in one step.
func Validate(data any, def any) (Result, error) {
	s, err := Compile(def)
	if err != nil {
		return Result{}, err
	}
	return s.Validate(data), nil
}

package queue

import (
	"context"
	"log/slog"
	"maps"

	"github.com/dmitrymomot/tubeworker/pkg/logger"
	"github.com/dmitrymomot/tubeworker/pkg/schema"
)

// WildcardType is the handler type that matches jobs without an exact handler.
const WildcardType = "*"

type (
	// Handler turns a job payload into a Verdict.
	Handler interface {
		// Type returns the job type served by the handler, or WildcardType.
		Type() string

		// PayloadSchema returns the schema every payload must satisfy before
		// Process is called, or nil to skip validation.
		PayloadSchema() *schema.Schema

		// Process handles one job. A returned error is logged and the job is
		// left reserved until its time-to-run expires.
		Process(ctx context.Context, payload any, id uint64, jobType string) (Verdict, error)
	}

	// Initializer is implemented by handlers that need to open resources
	// before the worker connects to the queue.
	Initializer interface {
		Initialize(ctx context.Context) error
	}

	// Closer is implemented by handlers that hold resources until the worker stops.
	Closer interface {
		Close(ctx context.Context) error
	}

	// Options is the free-form handler configuration taken from a HandlerSpec.
	Options map[string]any

	// Factory builds a handler from its configuration.
	Factory func(opts Options, logger *slog.Logger) (Handler, error)
)

// Base carries the state shared by most handlers. Embed it and implement
// Process.
type Base struct {
	typ           string
	config        Options
	payloadSchema *schema.Schema
	logger        *slog.Logger
}

// NewBase validates config against configSchema, when one is given, and
// returns the shared handler state. A failing configuration yields a
// *ConfigurationError listing every violation.
func NewBase(typ string, config Options, configSchema, payloadSchema *schema.Schema, log *slog.Logger) (*Base, error) {
	if typ == "" {
		return nil, &ConfigurationError{Message: "handler type is required"}
	}
	if config == nil {
		config = Options{}
	}
	if configSchema != nil {
		if res := configSchema.Validate(map[string]any(config)); !res.Valid {
			return nil, newSchemaConfigurationError("handler configuration is invalid", res.Errors)
		}
	}
	if log == nil {
		log = slog.Default()
	}

	return &Base{
		typ:           typ,
		config:        maps.Clone(config),
		payloadSchema: payloadSchema,
		logger:        log.With(logger.Handler(typ)),
	}, nil
}

func (b *Base) Type() string {
	return b.typ
}

func (b *Base) PayloadSchema() *schema.Schema {
	return b.payloadSchema
}

// Config returns the handler configuration.
func (b *Base) Config() Options {
	return b.config
}

func (b *Base) Logger() *slog.Logger {
	return b.logger
}

// Process buries every job. Handlers override it.
func (b *Base) Process(context.Context, any, uint64, string) (Verdict, error) {
	return Bury(), nil
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, payload any, id uint64, jobType string) (Verdict, error)

type funcHandler struct {
	typ    string
	schema *schema.Schema
	fn     HandlerFunc
}

// NewHandlerFunc returns a Handler for typ backed by fn. payloadSchema may be nil.
func NewHandlerFunc(typ string, payloadSchema *schema.Schema, fn HandlerFunc) Handler {
	return &funcHandler{typ: typ, schema: payloadSchema, fn: fn}
}

func (h *funcHandler) Type() string                  { return h.typ }
func (h *funcHandler) PayloadSchema() *schema.Schema { return h.schema }

func (h *funcHandler) Process(ctx context.Context, payload any, id uint64, jobType string) (Verdict, error) {
	return h.fn(ctx, payload, id, jobType)
}

// String returns an option value, or def when it is missing or not a string.
func (o Options) String(key, def string) string {
	if v, ok := o[key].(string); ok {
		return v
	}
	return def
}

// Int returns a numeric option value truncated to int, or def.
func (o Options) Int(key string, def int) int {
	switch v := o[key].(type) {
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	return def
}

// Bool returns a boolean option value, or def.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key].(bool); ok {
		return v
	}
	return def
}

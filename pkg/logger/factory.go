package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Format is the record encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
)

// ParseFormat converts a format name into a Format.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatJSON, FormatText:
		return f, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
}

// Environment names understood by WithEnvironment.
const (
	EnvDevelopment = "development"
	EnvStaging     = "staging"
	EnvProduction  = "production"
)

type config struct {
	level     slog.Level
	format    Format
	output    io.Writer
	errOutput io.Writer // nil disables the split
	attrs     []slog.Attr
}

// Option configures New.
type Option func(*config)

func WithLevel(l slog.Level) Option {
	return func(c *config) { c.level = l }
}

// WithFormat panics on an unknown format; a logger that cannot be built
// should stop the process at startup.
func WithFormat(f Format) Option {
	if f != FormatJSON && f != FormatText {
		panic(fmt.Errorf("invalid log format %q: must be %q or %q", f, FormatJSON, FormatText))
	}
	return func(c *config) { c.format = f }
}

func WithJSONFormatter() Option {
	return WithFormat(FormatJSON)
}

// WithOutput sends every record to w, disabling the stdout/stderr split.
// Nil writers are ignored.
func WithOutput(w io.Writer) Option {
	return func(c *config) {
		if w != nil {
			c.output, c.errOutput = w, nil
		}
	}
}

// WithSplitOutput sends records below notice to out and the rest to errOut.
func WithSplitOutput(out, errOut io.Writer) Option {
	return func(c *config) {
		if out != nil && errOut != nil {
			c.output, c.errOutput = out, errOut
		}
	}
}

// WithAttr adds static attributes to every record.
func WithAttr(attrs ...slog.Attr) Option {
	return func(c *config) { c.attrs = append(c.attrs, attrs...) }
}

// WithEnvironment applies the preset for env and tags records with the
// service and environment names. Development logs text at debug; staging
// and production log JSON at info. Unknown names fall back to development.
func WithEnvironment(env, service string) Option {
	name, level, format := EnvDevelopment, LevelDebug, FormatText
	switch strings.ToLower(strings.TrimSpace(env)) {
	case EnvProduction, "prod":
		name, level, format = EnvProduction, LevelInfo, FormatJSON
	case EnvStaging, "stage":
		name, level, format = EnvStaging, LevelInfo, FormatJSON
	}
	return func(c *config) {
		c.level, c.format = level, format
		if service != "" {
			c.attrs = append(c.attrs, slog.String("service", service))
		}
		c.attrs = append(c.attrs, slog.String("env", name))
	}
}

// New builds a logger. Defaults: JSON at info, debug and info records to
// stdout, notice and above to stderr. Attributes stored in the context with
// WithAttrs are added to every record.
func New(opts ...Option) *slog.Logger {
	c := &config{
		level:     LevelInfo,
		format:    FormatJSON,
		output:    os.Stdout,
		errOutput: os.Stderr,
	}
	for _, opt := range opts {
		opt(c)
	}

	handlerOpts := &slog.HandlerOptions{Level: c.level, ReplaceAttr: replaceLevel}
	handler := c.encoder(c.output, handlerOpts)
	if c.errOutput != nil {
		handler = NewSplitHandler(handler, c.encoder(c.errOutput, handlerOpts), LevelNotice)
	}
	if len(c.attrs) > 0 {
		handler = handler.WithAttrs(c.attrs)
	}
	return slog.New(NewContextHandler(handler))
}

func (c *config) encoder(w io.Writer, opts *slog.HandlerOptions) slog.Handler {
	if c.format == FormatText {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}

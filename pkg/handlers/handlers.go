package handlers

import (
	"fmt"
	"log/slog"
	"maps"
	"strconv"
	"time"

	"github.com/dmitrymomot/tubeworker/pkg/queue"
	"github.com/dmitrymomot/tubeworker/pkg/schema"
	"github.com/dmitrymomot/tubeworker/pkg/validator"
)

// Handler paths used in fleet configuration files.
const (
	PathNoop       = "noop"
	PathLog        = "log"
	PathRedis      = "redis"
	PathPostgres   = "postgres"
	PathMongo      = "mongo"
	PathOpenSearch = "opensearch"
	PathS3         = "s3"
)

// RegisterAll adds every built-in handler factory to reg.
func RegisterAll(reg *queue.Registry) error {
	for path, f := range map[string]queue.Factory{
		PathNoop:       Noop,
		PathLog:        Log,
		PathRedis:      Redis,
		PathPostgres:   Postgres,
		PathMongo:      Mongo,
		PathOpenSearch: OpenSearch,
		PathS3:         S3,
	} {
		if err := reg.Register(path, f); err != nil {
			return fmt.Errorf("register %s: %w", path, err)
		}
	}
	return nil
}

// Options shared by every built-in handler.
var commonProperties = map[string]any{
	"type":           map[string]any{"type": "string", "minLength": 1},
	"payload_schema": map[string]any{"type": "object"},
	"on_failure":     map[string]any{"type": []any{"string", "array"}},
}

// configSchema compiles an object schema with the common options merged
// into props. Unknown options are rejected.
func configSchema(props map[string]any, required ...string) *schema.Schema {
	all := maps.Clone(commonProperties)
	maps.Copy(all, props)

	def := map[string]any{
		"type":                 "object",
		"properties":           all,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		req := make([]any, len(required))
		for i, r := range required {
			req[i] = r
		}
		def["required"] = req
	}
	return schema.MustCompile(def)
}

// newBase validates opts and builds the shared handler state. The handler
// type defaults to the wildcard.
func newBase(opts queue.Options, configSchema *schema.Schema, logger *slog.Logger) (*queue.Base, error) {
	if res := configSchema.Validate(map[string]any(opts)); !res.Valid {
		errs := make(validator.ValidationErrors, 0, len(res.Errors))
		for _, e := range res.Errors {
			errs.Add(validator.ValidationError{Field: e.Field, Message: e.Description, Rule: e.Type})
		}
		return nil, &queue.ConfigurationError{Message: "handler configuration is invalid", Errors: errs}
	}

	var payloadSchema *schema.Schema
	if def, ok := opts["payload_schema"]; ok {
		s, err := schema.Compile(def)
		if err != nil {
			return nil, optionError("payload_schema", "schema", err.Error())
		}
		payloadSchema = s
	}

	return queue.NewBase(opts.String("type", queue.WildcardType), opts, nil, payloadSchema, logger)
}

// failureVerdict returns the verdict configured for failed writes, if any.
func failureVerdict(opts queue.Options) *queue.Verdict {
	raw, ok := opts["on_failure"]
	if !ok {
		return nil
	}
	v := queue.ResolveVerdict(raw)
	return &v
}

// durationOption reads a duration given as a Go duration string or a
// number of seconds.
func durationOption(opts queue.Options, key string, def time.Duration) (time.Duration, error) {
	switch v := opts[key].(type) {
	case nil:
		return def, nil
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			return d, nil
		}
		if secs, err := strconv.ParseFloat(v, 64); err == nil {
			return time.Duration(secs * float64(time.Second)), nil
		}
		return 0, optionError(key, "duration", fmt.Sprintf("%q is not a duration", v))
	case int:
		return time.Duration(v) * time.Second, nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	}
	return 0, optionError(key, "duration", "must be a duration string or a number of seconds")
}

func stringsOption(opts queue.Options, key string) []string {
	switch v := opts[key].(type) {
	case string:
		return []string{v}
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}

func optionError(field, rule, msg string) *queue.ConfigurationError {
	return &queue.ConfigurationError{
		Message: "handler configuration is invalid",
		Errors:  validator.ValidationErrors{{Field: field, Message: msg, Rule: rule}},
	}
}

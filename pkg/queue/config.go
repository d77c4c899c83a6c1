package queue

import (
	"encoding/json"
	"fmt"
	"maps"
	"regexp"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/dmitrymomot/tubeworker/pkg/beanstalk"
	"github.com/dmitrymomot/tubeworker/pkg/config"
	"github.com/dmitrymomot/tubeworker/pkg/validator"
)

// MaxTubeNameLength is the longest tube name beanstalkd accepts.
const MaxTubeNameLength = 200

var tubeNamePattern = regexp.MustCompile(`^[A-Za-z0-9+/;.$_()][A-Za-z0-9\-+/;.$_()]*$`)

// Config is the declarative fleet configuration.
type Config struct {
	Connection Connection     `yaml:"connection" json:"connection"`
	Workers    []WorkerConfig `yaml:"workers" json:"workers"`
}

// Connection holds beanstalkd connection parameters. Zero fields inherit
// from the enclosing level. A port written explicitly in a decoded document
// must be in range, so "port: 0" is rejected rather than inherited.
type Connection struct {
	Host string `yaml:"host,omitempty" json:"host,omitempty"`
	Port int    `yaml:"port,omitempty" json:"port,omitempty"`

	portSet bool
}

type rawConnection struct {
	Host string `yaml:"host" json:"host"`
	Port *int   `yaml:"port" json:"port"`
}

func (r rawConnection) connection() Connection {
	c := Connection{Host: r.Host}
	if r.Port != nil {
		c.Port = *r.Port
		c.portSet = true
	}
	return c
}

func (c *Connection) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.MappingNode {
		for i := 0; i < len(node.Content); i += 2 {
			if key := node.Content[i].Value; key != "host" && key != "port" {
				return fmt.Errorf("line %d: field %s not found in connection", node.Content[i].Line, key)
			}
		}
	}
	var raw rawConnection
	if err := node.Decode(&raw); err != nil {
		return err
	}
	*c = raw.connection()
	return nil
}

func (c *Connection) UnmarshalJSON(data []byte) error {
	var raw rawConnection
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*c = raw.connection()
	return nil
}

// Address converts the connection into a transport address.
func (c Connection) Address() beanstalk.Address {
	return beanstalk.Address{Host: c.Host, Port: c.Port}
}

func (c Connection) inherit(parent Connection) Connection {
	out := Connection{Host: c.Host, Port: c.Port}
	if out.Host == "" {
		out.Host = parent.Host
	}
	if out.Port == 0 {
		out.Port = parent.Port
	}
	return out
}

// DefaultConnection returns the address of a local beanstalkd.
func DefaultConnection() Connection {
	return Connection{Host: beanstalk.DefaultHost, Port: beanstalk.DefaultPort}
}

// WorkerConfig configures one worker.
type WorkerConfig struct {
	Connection Connection    `yaml:"connection,omitempty" json:"connection,omitempty"`
	Tubes      []string      `yaml:"tubes" json:"tubes"`
	Handlers   []HandlerSpec `yaml:"handlers" json:"handlers"`
}

// HandlerSpec references a handler factory by path. Every other key is the
// handler's own configuration. A bare string decodes to {path: <string>}.
type HandlerSpec struct {
	Path    string
	Options Options
}

func (h *HandlerSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*h = HandlerSpec{Path: node.Value}
		return nil
	}
	var raw map[string]any
	if err := node.Decode(&raw); err != nil {
		return err
	}
	return h.fromMap(raw)
}

func (h *HandlerSpec) UnmarshalJSON(data []byte) error {
	var path string
	if err := json.Unmarshal(data, &path); err == nil {
		*h = HandlerSpec{Path: path}
		return nil
	}
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	return h.fromMap(raw)
}

func (h HandlerSpec) MarshalJSON() ([]byte, error) {
	return json.Marshal(h.toMap())
}

func (h HandlerSpec) MarshalYAML() (any, error) {
	return h.toMap(), nil
}

func (h *HandlerSpec) fromMap(raw map[string]any) error {
	spec := HandlerSpec{Options: Options{}}
	for k, v := range raw {
		if k != "path" {
			spec.Options[k] = v
			continue
		}
		path, ok := v.(string)
		if !ok {
			return fmt.Errorf("handler path must be a string, got %T", v)
		}
		spec.Path = path
	}
	*h = spec
	return nil
}

func (h HandlerSpec) toMap() map[string]any {
	m := make(map[string]any, len(h.Options)+1)
	maps.Copy(m, h.Options)
	m["path"] = h.Path
	return m
}

// LoadConfig reads a YAML or JSON fleet file, expanding ${VAR} references,
// and normalizes it.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	if err := config.LoadFile(path, &cfg); err != nil {
		return Config{}, err
	}
	return Normalize(cfg)
}

// Normalize validates cfg and applies defaults. Every violation is reported
// in the returned *ConfigurationError. The result is a deep copy, and
// normalizing it again yields an equal Config.
func Normalize(cfg Config) (Config, error) {
	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	out := Config{
		Connection: cfg.Connection.inherit(DefaultConnection()),
		Workers:    make([]WorkerConfig, len(cfg.Workers)),
	}
	for i, w := range cfg.Workers {
		out.Workers[i] = normalizeWorker(w, out.Connection)
	}
	return out, nil
}

func normalizeWorker(w WorkerConfig, parent Connection) WorkerConfig {
	handlers := make([]HandlerSpec, len(w.Handlers))
	for i, h := range w.Handlers {
		opts := maps.Clone(h.Options)
		if opts == nil {
			opts = Options{}
		}
		handlers[i] = HandlerSpec{Path: h.Path, Options: opts}
	}
	return WorkerConfig{
		Connection: w.Connection.inherit(parent),
		Tubes:      slices.Clone(w.Tubes),
		Handlers:   handlers,
	}
}

func validateConfig(cfg Config) error {
	var errs validator.ValidationErrors

	validateConnection(&errs, "connection", cfg.Connection)
	validator.Collect(&errs, validator.MinLenSlice("workers", cfg.Workers, 1))

	for i, w := range cfg.Workers {
		field := validator.Path("workers", i)
		validateConnection(&errs, validator.Path(field, "connection"), w.Connection)

		tubesField := validator.Path(field, "tubes")
		validator.Collect(&errs, validator.MinLenSlice(tubesField, w.Tubes, 1))
		for j, tube := range w.Tubes {
			ValidateTubeName(&errs, validator.Path(tubesField, j), tube)
		}

		handlersField := validator.Path(field, "handlers")
		validator.Collect(&errs, validator.MinLenSlice(handlersField, w.Handlers, 1))
		for j, h := range w.Handlers {
			validator.Collect(&errs,
				validator.RequiredString(validator.Path(validator.Path(handlersField, j), "path"), h.Path),
			)
		}
	}

	if errs.IsEmpty() {
		return nil
	}
	return &ConfigurationError{Message: "queue configuration is invalid", Errors: errs}
}

func validateConnection(errs *validator.ValidationErrors, field string, c Connection) {
	validator.Collect(errs,
		validator.When(c.Host != "", validator.NoWhitespace(validator.Path(field, "host"), c.Host)),
		validator.When(c.Port != 0 || c.portSet, validator.InRange(validator.Path(field, "port"), c.Port, 1, 65535)),
	)
}

// ValidateTubeName appends the violations of a tube name to errs.
func ValidateTubeName(errs *validator.ValidationErrors, field, tube string) {
	validator.Collect(errs,
		validator.RequiredString(field, tube),
		validator.When(tube != "", validator.MaxLenString(field, tube, MaxTubeNameLength)),
		validator.When(tube != "", validator.Matches(field, tube, tubeNamePattern, "tube name")),
	)
}

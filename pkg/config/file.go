package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

var envReference = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// LoadFile decodes a YAML (or JSON) file into v.
// ${VAR} references are expanded from the environment before decoding, so
// secrets can stay out of the file. A bare $ is kept as is, since tube names
// may contain it. Unknown keys are rejected unless the target type absorbs
// them itself.
func LoadFile(path string, v any) error {
	if v == nil {
		return ErrNilPointer
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Join(ErrReadingConfigFile, err)
	}

	return Decode(bytes.NewReader(data), v)
}

// Decode reads YAML or JSON from r into v with environment expansion.
func Decode(r io.Reader, v any) error {
	raw, err := io.ReadAll(r)
	if err != nil {
		return errors.Join(ErrReadingConfigFile, err)
	}

	expanded := envReference.ReplaceAllStringFunc(string(raw), func(ref string) string {
		return os.Getenv(ref[2 : len(ref)-1])
	})

	dec := yaml.NewDecoder(bytes.NewBufferString(expanded))
	dec.KnownFields(true)
	if err := dec.Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty document", ErrDecodingConfigFile)
		}
		return errors.Join(ErrDecodingConfigFile, err)
	}
	return nil
}

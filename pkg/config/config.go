// Package config loads YAML configuration files. Environment references
// are expanded before decoding, and targets implementing Validator are
// validated after it.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Validator is implemented by configuration types that check themselves.
type Validator interface {
	Validate() error
}

// Load decodes the YAML file filename into target. Keys missing from the
// file keep the values target already holds.
func Load[T any](filename string, target *T) error {
	f, err := os.Open(filename)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", filename, err)
	}
	defer f.Close()

	if err := Decode(f, target); err != nil {
		return fmt.Errorf("config file %s: %w", filename, err)
	}
	return nil
}

// Decode reads YAML from r, expands environment references and decodes
// the result into target. An empty document leaves target unchanged.
func Decode[T any](r io.Reader, target *T) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}

	expanded := Expand(string(data))
	if len(bytes.TrimSpace([]byte(expanded))) > 0 {
		if err := yaml.Unmarshal([]byte(expanded), target); err != nil {
			return fmt.Errorf("failed to parse: %w", err)
		}
	}

	if validator, ok := any(target).(Validator); ok {
		if err := validator.Validate(); err != nil {
			return fmt.Errorf("config validation failed: %w", err)
		}
	}
	return nil
}

// Expand replaces $VAR and ${VAR} with the environment value of VAR.
// ${VAR:-fallback} yields fallback when VAR is unset or empty.
func Expand(s string) string {
	return os.Expand(s, func(ref string) string {
		name, fallback, hasFallback := strings.Cut(ref, ":-")
		v := os.Getenv(name)
		if v == "" && hasFallback {
			return fallback
		}
		return v
	})
}

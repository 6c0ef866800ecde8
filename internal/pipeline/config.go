// Package pipeline defines the materialized pipeline configuration: an
// ordered set of named steps, each with a description and flat parameters.
// Key order is significant and survives a parse/marshal round trip.
package pipeline

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

var ErrMalformed = errors.New("malformed pipeline configuration")

const descriptionKey = "description"

// Param is one bound parameter of a step.
type Param struct {
	Name  string
	Value any
}

// Step is one executable entry of a pipeline.
type Step struct {
	Key         string
	Description string
	Params      []Param
}

// Config is an ordered sequence of steps.
type Config struct {
	Steps []Step
}

// Get returns the value of a parameter.
func (s *Step) Get(name string) (any, bool) {
	for _, p := range s.Params {
		if p.Name == name {
			return p.Value, true
		}
	}
	return nil, false
}

// Set replaces a parameter value or appends a new parameter.
func (s *Step) Set(name string, value any) {
	for i := range s.Params {
		if s.Params[i].Name == name {
			s.Params[i].Value = value
			return
		}
	}
	s.Params = append(s.Params, Param{Name: name, Value: value})
}

// ParamMap returns the parameters as a map for lookups that do not care
// about order.
func (s *Step) ParamMap() map[string]any {
	m := make(map[string]any, len(s.Params))
	for _, p := range s.Params {
		m[p.Name] = p.Value
	}
	return m
}

// Step returns the step with the given key.
func (c *Config) Step(key string) (*Step, bool) {
	for i := range c.Steps {
		if c.Steps[i].Key == key {
			return &c.Steps[i], true
		}
	}
	return nil, false
}

// Keys returns the step keys in execution order.
func (c *Config) Keys() []string {
	keys := make([]string, len(c.Steps))
	for i, s := range c.Steps {
		keys[i] = s.Key
	}
	return keys
}

func (s Step) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	first := true
	write := func(name string, value any) error {
		if !first {
			buf.WriteByte(',')
		}
		first = false
		k, err := marshalValue(name)
		if err != nil {
			return err
		}
		v, err := marshalValue(value)
		if err != nil {
			return fmt.Errorf("parameter %s: %w", name, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
		return nil
	}

	if s.Description != "" {
		if err := write(descriptionKey, s.Description); err != nil {
			return nil, err
		}
	}
	for _, p := range s.Params {
		if err := write(p.Name, p.Value); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (s *Step) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := expectDelim(dec, '{'); err != nil {
		return err
	}

	seen := make(map[string]bool)
	for dec.More() {
		name, err := readKey(dec)
		if err != nil {
			return err
		}
		if seen[name] {
			return fmt.Errorf("%w: duplicate parameter %q", ErrMalformed, name)
		}
		seen[name] = true

		var value any
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("%w: parameter %q: %v", ErrMalformed, name, err)
		}
		switch value.(type) {
		case nil, string, float64, bool:
		default:
			return fmt.Errorf("%w: parameter %q must be a string, number or boolean", ErrMalformed, name)
		}

		if name == descriptionKey {
			desc, ok := value.(string)
			if !ok {
				return fmt.Errorf("%w: description must be a string", ErrMalformed)
			}
			s.Description = desc
			continue
		}
		s.Params = append(s.Params, Param{Name: name, Value: value})
	}
	return expectDelim(dec, '}')
}

// marshalValue encodes v without HTML escaping so placeholder arguments such
// as {{RANDOM_FILE:tom&jerry}} survive serialization unchanged.
func marshalValue(v any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

func (c Config) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, s := range c.Steps {
		if i > 0 {
			buf.WriteByte(',')
		}
		k, err := marshalValue(s.Key)
		if err != nil {
			return nil, err
		}
		v, err := s.MarshalJSON()
		if err != nil {
			return nil, fmt.Errorf("step %s: %w", s.Key, err)
		}
		buf.Write(k)
		buf.WriteByte(':')
		buf.Write(v)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (c *Config) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := expectDelim(dec, '{'); err != nil {
		return err
	}

	seen := make(map[string]bool)
	for dec.More() {
		key, err := readKey(dec)
		if err != nil {
			return err
		}
		if seen[key] {
			return fmt.Errorf("%w: duplicate step %q", ErrMalformed, key)
		}
		seen[key] = true

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return fmt.Errorf("%w: step %q: %v", ErrMalformed, key, err)
		}
		step := Step{Key: key}
		if err := step.UnmarshalJSON(raw); err != nil {
			return fmt.Errorf("step %q: %w", key, err)
		}
		c.Steps = append(c.Steps, step)
	}
	return expectDelim(dec, '}')
}

// Parse decodes a pipeline configuration.
func Parse(data []byte) (*Config, error) {
	var c Config
	if err := json.Unmarshal(data, &c); err != nil {
		if errors.Is(err, ErrMalformed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return &c, nil
}

// Load reads a pipeline configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read pipeline %s: %w", path, err)
	}
	return Parse(data)
}

// Encode writes the configuration as indented JSON.
func (c *Config) Encode(w io.Writer) error {
	raw, err := c.MarshalJSON()
	if err != nil {
		return err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return err
	}
	out.WriteByte('\n')
	_, err = w.Write(out.Bytes())
	return err
}

// WriteFile stores the configuration at path.
func (c *Config) WriteFile(path string) error {
	var buf bytes.Buffer
	if err := c.Encode(&buf); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

// StepTypeFromKey recovers the step type of a de-duplicated key such as
// "ff_scale2". known reports whether a candidate is a registered type.
func StepTypeFromKey(key string, known func(string) bool) string {
	if known(key) {
		return key
	}
	trimmed := strings.TrimRight(key, "0123456789")
	if trimmed != key && trimmed != "" && known(trimmed) {
		return trimmed
	}
	return key
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("%w: expected %q, got %v", ErrMalformed, want, tok)
	}
	return nil
}

func readKey(dec *json.Decoder) (string, error) {
	tok, err := dec.Token()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	key, ok := tok.(string)
	if !ok {
		return "", fmt.Errorf("%w: expected object key, got %v", ErrMalformed, tok)
	}
	return key, nil
}

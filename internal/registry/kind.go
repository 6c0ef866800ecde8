package registry

import (
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// Kind is the closed set of parameter kinds a step may declare.
type Kind string

const (
	KindString  Kind = "string"
	KindNumber  Kind = "number"
	KindFile    Kind = "file"
	KindSelect  Kind = "select"
	KindBoolean Kind = "boolean"
)

// Valid reports whether k is one of the known kinds.
func (k Kind) Valid() bool {
	switch k {
	case KindString, KindNumber, KindFile, KindSelect, KindBoolean:
		return true
	}
	return false
}

// Validate checks a concrete value against the spec. Empty values are not
// checked here; requiredness is decided by the caller, which knows about
// connections.
func (k Kind) Validate(spec *ParameterSpec, v any) error {
	if IsEmpty(v) {
		return nil
	}
	// Placeholders are expanded just before execution.
	if s, ok := v.(string); ok && strings.Contains(s, "{{") {
		return nil
	}

	switch k {
	case KindString, KindFile:
		switch v.(type) {
		case string, float64, int, int64, json.Number:
			return nil
		}
		return fmt.Errorf("expected text, got %T", v)

	case KindNumber:
		switch t := v.(type) {
		case float64, int, int64, json.Number:
			return nil
		case string:
			if _, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err != nil {
				return fmt.Errorf("%q is not a number", t)
			}
			return nil
		}
		return fmt.Errorf("expected a number, got %T", v)

	case KindSelect:
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("expected one of %s, got %T", strings.Join(spec.Options, ", "), v)
		}
		if !slices.Contains(spec.Options, s) {
			return fmt.Errorf("%q is not one of %s", s, strings.Join(spec.Options, ", "))
		}
		return nil

	case KindBoolean:
		switch t := v.(type) {
		case bool:
			return nil
		case string:
			if _, err := strconv.ParseBool(t); err != nil {
				return fmt.Errorf("%q is not a boolean", t)
			}
			return nil
		}
		return fmt.Errorf("expected a boolean, got %T", v)
	}

	return fmt.Errorf("unknown parameter kind %q", k)
}

// Default resolves the value a step falls back to when the parameter is not
// set: the declared default, or the zero value of the kind.
func (k Kind) Default(spec *ParameterSpec) any {
	if spec.Default != nil {
		return spec.Default
	}
	switch k {
	case KindBoolean:
		return false
	case KindSelect:
		if len(spec.Options) > 0 {
			return spec.Options[0]
		}
	}
	return nil
}

// IsEmpty reports whether a parameter value counts as unset: nil or the
// empty string.
func IsEmpty(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		return s == ""
	}
	return false
}

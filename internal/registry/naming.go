package registry

import (
	"encoding/json"
	"fmt"
	"math"
	"path/filepath"
	"strconv"
	"strings"
)

// NamingKind selects how the file produced by a step is named.
type NamingKind string

const (
	// NamingDefaultOutput uses the step's own output parameter, falling back
	// to "<step id>.mp4".
	NamingDefaultOutput NamingKind = "default_output"
	// NamingPassThrough refers to an existing file held in Naming.Param.
	NamingPassThrough NamingKind = "pass_through"
	// NamingIndexedPrefix prefixes the output file name with a sequence index
	// taken from Naming.Param (1 when unknown).
	NamingIndexedPrefix NamingKind = "indexed_prefix"
)

// Naming is the output naming strategy of a step type.
type Naming struct {
	Kind  NamingKind `yaml:"kind" json:"kind"`
	Param string     `yaml:"param" json:"param,omitempty"`
}

// DefaultOutputName is the file a step writes when no output is configured.
func DefaultOutputName(stepTypeID string) string {
	return stepTypeID + ".mp4"
}

// OutputName infers the file a step of type d produces given its parameters.
func OutputName(d *StepDefinition, params map[string]any) string {
	switch d.Naming.Kind {
	case NamingPassThrough:
		return valueString(params[d.Naming.Param])

	case NamingIndexedPrefix:
		base := baseOutput(d, params)
		index := 1
		if n, ok := valueInt(params[d.Naming.Param]); ok {
			index = n
		} else if spec, ok := d.Parameter(d.Naming.Param); ok {
			if n, ok := valueInt(spec.Default); ok {
				index = n
			}
		}
		dir, file := filepath.Split(base)
		return dir + fmt.Sprintf("%d_%s", index, file)
	}

	return baseOutput(d, params)
}

func baseOutput(d *StepDefinition, params map[string]any) string {
	if out := valueString(params[OutputParam]); out != "" {
		return out
	}
	return DefaultOutputName(d.ID)
}

func valueString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case json.Number:
		return t.String()
	}
	return fmt.Sprint(v)
}

func valueInt(v any) (int, bool) {
	switch t := v.(type) {
	case int:
		return t, true
	case int64:
		return int(t), true
	case float64:
		if t == math.Trunc(t) {
			return int(t), true
		}
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return int(n), true
		}
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(t)); err == nil {
			return n, true
		}
	}
	return 0, false
}

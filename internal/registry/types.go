// Package registry holds the static catalogue of step types a pipeline may use.
// The catalogue is loaded once at startup and never mutated afterwards.
package registry

import (
	"strconv"
	"strings"
)

// OutputParam is the parameter every executable step writes its result to.
const OutputParam = "output"

// StepDefinition describes one step type: its parameters and output sockets.
type StepDefinition struct {
	ID          string          `yaml:"id" json:"id"`
	Category    string          `yaml:"category" json:"category"`
	Description string          `yaml:"description" json:"description"`
	Naming      Naming          `yaml:"naming" json:"naming"`
	Parameters  []ParameterSpec `yaml:"parameters" json:"parameters"`
	Outputs     []OutputSpec    `yaml:"outputs" json:"outputs"`
}

// ParameterSpec declares one named parameter of a step.
// A dynamic spec stands for a family of numbered slots such as input3, input4.
type ParameterSpec struct {
	Name           string   `yaml:"name" json:"name"`
	Kind           Kind     `yaml:"kind" json:"kind"`
	Default        any      `yaml:"default" json:"default,omitempty"`
	Options        []string `yaml:"options" json:"options,omitempty"`
	Required       bool     `yaml:"required" json:"required"`
	Dynamic        bool     `yaml:"dynamic" json:"dynamic,omitempty"`
	DynamicPattern string   `yaml:"dynamic_pattern" json:"dynamicNamePattern,omitempty"`
	MaxDynamic     int      `yaml:"max_dynamic" json:"maxDynamicCount,omitempty"`
}

// OutputSpec declares one output socket.
type OutputSpec struct {
	Name     string `yaml:"name" json:"name"`
	DataKind string `yaml:"data" json:"dataKind"`
}

// Parameter looks up a statically declared parameter by name.
func (d *StepDefinition) Parameter(name string) (*ParameterSpec, bool) {
	for i := range d.Parameters {
		p := &d.Parameters[i]
		if !p.Dynamic && p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// DynamicSlot reports whether name is a numbered slot of one of the dynamic
// parameter families, returning the family and the slot number.
func (d *StepDefinition) DynamicSlot(name string) (*ParameterSpec, int, bool) {
	if _, static := d.Parameter(name); static {
		return nil, 0, false
	}
	for i := range d.Parameters {
		p := &d.Parameters[i]
		if !p.Dynamic {
			continue
		}
		if n, ok := p.slotNumber(name); ok {
			return p, n, true
		}
	}
	return nil, 0, false
}

// AcceptsInput reports whether name is a parameter (static or dynamic slot)
// that a connection may target.
func (d *StepDefinition) AcceptsInput(name string) bool {
	if _, ok := d.Parameter(name); ok {
		return true
	}
	_, _, ok := d.DynamicSlot(name)
	return ok
}

// HasOutput reports whether the step declares an output socket called name.
func (d *StepDefinition) HasOutput(name string) bool {
	for _, o := range d.Outputs {
		if o.Name == name {
			return true
		}
	}
	return false
}

// Executable reports whether the step is run by the driver. Pass-through
// steps only seed bindings for their consumers.
func (d *StepDefinition) Executable() bool {
	return d.Naming.Kind != NamingPassThrough
}

func (p *ParameterSpec) slotNumber(name string) (int, bool) {
	prefix, suffix, ok := strings.Cut(p.DynamicPattern, "{n}")
	if !ok || !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, suffix) {
		return 0, false
	}
	if len(name) <= len(prefix)+len(suffix) {
		return 0, false
	}
	digits := name[len(prefix) : len(name)-len(suffix)]
	for _, c := range digits {
		if c < '0' || c > '9' {
			return 0, false
		}
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 1 {
		return 0, false
	}
	if p.MaxDynamic > 0 && n > p.MaxDynamic {
		return 0, false
	}
	return n, true
}

package registry

import (
	_ "embed"
	"errors"
	"fmt"
	"sync"

	"gopkg.in/yaml.v3"
)

//go:embed steps.yaml
var builtinCatalogue []byte

var ErrInvalidCatalogue = errors.New("invalid step catalogue")

// Registry is a read-only lookup table of step definitions.
type Registry struct {
	defs []*StepDefinition
	byID map[string]*StepDefinition
}

type catalogueFile struct {
	Steps []StepDefinition `yaml:"steps"`
}

var (
	defaultOnce sync.Once
	defaultReg  *Registry
)

// Default returns the registry built from the embedded catalogue.
func Default() *Registry {
	defaultOnce.Do(func() {
		reg, err := Load(builtinCatalogue)
		if err != nil {
			panic(fmt.Sprintf("registry: embedded catalogue: %v", err))
		}
		defaultReg = reg
	})
	return defaultReg
}

// Load parses a YAML catalogue and checks its invariants: unique step ids,
// unique parameter names within a step, known kinds and naming strategies.
func Load(data []byte) (*Registry, error) {
	var file catalogueFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalogue, err)
	}

	reg := &Registry{byID: make(map[string]*StepDefinition, len(file.Steps))}
	for i := range file.Steps {
		def := &file.Steps[i]
		if err := normalize(def); err != nil {
			return nil, err
		}
		if _, dup := reg.byID[def.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate step id %q", ErrInvalidCatalogue, def.ID)
		}
		reg.byID[def.ID] = def
		reg.defs = append(reg.defs, def)
	}
	return reg, nil
}

func normalize(def *StepDefinition) error {
	if def.ID == "" {
		return fmt.Errorf("%w: step without id", ErrInvalidCatalogue)
	}
	if def.Naming.Kind == "" {
		def.Naming.Kind = NamingDefaultOutput
	}
	switch def.Naming.Kind {
	case NamingDefaultOutput:
	case NamingPassThrough, NamingIndexedPrefix:
		if def.Naming.Param == "" {
			return fmt.Errorf("%w: step %q: naming %s needs a param", ErrInvalidCatalogue, def.ID, def.Naming.Kind)
		}
	default:
		return fmt.Errorf("%w: step %q: unknown naming %q", ErrInvalidCatalogue, def.ID, def.Naming.Kind)
	}

	seen := make(map[string]bool, len(def.Parameters))
	for _, p := range def.Parameters {
		if p.Name == "" {
			return fmt.Errorf("%w: step %q: parameter without name", ErrInvalidCatalogue, def.ID)
		}
		if seen[p.Name] {
			return fmt.Errorf("%w: step %q: duplicate parameter %q", ErrInvalidCatalogue, def.ID, p.Name)
		}
		seen[p.Name] = true
		if !p.Kind.Valid() {
			return fmt.Errorf("%w: step %q: parameter %q has unknown kind %q", ErrInvalidCatalogue, def.ID, p.Name, p.Kind)
		}
		if p.Dynamic && p.DynamicPattern == "" {
			return fmt.Errorf("%w: step %q: dynamic parameter %q needs a pattern", ErrInvalidCatalogue, def.ID, p.Name)
		}
	}
	return nil
}

// Get returns the definition for a step type id.
func (r *Registry) Get(id string) (*StepDefinition, bool) {
	def, ok := r.byID[id]
	return def, ok
}

// All returns every definition in catalogue order.
func (r *Registry) All() []*StepDefinition {
	out := make([]*StepDefinition, len(r.defs))
	copy(out, r.defs)
	return out
}

// ListByCategory returns the definitions of one category in catalogue order.
func (r *Registry) ListByCategory(category string) []*StepDefinition {
	var out []*StepDefinition
	for _, d := range r.defs {
		if d.Category == category {
			out = append(out, d)
		}
	}
	return out
}

// Categories returns the distinct categories in first-seen order.
func (r *Registry) Categories() []string {
	var out []string
	seen := make(map[string]bool)
	for _, d := range r.defs {
		if !seen[d.Category] {
			seen[d.Category] = true
			out = append(out, d.Category)
		}
	}
	return out
}

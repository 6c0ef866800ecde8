package run

import (
	"fmt"

	"github.com/heimdex/heimdex-flow/internal/export"
	"github.com/heimdex/heimdex-flow/internal/pipeline"
	"github.com/heimdex/heimdex-flow/internal/registry"
)

// Preflight checks a configuration before anything is executed. Unknown
// step types are configuration errors; missing required parameters and
// badly typed values are validation errors.
func Preflight(cfg *pipeline.Config, reg *registry.Registry) error {
	var problems []string
	for _, step := range cfg.Steps {
		def, ok := lookup(reg, step.Key)
		if !ok {
			return &export.ConfigError{Kind: export.KindUnknownStep, NodeID: step.Key, Msg: "no step type matches this key"}
		}
		if !def.Executable() {
			return &export.ConfigError{Kind: export.KindUnknownStep, NodeID: step.Key, Msg: fmt.Sprintf("%s steps cannot be executed", def.ID)}
		}

		for i := range def.Parameters {
			spec := &def.Parameters[i]
			if spec.Dynamic {
				continue
			}
			v, _ := step.Get(spec.Name)
			if registry.IsEmpty(v) {
				if spec.Required {
					problems = append(problems, fmt.Sprintf("step %s: required parameter %q is missing", step.Key, spec.Name))
				}
				continue
			}
			if err := spec.Kind.Validate(spec, v); err != nil {
				problems = append(problems, fmt.Sprintf("step %s: parameter %q: %v", step.Key, spec.Name, err))
			}
		}
	}
	if len(problems) > 0 {
		return &export.ValidationError{Problems: problems}
	}
	return nil
}

// lookup resolves the step type behind a possibly de-duplicated key.
func lookup(reg *registry.Registry, key string) (*registry.StepDefinition, bool) {
	known := func(id string) bool {
		_, ok := reg.Get(id)
		return ok
	}
	return reg.Get(pipeline.StepTypeFromKey(key, known))
}

package export

import (
	"fmt"
	"sort"

	"github.com/heimdex/heimdex-flow/internal/graph"
	"github.com/heimdex/heimdex-flow/internal/registry"
)

// DescriptionParam is a free-text parameter any node may carry. It becomes
// the description of the materialized step.
const DescriptionParam = "description"

// Report is the outcome of the pre-flight check.
type Report struct {
	Valid    bool     `json:"isValid"`
	Problems []string `json:"problems"`
}

// Err returns a *ValidationError for an invalid report and nil otherwise.
func (r Report) Err() error {
	if r.Valid {
		return nil
	}
	return &ValidationError{Problems: r.Problems}
}

// Validate resolves and binds the graph, then checks every node's
// parameters. Configuration errors are returned as errors; parameter
// problems end up in the report.
func Validate(doc *graph.Document, reg *registry.Registry) (Report, error) {
	order, err := Order(doc)
	if err != nil {
		return Report{}, err
	}
	bound, err := Bind(doc, order, reg)
	if err != nil {
		return Report{}, err
	}
	return ValidateBound(bound), nil
}

// ValidateBound checks required parameters and parameter kinds of already
// bound nodes. Problems are listed in execution order.
func ValidateBound(bound []BoundNode) Report {
	problems := []string{}
	for _, b := range bound {
		prefix := fmt.Sprintf("node %s (%s)", b.ID, b.StepTypeID)

		for i := range b.Def.Parameters {
			spec := &b.Def.Parameters[i]
			if spec.Dynamic {
				continue
			}
			v := b.Params[spec.Name]
			if registry.IsEmpty(v) {
				if spec.Required {
					problems = append(problems, fmt.Sprintf("%s: required parameter %q is missing and not connected", prefix, spec.Name))
				}
				continue
			}
			if err := spec.Kind.Validate(spec, v); err != nil {
				problems = append(problems, fmt.Sprintf("%s: parameter %q: %v", prefix, spec.Name, err))
			}
		}

		for _, name := range sortedKeys(b.Params) {
			if name == DescriptionParam {
				continue
			}
			if _, ok := b.Def.Parameter(name); ok {
				continue
			}
			spec, _, ok := b.Def.DynamicSlot(name)
			if !ok {
				problems = append(problems, fmt.Sprintf("%s: unknown parameter %q", prefix, name))
				continue
			}
			if err := spec.Kind.Validate(spec, b.Params[name]); err != nil {
				problems = append(problems, fmt.Sprintf("%s: parameter %q: %v", prefix, name, err))
			}
		}
	}
	return Report{Valid: len(problems) == 0, Problems: problems}
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

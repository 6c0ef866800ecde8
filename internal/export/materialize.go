package export

import (
	"fmt"
	"sort"

	"github.com/heimdex/heimdex-flow/internal/graph"
	"github.com/heimdex/heimdex-flow/internal/pipeline"
	"github.com/heimdex/heimdex-flow/internal/registry"
)

// Materialize flattens bound nodes into a pipeline configuration. Pass-through
// nodes are dropped, repeated step types get numbered keys starting at the
// second occurrence, and empty values are omitted.
func Materialize(bound []BoundNode) *pipeline.Config {
	cfg := &pipeline.Config{}
	counts := make(map[string]int)
	used := make(map[string]bool)

	for _, b := range bound {
		if !b.Def.Executable() {
			continue
		}

		key := b.StepTypeID
		for {
			counts[b.StepTypeID]++
			if n := counts[b.StepTypeID]; n > 1 {
				key = fmt.Sprintf("%s%d", b.StepTypeID, n)
			}
			if !used[key] {
				break
			}
		}
		used[key] = true

		step := pipeline.Step{Key: key, Description: b.Def.Description}
		if d, ok := b.Params[DescriptionParam].(string); ok && d != "" {
			step.Description = d
		}

		for _, spec := range b.Def.Parameters {
			if spec.Dynamic {
				continue
			}
			if v := b.Params[spec.Name]; !registry.IsEmpty(v) {
				step.Params = append(step.Params, pipeline.Param{Name: spec.Name, Value: v})
			}
		}
		for _, name := range dynamicSlots(b) {
			if v := b.Params[name]; !registry.IsEmpty(v) {
				step.Params = append(step.Params, pipeline.Param{Name: name, Value: v})
			}
		}

		cfg.Steps = append(cfg.Steps, step)
	}
	return cfg
}

// dynamicSlots returns the numbered slot names set on b, grouped by family in
// declaration order and sorted by slot number.
func dynamicSlots(b BoundNode) []string {
	type slot struct {
		family int
		n      int
		name   string
	}
	var slots []slot
	for name := range b.Params {
		spec, n, ok := b.Def.DynamicSlot(name)
		if !ok {
			continue
		}
		family := 0
		for i := range b.Def.Parameters {
			if &b.Def.Parameters[i] == spec {
				family = i
				break
			}
		}
		slots = append(slots, slot{family: family, n: n, name: name})
	}
	sort.Slice(slots, func(i, j int) bool {
		if slots[i].family != slots[j].family {
			return slots[i].family < slots[j].family
		}
		return slots[i].n < slots[j].n
	})

	names := make([]string, len(slots))
	for i, s := range slots {
		names[i] = s.name
	}
	return names
}

// Result is everything an export produces.
type Result struct {
	Order  []string
	Bound  []BoundNode
	Config *pipeline.Config
}

// Export resolves, binds, validates and materializes a graph. Nothing is
// materialized unless the graph passes validation.
func Export(doc *graph.Document, reg *registry.Registry) (*Result, error) {
	order, err := Order(doc)
	if err != nil {
		return nil, err
	}
	bound, err := Bind(doc, order, reg)
	if err != nil {
		return nil, err
	}
	if err := ValidateBound(bound).Err(); err != nil {
		return nil, err
	}
	return &Result{
		Order:  order,
		Bound:  bound,
		Config: Materialize(bound),
	}, nil
}

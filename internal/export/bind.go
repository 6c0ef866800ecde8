package export

import (
	"maps"

	"github.com/heimdex/heimdex-flow/internal/graph"
	"github.com/heimdex/heimdex-flow/internal/registry"
)

// BoundNode is a node with every connected input filled in. It is derived
// from the graph and never written back to it.
type BoundNode struct {
	ID         string
	StepTypeID string
	Def        *registry.StepDefinition
	Params     map[string]any
	// Output is the file the step is expected to produce.
	Output string
	// Connected lists the inputs that were filled from an upstream node,
	// keyed by input name.
	Connected map[string]string
}

// Bind walks nodes in the given order and fills unset inputs from the
// output of their upstream producer. A non-empty value stored on the node
// always wins over a connection.
func Bind(doc *graph.Document, order []string, reg *registry.Registry) ([]BoundNode, error) {
	nodes := make(map[string]*graph.Node, len(doc.Nodes))
	for i := range doc.Nodes {
		nodes[doc.Nodes[i].ID] = &doc.Nodes[i]
	}

	defs := make(map[string]*registry.StepDefinition, len(doc.Nodes))
	outputs := make(map[string]string, len(order))
	bound := make([]BoundNode, 0, len(order))

	for _, id := range order {
		n, ok := nodes[id]
		if !ok {
			return nil, configErr(KindDanglingEdge, id, "node is not part of the graph")
		}
		def, ok := reg.Get(n.StepTypeID)
		if !ok {
			return nil, configErr(KindUnknownStep, id, "unknown step type %q", n.StepTypeID)
		}
		defs[id] = def

		params := maps.Clone(n.ParameterValues)
		if params == nil {
			params = make(map[string]any)
		}
		b := BoundNode{
			ID:         id,
			StepTypeID: n.StepTypeID,
			Def:        def,
			Params:     params,
			Connected:  make(map[string]string),
		}

		seen := make(map[string]bool)
		for _, c := range doc.Incoming(id) {
			if seen[c.ToInputName] {
				return nil, configErr(KindDuplicateInput, id, "input %q has more than one connection", c.ToInputName)
			}
			seen[c.ToInputName] = true

			if _, ok := nodes[c.FromNodeID]; !ok {
				return nil, configErr(KindDanglingEdge, id, "connection from unknown node %q", c.FromNodeID)
			}
			upDef, ok := defs[c.FromNodeID]
			if !ok {
				return nil, configErr(KindMalformed, id, "producer %q is ordered after its consumer", c.FromNodeID)
			}
			if !upDef.HasOutput(c.FromOutputName) {
				return nil, configErr(KindUnknownSocket, c.FromNodeID, "step %s has no output %q", upDef.ID, c.FromOutputName)
			}
			if !def.AcceptsInput(c.ToInputName) {
				return nil, configErr(KindUnknownSocket, id, "step %s has no input %q", def.ID, c.ToInputName)
			}

			if registry.IsEmpty(params[c.ToInputName]) {
				params[c.ToInputName] = outputs[c.FromNodeID]
				b.Connected[c.ToInputName] = c.FromNodeID
			}
		}

		b.Output = registry.OutputName(def, params)
		outputs[id] = b.Output
		bound = append(bound, b)
	}
	return bound, nil
}

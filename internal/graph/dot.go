package graph

import (
	"errors"
	"fmt"
	"io"

	dgraph "github.com/dominikbraun/graph"
	"github.com/dominikbraun/graph/draw"
)

// WriteDOT renders the document as a Graphviz digraph. Parallel connections
// between the same pair of nodes collapse into one edge labelled with the
// first input name.
func WriteDOT(doc *Document, w io.Writer) error {
	g := dgraph.New(dgraph.StringHash, dgraph.Directed())

	for _, n := range doc.Nodes {
		label := fmt.Sprintf("%s\n%s", n.ID, n.StepTypeID)
		if err := g.AddVertex(n.ID, dgraph.VertexAttribute("label", label)); err != nil {
			return fmt.Errorf("add node %s: %w", n.ID, err)
		}
	}

	for _, c := range doc.Connections {
		err := g.AddEdge(c.FromNodeID, c.ToNodeID, dgraph.EdgeAttribute("label", c.ToInputName))
		if err != nil && !errors.Is(err, dgraph.ErrEdgeAlreadyExists) {
			return fmt.Errorf("add connection %s -> %s: %w", c.FromNodeID, c.ToNodeID, err)
		}
	}

	return draw.DOT(g, w)
}

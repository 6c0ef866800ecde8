package export

import (
	"github.com/heimdex/heimdex-flow/internal/graph"
)

type mark uint8

const (
	unvisited mark = iota
	visiting
	visited
)

// Order returns node ids such that every producer precedes its consumers.
// Nodes with no dependency between them keep document order. A cycle yields
// a *CycleError and no partial order.
func Order(doc *graph.Document) ([]string, error) {
	index := make(map[string]int, len(doc.Nodes))
	for i, n := range doc.Nodes {
		if _, dup := index[n.ID]; dup {
			return nil, configErr(KindDuplicateNode, n.ID, "node id used more than once")
		}
		index[n.ID] = i
	}

	deps := make(map[string][]string, len(doc.Nodes))
	for _, c := range doc.Connections {
		if _, ok := index[c.FromNodeID]; !ok {
			return nil, configErr(KindDanglingEdge, c.ToNodeID, "connection from unknown node %q", c.FromNodeID)
		}
		if _, ok := index[c.ToNodeID]; !ok {
			return nil, configErr(KindDanglingEdge, c.FromNodeID, "connection to unknown node %q", c.ToNodeID)
		}
		deps[c.ToNodeID] = append(deps[c.ToNodeID], c.FromNodeID)
	}

	marks := make(map[string]mark, len(doc.Nodes))
	order := make([]string, 0, len(doc.Nodes))
	var stack []string

	var visit func(id string) error
	visit = func(id string) error {
		switch marks[id] {
		case visited:
			return nil
		case visiting:
			return &CycleError{Path: cyclePath(stack, id)}
		}

		marks[id] = visiting
		stack = append(stack, id)
		for _, dep := range deps[id] {
			if err := visit(dep); err != nil {
				return err
			}
		}
		stack = stack[:len(stack)-1]
		marks[id] = visited
		order = append(order, id)
		return nil
	}

	for _, n := range doc.Nodes {
		if err := visit(n.ID); err != nil {
			return nil, err
		}
	}
	return order, nil
}

// cyclePath cuts the visit stack at the first occurrence of id. The stack
// follows consumer -> producer links, so it is reversed to read in data flow
// direction.
func cyclePath(stack []string, id string) []string {
	start := 0
	for i, s := range stack {
		if s == id {
			start = i
			break
		}
	}
	loop := append([]string{}, stack[start:]...)
	loop = append(loop, id)
	for i, j := 0, len(loop)-1; i < j; i, j = i+1, j-1 {
		loop[i], loop[j] = loop[j], loop[i]
	}
	return loop
}

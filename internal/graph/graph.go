// Package graph is the editable node and connection model a pipeline is
// derived from. It mirrors the document the node editor exports.
package graph

import (
	"errors"
	"fmt"
	"maps"

	"github.com/google/uuid"
)

var (
	ErrDuplicateNode      = errors.New("graph: duplicate node id")
	ErrNodeNotFound       = errors.New("graph: node not found")
	ErrConnectionNotFound = errors.New("graph: connection not found")
	ErrInputConnected     = errors.New("graph: input already connected")
	ErrInvalidDocument    = errors.New("graph: invalid document")
)

// Node is one step instance. Nodes keep the order they were added in.
type Node struct {
	ID              string         `json:"id"`
	StepTypeID      string         `json:"stepTypeId"`
	ParameterValues map[string]any `json:"parameterValues,omitempty"`
}

// Connection links an output socket of one node to an input of another.
type Connection struct {
	ID             string `json:"id,omitempty"`
	FromNodeID     string `json:"fromNodeId"`
	FromOutputName string `json:"fromOutputName"`
	ToNodeID       string `json:"toNodeId"`
	ToInputName    string `json:"toInputName"`
}

// Document is the graph export contract: nodes plus connections.
type Document struct {
	Nodes       []Node       `json:"nodes"`
	Connections []Connection `json:"connections"`
}

// Node returns the node with the given id.
func (d *Document) Node(id string) (*Node, bool) {
	for i := range d.Nodes {
		if d.Nodes[i].ID == id {
			return &d.Nodes[i], true
		}
	}
	return nil, false
}

// AddNode appends a node. Node ids must be unique.
func (d *Document) AddNode(n Node) error {
	if n.ID == "" {
		return fmt.Errorf("%w: node id is empty", ErrInvalidDocument)
	}
	if _, exists := d.Node(n.ID); exists {
		return fmt.Errorf("%w: %s", ErrDuplicateNode, n.ID)
	}
	if n.ParameterValues == nil {
		n.ParameterValues = make(map[string]any)
	}
	d.Nodes = append(d.Nodes, n)
	return nil
}

// RemoveNode deletes a node and every connection touching it.
func (d *Document) RemoveNode(id string) error {
	idx := -1
	for i := range d.Nodes {
		if d.Nodes[i].ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	d.Nodes = append(d.Nodes[:idx], d.Nodes[idx+1:]...)

	kept := d.Connections[:0]
	for _, c := range d.Connections {
		if c.FromNodeID != id && c.ToNodeID != id {
			kept = append(kept, c)
		}
	}
	d.Connections = kept
	return nil
}

// Connect adds a connection. Both ends must exist and the target input must
// not already have a producer. A missing id is generated.
func (d *Document) Connect(c Connection) (Connection, error) {
	if _, ok := d.Node(c.FromNodeID); !ok {
		return Connection{}, fmt.Errorf("%w: %s", ErrNodeNotFound, c.FromNodeID)
	}
	if _, ok := d.Node(c.ToNodeID); !ok {
		return Connection{}, fmt.Errorf("%w: %s", ErrNodeNotFound, c.ToNodeID)
	}
	if existing, ok := d.Producer(c.ToNodeID, c.ToInputName); ok {
		return Connection{}, fmt.Errorf("%w: %s.%s is fed by %s", ErrInputConnected, c.ToNodeID, c.ToInputName, existing.FromNodeID)
	}
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	d.Connections = append(d.Connections, c)
	return c, nil
}

// Disconnect removes a connection by id.
func (d *Document) Disconnect(id string) error {
	for i, c := range d.Connections {
		if c.ID == id {
			d.Connections = append(d.Connections[:i], d.Connections[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrConnectionNotFound, id)
}

// SetParameter stores a parameter value on a node.
func (d *Document) SetParameter(nodeID, name string, value any) error {
	n, ok := d.Node(nodeID)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, nodeID)
	}
	if n.ParameterValues == nil {
		n.ParameterValues = make(map[string]any)
	}
	n.ParameterValues[name] = value
	return nil
}

// Producer returns the connection feeding the given input, if any.
func (d *Document) Producer(nodeID, input string) (Connection, bool) {
	for _, c := range d.Connections {
		if c.ToNodeID == nodeID && c.ToInputName == input {
			return c, true
		}
	}
	return Connection{}, false
}

// Incoming returns the connections targeting a node in document order.
func (d *Document) Incoming(nodeID string) []Connection {
	var out []Connection
	for _, c := range d.Connections {
		if c.ToNodeID == nodeID {
			out = append(out, c)
		}
	}
	return out
}

// Clone returns a copy that shares no mutable state with d.
func (d *Document) Clone() *Document {
	out := &Document{
		Nodes:       make([]Node, len(d.Nodes)),
		Connections: make([]Connection, len(d.Connections)),
	}
	for i, n := range d.Nodes {
		n.ParameterValues = maps.Clone(n.ParameterValues)
		out.Nodes[i] = n
	}
	copy(out.Connections, d.Connections)
	return out
}

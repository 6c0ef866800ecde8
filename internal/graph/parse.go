package graph

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

//go:embed schema.json
var documentSchema string

var (
	schemaOnce sync.Once
	schema     *jsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = jsonschema.CompileString("graph.schema.json", documentSchema)
	})
	return schema, schemaErr
}

// Parse validates raw JSON against the document schema and decodes it.
func Parse(data []byte) (*Document, error) {
	sch, err := compiledSchema()
	if err != nil {
		return nil, fmt.Errorf("compile graph schema: %w", err)
	}

	var raw any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if err := sch.Validate(raw); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}

	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	for i := range doc.Nodes {
		if doc.Nodes[i].ParameterValues == nil {
			doc.Nodes[i].ParameterValues = make(map[string]any)
		}
	}
	return &doc, nil
}

// Load reads and parses a graph document from disk.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read graph %s: %w", path, err)
	}
	return Parse(data)
}

// IsDocument reports whether data looks like a graph document rather than a
// materialized pipeline configuration: a top-level object with a nodes array.
func IsDocument(data []byte) bool {
	var top map[string]json.RawMessage
	if err := json.Unmarshal(data, &top); err != nil {
		return false
	}
	nodes, ok := top["nodes"]
	if !ok {
		return false
	}
	nodes = bytes.TrimSpace(nodes)
	return len(nodes) > 0 && nodes[0] == '['
}

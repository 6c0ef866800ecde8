// Package export turns a graph document into an executable pipeline
// configuration: execution order, input binding, validation and
// materialization.
package export

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrConfiguration marks problems that make a graph impossible to
	// export. They are never retried.
	ErrConfiguration      = errors.New("configuration error")
	ErrCircularDependency = errors.New("circular dependency")
	ErrValidation         = errors.New("validation failed")
)

// ConfigErrorKind classifies a ConfigError.
type ConfigErrorKind string

const (
	KindUnknownStep    ConfigErrorKind = "unknown_step"
	KindDanglingEdge   ConfigErrorKind = "dangling_edge"
	KindUnknownSocket  ConfigErrorKind = "unknown_socket"
	KindDuplicateInput ConfigErrorKind = "duplicate_input"
	KindDuplicateNode  ConfigErrorKind = "duplicate_node"
	KindMalformed      ConfigErrorKind = "malformed"
)

type ConfigError struct {
	Kind   ConfigErrorKind
	NodeID string
	Msg    string
}

func (e *ConfigError) Error() string {
	if e.NodeID == "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	}
	return fmt.Sprintf("%s: node %s: %s", e.Kind, e.NodeID, e.Msg)
}

func (e *ConfigError) Unwrap() error { return ErrConfiguration }

func configErr(kind ConfigErrorKind, nodeID, format string, args ...any) error {
	return &ConfigError{Kind: kind, NodeID: nodeID, Msg: fmt.Sprintf(format, args...)}
}

// CycleError reports a dependency cycle. Path starts and ends with the same
// node id.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("circular dependency: %s", strings.Join(e.Path, " -> "))
}

func (e *CycleError) Unwrap() []error {
	return []error{ErrCircularDependency, ErrConfiguration}
}

// ValidationError carries one human readable message per violation.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	if len(e.Problems) == 1 {
		return "validation failed: " + e.Problems[0]
	}
	return fmt.Sprintf("validation failed: %d problems: %s", len(e.Problems), strings.Join(e.Problems, "; "))
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

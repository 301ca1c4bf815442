package graph

import (
	"errors"
	"fmt"
	"strings"

	"github.com/AaronLay10/Cadence/internal/value"
)

var (
	ErrNodeNotFound  = errors.New("node not found")
	ErrEdgeNotFound  = errors.New("edge not found")
	ErrPortNotFound  = errors.New("port not found")
	ErrDuplicateNode = errors.New("duplicate node id")
)

// TypeMismatchError is returned when an output cannot feed an input.
type TypeMismatchError struct {
	From     Endpoint
	FromType value.Type
	To       Endpoint
	ToType   value.Type
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("type mismatch: %s (%s) cannot connect to %s (%s)", e.From, e.FromType, e.To, e.ToType)
}

// CycleError is returned when an edge would close a loop. Path lists the
// node ids of the loop starting and ending at the source node.
type CycleError struct {
	Path []string
}

func (e *CycleError) Error() string {
	return "cycle detected: " + strings.Join(e.Path, " -> ")
}

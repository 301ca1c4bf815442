package node

import "fmt"

// MissingRequiredInputError is carried by every output of a node whose
// required input was unconnected or errored for the tick.
type MissingRequiredInputError struct {
	NodeID string
	Port   string
}

func (e *MissingRequiredInputError) Error() string {
	return fmt.Sprintf("node %s: required input %q missing", e.NodeID, e.Port)
}

// ProcessError wraps a failure raised inside a node's process function.
type ProcessError struct {
	NodeID string
	Type   string
	Err    error
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("node %s (%s): %v", e.NodeID, e.Type, e.Err)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

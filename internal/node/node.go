// Package node defines the execution contract shared by every node type.
//
// There is one concrete Node type. What distinguishes an oscillator from a
// sequencer is its Descriptor (ports, properties, category) and the Behavior
// closures supplied when the node is built.
package node

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/AaronLay10/Cadence/internal/logging"
	"github.com/AaronLay10/Cadence/internal/property"
	"github.com/AaronLay10/Cadence/internal/value"
)

// ErrDestroyed is returned in the outputs of a node that was removed.
var ErrDestroyed = errors.New("node destroyed")

// ProcessFunc computes outputs from inputs, properties and internal state.
// Missing output keys are filled with zero values by Run.
type ProcessFunc func(ctx context.Context, f Frame, in Inputs) (Outputs, error)

// Behavior holds the type-specific parts of a node.
type Behavior struct {
	Process ProcessFunc
	// PropertyChanged runs after a property was validated and stored.
	PropertyChanged func(name string, v any)
	// Destroy releases timers, decoders and in-flight calls.
	Destroy func()
}

// Position is the editor canvas location of a node.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Node is a unit of computation in the graph.
type Node struct {
	id    string
	title string
	pos   Position
	desc  *Descriptor
	props *property.Store
	b     Behavior

	outputs   Outputs
	lastErr   error
	destroyed bool
}

// New builds a node from its descriptor, declaring every property with its
// default.
func New(id string, desc *Descriptor, b Behavior) *Node {
	n := &Node{
		id:    id,
		title: desc.Title,
		desc:  desc,
		props: property.NewStore(),
		b:     b,
	}
	for _, p := range desc.Properties {
		n.props.Declare(p.Name, p.Default, p.Constraints)
	}
	n.props.OnChange(func(name string, v any) {
		if n.b.PropertyChanged != nil {
			n.b.PropertyChanged(name, v)
		}
	})
	n.outputs = n.zeroOutputs()
	return n
}

func (n *Node) ID() string { return n.id }
func (n *Node) Title() string { return n.title }
func (n *Node) SetTitle(t string) { n.title = t }
func (n *Node) Position() Position { return n.pos }
func (n *Node) SetPosition(p Position) { n.pos = p }
func (n *Node) Type() string { return n.desc.Type }
func (n *Node) Descriptor() *Descriptor { return n.desc }

// Properties exposes the node's property store.
func (n *Node) Properties() *property.Store { return n.props }

// SetProperty is shorthand for Properties().Set.
func (n *Node) SetProperty(name string, v any) error {
	return n.props.Set(name, v)
}

// Outputs returns a copy of the values produced by the last Run.
func (n *Node) Outputs() Outputs { return n.outputs.Clone() }

// Output returns the last value produced on key.
func (n *Node) Output(key string) value.Value { return n.outputs[key] }

// LastError returns the error from the last Run, if any.
func (n *Node) LastError() error { return n.lastErr }

// Destroyed reports whether Destroy was called.
func (n *Node) Destroyed() bool { return n.destroyed }

// Run evaluates the node for one frame. It never panics and always returns a
// value for every declared output: failures become error values on all ports.
func (n *Node) Run(ctx context.Context, f Frame, in Inputs) Outputs {
	if n.destroyed {
		return n.fail(ErrDestroyed)
	}

	for _, p := range n.desc.Inputs {
		if p.Required && !in.Has(p.Key) {
			return n.fail(&MissingRequiredInputError{NodeID: n.id, Port: p.Key})
		}
	}

	out, err := n.process(ctx, f, in)
	if err != nil {
		perr := &ProcessError{NodeID: n.id, Type: n.desc.Type, Err: err}
		logging.FromContext(ctx).Warn("node process failed",
			"node_id", n.id,
			"node_type", n.desc.Type,
			"error", err,
		)
		return n.fail(perr)
	}

	n.outputs = n.complete(out)
	n.lastErr = nil
	return n.outputs
}

func (n *Node) process(ctx context.Context, f Frame, in Inputs) (out Outputs, err error) {
	defer func() {
		if r := recover(); r != nil {
			logging.FromContext(ctx).Debug("node panic", "node_id", n.id, "stack", string(debug.Stack()))
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	if n.b.Process == nil {
		return Outputs{}, nil
	}
	return n.b.Process(ctx, f, in)
}

// complete keeps only declared outputs, coerces mistyped values and fills
// gaps with zero values.
func (n *Node) complete(out Outputs) Outputs {
	res := make(Outputs, len(n.desc.Outputs))
	for _, p := range n.desc.Outputs {
		v, ok := out[p.Key]
		switch {
		case !ok || v.IsZero():
			res[p.Key] = value.Zero(p.Type)
		case v.Type == p.Type:
			res[p.Key] = v
		default:
			if cv, ok := value.Coerce(v, p.Type); ok {
				res[p.Key] = cv
			} else {
				res[p.Key] = value.Error(p.Type, fmt.Errorf("output %s: got %s", p.Key, v.Type))
			}
		}
	}
	return res
}

func (n *Node) fail(err error) Outputs {
	res := make(Outputs, len(n.desc.Outputs))
	for _, p := range n.desc.Outputs {
		res[p.Key] = value.Error(p.Type, err)
	}
	n.outputs = res
	n.lastErr = err
	return res
}

func (n *Node) zeroOutputs() Outputs {
	res := make(Outputs, len(n.desc.Outputs))
	for _, p := range n.desc.Outputs {
		res[p.Key] = value.Zero(p.Type)
	}
	return res
}

// Destroy releases the node's resources. It is safe to call more than once.
func (n *Node) Destroy() {
	if n.destroyed {
		return
	}
	n.destroyed = true
	if n.b.Destroy != nil {
		n.b.Destroy()
	}
}

package nodes

import (
	"context"

	"github.com/AaronLay10/Cadence/internal/expr"
	"github.com/AaronLay10/Cadence/internal/node"
	"github.com/AaronLay10/Cadence/internal/property"
	"github.com/AaronLay10/Cadence/internal/value"
)

var expressionDesc = &node.Descriptor{
	Type:     "control/expression",
	Title:    "Expression",
	Category: node.CategoryControl,
	Inputs: []node.Port{
		node.In("a", value.TypeNumber, "A"),
		node.In("b", value.TypeNumber, "B"),
		node.In("c", value.TypeNumber, "C"),
		node.In("d", value.TypeNumber, "D"),
	},
	Outputs: []node.Port{
		node.Out("result", value.TypeNumber, "Result"),
		node.Out("error", value.TypeString, "Error"),
	},
	Properties: []node.PropertyDecl{
		node.Prop("expression", "a + b", property.Text()),
	},
}

type expression struct {
	props      *property.Store
	sw         stopwatch
	t          float64
	prog       *expr.Program
	compileErr error
	last       float64
}

func newExpression(id string, env *Env) *node.Node {
	s := &expression{}
	n := node.New(id, expressionDesc, node.Behavior{
		Process: s.process,
		PropertyChanged: func(name string, v any) {
			if name == "expression" {
				s.prog, s.compileErr = nil, nil
			}
		},
	})
	s.props = n.Properties()
	return n
}

// process compiles the expression lazily after every change. Compile and
// evaluation errors are reported on the error port while result keeps the
// last good value.
func (s *expression) process(ctx context.Context, f node.Frame, in node.Inputs) (node.Outputs, error) {
	dt := s.sw.lap(f.Now)
	s.t += dt

	if s.prog == nil && s.compileErr == nil {
		s.prog, s.compileErr = expr.Compile(s.props.String("expression"))
	}
	if s.compileErr != nil {
		return node.Outputs{
			"result": value.Number(s.last),
			"error":  value.String(s.compileErr.Error()),
		}, nil
	}

	res, err := s.prog.Eval(map[string]float64{
		"a":  in.Float("a", 0),
		"b":  in.Float("b", 0),
		"c":  in.Float("c", 0),
		"d":  in.Float("d", 0),
		"t":  s.t,
		"dt": dt,
	})
	if err != nil {
		return node.Outputs{
			"result": value.Number(s.last),
			"error":  value.String(err.Error()),
		}, nil
	}
	s.last = res
	return node.Outputs{
		"result": value.Number(res),
		"error":  value.String(""),
	}, nil
}

package nodes

import (
	"context"
	"math/rand/v2"

	"github.com/AaronLay10/Cadence/internal/node"
	"github.com/AaronLay10/Cadence/internal/property"
	"github.com/AaronLay10/Cadence/internal/value"
)

const maxSteps = 16

var sequencerDesc = &node.Descriptor{
	Type:     "control/sequencer",
	Title:    "Sequencer",
	Category: node.CategoryControl,
	Inputs: []node.Port{
		node.Required("clock", value.TypeBoolean, "Clock"),
		node.In("reset", value.TypeBoolean, "Reset"),
	},
	Outputs: []node.Port{
		node.Out("value", value.TypeNumber, "Value"),
		node.Out("gate", value.TypeBoolean, "Gate"),
		node.Out("step", value.TypeNumber, "Step"),
	},
	Properties: []node.PropertyDecl{
		node.Prop("steps", 8, property.Integer(1, maxSteps)),
		node.Prop("direction", "forward", property.Enum("forward", "backward", "pingpong", "random")),
		node.Prop("values", defaultSteps(), property.Array(-1e6, 1e6)),
		node.Prop("gates", filled(maxSteps, 1), property.Array(0, 1)),
		node.Prop("seed", 1, property.Integer(0, 1<<30)),
	},
}

func defaultSteps() []float64 {
	out := make([]float64, maxSteps)
	for i := range out {
		out[i] = float64(i%8) / 8
	}
	return out
}

func filled(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

type sequencer struct {
	props *property.Store
	clock edge
	rng   *rand.Rand
	index int
	dir   int
}

func newSequencer(id string, env *Env) *node.Node {
	s := &sequencer{dir: 1}
	n := node.New(id, sequencerDesc, node.Behavior{
		Process: s.process,
		PropertyChanged: func(name string, v any) {
			switch name {
			case "seed":
				s.rng = nil
			case "steps":
				if n := s.props.Int("steps"); s.index >= n {
					s.index = 0
				}
			}
		},
	})
	s.props = n.Properties()
	return n
}

func (s *sequencer) process(ctx context.Context, f node.Frame, in node.Inputs) (node.Outputs, error) {
	clk := in.Bool("clock", false)
	if rising, _ := s.clock.update(clk); rising {
		s.advance()
	}
	if in.Bool("reset", false) {
		s.index = 0
		s.dir = 1
	}

	values := s.props.Floats("values")
	gates := s.props.Floats("gates")
	v := 0.0
	if len(values) > 0 {
		v = values[s.index%len(values)]
	}
	open := true
	if len(gates) > 0 {
		open = gates[s.index%len(gates)] >= 0.5
	}

	return node.Outputs{
		"value": value.Number(v),
		"gate":  value.Bool(open && clk),
		"step":  value.Number(float64(s.index)),
	}, nil
}

func (s *sequencer) advance() {
	n := s.props.Int("steps")
	if n <= 1 {
		s.index = 0
		return
	}
	switch s.props.String("direction") {
	case "backward":
		s.index = (s.index - 1 + n) % n
	case "pingpong":
		next := s.index + s.dir
		if next >= n {
			s.dir = -1
			next = n - 2
		} else if next < 0 {
			s.dir = 1
			next = 1
		}
		s.index = next
	case "random":
		if s.rng == nil {
			seed := uint64(s.props.Int("seed"))
			s.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
		}
		s.index = s.rng.IntN(n)
	default:
		s.index = (s.index + 1) % n
	}
}

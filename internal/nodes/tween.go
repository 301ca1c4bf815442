package nodes

import (
	"context"

	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"

	"github.com/AaronLay10/Cadence/internal/node"
	"github.com/AaronLay10/Cadence/internal/property"
	"github.com/AaronLay10/Cadence/internal/value"
)

var tweenDesc = &node.Descriptor{
	Type:     "control/tween",
	Title:    "Tween",
	Category: node.CategoryControl,
	Inputs:   []node.Port{node.In("trigger", value.TypeEvent, "Restart")},
	Outputs: []node.Port{
		node.Out("value", value.TypeNumber, "Value"),
		node.Out("done", value.TypeBoolean, "Done"),
	},
	Properties: []node.PropertyDecl{
		node.Prop("from", 0.0, property.Number(-1e6, 1e6, 0.01)),
		node.Prop("to", 1.0, property.Number(-1e6, 1e6, 0.01)),
		node.Prop("duration", 1.0, property.Number(0.01, 600, 0.01)),
		node.Prop("easing", "linear", property.Enum(easingNames...)),
	},
}

type tween struct {
	props   *property.Store
	sw      stopwatch
	trigger edge
	tw      *gween.Tween
	current float64
	done    bool
}

func newTween(id string, env *Env) *node.Node {
	s := &tween{}
	n := node.New(id, tweenDesc, node.Behavior{
		Process: s.process,
		PropertyChanged: func(name string, v any) {
			s.tw = nil
		},
	})
	s.props = n.Properties()
	return n
}

func (s *tween) restart() {
	fn := easings[s.props.String("easing")]
	if fn == nil {
		fn = ease.Linear
	}
	s.tw = gween.New(
		float32(s.props.Float("from")),
		float32(s.props.Float("to")),
		float32(s.props.Float("duration")),
		fn,
	)
	s.current = s.props.Float("from")
	s.done = false
}

// process plays the tween once from the first evaluation and again on
// every trigger edge. Changing a property restarts it.
func (s *tween) process(ctx context.Context, f node.Frame, in node.Inputs) (node.Outputs, error) {
	dt := s.sw.lap(f.Now)
	rising, _ := s.trigger.update(in.Bool("trigger", false))

	if s.tw == nil || rising {
		s.restart()
		dt = 0
	}
	if !s.done {
		v, finished := s.tw.Update(float32(dt))
		s.current = float64(v)
		s.done = finished
	}

	return node.Outputs{
		"value": value.Number(s.current),
		"done":  value.Bool(s.done),
	}, nil
}

package nodes

import (
	"context"
	"math"
	"math/rand/v2"
	"strconv"

	"github.com/AaronLay10/Cadence/internal/node"
	"github.com/AaronLay10/Cadence/internal/property"
	"github.com/AaronLay10/Cadence/internal/value"
)

func registerControl(r *Registry) {
	r.Register(valueDesc, newValue)
	r.Register(mathDesc, newMath)
	r.Register(lfoDesc, newLFO)
	r.Register(envelopeDesc, newEnvelope)
	r.Register(sequencerDesc, newSequencer)
	r.Register(clockDesc, newClock)
	r.Register(randomDesc, newRandom)
	r.Register(expressionDesc, newExpression)
	r.Register(tweenDesc, newTween)
	r.Register(smoothDesc, newSmooth)
}

var valueDesc = &node.Descriptor{
	Type:     "control/value",
	Title:    "Value",
	Category: node.CategoryControl,
	Outputs:  []node.Port{node.Out("value", value.TypeNumber, "Value")},
	Properties: []node.PropertyDecl{
		node.Prop("value", 0.0, property.Number(-1e6, 1e6, 0.01)),
	},
}

func newValue(id string, env *Env) *node.Node {
	var props *property.Store
	n := node.New(id, valueDesc, node.Behavior{
		Process: func(ctx context.Context, f node.Frame, in node.Inputs) (node.Outputs, error) {
			return node.Outputs{"value": value.Number(props.Float("value"))}, nil
		},
	})
	props = n.Properties()
	return n
}

var mathDesc = &node.Descriptor{
	Type:     "control/math",
	Title:    "Math",
	Category: node.CategoryControl,
	Inputs: []node.Port{
		node.In("a", value.TypeNumber, "A"),
		node.In("b", value.TypeNumber, "B"),
	},
	Outputs: []node.Port{node.Out("result", value.TypeNumber, "Result")},
	Properties: []node.PropertyDecl{
		node.Prop("operation", "add", property.Enum("add", "subtract", "multiply", "divide", "min", "max", "pow", "modulo")),
		node.Prop("a", 0.0, property.Number(-1e6, 1e6, 0.01)),
		node.Prop("b", 0.0, property.Number(-1e6, 1e6, 0.01)),
	},
}

func newMath(id string, env *Env) *node.Node {
	var props *property.Store
	n := node.New(id, mathDesc, node.Behavior{
		Process: func(ctx context.Context, f node.Frame, in node.Inputs) (node.Outputs, error) {
			a := in.Float("a", props.Float("a"))
			b := in.Float("b", props.Float("b"))
			return node.Outputs{"result": value.Number(applyMath(props.String("operation"), a, b))}, nil
		},
	})
	props = n.Properties()
	return n
}

// applyMath never returns NaN or Inf: division by zero yields 0.
func applyMath(op string, a, b float64) float64 {
	var r float64
	switch op {
	case "subtract":
		r = a - b
	case "multiply":
		r = a * b
	case "divide":
		if b == 0 {
			return 0
		}
		r = a / b
	case "min":
		r = math.Min(a, b)
	case "max":
		r = math.Max(a, b)
	case "pow":
		r = math.Pow(a, b)
	case "modulo":
		if b == 0 {
			return 0
		}
		r = math.Mod(a, b)
	default:
		r = a + b
	}
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return r
}

var lfoDesc = &node.Descriptor{
	Type:     "control/lfo",
	Title:    "LFO",
	Category: node.CategoryControl,
	Inputs:   []node.Port{node.In("frequency", value.TypeNumber, "Frequency")},
	Outputs: []node.Port{
		node.Out("value", value.TypeNumber, "Value"),
		node.Out("phase", value.TypeNumber, "Phase"),
	},
	Properties: []node.PropertyDecl{
		node.Prop("waveform", "sine", property.Enum(waveforms...)),
		node.Prop("frequency", 1.0, property.Number(0.01, 20, 0.01)),
		node.Prop("amplitude", 1.0, property.Number(0, 1, 0.01)),
		node.Prop("offset", 0.0, property.Number(-1, 1, 0.01)),
	},
}

type lfo struct {
	props *property.Store
	sw    stopwatch
	phase float64
}

func newLFO(id string, env *Env) *node.Node {
	s := &lfo{}
	n := node.New(id, lfoDesc, node.Behavior{Process: s.process})
	s.props = n.Properties()
	return n
}

func (s *lfo) process(ctx context.Context, f node.Frame, in node.Inputs) (node.Outputs, error) {
	freq := math.Max(0, in.Float("frequency", s.props.Float("frequency")))
	s.phase = math.Mod(s.phase+s.sw.lap(f.Now)*freq, 1)

	v := s.props.Float("offset") + s.props.Float("amplitude")*wave(s.props.String("waveform"), s.phase)
	return node.Outputs{
		"value": value.Number(v),
		"phase": value.Number(s.phase),
	}, nil
}

// clockDivisions are the supported ticks per beat.
var clockDivisions = []string{"1", "2", "4"}

var clockDesc = &node.Descriptor{
	Type:     "control/clock",
	Title:    "Clock",
	Category: node.CategoryControl,
	Outputs: []node.Port{
		node.Out("tick", value.TypeEvent, "Tick"),
		node.Out("beat", value.TypeNumber, "Beat"),
		node.Out("phase", value.TypeNumber, "Phase"),
	},
	Properties: []node.PropertyDecl{
		node.Prop("bpm", 120.0, property.Number(20, 300, 1)),
		node.Prop("division", "1", property.Enum(clockDivisions...)),
		node.Prop("running", true, property.Boolean()),
	},
}

type clock struct {
	props *property.Store
	sw    stopwatch
	beats float64
	fired int
}

func newClock(id string, env *Env) *node.Node {
	s := &clock{fired: -1}
	n := node.New(id, clockDesc, node.Behavior{Process: s.process})
	s.props = n.Properties()
	return n
}

// process fires one tick per 1/division of a beat, including the downbeat
// on the first evaluation.
func (s *clock) process(ctx context.Context, f node.Frame, in node.Inputs) (node.Outputs, error) {
	dt := s.sw.lap(f.Now)
	if s.props.Bool("running") {
		s.beats += dt * s.props.Float("bpm") / 60
	}

	div, err := strconv.ParseFloat(s.props.String("division"), 64)
	if err != nil || div < 1 {
		div = 1
	}
	current := int(math.Floor(s.beats * div))
	tick := s.props.Bool("running") && current > s.fired
	if tick {
		s.fired = current
	}

	return node.Outputs{
		"tick":  value.Event(tick),
		"beat":  value.Number(math.Floor(s.beats)),
		"phase": value.Number(s.beats - math.Floor(s.beats)),
	}, nil
}

var randomDesc = &node.Descriptor{
	Type:     "control/random",
	Title:    "Random",
	Category: node.CategoryControl,
	Inputs:   []node.Port{node.In("trigger", value.TypeEvent, "Trigger")},
	Outputs:  []node.Port{node.Out("value", value.TypeNumber, "Value")},
	Properties: []node.PropertyDecl{
		node.Prop("seed", 1, property.Integer(0, 1<<30)),
		node.Prop("min", 0.0, property.Number(-1e6, 1e6, 0.01)),
		node.Prop("max", 1.0, property.Number(-1e6, 1e6, 0.01)),
		node.Prop("rate", 0.0, property.Number(0, 60, 0.1)),
	},
}

type random struct {
	props   *property.Store
	sw      stopwatch
	trigger edge
	rng     *rand.Rand
	acc     float64
	current float64
	primed  bool
}

func newRandom(id string, env *Env) *node.Node {
	s := &random{}
	n := node.New(id, randomDesc, node.Behavior{
		Process: s.process,
		PropertyChanged: func(name string, v any) {
			if name == "seed" {
				s.rng = nil
				s.primed = false
			}
		},
	})
	s.props = n.Properties()
	return n
}

// process draws a new value on the first evaluation, on every trigger edge
// and every 1/rate seconds. A rate of 0 without a trigger connection draws
// every tick.
func (s *random) process(ctx context.Context, f node.Frame, in node.Inputs) (node.Outputs, error) {
	if s.rng == nil {
		seed := uint64(s.props.Int("seed"))
		s.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
	dt := s.sw.lap(f.Now)
	rising, _ := s.trigger.update(in.Bool("trigger", false))

	draw := !s.primed || rising
	if rate := s.props.Float("rate"); rate > 0 {
		s.acc += dt
		if period := 1 / rate; s.acc >= period {
			s.acc = math.Mod(s.acc, period)
			draw = true
		}
	} else if !in.Has("trigger") {
		draw = true
	}

	if draw {
		lo, hi := s.props.Float("min"), s.props.Float("max")
		s.current = lo + s.rng.Float64()*(hi-lo)
		s.primed = true
	}
	return node.Outputs{"value": value.Number(s.current)}, nil
}

var smoothDesc = &node.Descriptor{
	Type:     "control/smooth",
	Title:    "Smooth",
	Category: node.CategoryControl,
	Inputs:   []node.Port{node.Required("in", value.TypeNumber, "In")},
	Outputs:  []node.Port{node.Out("value", value.TypeNumber, "Value")},
	Properties: []node.PropertyDecl{
		node.Prop("time", 0.1, property.Number(0, 10, 0.01)),
	},
}

type smooth struct {
	props   *property.Store
	sw      stopwatch
	current float64
	primed  bool
}

func newSmooth(id string, env *Env) *node.Node {
	s := &smooth{}
	n := node.New(id, smoothDesc, node.Behavior{Process: s.process})
	s.props = n.Properties()
	return n
}

// process is a one-pole low-pass: after `time` seconds the output has
// covered 63% of a step.
func (s *smooth) process(ctx context.Context, f node.Frame, in node.Inputs) (node.Outputs, error) {
	target := in.Float("in", 0)
	dt := s.sw.lap(f.Now)
	tc := s.props.Float("time")

	if !s.primed || tc <= 0 {
		s.current, s.primed = target, true
	} else {
		alpha := 1 - math.Exp(-dt/tc)
		s.current += alpha * (target - s.current)
	}
	return node.Outputs{"value": value.Number(s.current)}, nil
}

package nodes

import (
	"context"

	"github.com/tanema/gween/ease"

	"github.com/AaronLay10/Cadence/internal/node"
	"github.com/AaronLay10/Cadence/internal/property"
	"github.com/AaronLay10/Cadence/internal/value"
)

// Envelope stages.
const (
	StageIdle    = "idle"
	StageAttack  = "attack"
	StageDecay   = "decay"
	StageSustain = "sustain"
	StageRelease = "release"
)

var envelopeDesc = &node.Descriptor{
	Type:     "control/envelope",
	Title:    "Envelope",
	Category: node.CategoryControl,
	Inputs: []node.Port{
		node.In("trigger", value.TypeEvent, "Trigger"),
		node.In("gate", value.TypeBoolean, "Gate"),
	},
	Outputs: []node.Port{
		node.Out("value", value.TypeNumber, "Value"),
		node.Out("stage", value.TypeString, "Stage"),
	},
	Properties: []node.PropertyDecl{
		node.Prop("attack", 0.1, property.Number(0.001, 10, 0.001)),
		node.Prop("decay", 0.3, property.Number(0.001, 10, 0.001)),
		node.Prop("sustain", 0.7, property.Number(0, 1, 0.01)),
		node.Prop("release", 0.5, property.Number(0.001, 10, 0.001)),
		node.Prop("curve", "linear", property.Enum("linear", "exponential", "logarithmic")),
	},
}

var envelopeCurves = map[string]ease.TweenFunc{
	"linear":      ease.Linear,
	"exponential": ease.InQuad,
	"logarithmic": ease.OutQuad,
}

type envelope struct {
	props *property.Store
	sw    stopwatch

	trigger edge
	gate    edge

	stage      string
	now        float64
	stageStart float64
	from       float64
	value      float64
}

func newEnvelope(id string, env *Env) *node.Node {
	s := &envelope{stage: StageIdle}
	n := node.New(id, envelopeDesc, node.Behavior{Process: s.process})
	s.props = n.Properties()
	return n
}

func (s *envelope) enter(stage string) {
	s.stage = stage
	s.stageStart = s.now
	s.from = s.value
}

// process runs the ADSR state machine. A stage that completes pins the
// value to its boundary (1 after attack, sustain after decay, 0 after
// release) for that tick; the next stage starts from that tick. An
// unconnected gate follows the trigger level.
func (s *envelope) process(ctx context.Context, f node.Frame, in node.Inputs) (node.Outputs, error) {
	s.now += s.sw.lap(f.Now)

	trig := in.Bool("trigger", false)
	gate := in.Bool("gate", trig)
	trigRise, _ := s.trigger.update(trig)
	_, gateFall := s.gate.update(gate)

	if trigRise {
		s.enter(StageAttack)
	}
	if gateFall && s.stage != StageIdle && s.stage != StageRelease && !trigRise {
		s.enter(StageRelease)
	}

	curve := envelopeCurves[s.props.String("curve")]
	if curve == nil {
		curve = ease.Linear
	}
	elapsed := s.now - s.stageStart

	switch s.stage {
	case StageAttack:
		if d := s.props.Float("attack"); elapsed >= d {
			s.value = 1
			s.enter(StageDecay)
		} else {
			s.value = lerp(s.from, 1, shape(curve, elapsed/d))
		}
	case StageDecay:
		sustain := s.props.Float("sustain")
		if d := s.props.Float("decay"); elapsed >= d {
			s.value = sustain
			s.enter(StageSustain)
		} else {
			s.value = lerp(s.from, sustain, shape(curve, elapsed/d))
		}
	case StageSustain:
		s.value = s.props.Float("sustain")
		if !gate {
			s.enter(StageRelease)
		}
	case StageRelease:
		if d := s.props.Float("release"); elapsed >= d {
			s.value = 0
			s.enter(StageIdle)
		} else {
			s.value = lerp(s.from, 0, shape(curve, elapsed/d))
		}
	default:
		s.value = 0
	}

	return node.Outputs{
		"value": value.Number(s.value),
		"stage": value.String(s.stage),
	}, nil
}

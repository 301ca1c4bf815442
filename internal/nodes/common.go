package nodes

import (
	"math"
	"time"

	"github.com/tanema/gween/ease"

	"github.com/AaronLay10/Cadence/internal/node"
	"github.com/AaronLay10/Cadence/internal/value"
)

// stopwatch measures time between a node's own evaluations.
type stopwatch struct {
	last    time.Time
	started bool
}

// lap returns seconds since the previous lap; the first lap returns 0.
func (s *stopwatch) lap(now time.Time) float64 {
	if !s.started {
		s.last, s.started = now, true
		return 0
	}
	d := now.Sub(s.last).Seconds()
	s.last = now
	if d < 0 {
		return 0
	}
	return d
}

// edge detects level transitions of a boolean signal.
type edge struct {
	prev bool
}

func (e *edge) update(v bool) (rising, falling bool) {
	rising = v && !e.prev
	falling = !v && e.prev
	e.prev = v
	return rising, falling
}

var easings = map[string]ease.TweenFunc{
	"linear":     ease.Linear,
	"inQuad":     ease.InQuad,
	"outQuad":    ease.OutQuad,
	"inOutQuad":  ease.InOutQuad,
	"inOutCubic": ease.InOutCubic,
	"outCubic":   ease.OutCubic,
	"inOutSine":  ease.InOutSine,
	"outBounce":  ease.OutBounce,
	"outElastic": ease.OutElastic,
}

var easingNames = []string{"linear", "inQuad", "outQuad", "inOutQuad", "inOutCubic", "outCubic", "inOutSine", "outBounce", "outElastic"}

// shape applies an easing function to a fraction in [0, 1].
func shape(fn ease.TweenFunc, frac float64) float64 {
	if frac <= 0 {
		return 0
	}
	if frac >= 1 {
		return 1
	}
	return float64(fn(float32(frac), 0, 1, 1))
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

// wave evaluates a periodic waveform at phase in [0, 1).
func wave(kind string, phase float64) float64 {
	switch kind {
	case "triangle":
		return 1 - 4*math.Abs(phase-0.5)
	case "saw":
		return 2*phase - 1
	case "square":
		if phase < 0.5 {
			return 1
		}
		return -1
	default:
		return math.Sin(2 * math.Pi * phase)
	}
}

var waveforms = []string{"sine", "triangle", "saw", "square"}

// audioIn returns the audio on key, or an empty buffer at the env sample
// rate when the upstream port has produced nothing yet.
func audioIn(in node.Inputs, key string, env *Env) *value.Audio {
	a := in.Audio(key)
	if a == nil {
		return &value.Audio{SampleRate: env.sampleRate()}
	}
	if a.SampleRate <= 0 {
		cp := *a
		cp.SampleRate = env.sampleRate()
		return &cp
	}
	return a
}

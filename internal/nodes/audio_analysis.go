package nodes

import (
	"context"
	"math/bits"

	"github.com/AaronLay10/Cadence/internal/dsp"
	"github.com/AaronLay10/Cadence/internal/node"
	"github.com/AaronLay10/Cadence/internal/property"
	"github.com/AaronLay10/Cadence/internal/value"
)

var analyserDesc = &node.Descriptor{
	Type:     "audio/analyser",
	Title:    "Analyser",
	Category: node.CategoryAudio,
	Inputs:   []node.Port{node.Required("audio", value.TypeAudio, "Audio")},
	Outputs: []node.Port{
		node.Out("spectrum", value.TypeArray, "Spectrum"),
		node.Out("level", value.TypeNumber, "Level"),
		node.Out("bass", value.TypeNumber, "Bass"),
		node.Out("mid", value.TypeNumber, "Mid"),
		node.Out("treble", value.TypeNumber, "Treble"),
	},
	Properties: []node.PropertyDecl{
		node.Prop("fftSize", 2048, property.Integer(256, 8192)),
		node.Prop("smoothing", 0.8, property.Number(0, 0.99, 0.01)),
	},
}

// Band edges in Hz.
const (
	bassLow    = 20
	bassHigh   = 250
	midHigh    = 4000
	trebleHigh = 20000
)

type analyser struct {
	props    *property.Store
	env      *Env
	analyzer *dsp.Analyzer
}

func newAnalyser(id string, env *Env) *node.Node {
	s := &analyser{env: env}
	n := node.New(id, analyserDesc, node.Behavior{
		Process: s.process,
		PropertyChanged: func(name string, v any) {
			switch name {
			case "fftSize":
				s.analyzer = nil
			case "smoothing":
				if s.analyzer != nil {
					s.analyzer.SetSmoothing(s.props.Float("smoothing"))
				}
			}
		},
	})
	s.props = n.Properties()
	return n
}

// floorPow2 rounds n down to a power of two.
func floorPow2(n int) int {
	if n < 1 {
		return 1
	}
	return 1 << (bits.Len(uint(n)) - 1)
}

func (s *analyser) process(ctx context.Context, f node.Frame, in node.Inputs) (node.Outputs, error) {
	if s.analyzer == nil {
		a, err := dsp.NewAnalyzer(floorPow2(s.props.Int("fftSize")), s.props.Float("smoothing"))
		if err != nil {
			return nil, err
		}
		s.analyzer = a
	}

	a := audioIn(in, "audio", s.env)
	mags, err := s.analyzer.Magnitudes(a.Samples)
	if err != nil {
		return nil, err
	}
	sr := a.SampleRate

	return node.Outputs{
		"spectrum": value.Array(mags),
		"level":    value.Number(dsp.RMS(a.Samples)),
		"bass":     value.Number(dsp.BandEnergy(mags, sr, bassLow, bassHigh)),
		"mid":      value.Number(dsp.BandEnergy(mags, sr, bassHigh, midHigh)),
		"treble":   value.Number(dsp.BandEnergy(mags, sr, midHigh, trebleHigh)),
	}, nil
}

var pitchDesc = &node.Descriptor{
	Type:     "audio/pitch",
	Title:    "Pitch",
	Category: node.CategoryAudio,
	Inputs:   []node.Port{node.Required("audio", value.TypeAudio, "Audio")},
	Outputs: []node.Port{
		node.Out("frequency", value.TypeNumber, "Frequency"),
		node.Out("note", value.TypeString, "Note"),
		node.Out("confidence", value.TypeNumber, "Confidence"),
	},
	Properties: []node.PropertyDecl{
		node.Prop("minFrequency", 60.0, property.Number(20, 2000, 1)),
		node.Prop("maxFrequency", 1500.0, property.Number(100, 8000, 1)),
		node.Prop("threshold", 0.5, property.Number(0, 1, 0.01)),
	},
}

func newPitch(id string, env *Env) *node.Node {
	var props *property.Store
	n := node.New(id, pitchDesc, node.Behavior{
		Process: func(ctx context.Context, f node.Frame, in node.Inputs) (node.Outputs, error) {
			a := audioIn(in, "audio", env)
			freq, conf := dsp.DetectPitch(a.Samples, a.SampleRate, props.Float("minFrequency"), props.Float("maxFrequency"))
			if conf < props.Float("threshold") {
				freq = 0
			}
			return node.Outputs{
				"frequency":  value.Number(freq),
				"note":       value.String(dsp.NoteName(freq)),
				"confidence": value.Number(conf),
			}, nil
		},
	})
	props = n.Properties()
	return n
}

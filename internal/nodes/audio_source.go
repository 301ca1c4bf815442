package nodes

import (
	"context"
	"math"

	"github.com/AaronLay10/Cadence/internal/audio"
	"github.com/AaronLay10/Cadence/internal/node"
	"github.com/AaronLay10/Cadence/internal/property"
	"github.com/AaronLay10/Cadence/internal/value"
)

func registerAudio(r *Registry) {
	r.Register(fileDesc, newFile)
	r.Register(oscillatorDesc, newOscillator)
	r.Register(analyserDesc, newAnalyser)
	r.Register(pitchDesc, newPitch)
	r.Register(beatDesc, newBeat)
	r.Register(keyDesc, newKey)
	r.Register(recorderDesc, newRecorder)
}

var fileDesc = &node.Descriptor{
	Type:     "audio/file",
	Title:    "Audio File",
	Category: node.CategoryAudio,
	Outputs: []node.Port{
		node.Out("audio", value.TypeAudio, "Audio"),
		node.Out("position", value.TypeNumber, "Position"),
		node.Out("playing", value.TypeBoolean, "Playing"),
	},
	Properties: []node.PropertyDecl{
		node.Prop("path", "", property.Text()),
		node.Prop("playing", true, property.Boolean()),
		node.Prop("loop", false, property.Boolean()),
		node.Prop("gain", 1.0, property.Number(0, 4, 0.01)),
		node.Prop("window", 2048, property.Integer(256, 8192)),
	},
}

type file struct {
	props *property.Store
	env   *Env
	sw    stopwatch

	load    *node.Async[*audio.Clip]
	clip    *audio.Clip
	loadErr error
	started bool
	pos     float64
}

func newFile(id string, env *Env) *node.Node {
	s := &file{env: env, load: &node.Async[*audio.Clip]{}}
	n := node.New(id, fileDesc, node.Behavior{
		Process: s.process,
		PropertyChanged: func(name string, v any) {
			if name == "path" {
				s.load.Close()
				s.load = &node.Async[*audio.Clip]{}
				s.clip, s.loadErr, s.started = nil, nil, false
				s.pos = 0
			}
		},
		Destroy: func() { s.load.Close() },
	})
	s.props = n.Properties()
	return n
}

// process decodes the file in the background on first use and plays it
// back by wall-clock time. Until decoding finishes the output is silence.
// A decode failure turns every output into an error until the path changes.
func (s *file) process(ctx context.Context, f node.Frame, in node.Inputs) (node.Outputs, error) {
	dt := s.sw.lap(f.Now)
	path := s.props.String("path")
	window := s.props.Int("window")

	if path != "" && s.clip == nil && s.loadErr == nil {
		if !s.started {
			s.started = s.load.Start(ctx, func(context.Context) (*audio.Clip, error) {
				resolved, err := s.env.resolve(path)
				if err != nil {
					return nil, err
				}
				return audio.Load(resolved)
			})
		}
		if r, ok := s.load.Poll(); ok {
			s.clip, s.loadErr = r.Value, r.Err
		}
	}
	if s.loadErr != nil {
		return nil, s.loadErr
	}

	if s.clip == nil {
		return node.Outputs{
			"audio":    value.AudioValue(&value.Audio{SampleRate: s.env.sampleRate(), Samples: make([]float64, window), Source: path}),
			"position": value.Number(0),
			"playing":  value.Bool(false),
		}, nil
	}

	playing := s.props.Bool("playing")
	loop := s.props.Bool("loop")
	if playing {
		s.pos += dt
		if dur := s.clip.Duration(); s.pos >= dur {
			if loop && dur > 0 {
				s.pos = math.Mod(s.pos, dur)
			} else {
				s.pos = dur
				playing = false
			}
		}
	}

	samples := s.clip.Window(s.pos, window, loop)
	if g := s.props.Float("gain"); g != 1 {
		for i := range samples {
			samples[i] *= g
		}
	}

	return node.Outputs{
		"audio": value.AudioValue(&value.Audio{
			SampleRate: s.clip.SampleRate,
			Samples:    samples,
			Time:       s.pos,
			Source:     path,
		}),
		"position": value.Number(s.pos),
		"playing":  value.Bool(playing),
	}, nil
}

var oscillatorDesc = &node.Descriptor{
	Type:     "audio/oscillator",
	Title:    "Oscillator",
	Category: node.CategoryAudio,
	Inputs:   []node.Port{node.In("frequency", value.TypeNumber, "Frequency")},
	Outputs:  []node.Port{node.Out("audio", value.TypeAudio, "Audio")},
	Properties: []node.PropertyDecl{
		node.Prop("frequency", 440.0, property.Number(20, 20000, 1)),
		node.Prop("waveform", "sine", property.Enum(waveforms...)),
		node.Prop("amplitude", 0.5, property.Number(0, 1, 0.01)),
		node.Prop("window", 2048, property.Integer(256, 8192)),
	},
}

type oscillator struct {
	props *property.Store
	env   *Env
	sw    stopwatch
	t     float64
}

func newOscillator(id string, env *Env) *node.Node {
	s := &oscillator{env: env}
	n := node.New(id, oscillatorDesc, node.Behavior{Process: s.process})
	s.props = n.Properties()
	return n
}

// process renders the window of samples ending at the oscillator's running
// time, so consecutive windows are phase-continuous at a fixed frequency.
func (s *oscillator) process(ctx context.Context, f node.Frame, in node.Inputs) (node.Outputs, error) {
	s.t += s.sw.lap(f.Now)
	sr := s.env.sampleRate()
	freq := in.Float("frequency", s.props.Float("frequency"))
	amp := s.props.Float("amplitude")
	kind := s.props.String("waveform")

	samples := make([]float64, s.props.Int("window"))
	end := s.t * float64(sr)
	for i := range samples {
		ts := (end - float64(len(samples)-i)) / float64(sr)
		_, phase := math.Modf(ts * freq)
		if phase < 0 {
			phase++
		}
		samples[i] = amp * wave(kind, phase)
	}

	return node.Outputs{
		"audio": value.AudioValue(&value.Audio{SampleRate: sr, Samples: samples, Time: s.t}),
	}, nil
}

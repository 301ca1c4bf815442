package nodes

import (
	"context"
	"math"

	"github.com/AaronLay10/Cadence/internal/backend"
	"github.com/AaronLay10/Cadence/internal/dsp"
	"github.com/AaronLay10/Cadence/internal/node"
	"github.com/AaronLay10/Cadence/internal/property"
	"github.com/AaronLay10/Cadence/internal/value"
)

var beatDesc = &node.Descriptor{
	Type:     "audio/beat",
	Title:    "Beat Detector",
	Category: node.CategoryAudio,
	Inputs:   []node.Port{node.Required("audio", value.TypeAudio, "Audio")},
	Outputs: []node.Port{
		node.Out("beat", value.TypeEvent, "Beat"),
		node.Out("bpm", value.TypeNumber, "BPM"),
		node.Out("confidence", value.TypeNumber, "Confidence"),
	},
	Properties: []node.PropertyDecl{
		node.Prop("sensitivity", 0.5, property.Number(0, 1, 0.01)),
		node.Prop("useExternalBackend", false, property.Boolean()),
	},
}

// minOnsetWindow is the smallest tail of the input window measured per tick.
const minOnsetWindow = 256

type beat struct {
	props   *property.Store
	env     *Env
	sw      stopwatch
	t       float64
	tracker *dsp.BeatTracker
	remote  *remote[backend.BeatDetectionResponse]
}

func newBeat(id string, env *Env) *node.Node {
	s := &beat{env: env, tracker: dsp.NewBeatTracker(0.5), remote: newRemote[backend.BeatDetectionResponse](id, backend.PathBeatDetection)}
	n := node.New(id, beatDesc, node.Behavior{
		Process: s.process,
		PropertyChanged: func(name string, v any) {
			if name == "sensitivity" {
				s.tracker.SetSensitivity(s.props.Float("sensitivity"))
			}
		},
		Destroy: func() { s.remote.close() },
	})
	s.props = n.Properties()
	return n
}

// process tracks onsets locally on the audio that arrived since the last
// tick. With the backend enabled its answers override tempo and add onsets
// while they are fresh; the local result is used otherwise.
func (s *beat) process(ctx context.Context, f node.Frame, in node.Inputs) (node.Outputs, error) {
	dt := s.sw.lap(f.Now)
	s.t += dt
	a := audioIn(in, "audio", s.env)

	k := int(math.Round(dt * float64(a.SampleRate)))
	k = max(k, minOnsetWindow)
	k = min(k, len(a.Samples))
	rms := dsp.RMS(a.Samples[len(a.Samples)-k:])

	onset := s.tracker.Process(rms*rms, s.t)
	bpm, conf := s.tracker.Tempo()

	if s.props.Bool("useExternalBackend") && s.env.useBackend() {
		if resp, ok := s.remote.poll(ctx, f.Now); ok && resp.OnsetDetected {
			onset = true
		}
		if resp, ok := s.remote.fresh(f.Now); ok {
			bpm, conf = resp.BPM, resp.Confidence
		}
		req := backend.BeatDetectionRequest{Audio: backend.PayloadFrom(a), Sensitivity: s.props.Float("sensitivity")}
		s.remote.maybeStart(ctx, f.Now, s.env.backendInterval(), func(ctx context.Context) (backend.BeatDetectionResponse, error) {
			return s.env.Backend.BeatDetection(ctx, req)
		})
	}

	return node.Outputs{
		"beat":       value.Event(onset),
		"bpm":        value.Number(bpm),
		"confidence": value.Number(conf),
	}, nil
}

var keyDesc = &node.Descriptor{
	Type:     "audio/key",
	Title:    "Key Detector",
	Category: node.CategoryAudio,
	Inputs:   []node.Port{node.Required("audio", value.TypeAudio, "Audio")},
	Outputs: []node.Port{
		node.Out("key", value.TypeString, "Key"),
		node.Out("scale", value.TypeString, "Scale"),
		node.Out("confidence", value.TypeNumber, "Confidence"),
	},
	Properties: []node.PropertyDecl{
		node.Prop("memory", 0.95, property.Number(0, 0.999, 0.001)),
		node.Prop("useExternalBackend", false, property.Boolean()),
	},
}

const keyFFTSize = 4096

type key struct {
	props    *property.Store
	env      *Env
	analyzer *dsp.Analyzer
	chroma   [12]float64
	remote   *remote[backend.KeyDetectionResponse]
}

func newKey(id string, env *Env) *node.Node {
	s := &key{env: env, remote: newRemote[backend.KeyDetectionResponse](id, backend.PathKeyDetection)}
	n := node.New(id, keyDesc, node.Behavior{
		Process: s.process,
		Destroy: func() { s.remote.close() },
	})
	s.props = n.Properties()
	return n
}

// process accumulates a decaying chroma profile and correlates it against
// the major and minor key profiles.
func (s *key) process(ctx context.Context, f node.Frame, in node.Inputs) (node.Outputs, error) {
	if s.analyzer == nil {
		a, err := dsp.NewAnalyzer(keyFFTSize, 0)
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

	memory := s.props.Float("memory")
	c := dsp.Chroma(mags, a.SampleRate)
	for i := range s.chroma {
		s.chroma[i] = memory*s.chroma[i] + c[i]
	}
	k, scale, conf := dsp.EstimateKey(s.chroma)

	if s.props.Bool("useExternalBackend") && s.env.useBackend() {
		s.remote.poll(ctx, f.Now)
		if resp, ok := s.remote.fresh(f.Now); ok && resp.Key != "" {
			k, scale, conf = resp.Key, resp.Scale, resp.Confidence
		}
		req := backend.KeyDetectionRequest{Audio: backend.PayloadFrom(a)}
		s.remote.maybeStart(ctx, f.Now, s.env.backendInterval(), func(ctx context.Context) (backend.KeyDetectionResponse, error) {
			return s.env.Backend.KeyDetection(ctx, req)
		})
	}

	return node.Outputs{
		"key":        value.String(k),
		"scale":      value.String(scale),
		"confidence": value.Number(conf),
	}, nil
}

package nodes

import (
	"context"
	"math"

	"github.com/AaronLay10/Cadence/internal/audio"
	"github.com/AaronLay10/Cadence/internal/events"
	"github.com/AaronLay10/Cadence/internal/logging"
	"github.com/AaronLay10/Cadence/internal/node"
	"github.com/AaronLay10/Cadence/internal/property"
	"github.com/AaronLay10/Cadence/internal/value"
)

var recorderDesc = &node.Descriptor{
	Type:     "audio/recorder",
	Title:    "Recorder",
	Category: node.CategoryAudio,
	Inputs: []node.Port{
		node.Required("audio", value.TypeAudio, "Audio"),
		node.In("record", value.TypeBoolean, "Record"),
	},
	Outputs: []node.Port{
		node.Out("recording", value.TypeBoolean, "Recording"),
		node.Out("duration", value.TypeNumber, "Duration"),
	},
	Properties: []node.PropertyDecl{
		node.Prop("path", "recording.wav", property.Text()),
		node.Prop("maxSeconds", 300.0, property.Number(1, 3600, 1)),
	},
}

// take is the exclusive recording resource. A new take cannot begin while
// one is being captured or while the previous one is still being written.
type take struct {
	active     bool
	writing    bool
	sampleRate int
	samples    []float64
	lastTime   float64
	seen       bool
}

func (t *take) begin(sampleRate int) error {
	if t.active || t.writing {
		return ErrRecorderBusy
	}
	t.active = true
	t.sampleRate = sampleRate
	t.samples = nil
	t.seen = false
	return nil
}

// capture appends the part of a that was not captured before. Windows
// overlap between ticks, so only the samples newer than the previous
// window's end time are taken. When the source time jumps backwards the
// elapsed wall time dt decides how much is new.
func (t *take) capture(a *value.Audio, dt float64) {
	if !t.active || a == nil || len(a.Samples) == 0 {
		return
	}
	n := len(a.Samples)
	if t.seen {
		elapsed := a.Time - t.lastTime
		if elapsed < 0 {
			elapsed = dt
		}
		n = min(int(math.Round(elapsed*float64(t.sampleRate))), len(a.Samples))
	}
	t.seen = true
	t.lastTime = a.Time
	if n > 0 {
		t.samples = append(t.samples, a.Samples[len(a.Samples)-n:]...)
	}
}

func (t *take) duration() float64 {
	if t.sampleRate <= 0 {
		return 0
	}
	return float64(len(t.samples)) / float64(t.sampleRate)
}

// finish stops capturing and hands the samples over for writing.
func (t *take) finish() []float64 {
	t.active = false
	t.writing = true
	s := t.samples
	t.samples = nil
	return s
}

type recorder struct {
	id    string
	props *property.Store
	env   *Env
	sw    stopwatch
	rec   edge

	take  take
	last  float64
	write node.Async[string]
}

func newRecorder(id string, env *Env) *node.Node {
	s := &recorder{id: id, env: env}
	n := node.New(id, recorderDesc, node.Behavior{
		Process: s.process,
		Destroy: func() { s.write.Close() },
	})
	s.props = n.Properties()
	return n
}

func (s *recorder) process(ctx context.Context, f node.Frame, in node.Inputs) (node.Outputs, error) {
	dt := s.sw.lap(f.Now)
	a := audioIn(in, "audio", s.env)
	log := logging.FromContext(ctx).With("node_id", s.id)

	if r, ok := s.write.Poll(); ok {
		s.take.writing = false
		if r.Err != nil {
			log.Error("recording write failed", "error", r.Err)
			s.emit("error", "recorder.error", r.Err.Error(), map[string]interface{}{"error": r.Err.Error()})
		} else {
			s.emit("info", "recorder.stopped", "recording saved", map[string]interface{}{
				"path":     r.Value,
				"duration": s.last,
			})
		}
	}

	start, stop := s.rec.update(in.Bool("record", false))
	if start {
		if err := s.take.begin(a.SampleRate); err != nil {
			log.Warn("recording rejected", "error", err)
			s.emit("warn", "recorder.error", err.Error(), map[string]interface{}{"error": err.Error()})
		} else {
			s.emit("info", "recorder.started", "recording started", map[string]interface{}{
				"sample_rate": a.SampleRate,
			})
		}
	}

	s.take.capture(a, dt)
	if s.take.active {
		s.last = s.take.duration()
		if s.last >= s.props.Float("maxSeconds") {
			stop = true
		}
	}
	if stop && s.take.active {
		s.save(ctx, s.take.finish(), s.take.sampleRate)
	}

	return node.Outputs{
		"recording": value.Bool(s.take.active),
		"duration":  value.Number(s.last),
	}, nil
}

func (s *recorder) save(ctx context.Context, samples []float64, sampleRate int) {
	path := s.props.String("path")
	started := s.write.Start(ctx, func(context.Context) (string, error) {
		resolved, err := s.env.resolve(path)
		if err != nil {
			return "", err
		}
		if err := audio.SaveWAV(resolved, sampleRate, samples); err != nil {
			return "", err
		}
		return resolved, nil
	})
	if !started {
		s.take.writing = false
	}
}

func (s *recorder) emit(level, name, msg string, fields map[string]interface{}) {
	fields["node_id"] = s.id
	events.Emit(level, name, msg, fields)
}

package nodes

import (
	"context"

	"github.com/AaronLay10/Cadence/internal/backend"
	"github.com/AaronLay10/Cadence/internal/events"
	"github.com/AaronLay10/Cadence/internal/logging"
	"github.com/AaronLay10/Cadence/internal/node"
	"github.com/AaronLay10/Cadence/internal/property"
	"github.com/AaronLay10/Cadence/internal/value"
)

func registerOutput(r *Registry) {
	r.Register(displayDesc, newDisplay)
	r.Register(renderDesc, newRender)
}

var displayDesc = &node.Descriptor{
	Type:     "output/display",
	Title:    "Display",
	Category: node.CategoryOutput,
	Inputs:   []node.Port{node.Required("visual", value.TypeVisual, "Visual")},
	Outputs:  []node.Port{node.Out("frame", value.TypeNumber, "Frame")},
}

func newDisplay(id string, env *Env) *node.Node {
	var frames int64
	n := node.New(id, displayDesc, node.Behavior{
		Process: func(ctx context.Context, f node.Frame, in node.Inputs) (node.Outputs, error) {
			if v := in.Visual("visual"); v != nil {
				env.Screens.show(id, v)
				frames++
			}
			return node.Outputs{"frame": value.Number(float64(frames))}, nil
		},
		Destroy: func() { env.Screens.remove(id) },
	})
	return n
}

const (
	renderIdle         = "idle"
	renderSubmitted    = "submitted"
	renderCompleted    = "completed"
	renderLocalPreview = "local-preview"
)

var renderDesc = &node.Descriptor{
	Type:     "output/render",
	Title:    "Render",
	Category: node.CategoryOutput,
	Inputs: []node.Port{
		node.In("visual", value.TypeVisual, "Visual"),
		node.In("audio", value.TypeAudio, "Audio"),
		node.In("render", value.TypeEvent, "Render"),
	},
	Outputs: []node.Port{
		node.Out("status", value.TypeString, "Status"),
		node.Out("url", value.TypeString, "URL"),
		node.Out("progress", value.TypeNumber, "Progress"),
	},
	Properties: []node.PropertyDecl{
		node.Prop("width", 1920, property.Integer(16, 7680)),
		node.Prop("height", 1080, property.Integer(16, 4320)),
		node.Prop("fps", 30, property.Integer(1, 120)),
		node.Prop("duration", 10.0, property.Number(0.1, 600, 0.1)),
		node.Prop("useExternalBackend", false, property.Boolean()),
	},
}

type render struct {
	id      string
	props   *property.Store
	env     *Env
	sw      stopwatch
	trigger edge

	job      node.Async[backend.RenderResponse]
	status   string
	url      string
	progress float64
	local    bool
	elapsed  float64
}

func newRender(id string, env *Env) *node.Node {
	s := &render{id: id, env: env, status: renderIdle}
	n := node.New(id, renderDesc, node.Behavior{
		Process: s.process,
		Destroy: func() { s.job.Close() },
	})
	s.props = n.Properties()
	return n
}

// process submits a render job on each render trigger. Without a backend,
// or when the submission fails, the node reports a local preview whose
// progress follows elapsed time over the requested duration.
func (s *render) process(ctx context.Context, f node.Frame, in node.Inputs) (node.Outputs, error) {
	dt := s.sw.lap(f.Now)
	log := logging.FromContext(ctx).With("node_id", s.id)

	if r, ok := s.job.Poll(); ok {
		if r.Err != nil {
			log.Warn("render submission failed, falling back to local preview", "error", r.Err)
			s.emit("error", "render.failed", r.Err.Error(), map[string]interface{}{"error": r.Err.Error()})
			s.emit("warn", "backend.fallback", "render falls back to local preview", map[string]interface{}{
				"path": backend.PathRenderVideo,
			})
			s.startLocal()
		} else {
			s.status = r.Value.Status
			if s.status == "" {
				s.status = renderCompleted
			}
			s.url = r.Value.URL
			s.progress = clamp01(r.Value.Progress)
			s.emit("info", "render.completed", "render accepted by backend", map[string]interface{}{
				"job_id": r.Value.JobID,
				"status": s.status,
				"url":    s.url,
			})
		}
	}

	if rising, _ := s.trigger.update(in.Bool("render", false)); rising {
		s.submit(ctx, in)
	}

	if s.local {
		s.elapsed += dt
		s.progress = clamp01(s.elapsed / s.props.Float("duration"))
	}

	return node.Outputs{
		"status":   value.String(s.status),
		"url":      value.String(s.url),
		"progress": value.Number(s.progress),
	}, nil
}

func (s *render) submit(ctx context.Context, in node.Inputs) {
	if s.job.Pending() {
		s.emit("warn", "render.failed", "render already in progress", map[string]interface{}{})
		return
	}
	req := backend.RenderRequest{
		Width:    s.props.Int("width"),
		Height:   s.props.Int("height"),
		FPS:      s.props.Int("fps"),
		Duration: s.props.Float("duration"),
		Visual:   in.Visual("visual"),
		Audio:    backend.PayloadFrom(in.Audio("audio")),
	}
	s.emit("info", "render.started", "render requested", map[string]interface{}{
		"width":    req.Width,
		"height":   req.Height,
		"fps":      req.FPS,
		"duration": req.Duration,
	})

	if !s.props.Bool("useExternalBackend") || !s.env.useBackend() {
		s.startLocal()
		return
	}
	s.local = false
	s.status, s.url, s.progress = renderSubmitted, "", 0
	s.job.Start(ctx, func(ctx context.Context) (backend.RenderResponse, error) {
		return s.env.Backend.RenderVideo(ctx, req)
	})
}

func (s *render) startLocal() {
	s.local = true
	s.elapsed = 0
	s.status, s.url, s.progress = renderLocalPreview, "", 0
}

func (s *render) emit(level, name, msg string, fields map[string]interface{}) {
	fields["node_id"] = s.id
	events.Emit(level, name, msg, fields)
}

// Package studio owns one editing session: the node graph, the registry
// that builds it, the playhead and the frame loop that drives both.
//
// Every mutation coming from the API or the broker and every frame
// evaluation is serialised behind a single mutex, so the graph and the
// playhead never need their own locking.
package studio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/AaronLay10/Cadence/internal/events"
	"github.com/AaronLay10/Cadence/internal/frame"
	"github.com/AaronLay10/Cadence/internal/graph"
	"github.com/AaronLay10/Cadence/internal/graphfile"
	"github.com/AaronLay10/Cadence/internal/logging"
	"github.com/AaronLay10/Cadence/internal/node"
	"github.com/AaronLay10/Cadence/internal/nodes"
	"github.com/AaronLay10/Cadence/internal/playhead"
)

// DefaultGraphName is used when SaveGraph is called without a name.
const DefaultGraphName = "default"

// ErrNoGraphStore is returned by SaveGraph when neither a database nor a
// graph file is configured.
var ErrNoGraphStore = errors.New("no graph store configured")

// GraphStore persists graph descriptions by name.
type GraphStore interface {
	SaveGraph(ctx context.Context, name string, body []byte) error
	LoadGraph(ctx context.Context, name string) ([]byte, error)
}

type Options struct {
	Registry *nodes.Registry
	Blocks   []playhead.Block
	// Clock drives the playhead; nil uses the system clock.
	Clock  playhead.Clock
	Motion playhead.MotionPlayer
	// Loop is the frame loop; nil creates a private one.
	Loop *frame.Loop
	// Store may be nil when Postgres is disabled.
	Store GraphStore
	// GraphPath is where SaveGraph writes the description file, if set.
	GraphPath string
	Logger    *slog.Logger
}

type Studio struct {
	mu sync.Mutex

	reg       *nodes.Registry
	graph     *graph.Graph
	ph        *playhead.Playhead
	loop      *frame.Loop
	store     GraphStore
	graphPath string
	log       *slog.Logger

	frameIndex int64
	lastFrame  time.Time
	unsubs     []func()
	closed     bool
}

// New creates a studio with an empty graph and the given timeline.
func New(opts Options) (*Studio, error) {
	if opts.Registry == nil {
		opts.Registry = nodes.Default(nil)
	}
	if opts.Loop == nil {
		opts.Loop = frame.NewLoop()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	s := &Studio{
		reg:       opts.Registry,
		graph:     graph.New(),
		loop:      opts.Loop,
		store:     opts.Store,
		graphPath: opts.GraphPath,
		log:       opts.Logger,
	}
	s.ph = playhead.New(playhead.Options{
		Clock:  opts.Clock,
		Motion: opts.Motion,
		Frames: lockedScheduler{s},
		Logger: opts.Logger,
	})
	if err := s.ph.SetBlocks(opts.Blocks); err != nil {
		return nil, err
	}

	s.unsubs = append(s.unsubs,
		s.ph.On(playhead.MotionStart, func(n playhead.Notice) {
			events.Emit("info", "motion.started", "", motionFields(n))
		}),
		s.ph.On(playhead.MotionEnd, func(n playhead.Notice) {
			events.Emit("info", "motion.ended", "", motionFields(n))
		}),
	)
	return s, nil
}

func motionFields(n playhead.Notice) map[string]interface{} {
	return map[string]interface{}{
		"block_id": n.Block.ID,
		"motion":   n.Block.Motion,
		"time":     n.Time,
	}
}

// lockedScheduler queues playhead ticks on the frame loop and runs them
// under the studio lock.
type lockedScheduler struct {
	s *Studio
}

func (l lockedScheduler) Schedule(fn func(time.Time)) func() {
	return l.s.loop.Schedule(func(now time.Time) {
		l.s.mu.Lock()
		defer l.s.mu.Unlock()
		if l.s.closed {
			return
		}
		fn(now)
	})
}

// Registry returns the registry nodes are created from.
func (s *Studio) Registry() *nodes.Registry { return s.reg }

// Load replaces the current graph with one built from d. The current graph
// is kept if d cannot be built.
func (s *Studio) Load(d graph.Description) error {
	g, err := s.reg.Build(d)
	if err != nil {
		return err
	}

	s.mu.Lock()
	old := s.graph
	s.graph = g
	s.mu.Unlock()
	old.Clear()

	events.Emit("info", "graph.loaded", "", map[string]interface{}{
		"nodes": len(d.Nodes),
		"edges": len(d.Edges),
	})
	return nil
}

// LoadFile loads a JSON, YAML or HCL graph description.
func (s *Studio) LoadFile(path string) error {
	d, err := graphfile.Load(path)
	if err != nil {
		return err
	}
	return s.Load(d)
}

// LoadSaved loads a graph previously stored with SaveGraph.
func (s *Studio) LoadSaved(ctx context.Context, name string) error {
	if s.store == nil {
		return ErrNoGraphStore
	}
	body, err := s.store.LoadGraph(ctx, name)
	if err != nil {
		return err
	}
	d, err := graphfile.Decode(body, graphfile.JSON, name)
	if err != nil {
		return err
	}
	return s.Load(d)
}

func (s *Studio) Description() graph.Description {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.Describe()
}

// NodeOutputs returns the last outputs of one node.
func (s *Studio) NodeOutputs(id string) (node.Outputs, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n, ok := s.graph.Node(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", graph.ErrNodeNotFound, id)
	}
	return n.Outputs(), nil
}

// Outputs returns the last outputs of every node keyed by node id.
func (s *Studio) Outputs() map[string]node.Outputs {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.graph.Outputs()
}

// NodeCount returns the number of nodes in the graph.
func (s *Studio) NodeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.graph.Nodes())
}

func (s *Studio) SetProperty(nodeID, name string, v any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n, ok := s.graph.Node(nodeID)
	if !ok {
		return fmt.Errorf("%w: %s", graph.ErrNodeNotFound, nodeID)
	}
	if err := n.SetProperty(name, v); err != nil {
		return err
	}
	stored, _ := n.Properties().Get(name)
	events.Emit("info", "node.property_changed", "", map[string]interface{}{
		"node_id":  nodeID,
		"property": name,
		"value":    stored,
	})
	return nil
}

// AddNode creates a node of type typ. An empty id gets a generated one.
func (s *Studio) AddNode(typ, id string, props map[string]any, pos node.Position) (string, error) {
	n, err := s.reg.Create(typ, id, props)
	if err != nil {
		return "", err
	}
	n.SetPosition(pos)

	s.mu.Lock()
	err = s.graph.AddNode(n)
	s.mu.Unlock()
	if err != nil {
		n.Destroy()
		return "", err
	}

	events.Emit("info", "node.added", "", map[string]interface{}{
		"node_id":   n.ID(),
		"node_type": typ,
	})
	return n.ID(), nil
}

func (s *Studio) RemoveNode(id string) error {
	s.mu.Lock()
	err := s.graph.RemoveNode(id)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	events.Emit("info", "node.removed", "", map[string]interface{}{"node_id": id})
	return nil
}

// Connect links "node:port" to "node:port".
func (s *Studio) Connect(from, to string) (graph.Edge, error) {
	src, err := graph.ParseEndpoint(from)
	if err != nil {
		return graph.Edge{}, err
	}
	dst, err := graph.ParseEndpoint(to)
	if err != nil {
		return graph.Edge{}, err
	}

	s.mu.Lock()
	e, err := s.graph.Connect(src, dst)
	s.mu.Unlock()
	if err != nil {
		return graph.Edge{}, err
	}

	events.Emit("info", "graph.connected", "", map[string]interface{}{
		"edge_id": e.ID,
		"from":    e.From.String(),
		"to":      e.To.String(),
	})
	return e, nil
}

func (s *Studio) Disconnect(edgeID string) error {
	s.mu.Lock()
	err := s.graph.Disconnect(edgeID)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	events.Emit("info", "graph.disconnected", "", map[string]interface{}{"edge_id": edgeID})
	return nil
}

// SaveGraph stores the current description under name in the database and
// writes it to the graph file. At least one of them must be configured.
func (s *Studio) SaveGraph(ctx context.Context, name string) error {
	if name == "" {
		name = DefaultGraphName
	}
	if s.store == nil && s.graphPath == "" {
		return ErrNoGraphStore
	}
	d := s.Description()

	if s.store != nil {
		body, err := json.Marshal(d)
		if err != nil {
			return fmt.Errorf("encode graph: %w", err)
		}
		if err := s.store.SaveGraph(ctx, name, body); err != nil {
			return err
		}
	}
	if s.graphPath != "" {
		if err := graphfile.Save(s.graphPath, d); err != nil {
			return err
		}
	}

	events.Emit("info", "graph.saved", "", map[string]interface{}{
		"name":  name,
		"nodes": len(d.Nodes),
		"edges": len(d.Edges),
	})
	return nil
}

func (s *Studio) Start() {
	s.mu.Lock()
	wasPlaying := s.ph.Playing()
	s.ph.Start()
	t := s.ph.Time()
	s.mu.Unlock()
	if !wasPlaying {
		events.Emit("info", "playhead.started", "", map[string]interface{}{"time": t})
	}
}

func (s *Studio) Stop() {
	s.mu.Lock()
	wasPlaying := s.ph.Playing()
	s.ph.Stop()
	t := s.ph.Time()
	s.mu.Unlock()
	if wasPlaying {
		events.Emit("info", "playhead.stopped", "", map[string]interface{}{"time": t})
	}
}

func (s *Studio) Reset() {
	s.mu.Lock()
	s.ph.Reset()
	s.mu.Unlock()
	events.Emit("info", "playhead.reset", "", map[string]interface{}{"time": 0.0})
}

func (s *Studio) Seek(t float64) error {
	s.mu.Lock()
	err := s.ph.Seek(t)
	s.mu.Unlock()
	if err != nil {
		return err
	}
	events.Emit("info", "playhead.seeked", "", map[string]interface{}{"time": t})
	return nil
}

func (s *Studio) PlayheadState() playhead.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ph.State()
}

// SetBlocks replaces the timeline.
func (s *Studio) SetBlocks(blocks []playhead.Block) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ph.SetBlocks(blocks)
}

func (s *Studio) Blocks() []playhead.Block {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ph.Blocks()
}

// Step runs one frame by hand: queued callbacks such as the playhead tick
// first, then one graph evaluation.
func (s *Studio) Step(ctx context.Context, now time.Time) {
	s.loop.RunFrame(now)
	s.Evaluate(ctx, now)
}

// Evaluate runs the graph once for the frame at now.
func (s *Studio) Evaluate(ctx context.Context, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}

	var delta time.Duration
	if !s.lastFrame.IsZero() {
		delta = now.Sub(s.lastFrame)
	}
	s.lastFrame = now
	s.frameIndex++

	s.graph.Evaluate(logging.WithLogger(ctx, s.log), node.Frame{
		Index: s.frameIndex,
		Now:   now,
		Delta: delta,
	})
}

// Run drives frames at fps until ctx is done.
func (s *Studio) Run(ctx context.Context, fps int) error {
	return s.loop.Run(ctx, fps, func(now time.Time) {
		s.Evaluate(ctx, now)
	})
}

// Frames returns how many frames were evaluated.
func (s *Studio) Frames() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frameIndex
}

// Close stops playback and destroys every node.
func (s *Studio) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.ph.Stop()
	for _, u := range s.unsubs {
		u()
	}
	s.unsubs = nil
	s.graph.Clear()
	s.closed = true
}

package studio

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/AaronLay10/Cadence/internal/events"
	"github.com/AaronLay10/Cadence/internal/graph"
	"github.com/AaronLay10/Cadence/internal/graphfile"
	"github.com/AaronLay10/Cadence/internal/node"
	"github.com/AaronLay10/Cadence/internal/playhead"
	"github.com/AaronLay10/Cadence/internal/storage/postgres"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

type memStore struct {
	mu     sync.Mutex
	graphs map[string][]byte
}

func (m *memStore) SaveGraph(ctx context.Context, name string, body []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.graphs == nil {
		m.graphs = make(map[string][]byte)
	}
	m.graphs[name] = body
	return nil
}

func (m *memStore) LoadGraph(ctx context.Context, name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.graphs[name]
	if !ok {
		return nil, postgres.ErrGraphNotFound
	}
	return b, nil
}

func newStudio(t *testing.T, opts Options) *Studio {
	t.Helper()
	s, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.Close)
	return s
}

func sumGraph() graph.Description {
	return graph.Description{
		Nodes: []graph.NodeDescription{
			{ID: "a", Type: "control/value", Properties: map[string]any{"value": 2.0}},
			{ID: "b", Type: "control/value", Properties: map[string]any{"value": 3.0}},
			{ID: "sum", Type: "control/math"},
		},
		Edges: []graph.EdgeDescription{
			{From: "a:value", To: "sum:a"},
			{From: "b:value", To: "sum:b"},
		},
	}
}

func hasEvent(name string, match func(events.Event) bool) bool {
	for _, e := range events.Snapshot() {
		if e.Name == name && (match == nil || match(e)) {
			return true
		}
	}
	return false
}

func TestStudioEvaluate(t *testing.T) {
	s := newStudio(t, Options{})
	if err := s.Load(sumGraph()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	s.Step(context.Background(), epoch)

	out, err := s.NodeOutputs("sum")
	if err != nil {
		t.Fatalf("NodeOutputs: %v", err)
	}
	if got := out["result"].Float(); got != 5 {
		t.Errorf("sum = %v, want 5", got)
	}
	if s.Frames() != 1 {
		t.Errorf("Frames = %d, want 1", s.Frames())
	}

	if _, err := s.NodeOutputs("missing"); !errors.Is(err, graph.ErrNodeNotFound) {
		t.Errorf("expected ErrNodeNotFound, got %v", err)
	}
}

func TestStudioSetProperty(t *testing.T) {
	events.Clear()
	s := newStudio(t, Options{})
	if err := s.Load(sumGraph()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if err := s.SetProperty("sum", "operation", "multiply"); err != nil {
		t.Fatalf("SetProperty: %v", err)
	}
	s.Step(context.Background(), epoch)
	out, _ := s.NodeOutputs("sum")
	if got := out["result"].Float(); got != 6 {
		t.Errorf("product = %v, want 6", got)
	}
	if !hasEvent("node.property_changed", func(e events.Event) bool {
		return e.Fields["node_id"] == "sum" && e.Fields["value"] == "multiply"
	}) {
		t.Error("expected node.property_changed event")
	}

	if err := s.SetProperty("sum", "operation", "xor"); err == nil {
		t.Error("expected error for invalid enum value")
	}
	if err := s.SetProperty("nope", "value", 1.0); !errors.Is(err, graph.ErrNodeNotFound) {
		t.Errorf("expected ErrNodeNotFound, got %v", err)
	}
}

func TestStudioStructuralEdits(t *testing.T) {
	events.Clear()
	s := newStudio(t, Options{})

	id, err := s.AddNode("control/value", "", map[string]any{"value": 4.0}, node.Position{X: 10})
	if err != nil {
		t.Fatalf("AddNode: %v", err)
	}
	if id == "" {
		t.Fatal("expected generated id")
	}
	if _, err := s.AddNode("control/math", "m", nil, node.Position{}); err != nil {
		t.Fatalf("AddNode: %v", err)
	}
	if _, err := s.AddNode("control/nope", "x", nil, node.Position{}); err == nil {
		t.Error("expected error for unknown type")
	}

	e, err := s.Connect(id+":value", "m:a")
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if _, err := s.Connect("m:result", id+":value"); err == nil {
		t.Error("expected error connecting to a node without that input")
	}
	if _, err := s.Connect("bad", "m:b"); err == nil {
		t.Error("expected error for malformed endpoint")
	}

	s.Step(context.Background(), epoch)
	out, _ := s.NodeOutputs("m")
	if got := out["result"].Float(); got != 4 {
		t.Errorf("result = %v, want 4", got)
	}

	if err := s.Disconnect(e.ID); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}
	if err := s.Disconnect(e.ID); !errors.Is(err, graph.ErrEdgeNotFound) {
		t.Errorf("expected ErrEdgeNotFound, got %v", err)
	}
	if err := s.RemoveNode(id); err != nil {
		t.Fatalf("RemoveNode: %v", err)
	}
	if s.NodeCount() != 1 {
		t.Errorf("NodeCount = %d, want 1", s.NodeCount())
	}

	for _, name := range []string{"node.added", "graph.connected", "graph.disconnected", "node.removed"} {
		if !hasEvent(name, nil) {
			t.Errorf("missing %s event", name)
		}
	}
}

func TestStudioLoadKeepsGraphOnError(t *testing.T) {
	s := newStudio(t, Options{})
	if err := s.Load(sumGraph()); err != nil {
		t.Fatalf("Load: %v", err)
	}

	bad := graph.Description{Nodes: []graph.NodeDescription{{ID: "x", Type: "control/unknown"}}}
	if err := s.Load(bad); err == nil {
		t.Fatal("expected error")
	}
	if got := len(s.Description().Nodes); got != 3 {
		t.Errorf("got %d nodes after failed load, want 3", got)
	}
}

func TestStudioPlayheadDrivesMotion(t *testing.T) {
	events.Clear()
	clock := playhead.NewManualClock(epoch)
	var played []string
	s := newStudio(t, Options{
		Clock: clock,
		Blocks: []playhead.Block{
			{ID: "intro", Motion: "fade", Start: 0, Duration: 1},
			{ID: "drop", Motion: "strobe", Start: 1, Duration: 1},
		},
		Motion: playhead.MotionFunc(func(motion string, offset, duration float64) {
			played = append(played, motion)
		}),
	})
	ctx := context.Background()

	s.Start()
	clock.Advance(100 * time.Millisecond)
	s.Step(ctx, clock.Now())

	st := s.PlayheadState()
	if !st.Playing || st.ActiveID != "intro" {
		t.Fatalf("state = %+v, want playing intro", st)
	}

	clock.Advance(time.Second)
	s.Step(ctx, clock.Now())
	if st := s.PlayheadState(); st.ActiveID != "drop" {
		t.Fatalf("active = %q, want drop", st.ActiveID)
	}

	s.Stop()
	if st := s.PlayheadState(); st.Playing || st.ActiveID != "" {
		t.Errorf("state after stop = %+v", st)
	}

	// Frames after stop do not advance the playhead.
	before := s.PlayheadState().Time
	clock.Advance(time.Second)
	s.Step(ctx, clock.Now())
	if got := s.PlayheadState().Time; got != before {
		t.Errorf("time moved while stopped: %v -> %v", before, got)
	}

	if fmt.Sprint(played) != "[fade strobe]" {
		t.Errorf("played = %v", played)
	}
	for _, name := range []string{"playhead.started", "motion.started", "motion.ended", "playhead.stopped"} {
		if !hasEvent(name, nil) {
			t.Errorf("missing %s event", name)
		}
	}
	if !hasEvent("motion.ended", func(e events.Event) bool { return e.Fields["block_id"] == "drop" }) {
		t.Error("expected motion.ended for drop on stop")
	}
}

func TestStudioSeekAndReset(t *testing.T) {
	s := newStudio(t, Options{
		Blocks: []playhead.Block{{ID: "b", Motion: "m", Start: 5, Duration: 1}},
	})

	if err := s.Seek(-1); err == nil {
		t.Error("expected error for negative seek")
	}
	if err := s.Seek(5.5); err != nil {
		t.Fatalf("Seek: %v", err)
	}
	if got := s.PlayheadState().Time; got != 5.5 {
		t.Errorf("time = %v, want 5.5", got)
	}
	s.Reset()
	if got := s.PlayheadState().Time; got != 0 {
		t.Errorf("time after reset = %v", got)
	}

	if err := s.SetBlocks([]playhead.Block{{ID: "", Motion: "m", Start: 0, Duration: 1}}); err == nil {
		t.Error("expected error for invalid block")
	}
	if got := s.Blocks(); len(got) != 1 || got[0].ID != "b" {
		t.Errorf("blocks changed after failed SetBlocks: %+v", got)
	}
}

func TestNewRejectsInvalidBlocks(t *testing.T) {
	_, err := New(Options{Blocks: []playhead.Block{{ID: "a", Motion: "m", Start: 0, Duration: -1}}})
	if !errors.Is(err, playhead.ErrInvalidBlock) {
		t.Errorf("expected ErrInvalidBlock, got %v", err)
	}
}

func TestStudioSaveGraph(t *testing.T) {
	ctx := context.Background()

	s := newStudio(t, Options{})
	if err := s.SaveGraph(ctx, "x"); !errors.Is(err, ErrNoGraphStore) {
		t.Errorf("expected ErrNoGraphStore, got %v", err)
	}

	store := &memStore{}
	path := filepath.Join(t.TempDir(), "graph.yaml")
	s = newStudio(t, Options{Store: store, GraphPath: path})
	if err := s.Load(sumGraph()); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := s.SaveGraph(ctx, ""); err != nil {
		t.Fatalf("SaveGraph: %v", err)
	}

	if _, ok := store.graphs[DefaultGraphName]; !ok {
		t.Error("graph not stored under default name")
	}
	d, err := graphfile.Load(path)
	if err != nil {
		t.Fatalf("graphfile.Load: %v", err)
	}
	if len(d.Nodes) != 3 || len(d.Edges) != 2 {
		t.Errorf("saved file has %d nodes and %d edges", len(d.Nodes), len(d.Edges))
	}

	other := newStudio(t, Options{Store: store})
	if err := other.LoadSaved(ctx, DefaultGraphName); err != nil {
		t.Fatalf("LoadSaved: %v", err)
	}
	other.Step(ctx, epoch)
	out, _ := other.NodeOutputs("sum")
	if got := out["result"].Float(); got != 5 {
		t.Errorf("restored sum = %v, want 5", got)
	}
	if err := other.LoadSaved(ctx, "missing"); !errors.Is(err, postgres.ErrGraphNotFound) {
		t.Errorf("expected ErrGraphNotFound, got %v", err)
	}
}

func TestStudioCloseIsIdempotent(t *testing.T) {
	s, err := New(Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if _, err := s.AddNode("control/value", "v", nil, node.Position{}); err != nil {
		t.Fatalf("AddNode: %v", err)
	}
	s.Close()
	s.Close()
	if s.NodeCount() != 0 {
		t.Errorf("NodeCount after close = %d", s.NodeCount())
	}
	s.Step(context.Background(), epoch)
	if s.Frames() != 0 {
		t.Errorf("closed studio evaluated a frame")
	}
}

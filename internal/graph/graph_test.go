package graph

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/AaronLay10/Cadence/internal/node"
	"github.com/AaronLay10/Cadence/internal/property"
	"github.com/AaronLay10/Cadence/internal/value"
)

// constNode outputs its "value" property as a number.
func constNode(id string, v float64) *node.Node {
	desc := &node.Descriptor{
		Type:       "test/const",
		Title:      "Const",
		Category:   node.CategoryControl,
		Outputs:    []node.Port{node.Out("value", value.TypeNumber, "Value")},
		Properties: []node.PropertyDecl{node.Prop("value", v, property.Number(-1e9, 1e9, 0))},
	}
	var n *node.Node
	n = node.New(id, desc, node.Behavior{
		Process: func(ctx context.Context, f node.Frame, in node.Inputs) (node.Outputs, error) {
			return node.Outputs{"value": value.Number(n.Properties().Float("value"))}, nil
		},
	})
	return n
}

// addNode sums its two inputs.
func addNode(id string) *node.Node {
	desc := &node.Descriptor{
		Type:     "test/add",
		Title:    "Add",
		Category: node.CategoryControl,
		Inputs: []node.Port{
			node.In("a", value.TypeNumber, "A"),
			node.In("b", value.TypeNumber, "B"),
		},
		Outputs: []node.Port{node.Out("result", value.TypeNumber, "Result")},
	}
	return node.New(id, desc, node.Behavior{
		Process: func(ctx context.Context, f node.Frame, in node.Inputs) (node.Outputs, error) {
			return node.Outputs{"result": value.Number(in.Float("a", 0) + in.Float("b", 0))}, nil
		},
	})
}

// sinkNode requires audio.
func sinkNode(id string) *node.Node {
	desc := &node.Descriptor{
		Type:     "test/sink",
		Title:    "Sink",
		Category: node.CategoryOutput,
		Inputs: []node.Port{
			node.Required("audio", value.TypeAudio, "Audio"),
			node.In("list", value.TypeArray, "List"),
		},
		Outputs: []node.Port{node.Out("count", value.TypeNumber, "Count")},
	}
	return node.New(id, desc, node.Behavior{
		Process: func(ctx context.Context, f node.Frame, in node.Inputs) (node.Outputs, error) {
			return node.Outputs{"count": value.Number(1)}, nil
		},
	})
}

func ep(n, p string) Endpoint { return Endpoint{Node: n, Port: p} }

func mustAdd(t *testing.T, g *Graph, nodes ...*node.Node) {
	t.Helper()
	for _, n := range nodes {
		if err := g.AddNode(n); err != nil {
			t.Fatalf("add %s: %v", n.ID(), err)
		}
	}
}

func TestConnectTypeMismatchLeavesGraphUnchanged(t *testing.T) {
	g := New()
	mustAdd(t, g, constNode("c", 1), sinkNode("s"))

	_, err := g.Connect(ep("c", "value"), ep("s", "audio"))
	var mismatch *TypeMismatchError
	if !errors.As(err, &mismatch) {
		t.Fatalf("expected TypeMismatchError, got %v", err)
	}
	if mismatch.FromType != value.TypeNumber || mismatch.ToType != value.TypeAudio {
		t.Errorf("unexpected types in error: %+v", mismatch)
	}
	if g.EdgeCount() != 0 {
		t.Errorf("expected no edges, got %d", g.EdgeCount())
	}
}

func TestConnectCoercesNumberToArray(t *testing.T) {
	g := New()
	mustAdd(t, g, constNode("c", 3), sinkNode("s"))

	if _, err := g.Connect(ep("c", "value"), ep("s", "list")); err != nil {
		t.Fatalf("connect: %v", err)
	}
	g.Evaluate(context.Background(), node.Frame{})
	in := g.inputsFor(g.nodes["s"])
	if got := in["list"]; got.Type != value.TypeArray || got.Floats()[0] != 3 {
		t.Errorf("expected singleton array [3], got %v", got)
	}
}

func TestConnectRejectsCycle(t *testing.T) {
	g := New()
	mustAdd(t, g, addNode("a"), addNode("b"), addNode("c"))

	if _, err := g.Connect(ep("a", "result"), ep("b", "a")); err != nil {
		t.Fatal(err)
	}
	if _, err := g.Connect(ep("b", "result"), ep("c", "a")); err != nil {
		t.Fatal(err)
	}

	_, err := g.Connect(ep("c", "result"), ep("a", "a"))
	var cycle *CycleError
	if !errors.As(err, &cycle) {
		t.Fatalf("expected CycleError, got %v", err)
	}
	if len(cycle.Path) != 4 || cycle.Path[0] != "c" || cycle.Path[3] != "c" {
		t.Errorf("unexpected cycle path %v", cycle.Path)
	}
	if g.EdgeCount() != 2 {
		t.Errorf("expected 2 edges, got %d", g.EdgeCount())
	}

	if _, err := g.Connect(ep("a", "result"), ep("a", "b")); !errors.As(err, &cycle) {
		t.Errorf("expected self loop to be rejected, got %v", err)
	}
}

func TestConnectReplacesExistingInputEdge(t *testing.T) {
	g := New()
	mustAdd(t, g, constNode("one", 1), constNode("two", 2), addNode("sum"))

	first, err := g.Connect(ep("one", "value"), ep("sum", "a"))
	if err != nil {
		t.Fatal(err)
	}
	second, err := g.Connect(ep("two", "value"), ep("sum", "a"))
	if err != nil {
		t.Fatal(err)
	}
	if g.EdgeCount() != 1 {
		t.Fatalf("expected replacement, got %d edges", g.EdgeCount())
	}
	if err := g.Disconnect(first.ID); !errors.Is(err, ErrEdgeNotFound) {
		t.Errorf("replaced edge should be gone, got %v", err)
	}

	g.Evaluate(context.Background(), node.Frame{})
	if got := g.nodes["sum"].Output("result").Float(); got != 2 {
		t.Errorf("expected 2 from replacing edge %s, got %v", second.ID, got)
	}
}

func TestConnectUnknownPorts(t *testing.T) {
	g := New()
	mustAdd(t, g, constNode("c", 1), addNode("sum"))

	if _, err := g.Connect(ep("c", "nope"), ep("sum", "a")); !errors.Is(err, ErrPortNotFound) {
		t.Errorf("expected ErrPortNotFound, got %v", err)
	}
	if _, err := g.Connect(ep("c", "value"), ep("missing", "a")); !errors.Is(err, ErrNodeNotFound) {
		t.Errorf("expected ErrNodeNotFound, got %v", err)
	}
}

func TestEvaluateOrderIsStable(t *testing.T) {
	g := New()
	// sum inserted before its sources; it must still run after them.
	mustAdd(t, g, addNode("sum"), constNode("x", 4), constNode("y", 5), constNode("z", 0))
	if _, err := g.Connect(ep("y", "value"), ep("sum", "b")); err != nil {
		t.Fatal(err)
	}
	if _, err := g.Connect(ep("x", "value"), ep("sum", "a")); err != nil {
		t.Fatal(err)
	}

	want := []string{"x", "y", "z", "sum"}
	got := g.Order()
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected order %v, got %v", want, got)
		}
	}

	g.Evaluate(context.Background(), node.Frame{})
	if v := g.nodes["sum"].Output("result").Float(); v != 9 {
		t.Errorf("expected 9, got %v", v)
	}
}

func TestEvaluateIdempotentForStatelessNodes(t *testing.T) {
	g := New()
	mustAdd(t, g, constNode("x", 1.5), constNode("y", 2.25), addNode("sum"), addNode("twice"))
	g.Connect(ep("x", "value"), ep("sum", "a"))
	g.Connect(ep("y", "value"), ep("sum", "b"))
	g.Connect(ep("sum", "result"), ep("twice", "a"))
	g.Connect(ep("sum", "result"), ep("twice", "b"))

	f := node.Frame{Index: 1, Now: time.Unix(100, 0)}
	g.Evaluate(context.Background(), f)
	first := g.Outputs()
	g.Evaluate(context.Background(), f)
	second := g.Outputs()

	for id, outs := range first {
		for key, v := range outs {
			if !v.Equal(second[id][key]) {
				t.Errorf("%s.%s changed between passes: %v vs %v", id, key, v, second[id][key])
			}
		}
	}
	if got := second["twice"]["result"].Float(); got != 7.5 {
		t.Errorf("expected 7.5, got %v", got)
	}
}

func TestEvaluateContinuesPastFailingNode(t *testing.T) {
	g := New()
	bad := node.New("bad", &node.Descriptor{
		Type:    "test/bad",
		Outputs: []node.Port{node.Out("value", value.TypeNumber, "Value")},
	}, node.Behavior{
		Process: func(ctx context.Context, f node.Frame, in node.Inputs) (node.Outputs, error) {
			return nil, errors.New("bad input")
		},
	})
	mustAdd(t, g, bad, addNode("sum"), constNode("ok", 1), sinkNode("sink"))
	g.Connect(ep("bad", "value"), ep("sum", "a"))
	g.Connect(ep("ok", "value"), ep("sum", "b"))

	g.Evaluate(context.Background(), node.Frame{})

	if !g.nodes["bad"].Output("value").IsError() {
		t.Error("expected error output from failing node")
	}
	if got := g.nodes["sum"].Output("result").Float(); got != 1 {
		t.Errorf("downstream should treat error as unconnected, got %v", got)
	}
	var missing *node.MissingRequiredInputError
	if !errors.As(g.nodes["sink"].LastError(), &missing) {
		t.Errorf("expected missing required input on sink, got %v", g.nodes["sink"].LastError())
	}
}

func TestRemoveNodeDropsEdgesAndDestroys(t *testing.T) {
	g := New()
	destroyed := false
	src := node.New("src", &node.Descriptor{
		Type:    "test/src",
		Outputs: []node.Port{node.Out("value", value.TypeNumber, "Value")},
	}, node.Behavior{Destroy: func() { destroyed = true }})
	mustAdd(t, g, src, addNode("sum"))
	g.Connect(ep("src", "value"), ep("sum", "a"))

	if err := g.RemoveNode("src"); err != nil {
		t.Fatal(err)
	}
	if !destroyed {
		t.Error("expected destroy hook")
	}
	if g.EdgeCount() != 0 {
		t.Errorf("expected edges removed, got %d", g.EdgeCount())
	}
	if _, ok := g.InputEdge(ep("sum", "a")); ok {
		t.Error("inbound index should be cleared")
	}
	if err := g.RemoveNode("src"); !errors.Is(err, ErrNodeNotFound) {
		t.Errorf("expected ErrNodeNotFound, got %v", err)
	}
}

func TestAddDuplicateNode(t *testing.T) {
	g := New()
	mustAdd(t, g, constNode("c", 1))
	if err := g.AddNode(constNode("c", 2)); !errors.Is(err, ErrDuplicateNode) {
		t.Errorf("expected ErrDuplicateNode, got %v", err)
	}
}

func TestDescribe(t *testing.T) {
	g := New()
	mustAdd(t, g, constNode("c", 7), addNode("sum"))
	g.nodes["sum"].SetPosition(node.Position{X: 10, Y: 20})
	g.Connect(ep("c", "value"), ep("sum", "a"))

	d := g.Describe()
	if len(d.Nodes) != 2 || d.Nodes[0].ID != "c" || d.Nodes[0].Properties["value"] != 7.0 {
		t.Errorf("unexpected nodes %+v", d.Nodes)
	}
	if d.Nodes[1].Position.X != 10 {
		t.Errorf("expected position to be exported, got %+v", d.Nodes[1].Position)
	}
	if len(d.Edges) != 1 || d.Edges[0].From != "c:value" || d.Edges[0].To != "sum:a" {
		t.Errorf("unexpected edges %+v", d.Edges)
	}
}

func TestParseEndpoint(t *testing.T) {
	tests := []struct {
		in      string
		want    Endpoint
		wantErr bool
	}{
		{"lfo:value", Endpoint{"lfo", "value"}, false},
		{"ns:lfo:value", Endpoint{"ns:lfo", "value"}, false},
		{"lfo", Endpoint{}, true},
		{":value", Endpoint{}, true},
		{"lfo:", Endpoint{}, true},
	}
	for _, tt := range tests {
		got, err := ParseEndpoint(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseEndpoint(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseEndpoint(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

package graphfile

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/AaronLay10/Cadence/internal/graph"
	"github.com/AaronLay10/Cadence/internal/node"
)

func sample() graph.Description {
	return graph.Description{
		Nodes: []graph.NodeDescription{
			{
				ID:       "osc",
				Type:     "audio/oscillator",
				Title:    "Tone",
				Position: node.Position{X: 120, Y: 40},
				Properties: map[string]any{
					"frequency": 220.0,
					"waveform":  "saw",
				},
			},
			{
				ID:   "seq",
				Type: "control/sequencer",
				Properties: map[string]any{
					"values": []float64{0, 0.5, 1},
					"random": false,
				},
			},
		},
		Edges: []graph.EdgeDescription{{From: "osc:audio", To: "fft:audio"}},
	}
}

func checkSample(t *testing.T, d graph.Description) {
	t.Helper()
	if len(d.Nodes) != 2 || len(d.Edges) != 1 {
		t.Fatalf("expected 2 nodes and 1 edge, got %d and %d", len(d.Nodes), len(d.Edges))
	}
	osc := d.Nodes[0]
	if osc.ID != "osc" || osc.Type != "audio/oscillator" || osc.Title != "Tone" {
		t.Errorf("unexpected node %+v", osc)
	}
	if osc.Position != (node.Position{X: 120, Y: 40}) {
		t.Errorf("unexpected position %+v", osc.Position)
	}
	// YAML reads whole numbers back as ints.
	switch f := osc.Properties["frequency"].(type) {
	case float64:
		if f != 220 {
			t.Errorf("expected frequency 220, got %v", f)
		}
	case int:
		if f != 220 {
			t.Errorf("expected frequency 220, got %v", f)
		}
	default:
		t.Errorf("expected frequency 220, got %#v", osc.Properties["frequency"])
	}
	if s := osc.Properties["waveform"]; s != "saw" {
		t.Errorf("expected waveform saw, got %#v", s)
	}
	values, ok := d.Nodes[1].Properties["values"].([]any)
	if !ok || len(values) != 3 {
		t.Errorf("expected 3 step values, got %#v", d.Nodes[1].Properties["values"])
	}
	if d.Edges[0].From != "osc:audio" || d.Edges[0].To != "fft:audio" {
		t.Errorf("unexpected edge %+v", d.Edges[0])
	}
}

func TestSaveLoadEachFormat(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"g.json", "g.yaml", "g.hcl"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name)
			if err := Save(path, sample()); err != nil {
				t.Fatalf("save: %v", err)
			}
			d, err := Load(path)
			if err != nil {
				t.Fatalf("load: %v", err)
			}
			checkSample(t, d)
		})
	}
}

func TestDecodeHCL(t *testing.T) {
	src := `
version = 1

node "lfo" {
  type     = "control/lfo"
  position = [10, 20]
  properties = {
    frequency = 0.5
    waveform  = "triangle"
  }
}

node "shape" {
  type = "visual/shape"
}

edge {
  from = "lfo:value"
  to   = "shape:scale"
}
`
	d, err := Decode([]byte(src), HCL, "test.hcl")
	if err != nil {
		t.Fatal(err)
	}
	if len(d.Nodes) != 2 {
		t.Fatalf("expected 2 nodes, got %d", len(d.Nodes))
	}
	if d.Nodes[0].Properties["waveform"] != "triangle" {
		t.Errorf("unexpected properties %#v", d.Nodes[0].Properties)
	}
	if d.Nodes[1].Properties != nil {
		t.Errorf("expected no properties, got %#v", d.Nodes[1].Properties)
	}
	if d.Edges[0].To != "shape:scale" {
		t.Errorf("unexpected edge %+v", d.Edges[0])
	}
}

func TestDecodeHCLErrors(t *testing.T) {
	tests := map[string]string{
		"syntax":       `node "a" {`,
		"missing type": `node "a" {}`,
		"bad position": "node \"a\" {\n type = \"x\"\n position = [1]\n}",
		"bad props":    "node \"a\" {\n type = \"x\"\n properties = \"nope\"\n}",
	}
	for name, src := range tests {
		if _, err := Decode([]byte(src), HCL, "bad.hcl"); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestRejectsUnknownVersion(t *testing.T) {
	_, err := Decode([]byte(`{"version": 2, "nodes": [], "edges": []}`), JSON, "g.json")
	if err == nil {
		t.Fatal("expected version error")
	}
	d, err := Decode([]byte(`{"nodes": [{"id": "a", "type": "control/value"}], "edges": []}`), JSON, "g.json")
	if err != nil {
		t.Fatalf("missing version should be accepted: %v", err)
	}
	if len(d.Nodes) != 1 {
		t.Errorf("expected one node, got %d", len(d.Nodes))
	}
}

func TestUnknownExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "g.toml")
	if err := os.WriteFile(path, []byte(""), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("expected ErrUnknownFormat, got %v", err)
	}
}

package graph

import "github.com/AaronLay10/Cadence/internal/node"

// Description is the persisted form of a graph.
type Description struct {
	Nodes []NodeDescription `json:"nodes" yaml:"nodes"`
	Edges []EdgeDescription `json:"edges" yaml:"edges"`
}

type NodeDescription struct {
	ID         string         `json:"id" yaml:"id"`
	Type       string         `json:"type" yaml:"type"`
	Title      string         `json:"title,omitempty" yaml:"title,omitempty"`
	Position   node.Position  `json:"position" yaml:"position"`
	Properties map[string]any `json:"properties,omitempty" yaml:"properties,omitempty"`
}

// EdgeDescription connects "node:port" to "node:port".
type EdgeDescription struct {
	From string `json:"from" yaml:"from"`
	To   string `json:"to" yaml:"to"`
}

// Describe exports the graph in insertion order.
func (g *Graph) Describe() Description {
	d := Description{
		Nodes: make([]NodeDescription, 0, len(g.order)),
		Edges: make([]EdgeDescription, 0, len(g.edgeOrder)),
	}
	for _, n := range g.Nodes() {
		nd := NodeDescription{
			ID:         n.ID(),
			Type:       n.Type(),
			Position:   n.Position(),
			Properties: n.Properties().Values(),
		}
		if n.Title() != n.Descriptor().Title {
			nd.Title = n.Title()
		}
		d.Nodes = append(d.Nodes, nd)
	}
	for _, e := range g.Edges() {
		d.Edges = append(d.Edges, EdgeDescription{From: e.From.String(), To: e.To.String()})
	}
	return d
}

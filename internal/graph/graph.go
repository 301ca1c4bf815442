// Package graph owns nodes and edges and evaluates them once per frame in
// dependency order.
//
// A Graph is not safe for concurrent use. The studio serialises every
// mutation and evaluation behind one lock.
package graph

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/AaronLay10/Cadence/internal/events"
	"github.com/AaronLay10/Cadence/internal/node"
	"github.com/AaronLay10/Cadence/internal/value"
)

// Graph is a directed acyclic graph of nodes.
type Graph struct {
	nodes map[string]*node.Node
	order []string

	edges     map[string]*Edge
	edgeOrder []string
	// inbound maps node id -> input port -> edge; an input has at most one edge.
	inbound map[string]map[string]*Edge

	sorted []string
	dirty  bool

	failing map[string]string
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes:   make(map[string]*node.Node),
		edges:   make(map[string]*Edge),
		inbound: make(map[string]map[string]*Edge),
		failing: make(map[string]string),
	}
}

// AddNode inserts n. Insertion order breaks ties in evaluation order.
func (g *Graph) AddNode(n *node.Node) error {
	if _, ok := g.nodes[n.ID()]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateNode, n.ID())
	}
	g.nodes[n.ID()] = n
	g.order = append(g.order, n.ID())
	g.dirty = true
	return nil
}

// RemoveNode drops the node and every edge touching it, then destroys it.
func (g *Graph) RemoveNode(id string) error {
	n, ok := g.nodes[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}

	for _, eid := range append([]string(nil), g.edgeOrder...) {
		e := g.edges[eid]
		if e.From.Node == id || e.To.Node == id {
			g.removeEdge(eid)
		}
	}

	delete(g.nodes, id)
	delete(g.inbound, id)
	delete(g.failing, id)
	for i, nid := range g.order {
		if nid == id {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
	g.dirty = true

	n.Destroy()
	return nil
}

// Node returns the node with id.
func (g *Graph) Node(id string) (*node.Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// Nodes returns all nodes in insertion order.
func (g *Graph) Nodes() []*node.Node {
	out := make([]*node.Node, 0, len(g.order))
	for _, id := range g.order {
		out = append(out, g.nodes[id])
	}
	return out
}

// Edges returns all edges in creation order.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, 0, len(g.edgeOrder))
	for _, id := range g.edgeOrder {
		out = append(out, *g.edges[id])
	}
	return out
}

func (g *Graph) EdgeCount() int { return len(g.edges) }

// Connect adds an edge from an output port to an input port. If the input
// already has an edge it is replaced. On error the graph is unchanged.
func (g *Graph) Connect(from, to Endpoint) (Edge, error) {
	src, ok := g.nodes[from.Node]
	if !ok {
		return Edge{}, fmt.Errorf("%w: %s", ErrNodeNotFound, from.Node)
	}
	dst, ok := g.nodes[to.Node]
	if !ok {
		return Edge{}, fmt.Errorf("%w: %s", ErrNodeNotFound, to.Node)
	}
	out, ok := src.Descriptor().Output(from.Port)
	if !ok {
		return Edge{}, fmt.Errorf("%w: output %s", ErrPortNotFound, from)
	}
	in, ok := dst.Descriptor().Input(to.Port)
	if !ok {
		return Edge{}, fmt.Errorf("%w: input %s", ErrPortNotFound, to)
	}
	if !value.Compatible(out.Type, in.Type) {
		return Edge{}, &TypeMismatchError{From: from, FromType: out.Type, To: to, ToType: in.Type}
	}
	if path := g.pathBetween(to.Node, from.Node); path != nil {
		return Edge{}, &CycleError{Path: append([]string{from.Node}, path...)}
	}

	if prev, ok := g.inbound[to.Node][to.Port]; ok {
		g.removeEdge(prev.ID)
	}

	e := &Edge{ID: uuid.NewString(), From: from, To: to}
	g.edges[e.ID] = e
	g.edgeOrder = append(g.edgeOrder, e.ID)
	if g.inbound[to.Node] == nil {
		g.inbound[to.Node] = make(map[string]*Edge)
	}
	g.inbound[to.Node][to.Port] = e
	g.dirty = true
	return *e, nil
}

// Disconnect removes an edge by id.
func (g *Graph) Disconnect(edgeID string) error {
	if _, ok := g.edges[edgeID]; !ok {
		return fmt.Errorf("%w: %s", ErrEdgeNotFound, edgeID)
	}
	g.removeEdge(edgeID)
	g.dirty = true
	return nil
}

// InputEdge returns the edge feeding an input port, if any.
func (g *Graph) InputEdge(to Endpoint) (Edge, bool) {
	e, ok := g.inbound[to.Node][to.Port]
	if !ok {
		return Edge{}, false
	}
	return *e, true
}

func (g *Graph) removeEdge(id string) {
	e := g.edges[id]
	delete(g.edges, id)
	if ports := g.inbound[e.To.Node]; ports != nil && ports[e.To.Port] == e {
		delete(ports, e.To.Port)
	}
	for i, eid := range g.edgeOrder {
		if eid == id {
			g.edgeOrder = append(g.edgeOrder[:i], g.edgeOrder[i+1:]...)
			break
		}
	}
	g.dirty = true
}

// pathBetween returns the node ids along a path from start to target
// following edge direction, or nil if target is unreachable.
func (g *Graph) pathBetween(start, target string) []string {
	if start == target {
		return []string{start}
	}
	prev := map[string]string{start: ""}
	queue := []string{start}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, eid := range g.edgeOrder {
			e := g.edges[eid]
			if e.From.Node != cur {
				continue
			}
			next := e.To.Node
			if _, seen := prev[next]; seen {
				continue
			}
			prev[next] = cur
			if next == target {
				var path []string
				for n := next; n != ""; n = prev[n] {
					path = append([]string{n}, path...)
				}
				return path
			}
			queue = append(queue, next)
		}
	}
	return nil
}

// Order returns node ids in evaluation order: every node after its
// upstream nodes, ties broken by insertion order.
func (g *Graph) Order() []string {
	if !g.dirty && g.sorted != nil {
		return append([]string(nil), g.sorted...)
	}

	indegree := make(map[string]int, len(g.nodes))
	for _, e := range g.edges {
		indegree[e.To.Node]++
	}
	placed := make(map[string]bool, len(g.nodes))
	sorted := make([]string, 0, len(g.nodes))

	for len(sorted) < len(g.order) {
		progressed := false
		for _, id := range g.order {
			if placed[id] || indegree[id] > 0 {
				continue
			}
			placed[id] = true
			sorted = append(sorted, id)
			for _, eid := range g.edgeOrder {
				if e := g.edges[eid]; e.From.Node == id {
					indegree[e.To.Node]--
				}
			}
			progressed = true
			break
		}
		if !progressed {
			// Unreachable while Connect rejects cycles.
			panic("graph: cycle in evaluation order")
		}
	}

	g.sorted = sorted
	g.dirty = false
	return append([]string(nil), sorted...)
}

// Evaluate runs every node once in dependency order. Each input receives
// the value its upstream port produced earlier in this same pass, coerced
// to the input's type. A failing node yields error values and the pass
// continues with the remaining nodes.
func (g *Graph) Evaluate(ctx context.Context, f node.Frame) {
	for _, id := range g.Order() {
		n := g.nodes[id]
		n.Run(ctx, f, g.inputsFor(n))
		g.trackFailure(n)
	}
}

func (g *Graph) inputsFor(n *node.Node) node.Inputs {
	ports := g.inbound[n.ID()]
	in := make(node.Inputs, len(ports))
	for key, e := range ports {
		src := g.nodes[e.From.Node]
		v := src.Output(e.From.Port)
		port, _ := n.Descriptor().Input(key)
		if cv, ok := value.Coerce(v, port.Type); ok {
			v = cv
		}
		in[key] = v
	}
	return in
}

// trackFailure emits node.error when a node starts failing with a new
// error and node.recovered when it succeeds again.
func (g *Graph) trackFailure(n *node.Node) {
	err := n.LastError()
	prev, failing := g.failing[n.ID()]
	switch {
	case err == nil && failing:
		delete(g.failing, n.ID())
		events.Emit("info", "node.recovered", "", map[string]interface{}{
			"node_id":   n.ID(),
			"node_type": n.Type(),
		})
	case err != nil && (!failing || prev != err.Error()):
		g.failing[n.ID()] = err.Error()
		events.Emit("warn", "node.error", err.Error(), map[string]interface{}{
			"node_id":   n.ID(),
			"node_type": n.Type(),
			"error":     err.Error(),
		})
	}
}

// Outputs returns a snapshot of every node's last outputs.
func (g *Graph) Outputs() map[string]node.Outputs {
	out := make(map[string]node.Outputs, len(g.nodes))
	for id, n := range g.nodes {
		out[id] = n.Outputs()
	}
	return out
}

// Clear destroys every node and drops all edges.
func (g *Graph) Clear() {
	for _, id := range append([]string(nil), g.order...) {
		g.RemoveNode(id)
	}
}

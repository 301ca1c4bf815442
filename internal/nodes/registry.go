// Package nodes is the catalogue of node types and the registry that builds
// them from persisted graph descriptions.
package nodes

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AaronLay10/Cadence/internal/backend"
	"github.com/AaronLay10/Cadence/internal/graph"
	"github.com/AaronLay10/Cadence/internal/node"
	"github.com/AaronLay10/Cadence/internal/value"
)

var (
	ErrUnknownType  = errors.New("unknown node type")
	ErrRecorderBusy = errors.New("recorder busy")
)

// Env is the explicit context shared by every node of one graph. It
// replaces process-wide singletons: whoever owns the graph owns the Env.
type Env struct {
	// SampleRate is used by generated audio and when a payload has none.
	SampleRate int
	// Backend may be nil; nodes then always use their local computation.
	Backend *backend.Client
	// BackendInterval is the minimum time between analysis requests per node.
	BackendInterval time.Duration
	// ResolvePath expands user paths such as "~/music/song.wav".
	ResolvePath func(string) (string, error)
	// Screens receives what display nodes show.
	Screens *Screens
}

func (e *Env) sampleRate() int {
	if e == nil || e.SampleRate <= 0 {
		return 44100
	}
	return e.SampleRate
}

func (e *Env) backendInterval() time.Duration {
	if e == nil || e.BackendInterval <= 0 {
		return time.Second
	}
	return e.BackendInterval
}

func (e *Env) resolve(path string) (string, error) {
	if e == nil || e.ResolvePath == nil {
		return path, nil
	}
	return e.ResolvePath(path)
}

func (e *Env) useBackend() bool {
	return e != nil && e.Backend.Configured()
}

// Screens keeps the latest visual per display node for the host renderer.
type Screens struct {
	mu     sync.RWMutex
	frames map[string]*value.Visual
}

func NewScreens() *Screens {
	return &Screens{frames: make(map[string]*value.Visual)}
}

func (s *Screens) show(id string, v *value.Visual) {
	if s == nil {
		return
	}
	s.mu.Lock()
	s.frames[id] = v
	s.mu.Unlock()
}

func (s *Screens) remove(id string) {
	if s == nil {
		return
	}
	s.mu.Lock()
	delete(s.frames, id)
	s.mu.Unlock()
}

// Latest returns the last visual shown by display node id.
func (s *Screens) Latest(id string) (*value.Visual, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.frames[id]
	return v, ok
}

// Constructor builds one node instance.
type Constructor func(id string, env *Env) *node.Node

type entry struct {
	desc *node.Descriptor
	ctor Constructor
}

// Registry maps type names to constructors.
type Registry struct {
	env     *Env
	entries map[string]entry
}

// NewRegistry creates an empty registry whose nodes share env.
func NewRegistry(env *Env) *Registry {
	if env == nil {
		env = &Env{}
	}
	return &Registry{env: env, entries: make(map[string]entry)}
}

// Default returns a registry with every built-in node type.
func Default(env *Env) *Registry {
	r := NewRegistry(env)
	registerControl(r)
	registerAudio(r)
	registerVisual(r)
	registerOutput(r)
	return r
}

func (r *Registry) Env() *Env { return r.env }

// Register adds a node type. Registering a type twice replaces it.
func (r *Registry) Register(desc *node.Descriptor, ctor Constructor) {
	r.entries[desc.Type] = entry{desc: desc, ctor: ctor}
}

// Descriptors returns every registered type sorted by type name.
func (r *Registry) Descriptors() []*node.Descriptor {
	out := make([]*node.Descriptor, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.desc)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Type < out[j].Type })
	return out
}

// Create builds a node and applies property overrides. An empty id gets a
// generated one.
func (r *Registry) Create(typ, id string, props map[string]any) (*node.Node, error) {
	e, ok := r.entries[typ]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownType, typ)
	}
	if id == "" {
		id = uuid.NewString()
	}
	n := e.ctor(id, r.env)
	if err := n.Properties().SetAll(props); err != nil {
		n.Destroy()
		return nil, fmt.Errorf("node %s: %w", id, err)
	}
	return n, nil
}

// Build creates a graph from a description. On error every node created so
// far is destroyed.
func (r *Registry) Build(d graph.Description) (*graph.Graph, error) {
	g := graph.New()
	fail := func(err error) (*graph.Graph, error) {
		g.Clear()
		return nil, err
	}

	for _, nd := range d.Nodes {
		n, err := r.Create(nd.Type, nd.ID, nd.Properties)
		if err != nil {
			return fail(err)
		}
		n.SetPosition(nd.Position)
		if nd.Title != "" {
			n.SetTitle(nd.Title)
		}
		if err := g.AddNode(n); err != nil {
			n.Destroy()
			return fail(err)
		}
	}

	for _, ed := range d.Edges {
		from, err := graph.ParseEndpoint(ed.From)
		if err != nil {
			return fail(err)
		}
		to, err := graph.ParseEndpoint(ed.To)
		if err != nil {
			return fail(err)
		}
		if _, err := g.Connect(from, to); err != nil {
			return fail(fmt.Errorf("edge %s -> %s: %w", ed.From, ed.To, err))
		}
	}
	return g, nil
}

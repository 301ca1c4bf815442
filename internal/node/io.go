package node

import (
	"time"

	"github.com/AaronLay10/Cadence/internal/value"
)

// Frame identifies one evaluation tick.
type Frame struct {
	Index int64
	Now   time.Time
	// Delta is the time since the previous frame of the host loop. Time-driven
	// nodes should measure their own elapsed time from Now instead.
	Delta time.Duration
}

// Inputs are the resolved values for one node's input ports. Unconnected
// ports are absent; error values count as absent.
type Inputs map[string]value.Value

// Has reports whether key holds a usable value.
func (in Inputs) Has(key string) bool {
	v, ok := in[key]
	return ok && !v.IsError() && !v.IsZero()
}

// Get returns the value for key if it is usable.
func (in Inputs) Get(key string) (value.Value, bool) {
	if !in.Has(key) {
		return value.Value{}, false
	}
	return in[key], true
}

func (in Inputs) Float(key string, def float64) float64 {
	if v, ok := in.Get(key); ok {
		return v.Float()
	}
	return def
}

func (in Inputs) Bool(key string, def bool) bool {
	if v, ok := in.Get(key); ok {
		return v.Bool()
	}
	return def
}

func (in Inputs) String(key string, def string) string {
	if v, ok := in.Get(key); ok {
		return v.Str()
	}
	return def
}

func (in Inputs) Color(key string, def value.Color) value.Color {
	if v, ok := in.Get(key); ok && v.Type == value.TypeColor {
		return v.Color()
	}
	return def
}

// Audio returns the audio payload on key, or nil.
func (in Inputs) Audio(key string) *value.Audio {
	if v, ok := in.Get(key); ok {
		return v.Audio()
	}
	return nil
}

// Visual returns the visual payload on key, or nil.
func (in Inputs) Visual(key string) *value.Visual {
	if v, ok := in.Get(key); ok {
		return v.Visual()
	}
	return nil
}

// Outputs are the values a node produced for its output ports.
type Outputs map[string]value.Value

// Clone returns a shallow copy.
func (o Outputs) Clone() Outputs {
	out := make(Outputs, len(o))
	for k, v := range o {
		out[k] = v
	}
	return out
}

// Package value defines the values carried between node ports.
//
// A Value is a tagged union: its Type names which payload is meaningful.
// Values are immutable once built; array, audio and visual payloads are
// shared by reference and must not be mutated by consumers.
package value

import (
	"fmt"
	"strconv"
)

// Type is the declared type of a port or value.
type Type string

const (
	TypeNumber  Type = "number"
	TypeBoolean Type = "boolean"
	TypeString  Type = "string"
	TypeArray   Type = "array"
	TypeAudio   Type = "audio"
	TypeVisual  Type = "visual"
	TypeColor   Type = "color"
	TypeTexture Type = "texture"
	TypeEvent   Type = "event"
)

var knownTypes = map[Type]struct{}{
	TypeNumber:  {},
	TypeBoolean: {},
	TypeString:  {},
	TypeArray:   {},
	TypeAudio:   {},
	TypeVisual:  {},
	TypeColor:   {},
	TypeTexture: {},
	TypeEvent:   {},
}

// Valid reports whether t is one of the fixed port types.
func (t Type) Valid() bool {
	_, ok := knownTypes[t]
	return ok
}

// Color is an RGBA color with channels in [0, 1].
type Color struct {
	R float64 `json:"r"`
	G float64 `json:"g"`
	B float64 `json:"b"`
	A float64 `json:"a"`
}

// Audio describes a window of mono samples ending at Time seconds into the source.
type Audio struct {
	SampleRate int       `json:"sample_rate"`
	Samples    []float64 `json:"-"`
	Time       float64   `json:"time"`
	Source     string    `json:"source,omitempty"`
}

// Duration returns the length of the sample window in seconds.
func (a *Audio) Duration() float64 {
	if a == nil || a.SampleRate <= 0 {
		return 0
	}
	return float64(len(a.Samples)) / float64(a.SampleRate)
}

// Visual describes something a renderer can draw.
type Visual struct {
	Kind     string             `json:"kind"`
	Params   map[string]float64 `json:"params,omitempty"`
	Color    Color              `json:"color"`
	Texture  string             `json:"texture,omitempty"`
	Blend    string             `json:"blend,omitempty"`
	Children []*Visual          `json:"children,omitempty"`
}

// Value is a single port value.
type Value struct {
	Type Type

	num    float64
	flag   bool
	str    string
	arr    []float64
	audio  *Audio
	visual *Visual
	color  Color
	err    error
}

func Number(f float64) Value { return Value{Type: TypeNumber, num: f} }
func Bool(b bool) Value { return Value{Type: TypeBoolean, flag: b} }
func String(s string) Value { return Value{Type: TypeString, str: s} }
func Array(a []float64) Value { return Value{Type: TypeArray, arr: a} }
func AudioValue(a *Audio) Value { return Value{Type: TypeAudio, audio: a} }
func VisualValue(v *Visual) Value { return Value{Type: TypeVisual, visual: v} }
func ColorValue(c Color) Value { return Value{Type: TypeColor, color: c} }
func Texture(handle string) Value { return Value{Type: TypeTexture, str: handle} }
func Event(fired bool) Value { return Value{Type: TypeEvent, flag: fired} }

// Error builds the error output for a port of type t.
// Consumers treat an error value as if the port were unconnected.
func Error(t Type, err error) Value {
	return Value{Type: t, err: err}
}

// Zero returns the neutral value for t.
func Zero(t Type) Value {
	switch t {
	case TypeArray:
		return Array([]float64{})
	case TypeColor:
		return ColorValue(Color{A: 1})
	default:
		return Value{Type: t}
	}
}

// IsError reports whether v is an error sentinel.
func (v Value) IsError() bool { return v.err != nil }

// Err returns the error carried by an error sentinel, or nil.
func (v Value) Err() error { return v.err }

// IsZero reports whether v was never set.
func (v Value) IsZero() bool { return v.Type == "" }

func (v Value) Float() float64 {
	switch v.Type {
	case TypeNumber:
		return v.num
	case TypeBoolean, TypeEvent:
		if v.flag {
			return 1
		}
	case TypeArray:
		if len(v.arr) > 0 {
			return v.arr[0]
		}
	}
	return 0
}

func (v Value) Bool() bool {
	switch v.Type {
	case TypeBoolean, TypeEvent:
		return v.flag
	case TypeNumber:
		return v.num >= 0.5
	}
	return false
}

func (v Value) Str() string {
	switch v.Type {
	case TypeString, TypeTexture:
		return v.str
	case TypeNumber:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case TypeBoolean, TypeEvent:
		return strconv.FormatBool(v.flag)
	}
	return ""
}

func (v Value) Floats() []float64 {
	if v.Type == TypeArray {
		return v.arr
	}
	if v.Type == TypeNumber {
		return []float64{v.num}
	}
	return nil
}

func (v Value) Audio() *Audio { return v.audio }
func (v Value) Visual() *Visual { return v.visual }
func (v Value) Color() Color { return v.color }

// Equal compares two values by type and payload. Audio and visual payloads
// compare by identity.
func (v Value) Equal(o Value) bool {
	if v.Type != o.Type || v.IsError() != o.IsError() {
		return false
	}
	switch v.Type {
	case TypeNumber:
		return v.num == o.num
	case TypeBoolean, TypeEvent:
		return v.flag == o.flag
	case TypeString, TypeTexture:
		return v.str == o.str
	case TypeArray:
		if len(v.arr) != len(o.arr) {
			return false
		}
		for i := range v.arr {
			if v.arr[i] != o.arr[i] {
				return false
			}
		}
		return true
	case TypeAudio:
		return v.audio == o.audio
	case TypeVisual:
		return v.visual == o.visual
	case TypeColor:
		return v.color == o.color
	}
	return true
}

func (v Value) String() string {
	if v.err != nil {
		return fmt.Sprintf("%s(error: %v)", v.Type, v.err)
	}
	switch v.Type {
	case TypeArray:
		return fmt.Sprintf("array%v", v.arr)
	case TypeAudio:
		if v.audio == nil {
			return "audio(nil)"
		}
		return fmt.Sprintf("audio(%d samples @ %dHz)", len(v.audio.Samples), v.audio.SampleRate)
	case TypeVisual:
		if v.visual == nil {
			return "visual(nil)"
		}
		return "visual(" + v.visual.Kind + ")"
	case TypeColor:
		return fmt.Sprintf("color(%.3f, %.3f, %.3f, %.3f)", v.color.R, v.color.G, v.color.B, v.color.A)
	}
	return string(v.Type) + "(" + v.Str() + ")"
}

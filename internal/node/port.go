package node

import (
	"github.com/AaronLay10/Cadence/internal/property"
	"github.com/AaronLay10/Cadence/internal/value"
)

// Category groups node types in the catalogue.
type Category string

const (
	CategoryAudio   Category = "audio"
	CategoryVisual  Category = "visual"
	CategoryControl Category = "control"
	CategoryOutput  Category = "output"
)

// Port is a typed, named input or output slot.
type Port struct {
	Key         string     `json:"key"`
	Label       string     `json:"label"`
	Type        value.Type `json:"type"`
	Required    bool       `json:"required,omitempty"`
	Description string     `json:"description,omitempty"`
}

// PropertyDecl declares one property with its default value.
type PropertyDecl struct {
	Name        string               `json:"name"`
	Default     any                  `json:"default"`
	Constraints property.Constraints `json:"constraints"`
}

// Descriptor is the fixed capability description of a node type. Its port
// lists never change after construction.
type Descriptor struct {
	Type       string         `json:"type"`
	Title      string         `json:"title"`
	Category   Category       `json:"category"`
	Inputs     []Port         `json:"inputs"`
	Outputs    []Port         `json:"outputs"`
	Properties []PropertyDecl `json:"properties"`
}

// Input looks up an input port by key.
func (d *Descriptor) Input(key string) (Port, bool) {
	return findPort(d.Inputs, key)
}

// Output looks up an output port by key.
func (d *Descriptor) Output(key string) (Port, bool) {
	return findPort(d.Outputs, key)
}

func findPort(ports []Port, key string) (Port, bool) {
	for _, p := range ports {
		if p.Key == key {
			return p, true
		}
	}
	return Port{}, false
}

// In is shorthand for an optional input port.
func In(key string, t value.Type, label string) Port {
	return Port{Key: key, Label: label, Type: t}
}

// Required is shorthand for a required input port.
func Required(key string, t value.Type, label string) Port {
	return Port{Key: key, Label: label, Type: t, Required: true}
}

// Out is shorthand for an output port.
func Out(key string, t value.Type, label string) Port {
	return Port{Key: key, Label: label, Type: t}
}

// Prop is shorthand for a PropertyDecl.
func Prop(name string, def any, c property.Constraints) PropertyDecl {
	return PropertyDecl{Name: name, Default: def, Constraints: c}
}

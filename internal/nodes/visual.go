package nodes

import (
	"context"
	"math"

	"github.com/AaronLay10/Cadence/internal/node"
	"github.com/AaronLay10/Cadence/internal/property"
	"github.com/AaronLay10/Cadence/internal/value"
)

func registerVisual(r *Registry) {
	r.Register(colorDesc, newColor)
	r.Register(shapeDesc, newShape)
	r.Register(shaderDesc, newShader)
	r.Register(layerDesc, newLayer)
}

var colorDesc = &node.Descriptor{
	Type:     "visual/color",
	Title:    "Color",
	Category: node.CategoryVisual,
	Inputs: []node.Port{
		node.In("hue", value.TypeNumber, "Hue"),
		node.In("saturation", value.TypeNumber, "Saturation"),
		node.In("lightness", value.TypeNumber, "Lightness"),
		node.In("alpha", value.TypeNumber, "Alpha"),
	},
	Outputs: []node.Port{node.Out("color", value.TypeColor, "Color")},
	Properties: []node.PropertyDecl{
		node.Prop("hue", 0.0, property.Number(0, 360, 1)),
		node.Prop("saturation", 1.0, property.Number(0, 1, 0.01)),
		node.Prop("lightness", 0.5, property.Number(0, 1, 0.01)),
		node.Prop("alpha", 1.0, property.Number(0, 1, 0.01)),
	},
}

func newColor(id string, env *Env) *node.Node {
	var props *property.Store
	n := node.New(id, colorDesc, node.Behavior{
		Process: func(ctx context.Context, f node.Frame, in node.Inputs) (node.Outputs, error) {
			c := hsl(
				in.Float("hue", props.Float("hue")),
				clamp01(in.Float("saturation", props.Float("saturation"))),
				clamp01(in.Float("lightness", props.Float("lightness"))),
			)
			c.A = clamp01(in.Float("alpha", props.Float("alpha")))
			return node.Outputs{"color": value.ColorValue(c)}, nil
		},
	})
	props = n.Properties()
	return n
}

// hsl converts hue in degrees (any value, wrapped) and saturation and
// lightness in [0, 1] to an opaque RGB color.
func hsl(h, s, l float64) value.Color {
	h = math.Mod(h, 360)
	if h < 0 {
		h += 360
	}
	c := (1 - math.Abs(2*l-1)) * s
	x := c * (1 - math.Abs(math.Mod(h/60, 2)-1))
	m := l - c/2

	var r, g, b float64
	switch {
	case h < 60:
		r, g = c, x
	case h < 120:
		r, g = x, c
	case h < 180:
		g, b = c, x
	case h < 240:
		g, b = x, c
	case h < 300:
		r, b = x, c
	default:
		r, b = c, x
	}
	return value.Color{R: r + m, G: g + m, B: b + m, A: 1}
}

var shapeDesc = &node.Descriptor{
	Type:     "visual/shape",
	Title:    "Shape",
	Category: node.CategoryVisual,
	Inputs: []node.Port{
		node.In("scale", value.TypeNumber, "Scale"),
		node.In("color", value.TypeColor, "Color"),
		node.In("rotation", value.TypeNumber, "Rotation"),
	},
	Outputs: []node.Port{node.Out("visual", value.TypeVisual, "Visual")},
	Properties: []node.PropertyDecl{
		node.Prop("shape", "circle", property.Enum("circle", "square", "triangle", "ring")),
		node.Prop("size", 0.5, property.Number(0, 2, 0.01)),
		node.Prop("rotation", 0.0, property.Number(-360, 360, 1)),
		node.Prop("color", "#ffffff", property.Color()),
	},
}

func newShape(id string, env *Env) *node.Node {
	var props *property.Store
	n := node.New(id, shapeDesc, node.Behavior{
		Process: func(ctx context.Context, f node.Frame, in node.Inputs) (node.Outputs, error) {
			scale := in.Float("scale", 1)
			v := &value.Visual{
				Kind: props.String("shape"),
				Params: map[string]float64{
					"size":     props.Float("size") * scale,
					"rotation": in.Float("rotation", props.Float("rotation")),
				},
				Color: in.Color("color", props.Color("color")),
			}
			return node.Outputs{"visual": value.VisualValue(v)}, nil
		},
	})
	props = n.Properties()
	return n
}

var shaderDesc = &node.Descriptor{
	Type:     "visual/shader",
	Title:    "Shader",
	Category: node.CategoryVisual,
	Inputs: []node.Port{
		node.In("u1", value.TypeNumber, "U1"),
		node.In("u2", value.TypeNumber, "U2"),
	},
	Outputs: []node.Port{
		node.Out("texture", value.TypeTexture, "Texture"),
		node.Out("visual", value.TypeVisual, "Visual"),
	},
	Properties: []node.PropertyDecl{
		node.Prop("program", "noise", property.Enum("noise", "gradient", "voronoi", "plasma")),
		node.Prop("speed", 1.0, property.Number(0, 10, 0.01)),
	},
}

type shader struct {
	id    string
	props *property.Store
	sw    stopwatch
	t     float64
}

func newShader(id string, env *Env) *node.Node {
	s := &shader{id: id}
	n := node.New(id, shaderDesc, node.Behavior{Process: s.process})
	s.props = n.Properties()
	return n
}

// process advances the shader's own time by elapsed time scaled by speed
// and describes the program with its uniforms for the host renderer.
func (s *shader) process(ctx context.Context, f node.Frame, in node.Inputs) (node.Outputs, error) {
	s.t += s.sw.lap(f.Now) * s.props.Float("speed")
	program := s.props.String("program")
	handle := "shader/" + program + "/" + s.id

	v := &value.Visual{
		Kind:    "shader",
		Texture: handle,
		Params: map[string]float64{
			"time": s.t,
			"u1":   in.Float("u1", 0),
			"u2":   in.Float("u2", 0),
		},
		Color: value.Color{R: 1, G: 1, B: 1, A: 1},
	}
	return node.Outputs{
		"texture": value.Texture(handle),
		"visual":  value.VisualValue(v),
	}, nil
}

var layerDesc = &node.Descriptor{
	Type:     "visual/layer",
	Title:    "Layer",
	Category: node.CategoryVisual,
	Inputs: []node.Port{
		node.In("base", value.TypeVisual, "Base"),
		node.In("top", value.TypeVisual, "Top"),
		node.In("opacity", value.TypeNumber, "Opacity"),
	},
	Outputs: []node.Port{node.Out("visual", value.TypeVisual, "Visual")},
	Properties: []node.PropertyDecl{
		node.Prop("blend", "normal", property.Enum("normal", "add", "multiply", "screen")),
		node.Prop("opacity", 1.0, property.Number(0, 1, 0.01)),
	},
}

func newLayer(id string, env *Env) *node.Node {
	var props *property.Store
	n := node.New(id, layerDesc, node.Behavior{
		Process: func(ctx context.Context, f node.Frame, in node.Inputs) (node.Outputs, error) {
			v := &value.Visual{
				Kind:   "layer",
				Blend:  props.String("blend"),
				Params: map[string]float64{"opacity": clamp01(in.Float("opacity", props.Float("opacity")))},
				Color:  value.Color{R: 1, G: 1, B: 1, A: 1},
			}
			for _, key := range []string{"base", "top"} {
				if child := in.Visual(key); child != nil {
					v.Children = append(v.Children, child)
				}
			}
			return node.Outputs{"visual": value.VisualValue(v)}, nil
		},
	})
	props = n.Properties()
	return n
}
